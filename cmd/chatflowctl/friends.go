package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var friendsCmd = &cobra.Command{
	Use:   "friends",
	Short: "Manage friendships",
}

var friendsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accepted friends",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()
		if _, err := e.requireIdentity(); err != nil {
			return err
		}

		friends, err := e.api.Friends(cmd.Context())
		if err != nil {
			return err
		}
		if len(friends) == 0 {
			fmt.Println("no friends yet")
			return nil
		}
		for _, f := range friends {
			presence := "offline"
			if f.Friend.IsOnline {
				presence = "online"
			}
			name := f.Friend.FullName
			if name == "" {
				name = f.Friend.Username
			}
			fmt.Printf("%-6d %-20s %s\n", f.Friend.ID, name, presence)
		}
		return nil
	},
}

var friendsPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List pending friend requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()
		if _, err := e.requireIdentity(); err != nil {
			return err
		}

		pending, err := e.api.PendingRequests(cmd.Context())
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("no pending requests")
			return nil
		}
		for _, f := range pending {
			direction := "incoming"
			if f.IsRequester {
				direction = "outgoing"
			}
			fmt.Printf("%-6d %-20s %s\n", f.ID, f.Friend.Username, direction)
		}
		return nil
	},
}

var friendsAddCmd = &cobra.Command{
	Use:   "add <user-id>",
	Short: "Send a friend request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return friendshipAction(cmd, args[0], "request sent", func(e *env, id int64) error {
			return e.api.SendFriendRequest(cmd.Context(), id)
		})
	},
}

var friendsAcceptCmd = &cobra.Command{
	Use:   "accept <friendship-id>",
	Short: "Accept a pending friend request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return friendshipAction(cmd, args[0], "request accepted", func(e *env, id int64) error {
			return e.api.AcceptFriendRequest(cmd.Context(), id)
		})
	},
}

var friendsRejectCmd = &cobra.Command{
	Use:   "reject <friendship-id>",
	Short: "Reject a pending friend request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return friendshipAction(cmd, args[0], "request rejected", func(e *env, id int64) error {
			return e.api.RejectFriendRequest(cmd.Context(), id)
		})
	},
}

var friendsRemoveCmd = &cobra.Command{
	Use:   "remove <friendship-id>",
	Short: "Remove a friend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return friendshipAction(cmd, args[0], "friend removed", func(e *env, id int64) error {
			return e.api.RemoveFriend(cmd.Context(), id)
		})
	},
}

var friendsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search users by username",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()
		if _, err := e.requireIdentity(); err != nil {
			return err
		}

		results, err := e.api.SearchUsers(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("no users found")
			return nil
		}
		for _, r := range results {
			note := ""
			if r.IsFriend {
				note = "friend"
			} else if r.FriendshipStatus != "" {
				note = r.FriendshipStatus
			}
			fmt.Printf("%-6d %-20s %s\n", r.ID, r.Username, note)
		}
		return nil
	},
}

func friendshipAction(cmd *cobra.Command, rawID, okMsg string, fn func(*env, int64) error) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", rawID)
	}
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()
	if _, err := e.requireIdentity(); err != nil {
		return err
	}
	if err := fn(e, id); err != nil {
		return err
	}
	fmt.Println(okMsg)
	return nil
}

func init() {
	friendsCmd.AddCommand(friendsListCmd, friendsPendingCmd, friendsAddCmd, friendsAcceptCmd, friendsRejectCmd, friendsRemoveCmd, friendsSearchCmd)
	rootCmd.AddCommand(friendsCmd)
}
