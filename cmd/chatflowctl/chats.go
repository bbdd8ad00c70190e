package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()
		if _, err := e.requireIdentity(); err != nil {
			return err
		}

		convs, err := e.api.Conversations(cmd.Context())
		if err != nil {
			return err
		}
		if len(convs) == 0 {
			fmt.Println("no conversations yet")
			return nil
		}
		for _, c := range convs {
			name := c.Friend.FullName
			if name == "" {
				name = c.Friend.Username
			}
			preview := ""
			if c.LastMessage != nil {
				preview = c.LastMessage.Content
			}
			unread := ""
			if c.UnreadCount > 0 {
				unread = fmt.Sprintf(" (%d unread)", c.UnreadCount)
			}
			fmt.Printf("%-6d %-20s %s%s\n", c.Friend.ID, name, preview, unread)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <peer-id>",
	Short: "Show the message history with a peer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		peerID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid peer id %q", args[0])
		}

		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()
		id, err := e.requireIdentity()
		if err != nil {
			return err
		}

		msgs, err := e.api.ConversationMessages(cmd.Context(), peerID)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			who := "them"
			if m.SenderID == id.ID {
				who = "me"
			}
			fmt.Printf("[%s] %-4s %s\n", m.CreatedAt.Format("15:04"), who, m.Content)
		}
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <peer-id> <text>...",
	Short: "Send a text message",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		peerID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid peer id %q", args[0])
		}
		body := strings.Join(args[1:], " ")
		if strings.TrimSpace(body) == "" {
			return fmt.Errorf("message body is empty")
		}

		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()
		if _, err := e.requireIdentity(); err != nil {
			return err
		}

		msg, err := e.api.SendMessage(cmd.Context(), peerID, body, "TEXT")
		if err != nil {
			return err
		}
		fmt.Printf("sent (message id %d)\n", msg.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatsCmd, historyCmd, sendCmd)
}
