package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matheus3301/chatflow/internal/backend"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Update the signed-in profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()
		if _, err := e.requireIdentity(); err != nil {
			return err
		}

		var update backend.ProfileUpdate
		changed := false
		set := func(flag string, dst **string) {
			if cmd.Flags().Changed(flag) {
				v, _ := cmd.Flags().GetString(flag)
				*dst = &v
				changed = true
			}
		}
		set("full-name", &update.FullName)
		set("phone", &update.PhoneNumber)
		set("avatar-url", &update.AvatarURL)
		set("bio", &update.Bio)
		set("status", &update.Status)
		if !changed {
			return fmt.Errorf("nothing to update (see: chatflowctl profile --help)")
		}

		id, err := e.sessions.UpdateProfile(cmd.Context(), &update)
		if err != nil {
			return err
		}
		fmt.Printf("profile updated for %s\n", id.DisplayName())
		return nil
	},
}

func init() {
	profileCmd.Flags().String("full-name", "", "display name")
	profileCmd.Flags().String("phone", "", "phone number")
	profileCmd.Flags().String("avatar-url", "", "avatar image URL")
	profileCmd.Flags().String("bio", "", "profile bio")
	profileCmd.Flags().String("status", "", "status line")
	rootCmd.AddCommand(profileCmd)
}
