package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	loginEmail    string
	loginPassword string

	registerEmail    string
	registerPassword string
	registerUsername string
	registerFullName string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and persist the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		id, err := e.sessions.SignIn(cmd.Context(), loginEmail, loginPassword)
		if err != nil {
			return err
		}
		fmt.Printf("signed in as %s (id %d)\n", id.DisplayName(), id.ID)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		id, err := e.sessions.SignUp(cmd.Context(), registerEmail, registerPassword, registerUsername, registerFullName)
		if err != nil {
			return err
		}
		fmt.Printf("registered and signed in as %s (id %d)\n", id.DisplayName(), id.ID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the persisted session",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		if _, ok := e.sessions.Identity(); !ok {
			fmt.Println("already signed out")
			return nil
		}
		if err := e.sessions.SignOut(); err != nil {
			return err
		}
		fmt.Println("signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		id, err := e.requireIdentity()
		if err != nil {
			return err
		}
		fmt.Printf("id:       %d\n", id.ID)
		fmt.Printf("username: %s\n", id.Username)
		if id.FullName != "" {
			fmt.Printf("name:     %s\n", id.FullName)
		}
		if id.Email != "" {
			fmt.Printf("email:    %s\n", id.Email)
		}
		if id.Status != "" {
			fmt.Printf("status:   %s\n", id.Status)
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")

	registerCmd.Flags().StringVar(&registerEmail, "email", "", "account email")
	registerCmd.Flags().StringVar(&registerPassword, "password", "", "account password")
	registerCmd.Flags().StringVar(&registerUsername, "username", "", "unique username")
	registerCmd.Flags().StringVar(&registerFullName, "full-name", "", "display name (optional)")
	_ = registerCmd.MarkFlagRequired("email")
	_ = registerCmd.MarkFlagRequired("password")
	_ = registerCmd.MarkFlagRequired("username")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
}
