package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/simplebaby/babysync/internal/ui"
)

var signupCmd = &cobra.Command{
	Use:   "signup <email>",
	Short: "Create a backend account for this device",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		password, _ := cmd.Flags().GetString("password")
		runAuth(args[0], password, true)
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign this device in",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		password, _ := cmd.Flags().GetString("password")
		runAuth(args[0], password, false)
	},
}

func runAuth(email, password string, signup bool) {
	if password == "" {
		fmt.Fprintf(os.Stderr, "Error: --password is required\n")
		os.Exit(1)
	}

	client, err := authClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	var sess, errSess = client.SignIn, "sign-in"
	if signup {
		sess, errSess = client.SignUp, "sign-up"
	}

	s, err := sess(ctx, email, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s failed: %v\n", errSess, err)
		os.Exit(1)
	}
	if s == nil || s.AccessToken == "" {
		fmt.Fprintf(os.Stderr, "Error: %s did not return a session (email confirmation pending?)\n", errSess)
		os.Exit(1)
	}

	if err := sessionStore().Save(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving session: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s Signed in as %s\n", ui.RenderPass("✓"), email)
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign this device out",
	Run: func(cmd *cobra.Command, args []string) {
		token := currentToken()
		if token != "" {
			client, err := authClient()
			if err == nil {
				if err := client.SignOut(context.Background(), token); err != nil {
					// The local session is cleared regardless; the
					// token just stays valid until it expires.
					fmt.Fprintf(os.Stderr, "Warning: remote sign-out failed: %v\n", err)
				}
			}
		}

		if err := sessionStore().Clear(); err != nil {
			fmt.Fprintf(os.Stderr, "Error clearing session: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Signed out\n", ui.RenderPass("✓"))
	},
}

func init() {
	signupCmd.Flags().String("password", "", "account password")
	loginCmd.Flags().String("password", "", "account password")

	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
