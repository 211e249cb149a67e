package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/simplebaby/babysync/internal/session"
	"github.com/simplebaby/babysync/internal/ui"
)

var childCmd = &cobra.Command{
	Use:   "child",
	Short: "Manage the active child selection",
}

var childUseCmd = &cobra.Command{
	Use:   "use <child-id>",
	Short: "Select the child that scopes logging and sync",
	Long: `Select the active child profile.

The selection is stored in the signed-in user's metadata on the backend, so
every device sharing the account sees it. All add, sync, and status
operations are scoped to the active child.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		childID := args[0]

		store := sessionStore()
		sess, err := store.Current()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading session: %v\n", err)
			os.Exit(1)
		}
		if sess == nil || sess.AccessToken == "" {
			fmt.Fprintf(os.Stderr, "Error: not signed in (run \"babysync login\" first)\n")
			os.Exit(1)
		}

		client, err := authClient()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		user, err := client.UpdateActiveChild(context.Background(), sess.AccessToken, childID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error updating active child: %v\n", err)
			os.Exit(1)
		}

		// Mirror the updated metadata into the stored session so the
		// resolver sees the new selection without a fresh sign-in.
		sess.User = user
		if err := store.Save(sess); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving session: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Active child set to %s\n", ui.RenderPass("✓"), childID)
	},
}

var childShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active child selection",
	Run: func(cmd *cobra.Command, args []string) {
		res := session.NewResolver(sessionStore()).Resolve()
		if !res.OK {
			fmt.Printf("%s No active child: %s\n", ui.RenderWarn("!"), res.Reason)
			return
		}
		fmt.Printf("Active child: %s\n", ui.RenderAccent(res.ChildID))
	},
}

func init() {
	childCmd.AddCommand(childUseCmd)
	childCmd.AddCommand(childShowCmd)
	rootCmd.AddCommand(childCmd)
}
