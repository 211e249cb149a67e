package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/simplebaby/babysync/internal/schema"
	"github.com/simplebaby/babysync/internal/session"
	"github.com/simplebaby/babysync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local database and sync state",
	Run: func(cmd *cobra.Command, args []string) {
		res := session.NewResolver(sessionStore()).Resolve()
		if res.OK {
			fmt.Printf("Active child: %s\n", ui.RenderAccent(res.ChildID))
		} else {
			fmt.Printf("Active child: %s\n", ui.RenderWarn("none ("+res.Reason+")"))
		}

		db, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		fmt.Printf("Database: %s\n\n", db.Path())

		if !res.OK {
			fmt.Println(ui.RenderMuted("Select a child to see per-table counts."))
			return
		}

		ctx := context.Background()
		for _, table := range schema.Tables() {
			pending, err := db.CountPending(ctx, table, res.ChildID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error counting %s records: %v\n", table.Kind, err)
				os.Exit(1)
			}
			synced, err := db.CountSynced(ctx, table, res.ChildID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error counting %s records: %v\n", table.Kind, err)
				os.Exit(1)
			}

			marker := ui.RenderPass("✓")
			if pending > 0 {
				marker = ui.RenderWarn("!")
			}
			fmt.Printf("%s %-8s synced=%d pending=%d\n", marker, table.Kind, synced, pending)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
