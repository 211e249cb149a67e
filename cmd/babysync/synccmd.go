package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/simplebaby/babysync/internal/schema"
	syncpkg "github.com/simplebaby/babysync/internal/sync"
	"github.com/simplebaby/babysync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync [kind]",
	Short: "Run a reconciliation pass against the backend",
	Long: `Run one upload-then-download pass for the active child.

Pending local records are uploaded first; the backend's rows for the child
are then downloaded and applied locally, with the remote copy winning on
conflict. Without an argument all log kinds are synced; pass a kind
(diaper, feeding, sleep) to sync only that table.

Failed records stay pending and are retried on the next pass; the command
exits non-zero when any record failed.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		tables := schema.Tables()
		if len(args) == 1 {
			table, ok := schema.Lookup(args[0])
			if !ok {
				fmt.Fprintf(os.Stderr, "Error: unknown log kind %q\n", args[0])
				os.Exit(1)
			}
			tables = []*schema.Table{table}
		}

		childID, err := requireChild()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		db, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		rs, err := remoteClient()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cipher, err := loadCipher()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading field key: %v\n", err)
			os.Exit(1)
		}

		engine := syncpkg.New(db, rs, cipher, nil)

		clean := true
		for _, table := range tables {
			fmt.Printf("%s Syncing %s for child %s...\n", ui.RenderAccent("🔄"), table.Kind, childID)
			start := time.Now()

			report, err := engine.Synchronize(context.Background(), table, childID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error during %s sync: %v\n", table.Kind, err)
				os.Exit(1)
			}

			printReport(table.Kind, report, time.Since(start))
			if !report.Clean() {
				clean = false
			}
		}

		if !clean {
			os.Exit(1)
		}
	},
}

func printReport(kind string, report *syncpkg.Report, elapsed time.Duration) {
	marker := ui.RenderPass("✓")
	if !report.Clean() {
		marker = ui.RenderWarn("!")
	}

	fmt.Printf("%s %s sync finished in %v\n", marker, kind, elapsed.Round(time.Millisecond))
	fmt.Printf("   Uploaded: %d/%d (failed=%d)\n",
		report.Upload.Succeeded, report.Upload.TotalPending, report.Upload.Failed)
	fmt.Printf("   Applied:  %d/%d (failed=%d)\n",
		report.Download.Processed, report.Download.TotalReceived, report.Download.Failed)

	for _, e := range report.Errors {
		ref := e.RecordRef
		if ref != "" {
			ref += ": "
		}
		fmt.Printf("   %s [%s] %s%s\n", ui.RenderFail("✗"), e.Phase, ref, e.Message)
	}

	if !report.Clean() {
		fmt.Printf("   %s\n", ui.RenderMuted("failed records stay pending; run sync again to retry"))
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
