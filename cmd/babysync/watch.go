package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/simplebaby/babysync/internal/daemon"
	"github.com/simplebaby/babysync/internal/dashboard"
	"github.com/simplebaby/babysync/internal/schema"
	"github.com/simplebaby/babysync/internal/session"
	syncpkg "github.com/simplebaby/babysync/internal/sync"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the local database and sync on change",
	Long: `Run an initial reconciliation pass, then watch the local database
and run a follow-up pass whenever a record is added on this device.

This is an opt-in foreground mode; nothing runs in the background once it
exits. With --dashboard, a WebSocket endpoint broadcasts each pass report
to connected clients.

Example usage:
  babysync watch
  babysync watch --dashboard --dashboard-addr :8787`,
	Run: func(cmd *cobra.Command, args []string) {
		withDashboard, _ := cmd.Flags().GetBool("dashboard")
		dashAddr, _ := cmd.Flags().GetString("dashboard-addr")

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

		// Daemon activity goes to stderr and a rotated log file.
		logFile := &lumberjack.Logger{
			Filename:   filepath.Join(dataDir(), "logs", "watch.log"),
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		logger := log.New(io.MultiWriter(os.Stderr, logFile), "[daemon] ", log.LstdFlags)

		var reporter daemon.Reporter
		var dash *dashboard.Server
		if withDashboard {
			dash = dashboard.NewServer(dashAddr, log.New(logger.Writer(), "[dashboard] ", log.LstdFlags))
			if err := dash.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error starting dashboard: %v\n", err)
				os.Exit(1)
			}
			defer dash.Stop()
			reporter = dash

			fmt.Printf("Dashboard: http://localhost%s (ws://localhost%s/ws)\n", dashAddr, dashAddr)
		}

		engine := syncpkg.New(db, rs, cipher, log.New(logger.Writer(), "[sync] ", log.LstdFlags))
		resolver := session.NewResolver(sessionStore())

		config := daemon.DefaultConfig()
		config.Logger = logger

		d, err := daemon.New(engine, resolver, schema.Tables(), db.Path(), reporter, config)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating daemon: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Watching for changes. Press Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	watchCmd.Flags().Bool("dashboard", false, "serve a WebSocket dashboard of pass reports")
	watchCmd.Flags().String("dashboard-addr", ":8787", "dashboard listen address")

	rootCmd.AddCommand(watchCmd)
}
