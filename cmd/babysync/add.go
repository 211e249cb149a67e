package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/simplebaby/babysync/internal/schema"
	"github.com/simplebaby/babysync/internal/ui"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a new care event",
	Long: `Record a care event into the local database.

The record is stored immediately and marked pending; it reaches the backend
on the next sync pass. Times accept RFC 3339 or natural expressions like
"10 minutes ago".`,
}

var addDiaperCmd = &cobra.Command{
	Use:   "diaper",
	Short: "Record a diaper change",
	Run: func(cmd *cobra.Command, args []string) {
		consistency, _ := cmd.Flags().GetString("consistency")
		amount, _ := cmd.Flags().GetString("amount")
		at, _ := cmd.Flags().GetString("at")
		note, _ := cmd.Flags().GetString("note")

		if consistency == "" || amount == "" {
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewSelect[string]().
						Title("Consistency").
						Options(huh.NewOptions("Wet", "Dry", "Mixed")...).
						Value(&consistency),
					huh.NewSelect[string]().
						Title("Amount").
						Options(huh.NewOptions("SM", "MD", "LG")...).
						Value(&amount),
					huh.NewInput().
						Title("Note").
						Value(&note),
				),
			)
			if err := form.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		changeTime, err := parseEventTime(at)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		insertRecord("diaper", map[string]string{
			"consistency": consistency,
			"amount":      amount,
			"change_time": changeTime,
			"note":        note,
		})
	},
}

var addFeedingCmd = &cobra.Command{
	Use:   "feeding",
	Short: "Record a feeding",
	Run: func(cmd *cobra.Command, args []string) {
		feedType, _ := cmd.Flags().GetString("type")
		amount, _ := cmd.Flags().GetString("amount")
		at, _ := cmd.Flags().GetString("at")
		note, _ := cmd.Flags().GetString("note")

		if feedType == "" {
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewSelect[string]().
						Title("Feeding type").
						Options(huh.NewOptions("breast", "bottle", "solid")...).
						Value(&feedType),
					huh.NewInput().
						Title("Amount").
						Placeholder("e.g. 4 oz").
						Value(&amount),
					huh.NewInput().
						Title("Note").
						Value(&note),
				),
			)
			if err := form.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		startTime, err := parseEventTime(at)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		insertRecord("feeding", map[string]string{
			"feed_type":  feedType,
			"start_time": startTime,
			"amount":     amount,
			"note":       note,
		})
	},
}

var addSleepCmd = &cobra.Command{
	Use:   "sleep",
	Short: "Record a sleep session",
	Run: func(cmd *cobra.Command, args []string) {
		start, _ := cmd.Flags().GetString("start")
		end, _ := cmd.Flags().GetString("end")
		note, _ := cmd.Flags().GetString("note")

		if start == "" || end == "" {
			fmt.Fprintf(os.Stderr, "Error: --start and --end are required\n")
			os.Exit(1)
		}

		startTime, err := parseEventTime(start)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		endTime, err := parseEventTime(end)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		insertRecord("sleep", map[string]string{
			"start_time": startTime,
			"end_time":   endTime,
			"note":       note,
		})
	},
}

// insertRecord stores one pending record for the active child.
func insertRecord(kind string, fields map[string]string) {
	table, ok := schema.Lookup(kind)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown log kind %q\n", kind)
		os.Exit(1)
	}

	childID, err := requireChild()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Drop empty optional values so they stay NULL locally.
	for k, v := range fields {
		if v == "" {
			delete(fields, k)
		}
	}

	db, err := openStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	rec := &schema.Record{ChildID: childID, Fields: fields}
	localID, err := db.InsertPending(context.Background(), table, rec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error recording %s event: %v\n", kind, err)
		os.Exit(1)
	}

	fmt.Printf("%s Recorded %s event (local id %d, pending upload)\n",
		ui.RenderPass("✓"), kind, localID)
}

func init() {
	addDiaperCmd.Flags().String("consistency", "", "Wet, Dry, or Mixed")
	addDiaperCmd.Flags().String("amount", "", "SM, MD, or LG")
	addDiaperCmd.Flags().String("at", "", "change time (default now)")
	addDiaperCmd.Flags().String("note", "", "optional note (encrypted before upload)")

	addFeedingCmd.Flags().String("type", "", "breast, bottle, or solid")
	addFeedingCmd.Flags().String("amount", "", "amount, e.g. \"4 oz\"")
	addFeedingCmd.Flags().String("at", "", "start time (default now)")
	addFeedingCmd.Flags().String("note", "", "optional note (encrypted before upload)")

	addSleepCmd.Flags().String("start", "", "sleep start time")
	addSleepCmd.Flags().String("end", "", "sleep end time")
	addSleepCmd.Flags().String("note", "", "optional note (encrypted before upload)")

	addCmd.AddCommand(addDiaperCmd)
	addCmd.AddCommand(addFeedingCmd)
	addCmd.AddCommand(addSleepCmd)
	rootCmd.AddCommand(addCmd)
}
