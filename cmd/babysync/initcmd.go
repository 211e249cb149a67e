package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/simplebaby/babysync/internal/ui"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up the local database and device key",
	Long: `Initialize the data directory for this device.

This creates the on-device database with its mirror tables, generates the
field-encryption key, and writes a config file template if none exists.
Running init again is safe: existing tables and their rows are left alone.`,
	Run: func(cmd *cobra.Command, args []string) {
		dir := dataDir()
		if err := os.MkdirAll(dir, 0700); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating data directory: %v\n", err)
			os.Exit(1)
		}

		db, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing database: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		if _, err := loadCipher(); err != nil {
			fmt.Fprintf(os.Stderr, "Error setting up field encryption: %v\n", err)
			os.Exit(1)
		}

		cfgPath := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			template := "# babysync configuration\n" +
				"#url: https://your-project.supabase.co\n" +
				"#anon_key: your-anon-key\n"
			if err := os.WriteFile(cfgPath, []byte(template), 0600); err != nil {
				fmt.Fprintf(os.Stderr, "Error writing config template: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s Wrote config template: %s\n", ui.RenderAccent("•"), cfgPath)
		}

		fmt.Printf("%s Device initialized\n", ui.RenderPass("✓"))
		fmt.Printf("   Database: %s\n", db.Path())
		fmt.Printf("   Key file: %s\n", keyPath())
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
