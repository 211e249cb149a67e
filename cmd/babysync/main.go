// Command babysync is a local-first logger for infant care events.
//
// Events are recorded into an on-device SQLite mirror and reconciled on
// demand with a hosted Supabase-style backend. See `babysync sync` for the
// reconciliation pass and `babysync watch` for the opt-in watch mode.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "babysync",
	Short: "Local-first infant care logging with on-demand sync",
	Long: `babysync records infant care events (diaper changes, feedings, sleep)
into a durable on-device database and reconciles them with a hosted backend
when asked.

Records are usable immediately and survive offline; a sync pass uploads
pending records and downloads the child's rows from the backend, with the
remote copy winning on conflict. Nothing syncs until you run "babysync sync"
or start "babysync watch".`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default <data-dir>/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "data directory (default $HOME/.babysync)")
	rootCmd.PersistentFlags().String("url", "", "backend project URL")
	rootCmd.PersistentFlags().String("anon-key", "", "backend anon API key")

	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
	_ = viper.BindPFlag("anon_key", rootCmd.PersistentFlags().Lookup("anon-key"))
}

// initConfig reads the config file and environment. Flags override env,
// env overrides the file.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(dataDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BABYSYNC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; everything can come from
		// flags and environment.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Error reading config %s: %v\n", cfgFile, err)
			os.Exit(1)
		}
	}
}

// dataDir returns the directory holding the database, session, key, and
// logs.
func dataDir() string {
	if dir := viper.GetString("data_dir"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".babysync"
	}
	return filepath.Join(home, ".babysync")
}
