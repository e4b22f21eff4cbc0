// Package main is the entry point for the recyclens CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sozercan/recyclens/internal/config"
	"github.com/sozercan/recyclens/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "recyclens",
	Short: "Photo-based recycling advice for your location",
	Long: `recyclens tells you which bin an item belongs in where you live. It
classifies a photo or a text description of the item, looks up local
regulations when a retrieval service is configured, and asks a language
model for a recommendation with nearby drop-off facilities.

Run "recyclens serve" to start the HTTP API and "recyclens analyze" to
query a running server from the terminal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		logger.Setup(cfg.Log.Level, cfg.Log.Format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (yaml, json or toml); environment variables take precedence")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
