/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/videotube/accounts/config"
	"github.com/videotube/accounts/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Video platform account service",
	Long: `Accounts runs the user, session and channel API of the video platform
and the maintenance tasks around it (migrations, indexes, event tailing).`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $ACCOUNTS_CONFIG, then environment only)")
}

// loadConfig reads the full configuration, auth options included.
func loadConfig() (config.Config, *slog.Logger, error) {
	return loadWith(config.Load)
}

// loadInfraConfig is for maintenance commands that only talk to the databases.
func loadInfraConfig() (config.Config, *slog.Logger, error) {
	return loadWith(config.LoadInfrastructure)
}

func loadWith(load func(string) (config.Config, error)) (config.Config, *slog.Logger, error) {
	cfg, err := load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Env), nil
}
