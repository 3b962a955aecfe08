package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jrepp/stagehand/pkg/ui"
)

const version = "0.1.0"

// exitCode propagates the dependent command's exit status through main
var exitCode int

var uiInstance = ui.NewUI()

var rootCmd = &cobra.Command{
	Use:   "stagehand",
	Short: "Start supporting processes, wait until they are ready, then run a command",
	Long: `stagehand launches the auxiliary server processes a test run depends on,
waits for each one to signal readiness (a log-line pattern or an already
listening address), publishes captured values such as ports into the
environment, runs the dependent command, and tears everything down.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("manifest", "f", "stagehand.yaml", "Path to the stagehand manifest")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	// Bind flags to viper
	viper.BindPFlag("manifest", rootCmd.PersistentFlags().Lookup("manifest"))
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(waitCmd)
}

func initConfig() {
	// Search for config in home directory and current directory
	home, _ := os.UserHomeDir()
	viper.AddConfigPath(home)
	viper.AddConfigPath(".")
	viper.SetConfigName(".stagehand")
	viper.SetConfigType("yaml")

	// Environment variables
	viper.SetEnvPrefix("STAGEHAND")
	viper.AutomaticEnv()

	// Read config file (ignore error if not found)
	viper.ReadInConfig()
}

func initLogging() {
	var level slog.Level
	switch viper.GetString("logging.level") {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
