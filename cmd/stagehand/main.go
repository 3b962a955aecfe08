package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
	// The run command records the dependent command's exit code so it can
	// propagate after teardown has completed.
	os.Exit(exitCode)
}
