package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jrepp/stagehand/pkg/readiness"
)

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Block until a TCP listener accepts connections",
	Long: `Wait polls an address until something is listening there, using the
same probe the orchestrator uses for reuse detection. Useful as a standalone
gate in scripts.`,
	RunE: runWait,
}

func init() {
	waitCmd.Flags().String("addr", "", "Address to probe (host:port)")
	waitCmd.Flags().Duration("timeout", 30*time.Second, "Give up after this long")
	waitCmd.Flags().Duration("interval", 250*time.Millisecond, "Poll interval")
	waitCmd.MarkFlagRequired("addr")
}

func runWait(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	interval, _ := cmd.Flags().GetDuration("interval")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	start := time.Now()
	if err := readiness.WaitListening(ctx, addr, interval); err != nil {
		uiInstance.Error(fmt.Sprintf("No listener at %s after %s", addr, timeout))
		return err
	}

	uiInstance.Success(fmt.Sprintf("Listener at %s (after %s)", addr, time.Since(start).Round(time.Millisecond)))
	return nil
}
