package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jrepp/stagehand/pkg/manifest"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a manifest without launching anything",
	Long: `Check loads the manifest, compiles every readiness pattern, verifies
signal names, and rejects capture-group names claimed by more than one
process.`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	path := viper.GetString("manifest")

	m, err := manifest.Load(path)
	if err != nil {
		uiInstance.Error(fmt.Sprintf("Manifest invalid: %v", err))
		return err
	}

	name := m.Name
	if name == "" {
		name = path
	}
	uiInstance.Header(fmt.Sprintf("Manifest %s", name))

	for _, p := range m.Processes {
		ready := "immediately on start"
		if p.Ready.Pattern != "" {
			ready = fmt.Sprintf("output matches %q (timeout %s)", p.Ready.Pattern, p.Ready.Timeout.Std())
		}
		uiInstance.KeyValue(p.Name, ready)
		if p.Reuse.Address != "" {
			uiInstance.Detail(fmt.Sprintf("reuse listener at %s", p.Reuse.Address))
		}
	}

	if captures := m.CaptureNames(); len(captures) > 0 {
		uiInstance.KeyValue("captures", strings.Join(captures, ", "))
	}
	if m.Debug.EnvVar != "" {
		uiInstance.KeyValue("debug switch", m.Debug.EnvVar)
	}
	uiInstance.KeyValue("run", m.Run.Command)

	uiInstance.Success("Manifest valid")
	return nil
}
