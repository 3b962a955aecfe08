package manifest

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeManifest writes a manifest file into a temp dir and returns its path
func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stagehand.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validManifest = `
name: e2e
debug:
  env_var: E2E_DEBUG
  env:
    BROWSER: local
processes:
  - name: preview
    command: "npm run preview"
    ready:
      pattern: 'Local:\s+http://localhost:(?P<PREVIEW_PORT>\d+)'
      timeout: 60s
    reuse:
      address: "localhost:4173"
      values:
        PREVIEW_PORT: "4173"
    stop:
      signal: SIGINT
      grace_period: 2s
  - name: browser
    command: "docker run --rm -p 53333:53333 pw-server"
    ready:
      pattern: 'Listening on (?P<PW_ENDPOINT>ws://\S+)'
run:
  command: "npx playwright test"
  env:
    CI: "1"
`

// TestLoad_Valid tests loading a complete manifest with defaults applied
func TestLoad_Valid(t *testing.T) {
	path := writeManifest(t, validManifest)

	m, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "e2e", m.Name)
	assert.Equal(t, "E2E_DEBUG", m.Debug.EnvVar)
	require.Len(t, m.Processes, 2)

	preview := m.Processes[0]
	assert.Equal(t, 60*time.Second, preview.Ready.Timeout.Std())
	assert.Equal(t, "SIGINT", preview.Stop.Signal)
	assert.Equal(t, 2*time.Second, preview.Stop.GracePeriod.Std())
	assert.Equal(t, "localhost:4173", preview.Reuse.Address)

	// Unset fields fall back to defaults
	browser := m.Processes[1]
	assert.Equal(t, DefaultReadyTimeout, browser.Ready.Timeout.Std())
	assert.Equal(t, DefaultStopSignal, browser.Stop.Signal)
	assert.Equal(t, DefaultGracePeriod, browser.Stop.GracePeriod.Std())

	// Working directories default to the manifest directory
	assert.Equal(t, filepath.Dir(path), browser.Dir)
	assert.Equal(t, filepath.Dir(path), m.Run.Dir)

	assert.Equal(t, "npx playwright test", m.Run.Command)
	assert.ElementsMatch(t, []string{"PREVIEW_PORT", "PW_ENDPOINT"}, m.CaptureNames())
}

// TestLoad_MissingRunCommand tests that run.command is required
func TestLoad_MissingRunCommand(t *testing.T) {
	path := writeManifest(t, `
processes:
  - name: one
    command: "sleep 1"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run.command")
}

// TestLoad_DuplicateCapture tests that two descriptors cannot claim the same
// capture-group name
func TestLoad_DuplicateCapture(t *testing.T) {
	path := writeManifest(t, `
processes:
  - name: one
    command: "sleep 1"
    ready:
      pattern: 'port (?P<PORT>\d+)'
  - name: two
    command: "sleep 1"
    ready:
      pattern: 'listening on (?P<PORT>\d+)'
run:
  command: "true"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `capture "PORT"`)
}

// TestLoad_DuplicateCaptureViaReuseValues tests collision between a pattern
// capture and another descriptor's reuse values
func TestLoad_DuplicateCaptureViaReuseValues(t *testing.T) {
	path := writeManifest(t, `
processes:
  - name: one
    command: "sleep 1"
    ready:
      pattern: 'port (?P<PORT>\d+)'
  - name: two
    command: "sleep 1"
    reuse:
      address: "localhost:9999"
      values:
        PORT: "9999"
run:
  command: "true"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `capture "PORT"`)
}

// TestLoad_DuplicateProcessName tests unique process names
func TestLoad_DuplicateProcessName(t *testing.T) {
	path := writeManifest(t, `
processes:
  - name: one
    command: "sleep 1"
  - name: one
    command: "sleep 2"
run:
  command: "true"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared twice")
}

// TestLoad_InvalidPattern tests pattern compilation errors
func TestLoad_InvalidPattern(t *testing.T) {
	path := writeManifest(t, `
processes:
  - name: one
    command: "sleep 1"
    ready:
      pattern: '(?P<PORT'
run:
  command: "true"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ready.pattern")
}

// TestLoad_InvalidSignal tests stop signal validation
func TestLoad_InvalidSignal(t *testing.T) {
	path := writeManifest(t, `
processes:
  - name: one
    command: "sleep 1"
    stop:
      signal: SIGNOPE
run:
  command: "true"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown signal")
}

// TestLoad_InvalidDuration tests duration parsing errors
func TestLoad_InvalidDuration(t *testing.T) {
	path := writeManifest(t, `
processes:
  - name: one
    command: "sleep 1"
    ready:
      timeout: soon
run:
  command: "true"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse duration")
}

// TestParseSignal tests signal name resolution
func TestParseSignal(t *testing.T) {
	sig, err := ParseSignal("SIGTERM")
	require.NoError(t, err)
	assert.Equal(t, syscall.SIGTERM, sig)

	// Bare names get the SIG prefix; case is ignored
	sig, err = ParseSignal("int")
	require.NoError(t, err)
	assert.Equal(t, syscall.SIGINT, sig)

	// Empty means the default policy
	sig, err = ParseSignal("")
	require.NoError(t, err)
	assert.Equal(t, syscall.SIGTERM, sig)

	_, err = ParseSignal("SIGNOPE")
	assert.Error(t, err)
}

// TestDebugActive tests the mode switch semantics
func TestDebugActive(t *testing.T) {
	m := &Manifest{Debug: DebugConfig{EnvVar: "STAGEHAND_TEST_DEBUG"}}

	// Absent signal defaults to false
	os.Unsetenv("STAGEHAND_TEST_DEBUG")
	assert.False(t, m.DebugActive())

	for _, v := range []string{"1", "true", "TRUE", "yes"} {
		t.Setenv("STAGEHAND_TEST_DEBUG", v)
		assert.True(t, m.DebugActive(), "value %q should activate debug mode", v)
	}

	for _, v := range []string{"", "0", "false", "no"} {
		t.Setenv("STAGEHAND_TEST_DEBUG", v)
		assert.False(t, m.DebugActive(), "value %q should not activate debug mode", v)
	}

	// No env var configured means the switch is never active
	noSwitch := &Manifest{}
	assert.False(t, noSwitch.DebugActive())
}
