// Package manifest loads and validates the declarative stagehand manifest.
//
// A manifest names the auxiliary processes to launch, how each one signals
// readiness, how it should be torn down, the debug-mode switch, and the
// dependent command to run once every process is ready.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest defines the declarative configuration for a stagehand run
type Manifest struct {
	// Name of the run (used for log grouping and metric labels)
	Name string `yaml:"name"`

	// Debug configures the mode switch (see DebugConfig)
	Debug DebugConfig `yaml:"debug"`

	// Processes to launch before the dependent command, in declaration order
	Processes []Process `yaml:"processes"`

	// Run is the dependent command executed once every process is ready
	Run RunConfig `yaml:"run"`

	// Internal: absolute path to the manifest file (populated during load)
	manifestPath string `yaml:"-"`
}

// DebugConfig defines the mode switch: a single ambient boolean read once at
// startup. When the named environment variable is truthy, no auxiliary
// process is launched and the dependent command runs with Env applied.
type DebugConfig struct {
	// EnvVar is the name of the environment variable to inspect.
	// Empty means the switch is never active.
	EnvVar string `yaml:"env_var"`

	// Env holds extra environment variables for the dependent command
	// in debug mode (e.g. pointing it at a locally launched equivalent)
	Env map[string]string `yaml:"env"`
}

// Process describes one auxiliary process
type Process struct {
	// Name of the process (unique within the manifest)
	Name string `yaml:"name"`

	// Command is an opaque shell command, passed to /bin/sh -c verbatim
	Command string `yaml:"command"`

	// Dir is the working directory (default: manifest directory)
	Dir string `yaml:"dir"`

	// Env holds extra environment variables for this process
	Env map[string]string `yaml:"env"`

	// Ready configures readiness detection; a zero value means the
	// process is considered ready as soon as it starts
	Ready ReadyConfig `yaml:"ready"`

	// Reuse configures reuse of an already-listening instance
	Reuse ReuseConfig `yaml:"reuse"`

	// Stop configures graceful termination
	Stop StopConfig `yaml:"stop"`
}

// ReadyConfig defines how a process signals readiness
type ReadyConfig struct {
	// Pattern is a regular expression matched against each output line.
	// Named capture groups become published values.
	Pattern string `yaml:"pattern"`

	// Timeout is the maximum wait for the pattern (default 30s)
	Timeout Duration `yaml:"timeout"`
}

// ReuseConfig permits reusing an existing listener instead of launching
type ReuseConfig struct {
	// Address is a host:port probed before launch. Empty disables reuse.
	Address string `yaml:"address"`

	// Values are published verbatim when the probe hits, standing in for
	// the captures the readiness pattern would have produced
	Values map[string]string `yaml:"values"`
}

// StopConfig defines the graceful-termination policy
type StopConfig struct {
	// Signal name sent on teardown (default SIGTERM)
	Signal string `yaml:"signal"`

	// GracePeriod before forceful termination (default 5s)
	GracePeriod Duration `yaml:"grace_period"`
}

// RunConfig is the dependent command
type RunConfig struct {
	// Command is an opaque shell command, passed to /bin/sh -c verbatim
	Command string `yaml:"command"`

	// Dir is the working directory (default: manifest directory)
	Dir string `yaml:"dir"`

	// Env holds extra environment variables, applied in every mode
	Env map[string]string `yaml:"env"`
}

const (
	// DefaultReadyTimeout applies when ready.timeout is unset
	DefaultReadyTimeout = 30 * time.Second

	// DefaultGracePeriod applies when stop.grace_period is unset
	DefaultGracePeriod = 5 * time.Second

	// DefaultStopSignal applies when stop.signal is unset
	DefaultStopSignal = "SIGTERM"
)

// Duration wraps time.Duration with YAML support for strings like "30s"
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// signalsByName maps accepted signal names to their OS signal
var signalsByName = map[string]syscall.Signal{
	"SIGHUP":  syscall.SIGHUP,
	"SIGINT":  syscall.SIGINT,
	"SIGQUIT": syscall.SIGQUIT,
	"SIGKILL": syscall.SIGKILL,
	"SIGTERM": syscall.SIGTERM,
	"SIGUSR1": syscall.SIGUSR1,
	"SIGUSR2": syscall.SIGUSR2,
}

// ParseSignal resolves a signal name from a stop policy
func ParseSignal(name string) (syscall.Signal, error) {
	if name == "" {
		name = DefaultStopSignal
	}
	upper := strings.ToUpper(name)
	if !strings.HasPrefix(upper, "SIG") {
		upper = "SIG" + upper
	}
	sig, ok := signalsByName[upper]
	if !ok {
		return 0, fmt.Errorf("unknown signal %q", name)
	}
	return sig, nil
}

// Load reads a manifest from a YAML file and validates it
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}
	m.manifestPath = absPath

	if err := m.Validate(); err != nil {
		return nil, err
	}

	m.applyDefaults()

	return &m, nil
}

// Path returns the absolute path of the loaded manifest file, or "" if the
// manifest was constructed in memory.
func (m *Manifest) Path() string {
	return m.manifestPath
}

// Dir returns the directory containing the manifest file
func (m *Manifest) Dir() string {
	if m.manifestPath == "" {
		return ""
	}
	return filepath.Dir(m.manifestPath)
}

// applyDefaults fills unset timeouts, grace periods, and working directories
func (m *Manifest) applyDefaults() {
	for i := range m.Processes {
		p := &m.Processes[i]
		if p.Ready.Timeout == 0 {
			p.Ready.Timeout = Duration(DefaultReadyTimeout)
		}
		if p.Stop.GracePeriod == 0 {
			p.Stop.GracePeriod = Duration(DefaultGracePeriod)
		}
		if p.Stop.Signal == "" {
			p.Stop.Signal = DefaultStopSignal
		}
		if p.Dir == "" {
			p.Dir = m.Dir()
		}
	}
	if m.Run.Dir == "" {
		m.Run.Dir = m.Dir()
	}
}

// Validate checks the manifest for structural errors. Capture-group names
// are claimed by exactly one descriptor; a collision is a configuration
// error detected here, before anything is launched.
func (m *Manifest) Validate() error {
	if m.Run.Command == "" {
		return fmt.Errorf("run.command is required")
	}

	seenNames := make(map[string]bool)
	captureOwner := make(map[string]string)

	for i := range m.Processes {
		p := &m.Processes[i]

		if p.Name == "" {
			return fmt.Errorf("processes[%d]: name is required", i)
		}
		if seenNames[p.Name] {
			return fmt.Errorf("process %q declared twice", p.Name)
		}
		seenNames[p.Name] = true

		if p.Command == "" {
			return fmt.Errorf("process %q: command is required", p.Name)
		}

		if _, err := ParseSignal(p.Stop.Signal); err != nil {
			return fmt.Errorf("process %q: %w", p.Name, err)
		}

		var captures []string
		if p.Ready.Pattern != "" {
			re, err := regexp.Compile(p.Ready.Pattern)
			if err != nil {
				return fmt.Errorf("process %q: invalid ready.pattern: %w", p.Name, err)
			}
			for _, name := range re.SubexpNames() {
				if name != "" {
					captures = append(captures, name)
				}
			}
		}
		for name := range p.Reuse.Values {
			captures = append(captures, name)
		}

		for _, name := range captures {
			if owner, taken := captureOwner[name]; taken && owner != p.Name {
				return fmt.Errorf("capture %q claimed by both %q and %q", name, owner, p.Name)
			}
			captureOwner[name] = p.Name
		}

		if p.Reuse.Address != "" {
			if !strings.Contains(p.Reuse.Address, ":") {
				return fmt.Errorf("process %q: reuse.address must be host:port", p.Name)
			}
		}
	}

	return nil
}

// CaptureNames returns every capture-group and reuse-value name declared in
// the manifest, in process order.
func (m *Manifest) CaptureNames() []string {
	var names []string
	seen := make(map[string]bool)
	for i := range m.Processes {
		p := &m.Processes[i]
		if p.Ready.Pattern != "" {
			re, err := regexp.Compile(p.Ready.Pattern)
			if err == nil {
				for _, name := range re.SubexpNames() {
					if name != "" && !seen[name] {
						seen[name] = true
						names = append(names, name)
					}
				}
			}
		}
		for name := range p.Reuse.Values {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// DebugActive reads the mode switch once. An absent or falsy variable means
// normal mode; "1", "true", and "yes" (case-insensitive) activate debug mode.
func (m *Manifest) DebugActive() bool {
	if m.Debug.EnvVar == "" {
		return false
	}
	switch strings.ToLower(os.Getenv(m.Debug.EnvVar)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
