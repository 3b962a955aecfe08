package orchestrator

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/jrepp/stagehand/pkg/manifest"
	"github.com/jrepp/stagehand/pkg/readiness"
)

// handle tracks one auxiliary process from launch through teardown
type handle struct {
	proc    manifest.Process
	watcher *readiness.Watcher

	mu       sync.Mutex
	cmd      *exec.Cmd
	launched bool
	reused   bool

	// exitDone is closed once the process has exited; exitErr and exitCode
	// are valid afterwards
	exitDone chan struct{}
	exitErr  error
	exitCode int
}

func newHandle(proc manifest.Process, matcher readiness.Matcher) *handle {
	return &handle{
		proc:     proc,
		watcher:  readiness.NewWatcher(matcher, nil),
		exitDone: make(chan struct{}),
	}
}

// launch starts the process with its output streamed into the watcher.
// The command string is opaque: it is handed to /bin/sh -c verbatim.
func (h *handle) launch() error {
	cmd := exec.Command("/bin/sh", "-c", h.proc.Command)
	cmd.Dir = h.proc.Dir

	env := os.Environ()
	for k, v := range h.proc.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = env

	// Both streams feed one pipe so the readiness pattern can appear on
	// either stdout or stderr.
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return ErrLaunchFailed(h.proc.Name, err)
	}

	h.mu.Lock()
	h.cmd = cmd
	h.launched = true
	h.mu.Unlock()

	go h.watcher.Run(pr)

	go func() {
		err := cmd.Wait()
		pw.Close()

		h.mu.Lock()
		h.exitErr = err
		h.exitCode = cmd.ProcessState.ExitCode()
		h.mu.Unlock()

		close(h.exitDone)
	}()

	return nil
}

// pid returns the OS process ID, or 0 if never launched
func (h *handle) pid() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cmd == nil || h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// exitStatus returns the recorded exit code; only valid after exitDone
func (h *handle) exitStatus() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// running reports whether the process was launched and has not yet exited
func (h *handle) running() bool {
	h.mu.Lock()
	launched := h.launched
	h.mu.Unlock()
	if !launched {
		return false
	}
	select {
	case <-h.exitDone:
		return false
	default:
		return true
	}
}

// terminate applies the configured stop policy: send the signal, wait out
// the grace period, then SIGKILL. Reused processes are left running.
func (h *handle) terminate() error {
	if h.reused || !h.running() {
		return nil
	}

	sig, err := manifest.ParseSignal(h.proc.Stop.Signal)
	if err != nil {
		// Validated at manifest load; reaching this means a handle was
		// constructed from an unvalidated descriptor.
		return ErrTerminationFailed(h.proc.Name, err)
	}

	h.mu.Lock()
	process := h.cmd.Process
	h.mu.Unlock()

	if err := process.Signal(sig); err != nil {
		// Process may have exited between the running() check and here
		select {
		case <-h.exitDone:
			return nil
		default:
		}
		return ErrTerminationFailed(h.proc.Name, err)
	}

	grace := h.proc.Stop.GracePeriod.Std()
	if grace <= 0 {
		grace = manifest.DefaultGracePeriod
	}

	select {
	case <-h.exitDone:
		return nil
	case <-time.After(grace):
	}

	if err := process.Kill(); err != nil {
		select {
		case <-h.exitDone:
			return nil
		default:
		}
		return ErrTerminationFailed(h.proc.Name, err)
	}

	select {
	case <-h.exitDone:
		return nil
	case <-time.After(5 * time.Second):
		return ErrTerminationFailed(h.proc.Name,
			fmt.Errorf("process did not die after SIGKILL"))
	}
}
