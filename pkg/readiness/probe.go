package readiness

import (
	"context"
	"fmt"
	"net"
	"time"
)

// DefaultProbeTimeout bounds a single listener probe
const DefaultProbeTimeout = 500 * time.Millisecond

// Listening reports whether a TCP listener accepts connections at addr.
// Used to decide whether an already-running instance can be reused instead
// of launching a new process.
func Listening(addr string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// WaitListening polls addr until a listener accepts a connection or ctx
// expires. interval defaults to 250ms.
func WaitListening(ctx context.Context, addr string, interval time.Duration) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if Listening(addr, DefaultProbeTimeout) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("no listener at %s: %w", addr, ctx.Err())
		case <-ticker.C:
		}
	}
}
