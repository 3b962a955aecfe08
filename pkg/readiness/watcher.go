package readiness

import (
	"bufio"
	"io"
	"sync"
)

// DefaultTailLines is the number of output lines retained for diagnostics
const DefaultTailLines = 100

// Tail is a bounded ring of the most recent output lines. It is what gets
// surfaced when a process fails before signaling readiness.
type Tail struct {
	mu    sync.Mutex
	lines []string
	max   int
	next  int
	full  bool
}

// NewTail creates a tail buffer holding up to max lines
func NewTail(max int) *Tail {
	if max <= 0 {
		max = DefaultTailLines
	}
	return &Tail{lines: make([]string, max), max: max}
}

// Append records one line, evicting the oldest when full
func (t *Tail) Append(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lines[t.next] = line
	t.next = (t.next + 1) % t.max
	if t.next == 0 {
		t.full = true
	}
}

// Lines returns the retained lines, oldest first
func (t *Tail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.full {
		return append([]string(nil), t.lines[:t.next]...)
	}
	out := make([]string, 0, t.max)
	out = append(out, t.lines[t.next:]...)
	out = append(out, t.lines[:t.next]...)
	return out
}

// Watcher scans a process's output stream line by line, testing each line
// against a Matcher. The first hit is published on Ready; scanning continues
// to EOF regardless so the stream keeps draining and the tail stays current.
type Watcher struct {
	matcher Matcher
	tail    *Tail

	readyOnce sync.Once
	readyCh   chan map[string]string
	doneCh    chan struct{}
}

// NewWatcher creates a watcher. matcher may be nil for processes with no
// readiness pattern; the watcher then only maintains the tail buffer.
func NewWatcher(matcher Matcher, tail *Tail) *Watcher {
	if tail == nil {
		tail = NewTail(DefaultTailLines)
	}
	return &Watcher{
		matcher: matcher,
		tail:    tail,
		readyCh: make(chan map[string]string, 1),
		doneCh:  make(chan struct{}),
	}
}

// Run consumes r until EOF. It is intended to run in its own goroutine and
// returns when the stream closes (normally because the process exited).
func (w *Watcher) Run(r io.Reader) {
	defer close(w.doneCh)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		w.tail.Append(line)

		if w.matcher == nil {
			continue
		}
		if values, ok := w.matcher.Match(line); ok {
			w.readyOnce.Do(func() {
				w.readyCh <- values
			})
		}
	}
}

// Ready yields the values captured by the first matching line
func (w *Watcher) Ready() <-chan map[string]string {
	return w.readyCh
}

// Done is closed when the output stream reaches EOF
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

// Tail returns the retained output lines, oldest first
func (w *Watcher) Tail() []string {
	return w.tail.Lines()
}
