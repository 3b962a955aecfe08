// Package readiness decides when an auxiliary process is able to accept work.
//
// Two strategies exist: matching a pattern against the process's output
// (Matcher, Watcher) and probing for an existing TCP listener (Listening,
// WaitListening). Both publish their evidence as named string values.
package readiness

import (
	"fmt"
	"regexp"
)

// Matcher is a strategy that tests one line of process output.
// On a hit it returns the named values extracted from the line.
// Implementations must be safe for concurrent use.
type Matcher interface {
	// Match tests a single line. ok is false when the line carries no
	// readiness evidence.
	Match(line string) (values map[string]string, ok bool)

	// Describe returns a human-readable description of the strategy
	Describe() string
}

// PatternMatcher matches lines against a regular expression and extracts
// named capture groups as values.
type PatternMatcher struct {
	re    *regexp.Regexp
	names []string
}

// NewPatternMatcher compiles expr. Named capture groups in expr become the
// value names published on a match.
func NewPatternMatcher(expr string) (*PatternMatcher, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}

	var names []string
	for _, name := range re.SubexpNames() {
		if name != "" {
			names = append(names, name)
		}
	}

	return &PatternMatcher{re: re, names: names}, nil
}

// Names returns the value names this matcher publishes
func (m *PatternMatcher) Names() []string {
	return append([]string(nil), m.names...)
}

// Match implements Matcher. A line that matches the expression but leaves
// any named group empty is treated as no match: readiness must never be
// signaled with a value missing.
func (m *PatternMatcher) Match(line string) (map[string]string, bool) {
	sub := m.re.FindStringSubmatch(line)
	if sub == nil {
		return nil, false
	}

	values := make(map[string]string, len(m.names))
	for i, name := range m.re.SubexpNames() {
		if name == "" {
			continue
		}
		if sub[i] == "" {
			return nil, false
		}
		values[name] = sub[i]
	}

	return values, true
}

// Describe implements Matcher
func (m *PatternMatcher) Describe() string {
	return fmt.Sprintf("output matches %q", m.re.String())
}
