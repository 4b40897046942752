// Package diag accumulates compiler diagnostics. Nothing in the compiler
// aborts on a diagnostic; callers read the counters when the pass is done.
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/psaab/aelc/pkg/ael"
)

// Severity classifies a diagnostic.
type Severity int

const (
	Note Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Note:
		return "note"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Level maps a severity to the slog level it is logged at.
func (s Severity) Level() slog.Level {
	switch s {
	case Error:
		return slog.LevelError
	case Warning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// Diagnostic is one reported problem.
type Diagnostic struct {
	Severity Severity `json:"-"`
	Level    string   `json:"severity"`
	Pos      ael.Pos  `json:"pos"`
	Msg      string   `json:"message"`
	// Related points at a second site, e.g. the first declaration of a
	// duplicated label.
	Related *ael.Pos `json:"related,omitempty"`
}

func (d Diagnostic) String() string {
	level := d.Level
	if level == "" {
		level = d.Severity.String()
	}
	s := fmt.Sprintf("%s: %s: %s", d.Pos, level, d.Msg)
	if d.Related != nil {
		s += fmt.Sprintf(" (see %s)", *d.Related)
	}
	return s
}

// Collector accumulates diagnostics and logs each one as it arrives.
type Collector struct {
	mu     sync.Mutex
	logger *slog.Logger
	list   []Diagnostic
	counts [3]int
}

// NewCollector returns a collector logging through logger (slog.Default
// when nil).
func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{logger: logger}
}

// Add records a diagnostic.
func (c *Collector) Add(d Diagnostic) {
	d.Level = d.Severity.String()
	c.mu.Lock()
	c.list = append(c.list, d)
	c.counts[d.Severity]++
	c.mu.Unlock()

	attrs := []any{"file", d.Pos.File, "line", d.Pos.Line}
	if d.Pos.EndLine > d.Pos.Line {
		attrs = append(attrs, "end_line", d.Pos.EndLine)
	}
	if d.Related != nil {
		attrs = append(attrs, "related", d.Related.String())
	}
	c.logger.Log(context.Background(), d.Severity.Level(), d.Msg, attrs...)
}

func (c *Collector) Errorf(pos ael.Pos, format string, args ...any) {
	c.Add(Diagnostic{Severity: Error, Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func (c *Collector) Warnf(pos ael.Pos, format string, args ...any) {
	c.Add(Diagnostic{Severity: Warning, Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func (c *Collector) Notef(pos ael.Pos, format string, args ...any) {
	c.Add(Diagnostic{Severity: Note, Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// Errors returns the number of errors recorded.
func (c *Collector) Errors() int { return c.count(Error) }

// Warnings returns the number of warnings recorded.
func (c *Collector) Warnings() int { return c.count(Warning) }

// Notes returns the number of notes recorded.
func (c *Collector) Notes() int { return c.count(Note) }

func (c *Collector) count(s Severity) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[s]
}

// List returns the diagnostics in the order they were reported.
func (c *Collector) List() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Diagnostic(nil), c.list...)
}

// Filter returns the diagnostics of one severity.
func (c *Collector) Filter(s Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range c.List() {
		if d.Severity == s {
			out = append(out, d)
		}
	}
	return out
}

// Sorted returns the diagnostics ordered by file and line.
func (c *Collector) Sorted() []Diagnostic {
	list := c.List()
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Pos.File != list[j].Pos.File {
			return list[i].Pos.File < list[j].Pos.File
		}
		return list[i].Pos.Line < list[j].Pos.Line
	})
	return list
}

// Summary renders the counts in one line.
func (c *Collector) Summary() string {
	return fmt.Sprintf("%d errors, %d warnings, %d notes", c.Errors(), c.Warnings(), c.Notes())
}

// Format renders every diagnostic, one per line, sorted by position.
func (c *Collector) Format() string {
	var b strings.Builder
	for _, d := range c.Sorted() {
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	return b.String()
}
