package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// TeeHandler is an slog.Handler that forwards every record to a base
// handler (normally stderr) and also stores a compact rendering in a
// RecordBuffer and sends it to any configured syslog clients.
type TeeHandler struct {
	base   slog.Handler
	buf    *RecordBuffer
	shared *syslogClients
	attrs  []slog.Attr
	groups []string
}

type syslogClients struct {
	mu      sync.RWMutex
	clients []*SyslogClient
}

// NewTeeHandler wraps base. buf may be nil.
func NewTeeHandler(base slog.Handler, buf *RecordBuffer) *TeeHandler {
	return &TeeHandler{base: base, buf: buf, shared: &syslogClients{}}
}

// SetSyslog replaces the syslog clients. Old clients are closed.
func (h *TeeHandler) SetSyslog(clients ...*SyslogClient) {
	h.shared.mu.Lock()
	old := h.shared.clients
	h.shared.clients = clients
	h.shared.mu.Unlock()
	for _, c := range old {
		c.Close()
	}
}

// Close closes the syslog clients.
func (h *TeeHandler) Close() {
	h.SetSyslog()
}

func (h *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.base.Handle(ctx, r)

	h.shared.mu.RLock()
	clients := h.shared.clients
	h.shared.mu.RUnlock()
	if h.buf == nil && len(clients) == 0 {
		return err
	}

	msg := formatRecord(r, h.attrs, h.groups)
	if h.buf != nil {
		h.buf.Add(Record{Time: r.Time, Level: r.Level, Message: msg})
	}
	severity := levelToSyslog(r.Level)
	for _, c := range clients {
		if c.ShouldSend(severity) {
			c.Send(severity, msg)
		}
	}
	return err
}

func (h *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TeeHandler{
		base:   h.base.WithAttrs(attrs),
		buf:    h.buf,
		shared: h.shared,
		attrs:  append(append([]slog.Attr{}, h.attrs...), attrs...),
		groups: h.groups,
	}
}

func (h *TeeHandler) WithGroup(name string) slog.Handler {
	return &TeeHandler{
		base:   h.base.WithGroup(name),
		buf:    h.buf,
		shared: h.shared,
		attrs:  h.attrs,
		groups: append(append([]string{}, h.groups...), name),
	}
}

func levelToSyslog(level slog.Level) int {
	switch {
	case level >= slog.LevelError:
		return SyslogError
	case level >= slog.LevelWarn:
		return SyslogWarning
	default:
		return SyslogInfo
	}
}

// formatRecord produces "message key=value ...".
func formatRecord(r slog.Record, preAttrs []slog.Attr, groups []string) string {
	var b strings.Builder
	b.WriteString(r.Message)

	for _, a := range preAttrs {
		fmt.Fprintf(&b, " %s=%s", a.Key, a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if len(groups) > 0 {
			key = strings.Join(groups, ".") + "." + key
		}
		fmt.Fprintf(&b, " %s=%s", key, a.Value.String())
		return true
	})

	return b.String()
}
