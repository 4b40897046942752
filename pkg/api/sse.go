package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/psaab/aelc/pkg/logging"
)

// setSSEHeaders configures the response for Server-Sent Events streaming.
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// writeSSEEvent writes a single SSE event to the response.
func writeSSEEvent(w http.ResponseWriter, id string, event string, data string) {
	fmt.Fprintf(w, "id: %s\n", id)
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// logStreamHandler streams daemon log records via SSE. Compile
// diagnostics arrive here as they are reported.
// Supports ?level= and ?match= filters.
func (s *Server) logStreamHandler(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusServiceUnavailable, "log buffer not available")
		return
	}

	minLevel, err := parseLevel(r.URL.Query().Get("level"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	match := strings.ToLower(r.URL.Query().Get("match"))

	setSSEHeaders(w)

	sub := s.records.Subscribe(128)
	defer sub.Close()

	var seq uint64
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-sub.C:
			if rec.Level < minLevel {
				continue
			}
			if match != "" && !strings.Contains(strings.ToLower(rec.Message), match) {
				continue
			}
			seq++
			data, err := json.Marshal(logEntry(rec))
			if err != nil {
				continue
			}
			writeSSEEvent(w, fmt.Sprintf("%d", seq), "log", string(data))
		}
	}
}

func logEntry(rec logging.Record) LogStreamEntry {
	return LogStreamEntry{
		Time:     rec.Time.Format(time.RFC3339),
		Severity: severityName(rec.Level),
		Message:  rec.Message,
	}
}

func severityName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warning"
	case l >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
