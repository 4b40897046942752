package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/psaab/aelc/pkg/compiler"
	"github.com/psaab/aelc/pkg/dialplan"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Error: msg})
}

func fingerprint(v uint64) string {
	return fmt.Sprintf("%016x", v)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]string{"status": "ok"})
}

func (s *Server) statusHandler(w http.ResponseWriter, _ *http.Request) {
	plan := s.store.Plan()
	contexts, extensions, priorities := plan.Stats()
	writeOK(w, StatusResponse{
		Uptime:      time.Since(s.startTime).Truncate(time.Second).String(),
		Sources:     len(s.store.Sources()),
		Contexts:    contexts,
		Extensions:  extensions,
		Priorities:  priorities,
		Fingerprint: fingerprint(dialplan.Fingerprint(plan)),
	})
}

// plan returns the merged dialplan, or one source's content with ?source=.
func (s *Server) plan(w http.ResponseWriter, r *http.Request) (*dialplan.Plan, bool) {
	source := r.URL.Query().Get("source")
	if source == "" {
		return s.store.Plan(), true
	}
	p := s.store.Source(source)
	if p == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("source %q not loaded", source))
		return nil, false
	}
	return p, true
}

func (s *Server) dialplanHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.plan(w, r)
	if !ok {
		return
	}
	if name := r.URL.Query().Get("context"); name != "" {
		c := p.Context(name)
		if c == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("context %q not found", name))
			return
		}
		writeOK(w, c)
		return
	}
	writeOK(w, p)
}

func (s *Server) dialplanShowHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.plan(w, r)
	if !ok {
		return
	}
	writeOK(w, TextResponse{Output: p.Format()})
}

func (s *Server) sourcesHandler(w http.ResponseWriter, _ *http.Request) {
	result := []SourceInfo{}
	for _, name := range s.store.Sources() {
		info := SourceInfo{Name: name}
		if t, ok := s.store.Loaded(name); ok {
			info.Loaded = t.Format(time.RFC3339)
		}
		if p := s.store.Source(name); p != nil {
			info.Contexts, _, info.Priorities = p.Stats()
		}
		result = append(result, info)
	}
	writeOK(w, result)
}

// diagnosticsHandler reports the latest run of each script.
// Supports ?file= and ?severity= (error, warning, note).
func (s *Server) diagnosticsHandler(w http.ResponseWriter, r *http.Request) {
	if s.reloader == nil {
		writeError(w, http.StatusServiceUnavailable, "no scripts configured")
		return
	}
	file := r.URL.Query().Get("file")
	severity := r.URL.Query().Get("severity")

	result := []RunInfo{}
	for _, run := range s.reloader.LastRuns() {
		if file != "" && run.File != file {
			continue
		}
		info := runInfo(run)
		if severity != "" {
			kept := info.Diagnostics[:0]
			for _, d := range info.Diagnostics {
				if d.Level == severity {
					kept = append(kept, d)
				}
			}
			info.Diagnostics = kept
		}
		result = append(result, info)
	}
	writeOK(w, result)
}

func (s *Server) historyHandler(w http.ResponseWriter, _ *http.Request) {
	result := []HistoryEntry{}
	for i, e := range s.store.History() {
		result = append(result, HistoryEntry{
			Index:       i + 1,
			Source:      e.Source,
			Timestamp:   e.Timestamp.Format(time.RFC3339),
			Fingerprint: fingerprint(e.Fingerprint),
			Comment:     e.Comment,
		})
	}
	writeOK(w, result)
}

// appsHandler lists the known applications, or describes one with ?name=.
func (s *Server) appsHandler(w http.ResponseWriter, r *http.Request) {
	if s.compile.Apps == nil {
		writeError(w, http.StatusServiceUnavailable, "application database not loaded")
		return
	}
	if name := r.URL.Query().Get("name"); name != "" {
		app, ok := s.compile.Apps.Lookup(name)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown application %q", name))
			return
		}
		writeOK(w, app)
		return
	}
	writeOK(w, s.compile.Apps.Names())
}

// logsHandler returns recent daemon log records, newest first.
// Supports ?limit=, ?level= and ?match=.
func (s *Server) logsHandler(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusServiceUnavailable, "log buffer not available")
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	level, err := parseLevel(r.URL.Query().Get("level"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := []LogStreamEntry{}
	for _, rec := range s.records.Latest(limit, level, r.URL.Query().Get("match")) {
		result = append(result, logEntry(rec))
	}
	writeOK(w, result)
}

func (s *Server) reloadHandler(w http.ResponseWriter, r *http.Request) {
	if s.reloader == nil {
		writeError(w, http.StatusServiceUnavailable, "no scripts configured")
		return
	}
	err := s.reloader.Reload(r.Context())
	runs := []RunInfo{}
	for _, run := range s.reloader.LastRuns() {
		runs = append(runs, runInfo(run))
	}
	if err != nil {
		slog.Warn("reload via API failed", "err", err)
		writeJSON(w, http.StatusUnprocessableEntity, Response{Success: false, Data: runs, Error: err.Error()})
		return
	}
	writeOK(w, runs)
}

func (s *Server) rollbackHandler(w http.ResponseWriter, r *http.Request) {
	req := RollbackRequest{N: 1}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	entry, err := s.store.Rollback(req.N)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	slog.Info("dialplan rolled back via API", "n", req.N, "source", entry.Source)
	writeOK(w, HistoryEntry{
		Index:       req.N,
		Source:      entry.Source,
		Timestamp:   entry.Timestamp.Format(time.RFC3339),
		Fingerprint: fingerprint(entry.Fingerprint),
		Comment:     entry.Comment,
	})
}

// checkHandler compiles a script without loading it.
func (s *Server) checkHandler(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.File == "" {
		req.File = "check.ael"
	}
	run, err := compiler.CheckSource(req.File, req.Content, s.compile)
	info := runInfo(run)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, Response{Success: false, Data: info, Error: err.Error()})
		return
	}
	writeOK(w, info)
}

// parseLevel accepts the slog level names; empty means debug.
func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelDebug, nil
	}
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.New("invalid level: " + s)
	}
	return level, nil
}
