package grpcapi

import (
	"time"

	"github.com/psaab/aelc/pkg/appdb"
	"github.com/psaab/aelc/pkg/compiler"
	"github.com/psaab/aelc/pkg/diag"
)

type StatusRequest struct{}

type StatusReply struct {
	Uptime      string   `json:"uptime"`
	Scripts     []string `json:"scripts"`
	Sources     []string `json:"sources"`
	Contexts    []string `json:"contexts"`
	Extensions  int      `json:"extensions"`
	Priorities  int      `json:"priorities"`
	Fingerprint string   `json:"fingerprint"`
}

// Report summarizes one compile run.
type Report struct {
	File        string            `json:"file"`
	Result      string            `json:"result"`
	Steps       int               `json:"steps"`
	Dropped     int               `json:"dropped"`
	Summary     string            `json:"summary"`
	Duration    time.Duration     `json:"duration"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
}

func report(r *compiler.Run) *Report {
	return &Report{
		File:        r.File,
		Result:      r.Result,
		Steps:       r.Steps,
		Dropped:     r.Dropped,
		Summary:     r.Diags.Summary(),
		Duration:    r.Duration,
		Diagnostics: r.Diags.Sorted(),
	}
}

type LoadRequest struct {
	Path  string `json:"path"`
	Force bool   `json:"force,omitempty"`
}

// LoadReply carries the run report even when the load failed, so the
// caller can show the diagnostics.
type LoadReply struct {
	Report *Report `json:"report"`
	Error  string  `json:"error,omitempty"`
}

type CheckRequest struct {
	File    string `json:"file"`
	Content string `json:"content"`
}

type ReloadRequest struct{}

type ReloadReply struct {
	Reports []*Report `json:"reports"`
	Error   string    `json:"error,omitempty"`
}

type UnloadRequest struct {
	Path string `json:"path"`
}

type UnloadReply struct {
	Removed bool `json:"removed"`
}

type RollbackRequest struct {
	N int `json:"n"`
}

type HistoryItem struct {
	Index       int       `json:"index"`
	Source      string    `json:"source"`
	Timestamp   time.Time `json:"timestamp"`
	Fingerprint string    `json:"fingerprint"`
	Comment     string    `json:"comment,omitempty"`
}

type HistoryRequest struct{}

type HistoryReply struct {
	Entries []HistoryItem `json:"entries"`
}

type ShowRequest struct {
	Source  string `json:"source,omitempty"`
	Context string `json:"context,omitempty"`
}

type ShowReply struct {
	Output string `json:"output"`
}

type DiagnosticsRequest struct {
	File string `json:"file,omitempty"`
}

type DiagnosticsReply struct {
	Reports []*Report `json:"reports"`
}

type LogsRequest struct {
	Limit int    `json:"limit"`
	Level string `json:"level,omitempty"`
	Match string `json:"match,omitempty"`
}

type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

type LogsReply struct {
	Entries []LogEntry `json:"entries"`
}

type AppsRequest struct {
	Name string `json:"name,omitempty"`
}

type AppsReply struct {
	Names []string   `json:"names,omitempty"`
	App   *appdb.App `json:"app,omitempty"`
}
