// Package api implements the HTTP REST API and Prometheus metrics endpoint.
package api

import (
	"time"

	"github.com/psaab/aelc/pkg/compiler"
	"github.com/psaab/aelc/pkg/diag"
)

// Response is the standard JSON response envelope.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StatusResponse holds daemon status information.
type StatusResponse struct {
	Uptime      string `json:"uptime"`
	Sources     int    `json:"sources"`
	Contexts    int    `json:"contexts"`
	Extensions  int    `json:"extensions"`
	Priorities  int    `json:"priorities"`
	Fingerprint string `json:"fingerprint"`
}

// SourceInfo describes one loaded script.
type SourceInfo struct {
	Name       string `json:"name"`
	Loaded     string `json:"loaded"`
	Contexts   int    `json:"contexts"`
	Priorities int    `json:"priorities"`
}

// RunInfo summarizes one compile run.
type RunInfo struct {
	File        string            `json:"file"`
	Result      string            `json:"result"`
	Steps       int               `json:"steps"`
	Dropped     int               `json:"dropped_units,omitempty"`
	Errors      int               `json:"errors"`
	Warnings    int               `json:"warnings"`
	Notes       int               `json:"notes"`
	Duration    string            `json:"duration"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
}

func runInfo(r *compiler.Run) RunInfo {
	return RunInfo{
		File:        r.File,
		Result:      r.Result,
		Steps:       r.Steps,
		Dropped:     r.Dropped,
		Errors:      r.Diags.Errors(),
		Warnings:    r.Diags.Warnings(),
		Notes:       r.Diags.Notes(),
		Duration:    r.Duration.Round(time.Microsecond).String(),
		Diagnostics: r.Diags.Sorted(),
	}
}

// HistoryEntry holds one rollback candidate.
type HistoryEntry struct {
	Index       int    `json:"index"`
	Source      string `json:"source"`
	Timestamp   string `json:"timestamp"`
	Fingerprint string `json:"fingerprint"`
	Comment     string `json:"comment,omitempty"`
}

// TextResponse wraps text output.
type TextResponse struct {
	Output string `json:"output"`
}

// RollbackRequest holds a rollback index (1 = most recent).
type RollbackRequest struct {
	N int `json:"n"`
}

// CheckRequest holds a script to compile without loading.
type CheckRequest struct {
	File    string `json:"file"`
	Content string `json:"content"`
}

// LogStreamEntry is a log message sent via SSE.
type LogStreamEntry struct {
	Time     string `json:"time"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}
