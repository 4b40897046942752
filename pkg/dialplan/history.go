package dialplan

import (
	"fmt"
	"time"
)

// HistoryEntry is the content a source had before a load replaced it.
type HistoryEntry struct {
	Source      string    `json:"source"`
	Plan        *Plan     `json:"-"`
	Fingerprint uint64    `json:"fingerprint"`
	Timestamp   time.Time `json:"timestamp"`
	Comment     string    `json:"comment,omitempty"`
}

// History is a ring of replaced source contents for rollback.
type History struct {
	entries []*HistoryEntry
	maxSize int
}

// NewHistory creates a History holding at most maxSize entries.
func NewHistory(maxSize int) *History {
	return &History{maxSize: maxSize}
}

// Push records an entry, dropping the oldest when full.
func (h *History) Push(entry *HistoryEntry) {
	h.entries = append(h.entries, entry)
	if len(h.entries) > h.maxSize {
		h.entries = h.entries[1:]
	}
}

// Get returns the nth most recent entry (0 = most recent).
func (h *History) Get(n int) (*HistoryEntry, error) {
	if n < 0 || n >= len(h.entries) {
		return nil, fmt.Errorf("rollback %d: no such dialplan (have %d entries)",
			n+1, len(h.entries))
	}
	return h.entries[len(h.entries)-1-n], nil
}

// remove drops the nth most recent entry.
func (h *History) remove(n int) {
	idx := len(h.entries) - 1 - n
	h.entries = append(h.entries[:idx], h.entries[idx+1:]...)
}

func (h *History) Len() int { return len(h.entries) }

func (h *History) MaxSize() int { return h.maxSize }

// List returns all entries, most recent first.
func (h *History) List() []*HistoryEntry {
	result := make([]*HistoryEntry, len(h.entries))
	for i, entry := range h.entries {
		result[len(h.entries)-1-i] = entry
	}
	return result
}
