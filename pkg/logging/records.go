// Package logging provides the daemon's log plumbing: a slog handler that
// tees records into an in-memory ring and optionally to remote syslog.
package logging

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Record is a formatted log record kept in a RecordBuffer.
type Record struct {
	Time    time.Time  `json:"time"`
	Level   slog.Level `json:"level"`
	Message string     `json:"message"`
}

func (r Record) String() string {
	return r.Time.Format("15:04:05.000") + " " + r.Level.String() + " " + r.Message
}

// RecordBuffer is a thread-safe circular buffer of recent log records.
type RecordBuffer struct {
	mu    sync.RWMutex
	buf   []Record
	size  int
	head  int // next write position
	count int

	subMu sync.RWMutex
	subs  map[*Subscription]struct{}
}

// Subscription receives new records from a RecordBuffer.
type Subscription struct {
	C  chan Record
	rb *RecordBuffer
}

// Close unsubscribes. The channel is left open.
func (s *Subscription) Close() {
	s.rb.unsubscribe(s)
}

// NewRecordBuffer creates a buffer holding the last size records.
func NewRecordBuffer(size int) *RecordBuffer {
	if size < 1 {
		size = 1
	}
	return &RecordBuffer{
		buf:  make([]Record, size),
		size: size,
		subs: make(map[*Subscription]struct{}),
	}
}

// Add appends a record, overwriting the oldest if full. Subscribers that
// are not keeping up miss the record.
func (rb *RecordBuffer) Add(rec Record) {
	rb.mu.Lock()
	rb.buf[rb.head] = rec
	rb.head = (rb.head + 1) % rb.size
	if rb.count < rb.size {
		rb.count++
	}
	rb.mu.Unlock()

	rb.subMu.RLock()
	for sub := range rb.subs {
		select {
		case sub.C <- rec:
		default:
		}
	}
	rb.subMu.RUnlock()
}

// Subscribe returns a Subscription receiving every new record.
func (rb *RecordBuffer) Subscribe(bufSize int) *Subscription {
	if bufSize < 1 {
		bufSize = 64
	}
	sub := &Subscription{C: make(chan Record, bufSize), rb: rb}
	rb.subMu.Lock()
	rb.subs[sub] = struct{}{}
	rb.subMu.Unlock()
	return sub
}

func (rb *RecordBuffer) unsubscribe(sub *Subscription) {
	rb.subMu.Lock()
	delete(rb.subs, sub)
	rb.subMu.Unlock()
}

// Len returns the number of stored records.
func (rb *RecordBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Latest returns up to n records at or above min whose message contains
// match (case-insensitive; empty matches all), newest first.
func (rb *RecordBuffer) Latest(n int, min slog.Level, match string) []Record {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	match = strings.ToLower(match)
	var result []Record
	for i := 0; i < rb.count && len(result) < n; i++ {
		rec := rb.buf[(rb.head-1-i+rb.size)%rb.size]
		if rec.Level < min {
			continue
		}
		if match != "" && !strings.Contains(strings.ToLower(rec.Message), match) {
			continue
		}
		result = append(result, rec)
	}
	return result
}
