package api

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/psaab/aelc/pkg/logging"
)

func TestSetSSEHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	setSSEHeaders(w)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", cc)
	}
}

func TestWriteSSEEvent(t *testing.T) {
	w := httptest.NewRecorder()
	writeSSEEvent(w, "42", "log", `{"key":"value"}`)

	body := w.Body.String()
	if body != "id: 42\nevent: log\ndata: {\"key\":\"value\"}\n\n" {
		t.Errorf("event = %q", body)
	}

	w = httptest.NewRecorder()
	writeSSEEvent(w, "1", "", "hello")
	if strings.Contains(w.Body.String(), "event:") {
		t.Errorf("should not have event line when empty, got %q", w.Body.String())
	}
}

// stream runs the log stream handler for path while add feeds records.
func stream(t *testing.T, path string, add func(*logging.RecordBuffer)) string {
	t.Helper()
	buf := logging.NewRecordBuffer(100)
	s := &Server{records: buf}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest("GET", path, nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.logStreamHandler(w, req)
		close(done)
	}()

	// Wait for the subscription to be set up
	time.Sleep(50 * time.Millisecond)
	add(buf)
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	return w.Body.String()
}

func TestLogStreamHandler(t *testing.T) {
	body := stream(t, "/api/v1/logs/stream", func(buf *logging.RecordBuffer) {
		buf.Add(logging.Record{Time: time.Now(), Level: slog.LevelWarn,
			Message: "break is only allowed inside a loop or a switch case file=ext.ael line=4"})
	})

	if !strings.Contains(body, "event: log") {
		t.Errorf("expected 'event: log' in response, got %q", body)
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var entry LogStreamEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			t.Fatalf("decode %q: %v", data, err)
		}
		if entry.Severity != "warning" || !strings.Contains(entry.Message, "line=4") {
			t.Errorf("entry = %+v", entry)
		}
		return
	}
	t.Fatalf("no data line in %q", body)
}

func TestLogStreamFilters(t *testing.T) {
	feed := func(buf *logging.RecordBuffer) {
		buf.Add(logging.Record{Time: time.Now(), Level: slog.LevelInfo, Message: "compile finished file=a.ael"})
		buf.Add(logging.Record{Time: time.Now(), Level: slog.LevelError, Message: "label start defined twice"})
	}

	body := stream(t, "/api/v1/logs/stream?level=error", feed)
	if strings.Contains(body, "compile finished") || !strings.Contains(body, "defined twice") {
		t.Errorf("level filter: %q", body)
	}

	body = stream(t, "/api/v1/logs/stream?match=A.AEL", feed)
	if !strings.Contains(body, "compile finished") || strings.Contains(body, "defined twice") {
		t.Errorf("match filter: %q", body)
	}
}

func TestLogStreamBadLevel(t *testing.T) {
	s := &Server{records: logging.NewRecordBuffer(1)}
	w := httptest.NewRecorder()
	s.logStreamHandler(w, httptest.NewRequest("GET", "/api/v1/logs/stream?level=nope", nil))
	if w.Code != 400 {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
