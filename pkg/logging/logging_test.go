package logging

import (
	"bytes"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"
)

func TestRecordBufferWraps(t *testing.T) {
	rb := NewRecordBuffer(3)
	for i, msg := range []string{"a", "b", "c", "d"} {
		level := slog.LevelInfo
		if i%2 == 1 {
			level = slog.LevelWarn
		}
		rb.Add(Record{Time: time.Now(), Level: level, Message: msg})
	}
	if rb.Len() != 3 {
		t.Fatalf("Len = %d, want 3", rb.Len())
	}

	var got []string
	for _, r := range rb.Latest(10, slog.LevelDebug, "") {
		got = append(got, r.Message)
	}
	if strings.Join(got, "") != "dcb" {
		t.Errorf("Latest = %v, want newest first without a", got)
	}

	warn := rb.Latest(10, slog.LevelWarn, "")
	if len(warn) != 2 || warn[0].Message != "d" {
		t.Errorf("warn filter = %v", warn)
	}
	if m := rb.Latest(10, slog.LevelDebug, "C"); len(m) != 1 || m[0].Message != "c" {
		t.Errorf("match filter = %v", m)
	}
	if m := rb.Latest(1, slog.LevelDebug, ""); len(m) != 1 {
		t.Errorf("limit ignored: %v", m)
	}
}

func TestSubscription(t *testing.T) {
	rb := NewRecordBuffer(8)
	sub := rb.Subscribe(1)
	rb.Add(Record{Message: "first"})
	rb.Add(Record{Message: "dropped"})

	select {
	case r := <-sub.C:
		if r.Message != "first" {
			t.Errorf("got %q", r.Message)
		}
	default:
		t.Fatal("subscriber got nothing")
	}
	select {
	case r := <-sub.C:
		t.Errorf("slow subscriber should miss records, got %q", r.Message)
	default:
	}

	sub.Close()
	rb.Add(Record{Message: "after close"})
	select {
	case r := <-sub.C:
		t.Errorf("closed subscription received %q", r.Message)
	default:
	}
}

func TestTeeHandler(t *testing.T) {
	var out bytes.Buffer
	rb := NewRecordBuffer(16)
	h := NewTeeHandler(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelInfo}), rb)
	logger := slog.New(h).With("file", "x.ael").WithGroup("run")

	logger.Info("loaded", "steps", 12)
	logger.Debug("hidden")

	if !strings.Contains(out.String(), "loaded") {
		t.Errorf("base handler missed the record: %q", out.String())
	}
	recs := rb.Latest(10, slog.LevelDebug, "")
	if len(recs) != 1 {
		t.Fatalf("buffer holds %d records, want 1", len(recs))
	}
	if want := "loaded file=x.ael run.steps=12"; recs[0].Message != want {
		t.Errorf("record = %q, want %q", recs[0].Message, want)
	}
}

func TestSyslogForwarding(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("no UDP listener: %v", err)
	}
	defer pc.Close()

	c, err := NewSyslogClient(pc.LocalAddr().String(), "aeld")
	if err != nil {
		t.Fatalf("NewSyslogClient: %v", err)
	}
	c.MinSeverity = SyslogWarning

	var discard bytes.Buffer
	h := NewTeeHandler(slog.NewTextHandler(&discard, nil), nil)
	h.SetSyslog(c)
	defer h.Close()

	logger := slog.New(h)
	logger.Info("not forwarded")
	logger.Warn("reload failed", "err", "boom")

	pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1024)
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	msg := string(buf[:n])
	if !strings.HasPrefix(msg, "<132>") || !strings.HasSuffix(msg, "aeld: reload failed err=boom") {
		t.Errorf("syslog line = %q", msg)
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"error", SyslogError},
		{"warning", SyslogWarning},
		{"info", SyslogInfo},
		{"unknown", 0},
	}
	for _, tt := range tests {
		if got := ParseSeverity(tt.name); got != tt.want {
			t.Errorf("ParseSeverity(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}
