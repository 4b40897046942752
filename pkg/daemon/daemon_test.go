package daemon

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newDaemon(t *testing.T, opts Options) *Daemon {
	t.Helper()
	opts.Handler = slog.NewTextHandler(io.Discard, nil)
	d, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

// waitFor polls cond for up to two seconds.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRunLoadsScripts(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "ext.ael", "context default {\n    s => NoOp(hello);\n}\n")
	d := newDaemon(t, Options{Scripts: []string{path}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	waitFor(t, "initial load", func() bool { return d.Store().Plan().Context("default") != nil })
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	var msgs []string
	for _, r := range d.records.Latest(100, slog.LevelDebug, "") {
		msgs = append(msgs, r.Message)
	}
	joined := strings.Join(msgs, "\n")
	for _, want := range []string{"starting aeld daemon", "compile finished", "shutdown complete"} {
		if !strings.Contains(joined, want) {
			t.Errorf("log records missing %q:\n%s", want, joined)
		}
	}
}

func TestReloadOnHangup(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "ext.ael", "context default {\n    s => NoOp(v1);\n}\n")
	d := newDaemon(t, Options{Scripts: []string{path}, GRPCAddr: "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hup := make(chan os.Signal, 1)
	go d.reloadOnHangup(ctx, hup)

	hup <- unix.SIGHUP
	waitFor(t, "first reload", func() bool { return strings.Contains(d.Store().Show(), "NoOp(v1)") })

	writeScript(t, dir, "ext.ael", "context default {\n    s => NoOp(v2);\n}\n")
	hup <- unix.SIGHUP
	waitFor(t, "second reload", func() bool { return strings.Contains(d.Store().Show(), "NoOp(v2)") })

	if got := len(d.Store().History()); got != 2 {
		t.Errorf("history = %d entries, want 2", got)
	}
}

func TestFailedReloadKeepsDialplan(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "ext.ael", "context default {\n    s => NoOp(v1);\n}\n")
	d := newDaemon(t, Options{Scripts: []string{path}})
	if err := d.scripts.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}

	writeScript(t, dir, "ext.ael", "context default {\n    s => NoOp(\n")
	if err := d.scripts.Reload(context.Background()); err == nil {
		t.Fatal("reload of a broken script succeeded")
	}
	if !strings.Contains(d.Store().Show(), "NoOp(v1)") {
		t.Errorf("dialplan lost after a failed reload:\n%s", d.Store().Show())
	}
}

func TestNewErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := New(Options{AppsFile: filepath.Join(dir, "missing.yaml")}); err == nil {
		t.Error("missing application database accepted")
	}

	bad := writeScript(t, dir, "apps.yaml", "apps:\n  - name: Foo\n    args:\n      - name: x\n        type: colour\n")
	if _, err := New(Options{AppsFile: bad}); err == nil || !strings.Contains(err.Error(), "unknown type") {
		t.Errorf("bad application database: %v", err)
	}
}
