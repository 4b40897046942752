package cli

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/psaab/aelc/pkg/appdb"
	"github.com/psaab/aelc/pkg/compiler"
	"github.com/psaab/aelc/pkg/dialplan"
	"github.com/psaab/aelc/pkg/grpcapi"
	"github.com/psaab/aelc/pkg/logging"
)

const extensions = `context default {
    100 => {
        Answer();
        Dial(SIP/100,20);
        Hangup();
    }
}

context internal {
    s => NoOp(internal);
}
`

type shell struct {
	cli *CLI
	out *bytes.Buffer
	dir string
}

func newShell(t *testing.T) *shell {
	t.Helper()
	store := dialplan.New(10)
	opts := compiler.Options{
		Apps:   appdb.Builtin(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	records := logging.NewRecordBuffer(8)
	records.Add(logging.Record{Time: time.Now(), Level: slog.LevelInfo, Message: "dialplan loaded"})
	records.Add(logging.Record{Time: time.Now(), Level: slog.LevelWarn, Message: "unreachable step"})

	svc := grpcapi.NewService(grpcapi.Config{
		Store:   store,
		Scripts: compiler.NewScripts(store, opts),
		Records: records,
		Compile: opts,
	})
	var out bytes.Buffer
	return &shell{cli: New(svc, &out), out: &out, dir: t.TempDir()}
}

func (s *shell) write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// run executes line and returns what it printed.
func (s *shell) run(t *testing.T, line string) string {
	t.Helper()
	s.out.Reset()
	if err := s.cli.Execute(line); err != nil {
		t.Fatalf("%s: %v", line, err)
	}
	return s.out.String()
}

func TestLoadAndShow(t *testing.T) {
	s := newShell(t)
	path := s.write(t, "ext.ael", extensions)

	out := s.run(t, "load "+path)
	if !strings.Contains(out, path+": loaded, 4 steps") {
		t.Errorf("load output:\n%s", out)
	}

	out = s.run(t, "sh dialp context default")
	if !strings.Contains(out, "Dial(SIP/100,20)") || strings.Contains(out, "internal") {
		t.Errorf("show dialplan context:\n%s", out)
	}
	if out := s.run(t, "show contexts"); out != "default\ninternal\n" {
		t.Errorf("show contexts = %q", out)
	}
	if out := s.run(t, "show sources"); out != path+"\n" {
		t.Errorf("show sources = %q", out)
	}
	out = s.run(t, "show status")
	for _, want := range []string{"Contexts:", "Priorities:   4", "Fingerprint:"} {
		if !strings.Contains(out, want) {
			t.Errorf("show status missing %q:\n%s", want, out)
		}
	}

	if err := s.cli.Execute("show dialplan source /nope.ael"); err == nil || !strings.Contains(errMessage(err), "not loaded") {
		t.Errorf("unknown source: %v", err)
	}
}

func TestRejectedLoad(t *testing.T) {
	s := newShell(t)
	path := s.write(t, "bad.ael", "context default {\n    s => {\n        break;\n    }\n}\n")

	err := s.cli.Execute("load " + path)
	if err == nil || !strings.Contains(err.Error(), "semantic errors") {
		t.Fatalf("load err = %v", err)
	}
	if out := s.out.String(); !strings.Contains(out, ":3: error: break") {
		t.Errorf("diagnostics not printed:\n%s", out)
	}

	s.out.Reset()
	if err := s.cli.Execute("load " + path + " force"); err != nil {
		t.Fatalf("forced load: %v", err)
	}
	if out := s.run(t, "show diagnostics"); !strings.Contains(out, "loaded") {
		t.Errorf("show diagnostics:\n%s", out)
	}
}

func TestCheck(t *testing.T) {
	s := newShell(t)
	good := s.write(t, "good.ael", extensions)
	if out := s.run(t, "check "+good); !strings.Contains(out, "4 steps") {
		t.Errorf("check output:\n%s", out)
	}
	if out := s.run(t, "show contexts"); out != "" {
		t.Errorf("check loaded contexts: %q", out)
	}

	bad := s.write(t, "bad.ael", "context c {\n    s => NoOp(\n")
	if err := s.cli.Execute("check " + bad); err == nil {
		t.Error("check of a broken script succeeded")
	}
	semantic := s.write(t, "semantic.ael", "context default {\n    s => {\n        break;\n    }\n}\n")
	if err := s.cli.Execute("check " + semantic); err == nil || !strings.Contains(err.Error(), "would be rejected") {
		t.Errorf("check of a rejected script: %v", err)
	}
	if err := s.cli.Execute("check " + filepath.Join(s.dir, "missing.ael")); err == nil {
		t.Error("check of a missing file succeeded")
	}
}

func TestReloadRollbackUnload(t *testing.T) {
	s := newShell(t)
	path := s.write(t, "ext.ael", "context default {\n    s => NoOp(v1);\n}\n")
	s.run(t, "load "+path)

	s.write(t, "ext.ael", "context default {\n    s => NoOp(v2);\n}\n")
	if out := s.run(t, "reload"); !strings.Contains(out, "loaded, 1 steps") {
		t.Errorf("reload output:\n%s", out)
	}
	if out := s.run(t, "show dialplan"); !strings.Contains(out, "NoOp(v2)") {
		t.Errorf("after reload:\n%s", out)
	}

	if out := s.run(t, "show history | count"); out != "Count: 3 lines\n" {
		t.Errorf("history count = %q", out)
	}
	if out := s.run(t, "rollback"); !strings.Contains(out, path+" rolled back") {
		t.Errorf("rollback output = %q", out)
	}
	if out := s.run(t, "show dialplan"); !strings.Contains(out, "NoOp(v1)") {
		t.Errorf("after rollback:\n%s", out)
	}
	if err := s.cli.Execute("rollback zero"); err == nil {
		t.Error("rollback with a bad index succeeded")
	}

	s.run(t, "unload "+path)
	if out := s.run(t, "show contexts"); out != "" {
		t.Errorf("contexts after unload = %q", out)
	}
	if err := s.cli.Execute("unload " + path); err == nil || !strings.Contains(err.Error(), "not loaded") {
		t.Errorf("second unload: %v", err)
	}
}

func TestLogsAndApps(t *testing.T) {
	s := newShell(t)
	out := s.run(t, "show log")
	if strings.Index(out, "dialplan loaded") > strings.Index(out, "unreachable step") {
		t.Errorf("log not oldest first:\n%s", out)
	}
	if out := s.run(t, "show log warning"); strings.Contains(out, "dialplan loaded") || !strings.Contains(out, "WARN") {
		t.Errorf("show log warning:\n%s", out)
	}

	if out := s.run(t, "show apps | match playback"); out != "Playback\n" {
		t.Errorf("apps filter = %q", out)
	}
	if out := s.run(t, "show apps Dial"); !strings.HasPrefix(out, "Dial(devices") {
		t.Errorf("show apps Dial:\n%s", out)
	}
	if err := s.cli.Execute("show apps Frobnicate"); err == nil {
		t.Error("unknown application shown")
	}
}

func TestDispatchErrors(t *testing.T) {
	s := newShell(t)
	tests := []struct {
		line string
		want string
	}{
		{"frobnicate", "unknown command"},
		{"sh di", "ambiguous"},
		{"show", "specify what to show"},
		{"show nothing", "unknown topic"},
		{"load", "usage"},
		{"check", "usage"},
		{"unload", "usage"},
	}
	for _, tt := range tests {
		err := s.cli.Execute(tt.line)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%q: err = %v, want %q", tt.line, err, tt.want)
		}
	}
	if err := s.cli.Execute("exit"); err != errExit {
		t.Errorf("exit = %v", err)
	}
	if out := s.run(t, "?"); !strings.Contains(out, "Possible completions:") {
		t.Errorf("help = %q", out)
	}
}

func TestPipeFilters(t *testing.T) {
	input := "alpha\nbeta\ngamma\nBETA two\n"
	tests := []struct {
		filter, arg string
		want        string
	}{
		{"match", "beta", "beta\nBETA two\n"},
		{"except", "beta", "alpha\ngamma\n"},
		{"find", "gamma", "gamma\nBETA two\n"},
		{"count", "", "Count: 4 lines\n"},
		{"last", "2", "gamma\nBETA two\n"},
		{"last", "", input},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		applyPipe(&buf, input, tt.filter, tt.arg)
		if buf.String() != tt.want {
			t.Errorf("%s %q = %q, want %q", tt.filter, tt.arg, buf.String(), tt.want)
		}
	}

	if cmd, typ, arg, ok := extractPipe("show dialplan | match Dial"); !ok || cmd != "show dialplan" || typ != "match" || arg != "Dial" {
		t.Errorf("extractPipe = %q %q %q %v", cmd, typ, arg, ok)
	}
	if _, _, _, ok := extractPipe("show dialplan | tee x"); ok {
		t.Error("unknown filter accepted")
	}
}

func TestCandidates(t *testing.T) {
	s := newShell(t)
	s.run(t, "load "+s.write(t, "ext.ael", extensions))

	tests := []struct {
		text    string
		want    string
		partial string
	}{
		{"sh", "show", "sh"},
		{"show dialplan context ", "default internal", ""},
		{"sh dialp context i", "internal", "i"},
		{"show apps Pla", "Playback", "Pla"},
		{"show dialplan | ma", "match", "ma"},
	}
	for _, tt := range tests {
		cands, partial := s.cli.candidates(tt.text)
		var names []string
		for _, c := range cands {
			names = append(names, c.Name)
		}
		sort.Strings(names)
		got := strings.Join(names, " ")
		if got != tt.want || partial != tt.partial {
			t.Errorf("candidates(%q) = %q/%q, want %q/%q", tt.text, got, partial, tt.want, tt.partial)
		}
	}
}
