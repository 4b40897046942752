package compiler

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/psaab/aelc/pkg/ael"
	"github.com/psaab/aelc/pkg/appdb"
	"github.com/psaab/aelc/pkg/diag"
	"github.com/psaab/aelc/pkg/dialplan"
	"github.com/psaab/aelc/pkg/metrics"
)

func testOptions() Options {
	return Options{
		Apps:   appdb.Builtin(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

const ifElse = `context X {
    100 => {
        if ("$[1=1]") {
            NoOp(yes);
        } else {
            NoOp(no);
        }
    }
}
`

func TestLoadSource(t *testing.T) {
	store := dialplan.New(10)
	opts := testOptions()
	opts.Metrics = metrics.New(store)

	r, err := LoadSource("x.ael", ifElse, store, opts)
	if err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	if r.Result != metrics.ResultLoaded || r.Steps != 5 {
		t.Errorf("result = %s with %d steps", r.Result, r.Steps)
	}
	if r.Diags.Errors() != 0 || r.Diags.Warnings() != 0 {
		t.Errorf("diagnostics: %s", r.Diags.Summary())
	}
	e := store.Plan().Context("X").Extension("100", "")
	if e == nil || len(e.Priorities) != 5 {
		t.Fatalf("extension not loaded: %+v", e)
	}
	if n := testutil.CollectAndCount(opts.Metrics, "aelc_last_load_timestamp_seconds"); n != 1 {
		t.Errorf("last load timestamp exported %d times, want 1", n)
	}
}

func TestSemanticErrorsBlockLoad(t *testing.T) {
	src := `context X {
    s => {
        NoOp(a);
        break;
    }
}`
	store := dialplan.New(10)
	r, err := LoadSource("bad.ael", src, store, testOptions())
	if !errors.Is(err, ErrSemantic) {
		t.Fatalf("err = %v, want ErrSemantic", err)
	}
	if r.Result != metrics.ResultRejected || len(store.Sources()) != 0 {
		t.Errorf("rejected compile loaded something: %s %v", r.Result, store.Sources())
	}

	opts := testOptions()
	opts.Force = true
	if _, err := LoadSource("bad.ael", src, store, opts); err != nil {
		t.Fatalf("forced load: %v", err)
	}
	if e := store.Plan().Context("X").Extension("s", ""); e == nil || len(e.Priorities) != 1 {
		t.Errorf("forced load = %+v", e)
	}
}

func TestParseErrors(t *testing.T) {
	r, err := LoadSource("broken.ael", "context X {\n    s => NoOp(\n", dialplan.New(10), testOptions())
	var perrs ael.ParseErrors
	if !errors.As(err, &perrs) {
		t.Fatalf("err = %v, want ParseErrors", err)
	}
	if r.Result != metrics.ResultFailed || r.Diags.Errors() != len(perrs) {
		t.Errorf("result %s with %d errors for %d parse errors", r.Result, r.Diags.Errors(), len(perrs))
	}
}

func TestReloadAndRollback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ext.ael")
	store := dialplan.New(10)

	write := func(body string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("context X {\n    s => NoOp(v1);\n}\n")
	if _, err := Load(path, store, testOptions()); err != nil {
		t.Fatalf("Load v1: %v", err)
	}
	v1 := store.Fingerprint()

	write("context X {\n    s => NoOp(v2);\n    t => NoOp(new);\n}\n")
	if _, err := Load(path, store, testOptions()); err != nil {
		t.Fatalf("Load v2: %v", err)
	}
	if store.Fingerprint() == v1 {
		t.Fatal("reload did not change the dialplan")
	}
	if got := store.Plan().Context("X").Extension("s", "").Priority(1).Args; got != "v2" {
		t.Errorf("after reload s,1 = %q", got)
	}

	if _, err := store.Rollback(1); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if store.Fingerprint() != v1 {
		t.Errorf("rollback did not restore v1:\n%s", store.Show())
	}

	if _, err := Load(filepath.Join(dir, "missing.ael"), store, testOptions()); err == nil {
		t.Error("loading a missing file should fail")
	}
}

func TestConflictingSources(t *testing.T) {
	store := dialplan.New(10)
	if _, err := LoadSource("a.ael", "context X {\n    s => NoOp(a);\n}\n", store, testOptions()); err != nil {
		t.Fatal(err)
	}
	r, err := LoadSource("b.ael", "context X {\n    s => NoOp(b);\n    t => NoOp(b);\n}\n", store, testOptions())
	if err != nil {
		t.Fatalf("LoadSource b: %v", err)
	}
	if r.Steps != 1 || r.Diags.Warnings() != 1 {
		t.Errorf("steps %d warnings %d, want 1 and 1", r.Steps, r.Diags.Warnings())
	}
	if w := r.Diags.Filter(diag.Warning)[0].Msg; !strings.Contains(w, "already loaded by a.ael") {
		t.Errorf("warning = %q", w)
	}
}

func TestCompileWithoutLoading(t *testing.T) {
	r, err := CheckSource("x.ael", ifElse, testOptions())
	if err != nil {
		t.Fatalf("CheckSource: %v", err)
	}
	if r.Forest.StepCount() != 5 || r.Steps != 0 {
		t.Errorf("forest steps %d, emitted %d", r.Forest.StepCount(), r.Steps)
	}
}
