// Package compiler drives one compile: parse, check, generate, link and
// load the result into a dialplan store.
package compiler

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/psaab/aelc/pkg/ael"
	"github.com/psaab/aelc/pkg/appdb"
	"github.com/psaab/aelc/pkg/check"
	"github.com/psaab/aelc/pkg/codegen"
	"github.com/psaab/aelc/pkg/diag"
	"github.com/psaab/aelc/pkg/dialplan"
	"github.com/psaab/aelc/pkg/link"
	"github.com/psaab/aelc/pkg/metrics"
)

// ErrSemantic is returned by Load when the checker reported errors and
// Options.Force is not set.
var ErrSemantic = errors.New("semantic errors")

// Options configure a compile.
type Options struct {
	// Apps enables argument and effect checks. Nil disables them.
	Apps *appdb.DB
	// Logger receives diagnostics and progress; nil means slog.Default().
	Logger *slog.Logger
	// MaxSteps bounds one extension or macro; 0 uses the generator default.
	MaxSteps int
	// Force loads even when the checker reported errors.
	Force bool
	// Metrics, when set, observes every finished run.
	Metrics *metrics.Collector
}

// Run is the state of one compile. Nothing in it is shared with other runs.
type Run struct {
	File     string
	Tree     *ael.Tree
	Forest   *codegen.Forest
	Diags    *diag.Collector
	Patched  int
	Steps    int
	Dropped  int
	Result   string
	Duration time.Duration

	opts   Options
	logger *slog.Logger
	start  time.Time
}

func newRun(file string, opts Options) *Run {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Run{
		File:   file,
		Diags:  diag.NewCollector(logger),
		opts:   opts,
		logger: logger,
		start:  time.Now(),
	}
}

// Compile checks tree and generates its numbered forest without loading
// it anywhere.
func Compile(tree *ael.Tree, opts Options) *Run {
	r := newRun(tree.File, opts)
	r.compile(tree)
	return r
}

func (r *Run) compile(tree *ael.Tree) {
	r.Tree = tree
	check.Check(tree, r.Diags, check.Options{Apps: r.opts.Apps})
	r.Forest = codegen.Generate(tree, r.Diags, codegen.Options{MaxSteps: r.opts.MaxSteps})
	link.Number(r.Forest)
	r.Patched = link.Patch(r.Forest)
	r.Dropped = units(tree) - len(r.Forest.Units)
}

// units counts the extensions and macros of a tree.
func units(tree *ael.Tree) int {
	n := len(tree.Macros())
	for _, c := range tree.Contexts() {
		for _, item := range c.Items {
			if _, ok := item.(*ael.Extension); ok {
				n++
			}
		}
	}
	return n
}

// Emit inserts the compiled forest into reg.
func (r *Run) Emit(reg dialplan.Registrar) int {
	r.Steps = link.Emit(r.Forest, reg, r.Diags)
	return r.Steps
}

// CheckSource parses and compiles src without loading it.
func CheckSource(file, src string, opts Options) (*Run, error) {
	r, err := compileSource(file, src, opts)
	if err != nil {
		r.Result = metrics.ResultFailed
		return r, err
	}
	r.Result = metrics.ResultLoaded
	if r.Diags.Errors() > 0 {
		r.Result = metrics.ResultRejected
	}
	r.Duration = time.Since(r.start)
	return r, nil
}

func compileSource(file, src string, opts Options) (*Run, error) {
	r := newRun(file, opts)
	tree, err := ael.Parse(file, src)
	if err != nil {
		r.parseFailed(err)
		return r, fmt.Errorf("parse %s: %w", file, err)
	}
	r.compile(tree)
	return r, nil
}

// CompileFile reads and compiles the file at path without loading it.
// The run is not finished; pass it to Load or discard it.
func CompileFile(path string, opts Options) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		r := newRun(path, opts)
		r.Diags.Errorf(ael.Pos{File: path}, "%v", err)
		return r, fmt.Errorf("read %s: %w", path, err)
	}
	return compileSource(path, string(data), opts)
}

// Load compiles the file at path and replaces its content in store.
func Load(path string, store *dialplan.Store, opts Options) (*Run, error) {
	r, err := CompileFile(path, opts)
	if err != nil {
		r.finish(metrics.ResultFailed)
		return r, err
	}
	return r, r.Load(store)
}

// LoadSource compiles src and replaces the content of source file in
// store. With checker errors nothing is loaded unless opts.Force is set.
func LoadSource(file, src string, store *dialplan.Store, opts Options) (*Run, error) {
	r, err := compileSource(file, src, opts)
	if err != nil {
		r.finish(metrics.ResultFailed)
		return r, err
	}
	return r, r.Load(store)
}

// Load replaces the content of r.File in store with the compiled forest
// and finishes the run.
func (r *Run) Load(store *dialplan.Store) error {
	if r.Diags.Errors() > 0 && !r.opts.Force {
		r.finish(metrics.ResultRejected)
		return fmt.Errorf("%s: %w: %s", r.File, ErrSemantic, r.Diags.Summary())
	}

	err := store.Replace(r.File, func(reg dialplan.Registrar) error {
		r.Emit(reg)
		return nil
	})
	if err != nil {
		r.finish(metrics.ResultFailed)
		return err
	}
	r.finish(metrics.ResultLoaded)
	return nil
}

func (r *Run) parseFailed(err error) {
	var perrs ael.ParseErrors
	if errors.As(err, &perrs) {
		for _, pe := range perrs {
			r.Diags.Errorf(pe.Pos, "%s", pe.Msg)
		}
		return
	}
	r.Diags.Errorf(ael.Pos{File: r.File}, "%v", err)
}

func (r *Run) finish(result string) {
	r.Result = result
	r.Duration = time.Since(r.start)
	r.logger.Info("compile finished",
		"file", r.File,
		"result", result,
		"steps", r.Steps,
		"diagnostics", r.Diags.Summary(),
		"duration", r.Duration)
	if r.opts.Metrics != nil {
		r.opts.Metrics.Observe(metrics.Outcome{
			Result:   result,
			Errors:   r.Diags.Errors(),
			Warnings: r.Diags.Warnings(),
			Notes:    r.Diags.Notes(),
			Steps:    r.Steps,
			Dropped:  r.Dropped,
			Duration: r.Duration,
		})
	}
}
