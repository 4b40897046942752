package compiler

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/psaab/aelc/pkg/dialplan"
	"github.com/psaab/aelc/pkg/metrics"
)

// Scripts is the set of script files a daemon keeps loaded in a store.
// Reload compiles them concurrently and loads them in configuration order,
// so steps a later script duplicates lose to the earlier one.
type Scripts struct {
	store *dialplan.Store
	opts  Options

	mu    sync.Mutex
	paths []string
	runs  map[string]*Run

	// OnReload, when set, is told whether every script loaded cleanly.
	OnReload func(ok bool)
}

// NewScripts creates a script set loading into store.
func NewScripts(store *dialplan.Store, opts Options, paths ...string) *Scripts {
	return &Scripts{
		store: store,
		opts:  opts,
		paths: slices.Clone(paths),
		runs:  make(map[string]*Run),
	}
}

// Paths returns the configured script files in load order.
func (s *Scripts) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.paths)
}

// Reload recompiles and reloads every script. A script that fails keeps
// its previous content; the others load regardless.
func (s *Scripts) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs := make([]*Run, len(s.paths))
	errs := make([]error, len(s.paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range s.paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			runs[i], errs[i] = CompileFile(path, s.opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, r := range runs {
		if errs[i] != nil {
			r.finish(metrics.ResultFailed)
		} else {
			errs[i] = r.Load(s.store)
		}
		s.runs[r.File] = r
	}

	err := errors.Join(errs...)
	if s.OnReload != nil {
		s.OnReload(err == nil)
	}
	return err
}

// Load compiles and loads one script, adding it to the set when it is
// not already part of it.
func (s *Scripts) Load(path string, force bool) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts := s.opts
	opts.Force = force
	r, err := Load(path, s.store, opts)
	s.runs[path] = r
	if err == nil && !slices.Contains(s.paths, path) {
		s.paths = append(s.paths, path)
	}
	return r, err
}

// Unload removes a script's content and drops it from the set.
func (s *Scripts) Unload(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.paths = slices.DeleteFunc(s.paths, func(p string) bool { return p == path })
	delete(s.runs, path)
	return s.store.Remove(path)
}

// LastRuns returns the most recent run of each script in load order,
// followed by failed one-off loads of files outside the set.
func (s *Scripts) LastRuns() []*Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Run
	for _, p := range s.paths {
		if r, ok := s.runs[p]; ok {
			out = append(out, r)
		}
	}
	var extra []string
	for p := range s.runs {
		if !slices.Contains(s.paths, p) {
			extra = append(extra, p)
		}
	}
	slices.Sort(extra)
	for _, p := range extra {
		out = append(out, s.runs[p])
	}
	return out
}
