package dialplan

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zeebo/xxh3"
)

// Store is the shared in-memory dialplan. Content is grouped by source
// (normally the script file it was compiled from) so a reload replaces
// exactly what that source loaded before.
type Store struct {
	mu      sync.RWMutex
	sources map[string]*Plan
	loaded  map[string]time.Time
	history *History
}

// New creates an empty store remembering up to maxHistory replaced
// source contents.
func New(maxHistory int) *Store {
	if maxHistory < 1 {
		maxHistory = 1
	}
	return &Store{
		sources: make(map[string]*Plan),
		loaded:  make(map[string]time.Time),
		history: NewHistory(maxHistory),
	}
}

// Fingerprint hashes the rendered plan.
func Fingerprint(p *Plan) uint64 {
	return xxh3.HashString(p.Format())
}

// stage collects one source's new content and refuses steps another
// source already owns.
type stage struct {
	*Plan
	others map[string]*Plan
}

func (st *stage) AddExtension(context, exten, cid string, priority int, label, app, args string) error {
	for name, o := range st.others {
		c := o.Context(context)
		if c == nil {
			continue
		}
		if e := c.Extension(exten, cid); e != nil && e.Priority(priority) != nil {
			return fmt.Errorf("%w: %s,%s,%d already loaded by %s",
				ErrDuplicatePriority, context, exten, priority, name)
		}
	}
	return st.Plan.AddExtension(context, exten, cid, priority, label, app, args)
}

// Replace stages fn's insertions as the new content of source and swaps
// them in when fn returns nil. The write lock is held throughout, so
// readers see either the old or the new content.
func (s *Store) Replace(source string, fn func(Registrar) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &stage{Plan: NewPlan(), others: make(map[string]*Plan)}
	for name, p := range s.sources {
		if name != source {
			st.others[name] = p
		}
	}
	if err := fn(st); err != nil {
		return fmt.Errorf("load %s: %w", source, err)
	}

	s.push(source, "replaced")
	s.sources[source] = st.Plan
	s.loaded[source] = time.Now()
	return nil
}

// push records the current content of source in the history.
func (s *Store) push(source, comment string) {
	old, ok := s.sources[source]
	entry := &HistoryEntry{Source: source, Timestamp: time.Now(), Comment: comment}
	if ok {
		entry.Plan = old
		entry.Fingerprint = Fingerprint(old)
	} else {
		entry.Comment = "first load"
	}
	s.history.Push(entry)
}

// Remove unloads a source. It reports whether the source was loaded.
func (s *Store) Remove(source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[source]; !ok {
		return false
	}
	s.push(source, "removed")
	delete(s.sources, source)
	delete(s.loaded, source)
	return true
}

// Rollback restores the content recorded by the nth most recent history
// entry (1 = most recent). The content it replaces becomes a new history
// entry, so a rollback can itself be rolled back.
func (s *Store) Rollback(n int) (*HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.history.Get(n - 1)
	if err != nil {
		return nil, err
	}
	s.history.remove(n - 1)
	s.push(entry.Source, fmt.Sprintf("rollback %d", n))
	if entry.Plan == nil {
		delete(s.sources, entry.Source)
		delete(s.loaded, entry.Source)
	} else {
		s.sources[entry.Source] = entry.Plan
		s.loaded[entry.Source] = time.Now()
	}
	return entry, nil
}

// History lists the replaced contents, most recent first.
func (s *Store) History() []*HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.List()
}

// Sources returns the loaded source names, sorted.
func (s *Store) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedSources()
}

func (s *Store) sortedSources() []string {
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Loaded returns when source was last loaded.
func (s *Store) Loaded(source string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.loaded[source]
	return t, ok
}

// Source returns a copy of one source's content, or nil.
func (s *Store) Source(name string) *Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.sources[name]; ok {
		return p.Clone()
	}
	return nil
}

// Plan returns a merged copy of every loaded source.
func (s *Store) Plan() *Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := NewPlan()
	for _, name := range s.sortedSources() {
		out.merge(s.sources[name])
	}
	return out
}

// Fingerprint hashes the merged dialplan.
func (s *Store) Fingerprint() uint64 {
	return Fingerprint(s.Plan())
}

// Show renders the merged dialplan.
func (s *Store) Show() string {
	return s.Plan().Format()
}
