// Package resolve locates the label a goto refers to, following the scoping
// rules of the dialplan language: one-part gotos stay in the current
// extension or macro, two- and three-part gotos search a context and then
// every context it includes.
package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/psaab/aelc/pkg/ael"
)

var (
	// ErrDynamic is returned for targets built from variable references,
	// which can only be resolved at run time.
	ErrDynamic = errors.New("target contains a variable reference")
	// ErrNotFound is returned when no matching label exists.
	ErrNotFound = errors.New("label not found")
	// ErrUnknownContext is returned for a three-part goto naming a context
	// that is not declared in the tree.
	ErrUnknownContext = errors.New("context not found")
)

// Target is the resolved destination of a goto.
type Target struct {
	// Node is the label, or the first statement of the extension for the
	// reserved label "1".
	Node ael.Node
	// Holder is the *ael.Extension, *ael.Catch or *ael.Macro whose body
	// contains Node.
	Holder ael.Node
	// Scope is the *ael.Context or *ael.Macro holding the target.
	Scope ael.Node
}

// Label returns the target label, or nil when the target is an unlabelled
// first statement.
func (t Target) Label() *ael.Label {
	l, _ := t.Node.(*ael.Label)
	return l
}

// Resolver indexes a tree by context and macro name.
type Resolver struct {
	tree     *ael.Tree
	contexts map[string][]*ael.Context
	macros   map[string]*ael.Macro
}

// New indexes tree. Contexts declared more than once (extend) are searched
// in declaration order; for macros the first declaration wins.
func New(tree *ael.Tree) *Resolver {
	r := &Resolver{
		tree:     tree,
		contexts: make(map[string][]*ael.Context),
		macros:   make(map[string]*ael.Macro),
	}
	for _, item := range tree.Items {
		switch v := item.(type) {
		case *ael.Context:
			r.contexts[v.Name] = append(r.contexts[v.Name], v)
		case *ael.Macro:
			if _, ok := r.macros[v.Name]; !ok {
				r.macros[v.Name] = v
			}
		}
	}
	return r
}

// Tree returns the indexed tree.
func (r *Resolver) Tree() *ael.Tree { return r.tree }

// Context returns the first declaration of the named context.
func (r *Resolver) Context(name string) *ael.Context {
	if cs := r.contexts[name]; len(cs) > 0 {
		return cs[0]
	}
	return nil
}

// Macro returns the named macro.
func (r *Resolver) Macro(name string) *ael.Macro {
	return r.macros[name]
}

// ContextNames returns all declared context names.
func (r *Resolver) ContextNames() []string {
	names := make([]string, 0, len(r.contexts))
	for n := range r.contexts {
		names = append(names, n)
	}
	return names
}

// Dynamic reports whether a goto target depends on run-time variables.
func Dynamic(g *ael.Goto) bool {
	for _, part := range g.Target {
		if strings.Contains(part, "${") {
			return true
		}
	}
	return false
}

// Resolve finds the label g refers to.
func (r *Resolver) Resolve(g *ael.Goto) (Target, error) {
	if Dynamic(g) {
		return Target{}, ErrDynamic
	}
	switch len(g.Target) {
	case 1:
		scope := r.tree.Scope(g)
		if scope == nil {
			return Target{}, fmt.Errorf("goto %s: %w", g.Target[0], ErrNotFound)
		}
		if t, ok := findInHolder(scope, g.Target[0]); ok {
			t.Scope = r.tree.Container(g)
			return t, nil
		}
		return Target{}, fmt.Errorf("goto %s: %w", g.Target[0], ErrNotFound)
	case 2:
		scope := r.tree.Container(g)
		if t, ok := r.findInScope(scope, g.Target[0], g.Target[1], map[string]bool{}); ok {
			return t, nil
		}
		return Target{}, fmt.Errorf("goto %s: %w", strings.Join(g.Target, ","), ErrNotFound)
	case 3:
		cs := r.contexts[g.Target[0]]
		if len(cs) == 0 {
			if m := r.macros[g.Target[0]]; m != nil {
				if t, ok := r.findInScope(m, g.Target[1], g.Target[2], map[string]bool{}); ok {
					return t, nil
				}
			}
			return Target{}, fmt.Errorf("goto %s: %w", strings.Join(g.Target, ","), ErrUnknownContext)
		}
		if t, ok := r.findInScope(cs[0], g.Target[1], g.Target[2], map[string]bool{}); ok {
			return t, nil
		}
		return Target{}, fmt.Errorf("goto %s: %w", strings.Join(g.Target, ","), ErrNotFound)
	}
	return Target{}, fmt.Errorf("goto with %d parts: %w", len(g.Target), ErrNotFound)
}

// findInScope searches every extension of a context (all declarations of
// its name) or every catch of a macro, then the included contexts.
func (r *Resolver) findInScope(scope ael.Node, exten, label string, visited map[string]bool) (Target, bool) {
	switch s := scope.(type) {
	case *ael.Macro:
		for _, h := range Holders(s) {
			if holderMatches(h, exten) {
				if t, ok := findInHolder(h, label); ok {
					t.Scope = s
					return t, true
				}
			}
		}
		return Target{}, false
	case *ael.Context:
		if visited[s.Name] {
			return Target{}, false
		}
		visited[s.Name] = true
		decls := r.contexts[s.Name]
		if len(decls) == 0 {
			decls = []*ael.Context{s}
		}
		for _, ctx := range decls {
			for _, h := range Holders(ctx) {
				if holderMatches(h, exten) {
					if t, ok := findInHolder(h, label); ok {
						t.Scope = ctx
						return t, true
					}
				}
			}
		}
		for _, ctx := range decls {
			for _, inc := range Included(ctx) {
				next := r.Context(inc)
				if next == nil {
					continue
				}
				if t, ok := r.findInScope(next, exten, label, visited); ok {
					return t, true
				}
			}
		}
	}
	return Target{}, false
}

func holderMatches(h ael.Node, exten string) bool {
	switch v := h.(type) {
	case *ael.Extension:
		return ExtensionMatches(exten, v.Name) || ExtensionMatches(exten, baseName(v.Name))
	case *ael.Catch:
		return v.Exten == exten
	}
	return false
}

// baseName strips a caller-id suffix (100/5551212 -> 100).
func baseName(name string) string {
	if i := strings.IndexByte(name, '/'); i > 0 {
		return name[:i]
	}
	return name
}

// Holders returns the extensions and catch blocks a two-part goto can name.
func Holders(scope ael.Node) []ael.Node {
	var out []ael.Node
	switch s := scope.(type) {
	case *ael.Context:
		for _, item := range s.Items {
			switch item.(type) {
			case *ael.Extension, *ael.Catch:
				out = append(out, item)
			}
		}
	case *ael.Macro:
		ael.Walk(s, func(n ael.Node) bool {
			if _, ok := n.(*ael.Catch); ok {
				out = append(out, n)
				return false
			}
			return true
		})
	}
	return out
}

// Included returns the names of the contexts included by ctx.
func Included(ctx *ael.Context) []string {
	var out []string
	for _, item := range ctx.Items {
		if inc, ok := item.(*ael.Includes); ok {
			for _, e := range inc.Entries {
				out = append(out, e.Context)
			}
		}
	}
	return out
}

// findInHolder does a depth-first search of holder for label. The reserved
// label "1" names the first statement that is not a label.
func findInHolder(holder ael.Node, label string) (Target, bool) {
	if label == "1" {
		if first := firstStatement(holder); first != nil {
			return Target{Node: first, Holder: holder}, true
		}
	}
	var found *ael.Label
	ael.Walk(holder, func(n ael.Node) bool {
		if found != nil {
			return false
		}
		if l, ok := n.(*ael.Label); ok && l.Name == label {
			found = l
			return false
		}
		return true
	})
	if found == nil {
		return Target{}, false
	}
	return Target{Node: found, Holder: holder}, true
}

func firstStatement(holder ael.Node) ael.Node {
	var body []ael.Node
	switch v := holder.(type) {
	case *ael.Extension:
		body = v.Body
	case *ael.Macro:
		body = v.Body
	case *ael.Catch:
		body = v.Body
	default:
		return nil
	}
	for _, n := range body {
		if _, ok := n.(*ael.Label); !ok {
			return n
		}
	}
	return nil
}

// Labels returns every label declared in scope, depth first.
func Labels(scope ael.Node) []*ael.Label {
	var out []*ael.Label
	ael.Walk(scope, func(n ael.Node) bool {
		if l, ok := n.(*ael.Label); ok {
			out = append(out, l)
		}
		return true
	})
	return out
}
