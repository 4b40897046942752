package check

import (
	"errors"
	"strconv"
	"strings"

	"github.com/psaab/aelc/pkg/ael"
	"github.com/psaab/aelc/pkg/diag"
	"github.com/psaab/aelc/pkg/resolve"
)

// checkLabelScope reports labels declared more than once among the labels
// reachable from scope: its own (every declaration of a context name) plus
// those of the contexts it includes directly. Each conflicting pair is
// reported once per run, at the later declaration.
func (c *checker) checkLabelScope(scope ael.Node) {
	var own []*ael.Label
	var reachable []*ael.Label

	switch s := scope.(type) {
	case *ael.Macro:
		own = resolve.Labels(s)
		reachable = own
	case *ael.Context:
		decls := []*ael.Context{s}
		if first := c.res.Context(s.Name); first != nil && first != s {
			// Extended context: the first declaration already covered it.
			return
		}
		for _, item := range c.tree.Contexts() {
			if item != s && item.Name == s.Name {
				decls = append(decls, item)
			}
		}
		for _, d := range decls {
			own = append(own, resolve.Labels(d)...)
		}
		reachable = append(reachable, own...)
		for _, d := range decls {
			for _, name := range resolve.Included(d) {
				if name == s.Name {
					continue
				}
				for _, inc := range c.tree.Contexts() {
					if inc.Name == name {
						reachable = append(reachable, resolve.Labels(inc)...)
					}
				}
			}
		}
	default:
		return
	}

	isOwn := make(map[*ael.Label]bool, len(own))
	for _, l := range own {
		isOwn[l] = true
	}
	byName := make(map[string][]*ael.Label)
	var order []string
	for _, l := range reachable {
		if _, ok := byName[l.Name]; !ok {
			order = append(order, l.Name)
		}
		byName[l.Name] = append(byName[l.Name], l)
	}
	for _, name := range order {
		labels := byName[name]
		first := labels[0]
		for _, dup := range labels[1:] {
			if dup == first || (!isOwn[first] && !isOwn[dup]) {
				continue
			}
			if c.reported[[2]*ael.Label{first, dup}] {
				continue
			}
			c.reported[[2]*ael.Label{first, dup}] = true
			c.reported[[2]*ael.Label{dup, first}] = true
			related := first.Pos
			c.diags.Add(diag.Diagnostic{
				Severity: diag.Error,
				Pos:      dup.Pos,
				Msg:      "duplicate label " + name,
				Related:  &related,
			})
		}
	}
}

func (c *checker) checkLabel(l *ael.Label) {
	if _, err := strconv.Atoi(l.Name); err == nil {
		c.diags.Warnf(l.Pos, "label %s is numeric and may be confused with a step number", l.Name)
	}
	switch c.tree.Scope(l).(type) {
	case *ael.Extension, *ael.Macro:
	default:
		c.diags.Errorf(l.Pos, "label %s is not inside an extension or macro", l.Name)
	}
}

func (c *checker) checkGoto(g *ael.Goto) {
	for _, part := range g.Target {
		if strings.TrimSpace(part) == "" {
			c.diags.Errorf(g.Pos, "goto %s has an empty target part", strings.Join(g.Target, ","))
			return
		}
	}
	target := strings.Join(g.Target, ",")

	t, err := c.res.Resolve(g)
	switch {
	case err == nil:
		if m, ok := c.tree.Container(g).(*ael.Macro); ok && t.Scope != m {
			c.diags.Warnf(g.Pos, "goto %s jumps out of macro %s; use return instead", target, m.Name)
		}
		return
	case errors.Is(err, resolve.ErrDynamic):
		return
	}

	if len(g.Target) == 3 {
		c.diags.Warnf(g.Pos, "goto %s: target not found in this file; it must be loaded from elsewhere", target)
		return
	}

	var scope ael.Node
	if len(g.Target) == 1 {
		scope = c.tree.Scope(g)
	} else {
		scope = c.tree.Container(g)
	}
	var names []string
	for _, l := range resolve.Labels(scope) {
		names = append(names, l.Name)
	}
	label := g.Target[len(g.Target)-1]
	if len(g.Target) == 1 {
		c.diags.Errorf(g.Pos, "goto %s: no such label in the current extension%s", target, diag.DidYouMean(label, names))
	} else {
		c.diags.Errorf(g.Pos, "goto %s: no such extension and label in the current context or its includes%s",
			target, diag.DidYouMean(label, names))
	}
}
