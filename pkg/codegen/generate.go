package codegen

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/psaab/aelc/pkg/ael"
	"github.com/psaab/aelc/pkg/diag"
	"github.com/psaab/aelc/pkg/resolve"
)

// ErrUnitTooLarge is reported when one unit exceeds Options.MaxSteps. The
// unit is dropped from the forest.
var ErrUnitTooLarge = errors.New("compiled unit exceeds the step limit")

// DefaultMaxSteps bounds the steps generated for one unit.
const DefaultMaxSteps = 100000

// Options tune the generator.
type Options struct {
	// MaxSteps bounds the steps of one unit; 0 means DefaultMaxSteps.
	MaxSteps int
}

// abortUnit unwinds generation of the current unit.
type abortUnit struct{ err error }

type generator struct {
	tree  *ael.Tree
	res   *resolve.Resolver
	diags *diag.Collector
	max   int

	// count numbers control statements; it restarts with every run.
	count int

	forest  *Forest
	unit    *Unit
	pending []*Patch
	steps   int
}

// Generate compiles tree. The tree should have passed check.Check; the
// generator itself never fails except for the per-unit step limit.
func Generate(tree *ael.Tree, diags *diag.Collector, opts Options) *Forest {
	g := &generator{
		tree:  tree,
		res:   resolve.New(tree),
		diags: diags,
		max:   opts.MaxSteps,
		forest: &Forest{
			Homes: make(map[*ael.Label]*Extension),
		},
	}
	if g.max <= 0 {
		g.max = DefaultMaxSteps
	}

	for _, item := range tree.Items {
		switch v := item.(type) {
		case *ael.Globals:
			for _, d := range v.Vars {
				g.forest.Globals = append(g.forest.Globals, Global{Name: d.Name, Value: d.Value})
			}
		case *ael.Context:
			g.genContext(v)
		case *ael.Macro:
			g.genUnit(v, func() *Extension { return g.genMacro(v) })
		}
	}

	slog.Debug("code generated", "file", tree.File,
		"units", len(g.forest.Units), "steps", g.forest.StepCount(), "pending_gotos", len(g.forest.Pending))
	return g.forest
}

func (g *generator) genContext(ctx *ael.Context) {
	decl := &ContextDecl{Name: ctx.Name, Origin: ctx}
	for _, item := range ctx.Items {
		switch v := item.(type) {
		case *ael.Includes:
			for _, e := range v.Entries {
				if e.Time != nil {
					decl.Includes = append(decl.Includes, e.Context+","+e.Time.String())
				} else {
					decl.Includes = append(decl.Includes, e.Context)
				}
			}
		case *ael.IgnorePat:
			decl.IgnorePats = append(decl.IgnorePats, v.Pattern)
		case *ael.Switches:
			for _, w := range v.Names {
				name, data, _ := strings.Cut(w.Value, "/")
				decl.Switches = append(decl.Switches, Switch{Name: name, Data: data, Eval: v.Eval})
			}
		case *ael.Extension:
			ext := v
			g.genUnit(ext, func() *Extension { return g.genExtension(ctx.Name, ext) })
		}
	}
	g.forest.Contexts = append(g.forest.Contexts, decl)
}

// genUnit runs build as one unit and keeps its output only when it stays
// within the step limit.
func (g *generator) genUnit(origin ael.Node, build func() *Extension) {
	g.unit = &Unit{Origin: origin}
	g.pending = nil
	g.steps = 0
	homes := make(map[*ael.Label]*Extension)
	saved := g.forest.Homes
	g.forest.Homes = homes

	ok := func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				a, isAbort := r.(abortUnit)
				if !isAbort {
					panic(r)
				}
				g.diags.Errorf(origin.Position(), "%s: %v", unitName(origin), a.err)
				ok = false
			}
		}()
		g.unit.Root = build()
		return true
	}()

	g.forest.Homes = saved
	if !ok {
		return
	}
	for l, e := range homes {
		g.forest.Homes[l] = e
	}
	g.forest.Units = append(g.forest.Units, g.unit)
	g.forest.Pending = append(g.forest.Pending, g.pending...)
}

func unitName(n ael.Node) string {
	switch v := n.(type) {
	case *ael.Extension:
		return "extension " + v.Name
	case *ael.Macro:
		return "macro " + v.Name
	}
	return ael.Kind(n)
}

func (g *generator) newExtension(context, name string, origin ael.Node) *Extension {
	ext := &Extension{Context: context, Name: name, Origin: origin}
	g.unit.Extensions = append(g.unit.Extensions, ext)
	return ext
}

func (g *generator) genExtension(context string, src *ael.Extension) *Extension {
	name, cid, _ := strings.Cut(src.Name, "/")
	ext := g.newExtension(context, name, src)
	ext.CID = cid
	ext.Hint = src.Hint
	ext.Regexten = src.Regexten
	g.snapshot(ext, src.Body)
	g.gen(src.Body, ext, ext, ext.Name)
	g.finish(ext)
	return ext
}

func (g *generator) genMacro(m *ael.Macro) *Extension {
	ext := g.newExtension(m.Name, "~~s~~", m)
	g.snapshot(ext, m.Body)
	for i, p := range m.Params {
		g.app(ext, p, "MSet", fmt.Sprintf("LOCAL(%s)=${ARG%d}", p.Value, i+1))
	}
	g.gen(m.Body, ext, ext, m.Name)
	g.finish(ext)
	return ext
}

// snapshot decides once per family whether ${EXTEN} must be captured before
// the first switch arm changes it, and emits the capture.
func (g *generator) snapshot(ext *Extension, body []ael.Node) {
	if ext.CheckedSwitch {
		return
	}
	ext.CheckedSwitch = true
	ext.HasSwitch = containsSwitch(body)
	if !ext.HasSwitch {
		return
	}
	if ext.Name == "~~s~~" {
		g.add(ext, &Step{Kind: StepApp, App: "MSet", Args: "LOCAL(~~EXTEN~~)=${EXTEN}", verbatim: true})
	}
	g.add(ext, &Step{Kind: StepApp, App: "MSet", Args: "~~EXTEN~~=${EXTEN}", verbatim: true})
}

func containsSwitch(body []ael.Node) bool {
	found := false
	for _, n := range body {
		ael.Walk(n, func(x ael.Node) bool {
			if _, ok := x.(*ael.Switch); ok {
				found = true
			}
			return !found
		})
		if found {
			return true
		}
	}
	return false
}

// finish appends the closing markers of an extension.
func (g *generator) finish(ext *Extension) {
	if ext.ReturnNeeded {
		g.app(ext, nil, "NoOp", "End of Extension "+ext.Name)
	}
	if n := len(ext.Steps); n > 0 && ext.Steps[n-1].Kind == StepLabel {
		g.app(ext, nil, "NoOp", "A NoOp to follow a trailing label")
	}
}

// add appends s to ext, rewriting ${EXTEN} references when the family
// snapshots it.
func (g *generator) add(ext *Extension, s *Step) *Step {
	s.Ext = ext
	if ext.HasSwitch && !s.verbatim {
		s.Args = rewriteExten(s.Args)
	}
	ext.Steps = append(ext.Steps, s)
	if s.Real() {
		g.steps++
		if g.steps > g.max {
			panic(abortUnit{fmt.Errorf("%w (%d)", ErrUnitTooLarge, g.max)})
		}
	}
	return s
}

func (g *generator) app(ext *Extension, origin ael.Node, app, args string) *Step {
	return g.add(ext, &Step{Kind: StepApp, App: app, Args: args, Origin: origin})
}

func rewriteExten(s string) string {
	s = strings.ReplaceAll(s, "${EXTEN}", "${~~EXTEN~~}")
	return strings.ReplaceAll(s, "${EXTEN:", "${~~EXTEN~~:")
}

func (g *generator) next() int {
	g.count++
	return g.count
}

// gen generates statements into ext. mother is the nearest extension that
// is not a switch arm; label names control-statement markers.
func (g *generator) gen(stmts []ael.Node, ext, mother *Extension, label string) {
	for _, n := range stmts {
		switch v := n.(type) {
		case *ael.VarDecl:
			g.app(ext, v, "MSet", assign(v.Name, v.Value))
		case *ael.LocalVarDecl:
			g.app(ext, v, "MSet", assign("LOCAL("+strings.TrimSpace(v.Name)+")", v.Value))
		case *ael.Goto:
			g.genGoto(v, ext, mother)
		case *ael.Label:
			g.add(ext, &Step{Kind: StepLabel, Label: v.Name, Origin: v})
			g.forest.Homes[v] = ext
		case *ael.For:
			g.genFor(v, ext, mother, label)
		case *ael.While:
			g.genWhile(v, ext, mother, label)
		case *ael.If:
			test := &Step{Kind: StepIfTest, Args: "$[" + v.Cond + "]", Origin: v}
			g.genBranch(test, "if", v.Then, v.Else, ext, mother, label)
		case *ael.Random:
			test := &Step{Kind: StepRandomTest, Args: "$[${RAND(0,99)} < (" + v.Percent + ")]", Origin: v}
			g.genBranch(test, "random", v.Then, v.Else, ext, mother, label)
		case *ael.IfTime:
			g.genIfTime(v, ext, mother, label)
		case *ael.Switch:
			g.genSwitch(v, ext, mother, label)
		case *ael.MacroCall:
			g.app(ext, v, "Gosub", fmt.Sprintf("%s,~~s~~,1(%s)", v.Name, strings.Join(v.Args, ",")))
		case *ael.AppCall:
			g.app(ext, v, v.App, strings.Join(v.Args, ","))
		case *ael.Break:
			if ext.loopBreak != nil {
				g.add(ext, &Step{Kind: StepJump, True: ext.loopBreak, Origin: v})
			}
		case *ael.Continue:
			if ext.loopContinue != nil {
				g.add(ext, &Step{Kind: StepJump, True: ext.loopContinue, Origin: v})
			}
		case *ael.Return:
			g.add(ext, &Step{Kind: StepReturn, App: "Return", Origin: v})
			ext.ReturnNeeded = true
		case *ael.Block:
			g.gen(v.Body, ext, mother, label)
		case *ael.Catch:
			c := g.newExtension(ext.Context, v.Exten, v)
			c.HasSwitch, c.CheckedSwitch = ext.HasSwitch, ext.CheckedSwitch
			g.gen(v.Body, c, c, c.Name)
			g.finish(c)
		}
	}
}

// assign builds "name=$[value]" with blanks before the '=' removed.
func assign(name, value string) string {
	name = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, name)
	return name + "=$[" + value + "]"
}

func (g *generator) genGoto(v *ael.Goto, ext, mother *Extension) {
	var args string
	switch len(v.Target) {
	case 1:
		if ext.SwitchArm {
			args = mother.Name + "," + v.Target[0]
		} else {
			args = v.Target[0]
		}
	default:
		args = strings.Join(v.Target, ",")
	}
	step := g.app(ext, v, "Goto", args)

	target, err := g.res.Resolve(v)
	if err != nil {
		return
	}
	if l := target.Label(); l != nil && g.insideArm(l) {
		g.pending = append(g.pending, &Patch{Step: step, Goto: v, Label: l})
	}
}

// insideArm reports whether l is nested in a case, pattern or default arm.
func (g *generator) insideArm(l *ael.Label) bool {
	for p := g.tree.Parent(l); p != nil; p = g.tree.Parent(p) {
		switch p.(type) {
		case *ael.Case, *ael.Pattern, *ael.Default:
			return true
		case *ael.Extension, *ael.Macro, *ael.Context:
			return false
		}
	}
	return false
}
