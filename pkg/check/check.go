// Package check is the semantic pass over a parsed script. It reports
// errors, warnings and notes through a diag.Collector and never stops early.
// It repairs two things in place: macros without a trailing return get one,
// and MacroExit calls become return statements.
package check

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/psaab/aelc/pkg/ael"
	"github.com/psaab/aelc/pkg/appdb"
	"github.com/psaab/aelc/pkg/diag"
	"github.com/psaab/aelc/pkg/resolve"
)

// Options tune the checker.
type Options struct {
	// Apps enables argument checks, unknown-application notes and switch
	// exhaustiveness. Nil disables them.
	Apps *appdb.DB
}

// flowControlApps are applications that duplicate language constructs and
// confuse the compiled step numbering when called directly.
var flowControlApps = map[string]bool{
	"goto":          true,
	"gotoif":        true,
	"gotoiftime":    true,
	"gosub":         true,
	"gosubif":       true,
	"macro":         true,
	"macroif":       true,
	"while":         true,
	"endwhile":      true,
	"exitwhile":     true,
	"continuewhile": true,
	"random":        true,
	"execiftime":    true,
}

type checker struct {
	tree  *ael.Tree
	res   *resolve.Resolver
	apps  *appdb.DB
	diags *diag.Collector

	// reported holds duplicate-label pairs already reported, both orders.
	reported map[[2]*ael.Label]bool
	// includedNames are the context names referenced by any includes block.
	includedNames map[string]bool
}

// Check runs every semantic check over tree.
func Check(tree *ael.Tree, diags *diag.Collector, opts Options) {
	c := &checker{
		tree:          tree,
		res:           resolve.New(tree),
		apps:          opts.Apps,
		diags:         diags,
		reported:      make(map[[2]*ael.Label]bool),
		includedNames: make(map[string]bool),
	}
	c.run()
	slog.Debug("semantic check finished", "file", tree.File,
		"errors", diags.Errors(), "warnings", diags.Warnings(), "notes", diags.Notes())
}

func (c *checker) run() {
	c.checkNames()

	for _, item := range c.tree.Items {
		switch v := item.(type) {
		case *ael.Context:
			c.checkContext(v)
		case *ael.Macro:
			c.checkMacro(v)
		}
	}

	for _, ctx := range c.tree.Contexts() {
		if ctx.Abstract && !c.includedNames[ctx.Name] {
			c.diags.Warnf(ctx.Pos, "abstract context %s is never included by another context", ctx.Name)
		}
	}
}

// checkNames reports contexts and macros declared twice and collects the
// names referenced by includes.
func (c *checker) checkNames() {
	seen := make(map[string]ael.Node)
	for _, item := range c.tree.Items {
		var name string
		extend := false
		switch v := item.(type) {
		case *ael.Context:
			name, extend = v.Name, v.Extend
			for _, inc := range resolve.Included(v) {
				c.includedNames[inc] = true
			}
		case *ael.Macro:
			name = v.Name
		default:
			continue
		}
		first, dup := seen[name]
		if !dup {
			seen[name] = item
			continue
		}
		if fc, ok := first.(*ael.Context); ok && (fc.Extend || extend) {
			if _, isCtx := item.(*ael.Context); isCtx {
				continue
			}
		}
		related := first.Position()
		c.diags.Add(diag.Diagnostic{
			Severity: diag.Warning,
			Pos:      item.Position(),
			Msg:      "the name " + name + " is already used by another " + ael.Kind(first),
			Related:  &related,
		})
	}
}

func (c *checker) checkContext(ctx *ael.Context) {
	c.checkLabelScope(ctx)

	extens := make(map[string]*ael.Extension)
	for _, item := range ctx.Items {
		switch v := item.(type) {
		case *ael.Extension:
			if first, ok := extens[v.Name]; ok {
				related := first.Pos
				c.diags.Add(diag.Diagnostic{
					Severity: diag.Warning,
					Pos:      v.Pos,
					Msg:      "extension " + v.Name + " is defined more than once in context " + ctx.Name,
					Related:  &related,
				})
			} else {
				extens[v.Name] = v
			}
			c.checkStatements(v.Body, ctx.Abstract)
		case *ael.Includes:
			c.checkIncludes(v)
		case *ael.Label:
			c.diags.Errorf(v.Pos, "label %s is not inside an extension or macro", v.Name)
		default:
			c.checkStatement(item, ctx.Abstract)
		}
	}
}

func (c *checker) checkMacro(m *ael.Macro) {
	c.checkLabelScope(m)
	c.checkStatements(m.Body, false)

	end := m.Pos
	end.Line = m.Pos.EndLine
	switch {
	case len(m.Body) == 0:
		c.diags.Warnf(m.Pos, "macro %s has an empty body; a return is added", m.Name)
		c.tree.Append(m, &ael.Return{Pos: end})
	default:
		if _, ok := m.Body[len(m.Body)-1].(*ael.Return); !ok {
			c.diags.Warnf(m.Pos, "macro %s does not end with a return; one is added", m.Name)
			c.tree.Append(m, &ael.Return{Pos: end})
		}
	}
}

func (c *checker) checkIncludes(inc *ael.Includes) {
	for _, e := range inc.Entries {
		if e.Context != "parkedcalls" && c.res.Context(e.Context) == nil {
			c.diags.Warnf(e.Pos, "included context %s does not exist in this file%s",
				e.Context, diag.DidYouMean(e.Context, c.res.ContextNames()))
		}
		if e.Time != nil {
			c.checkTime(e.Pos, *e.Time)
		}
	}
}

func (c *checker) checkStatements(list []ael.Node, abstract bool) {
	for _, n := range list {
		c.checkStatement(n, abstract)
	}
}

func (c *checker) checkStatement(n ael.Node, abstract bool) {
	switch v := n.(type) {
	case *ael.Block:
		c.checkStatements(v.Body, abstract)
	case *ael.Catch:
		c.checkStatements(v.Body, abstract)
	case *ael.VarDecl:
		c.checkExpr(v.Pos, v.Value)
	case *ael.LocalVarDecl:
		c.checkExpr(v.Pos, v.Value)
	case *ael.Goto:
		if !abstract {
			c.checkGoto(v)
		}
	case *ael.Label:
		c.checkLabel(v)
	case *ael.For:
		c.checkExpr(v.Pos, v.Test)
		c.checkExpr(v.Pos, v.Inc)
		c.checkStatements(v.Body, abstract)
	case *ael.While:
		c.checkExpr(v.Pos, v.Cond)
		c.checkStatements(v.Body, abstract)
	case *ael.Break:
		c.checkBreak(v, false)
	case *ael.Continue:
		c.checkBreak(v, true)
	case *ael.Random:
		c.checkExpr(v.Pos, v.Percent)
		c.checkStatements(v.Then, abstract)
		c.checkStatements(v.Else, abstract)
	case *ael.If:
		c.checkExpr(v.Pos, v.Cond)
		c.checkStatements(v.Then, abstract)
		c.checkStatements(v.Else, abstract)
	case *ael.IfTime:
		c.checkTime(v.Pos, v.Time)
		c.checkStatements(v.Then, abstract)
		c.checkStatements(v.Else, abstract)
	case *ael.Switch:
		c.checkSwitch(v)
		for _, arm := range v.Arms {
			c.checkStatements(ael.Children(arm), abstract)
		}
	case *ael.MacroCall:
		c.checkMacroCall(v)
	case *ael.AppCall:
		c.checkApp(v)
	}
}

// checkExpr warns about expressions already wrapped in $[ ]; the generator
// wraps them itself.
func (c *checker) checkExpr(pos ael.Pos, expr string) {
	if strings.HasPrefix(strings.TrimSpace(expr), "$[") {
		c.diags.Warnf(pos, "expression %q is already wrapped in $[ ]; the wrapper is added automatically", expr)
	}
}

func (c *checker) checkBreak(n ael.Node, isContinue bool) {
outer:
	for p := c.tree.Parent(n); p != nil; p = c.tree.Parent(p) {
		switch p.(type) {
		case *ael.For, *ael.While:
			return
		case *ael.Case, *ael.Pattern, *ael.Default:
			if !isContinue {
				return
			}
		case *ael.Extension, *ael.Macro, *ael.Context, *ael.Catch:
			break outer
		}
	}
	if isContinue {
		c.diags.Errorf(n.Position(), "continue is only allowed inside a for or while loop")
	} else {
		c.diags.Errorf(n.Position(), "break is only allowed inside a loop or a switch case")
	}
}

func (c *checker) checkMacroCall(call *ael.MacroCall) {
	m := c.res.Macro(call.Name)
	if m == nil {
		if c.res.Context(call.Name) != nil {
			c.diags.Errorf(call.Pos, "%s is a context, not a macro", call.Name)
			return
		}
		names := make([]string, 0, len(c.tree.Macros()))
		for _, mm := range c.tree.Macros() {
			names = append(names, mm.Name)
		}
		c.diags.Warnf(call.Pos, "macro %s is not defined in this file%s", call.Name, diag.DidYouMean(call.Name, names))
		return
	}
	if len(call.Args) != len(m.Params) {
		related := m.Pos
		c.diags.Add(diag.Diagnostic{
			Severity: diag.Error,
			Pos:      call.Pos,
			Msg:      fmt.Sprintf("macro %s takes %d arguments, called with %d", call.Name, len(m.Params), len(call.Args)),
			Related:  &related,
		})
	}
}

func (c *checker) checkApp(call *ael.AppCall) {
	if c.res.Macro(call.App) != nil {
		c.diags.Errorf(call.Pos, "application call %s names a macro; call it as &%s(...)", call.App, call.App)
		return
	}
	name := strings.ToLower(call.App)
	if name == "macroexit" {
		c.diags.Warnf(call.Pos, "MacroExit is converted to a return")
		c.tree.Replace(call, &ael.Return{Pos: call.Pos})
		return
	}
	if flowControlApps[name] {
		c.diags.Warnf(call.Pos, "application %s does flow control; use the language's control statements instead", call.App)
	}
	if c.apps == nil {
		return
	}
	app, ok := c.apps.Lookup(call.App)
	if !ok {
		c.diags.Notef(call.Pos, "application %s is not in the application database", call.App)
		return
	}
	for _, p := range app.CheckArgs(call.Args) {
		c.diags.Warnf(call.Pos, "%s", p)
	}
}
