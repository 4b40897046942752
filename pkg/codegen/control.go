package codegen

import (
	"fmt"
	"strings"

	"github.com/psaab/aelc/pkg/ael"
	"github.com/psaab/aelc/pkg/resolve"
)

// genFor lowers
//
//	init; top: if !test goto end; body; inc; goto top; end:
//
// with continue bound to inc (or the test when there is no increment).
func (g *generator) genFor(v *ael.For, ext, mother *Extension, label string) {
	count := g.next()
	if init := forClause(v, v.Init); init != nil {
		g.add(ext, init)
	}
	test := g.add(ext, &Step{Kind: StepLoopTest, Args: "$[" + v.Test + "]", Origin: v})
	end := &Step{Kind: StepApp, App: "NoOp", Args: fmt.Sprintf("Finish for_%s_%d", label, count), Origin: v}
	test.False = end

	inc := forClause(v, v.Inc)
	cont := test
	if inc != nil {
		cont = inc
	}
	g.loop(v.Body, ext, mother, label, end, cont)
	if inc != nil {
		g.add(ext, inc)
	}
	g.add(ext, &Step{Kind: StepJump, True: test, Origin: v})
	g.add(ext, end)
}

func (g *generator) genWhile(v *ael.While, ext, mother *Extension, label string) {
	count := g.next()
	test := g.add(ext, &Step{Kind: StepLoopTest, Args: "$[" + v.Cond + "]", Origin: v})
	end := &Step{Kind: StepApp, App: "NoOp", Args: fmt.Sprintf("Finish while_%s_%d", label, count), Origin: v}
	test.False = end

	g.loop(v.Body, ext, mother, label, end, test)
	g.add(ext, &Step{Kind: StepJump, True: test, Origin: v})
	g.add(ext, end)
}

// loop generates a loop body with break and continue bound.
func (g *generator) loop(body []ael.Node, ext, mother *Extension, label string, brk, cont *Step) {
	savedBreak, savedContinue := ext.loopBreak, ext.loopContinue
	ext.loopBreak, ext.loopContinue = brk, cont
	g.gen(body, ext, mother, label)
	ext.loopBreak, ext.loopContinue = savedBreak, savedContinue
}

// forClause compiles the init or increment clause of a for loop: an
// assignment, a macro call or an application call.
func forClause(origin ael.Node, text string) *Step {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, "&") {
		name, args := splitCall(text[1:])
		return &Step{Kind: StepApp, App: "Gosub", Args: fmt.Sprintf("%s,~~s~~,1(%s)", name, args), Origin: origin}
	}
	eq := strings.IndexByte(text, '=')
	paren := strings.IndexByte(text, '(')
	if eq > 0 && (paren < 0 || eq < paren) {
		return &Step{Kind: StepApp, App: "MSet", Args: assign(text[:eq], strings.TrimSpace(text[eq+1:])), Origin: origin}
	}
	app, args := splitCall(text)
	return &Step{Kind: StepApp, App: app, Args: args, Origin: origin}
}

// splitCall splits "name(args)" into its name and raw argument text.
func splitCall(s string) (string, string) {
	name, rest, ok := strings.Cut(s, "(")
	if !ok {
		return strings.TrimSpace(s), ""
	}
	if i := strings.LastIndexByte(rest, ')'); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSpace(name), strings.TrimSpace(rest)
}

// genBranch lowers if and random:
//
//	test (false -> else or end); then; [goto end; else]; end
func (g *generator) genBranch(test *Step, kind string, then, els []ael.Node, ext, mother *Extension, label string) {
	count := g.next()
	end := &Step{Kind: StepApp, App: "NoOp", Args: fmt.Sprintf("Finish %s_%s_%d", kind, label, count), Origin: test.Origin}
	g.add(ext, test)
	g.gen(then, ext, mother, label)

	test.False = end
	if len(els) > 0 {
		g.add(ext, &Step{Kind: StepJump, True: end, Origin: test.Origin})
		mark := len(ext.Steps)
		g.gen(els, ext, mother, label)
		if first := stepAt(ext, mark); first != nil {
			test.False = first
		}
	}
	g.add(ext, end)
}

// genIfTime lowers
//
//	if-in-window goto then; goto else-or-end; then; [goto end; else]; end
func (g *generator) genIfTime(v *ael.IfTime, ext, mother *Extension, label string) {
	count := g.next()
	end := &Step{Kind: StepApp, App: "NoOp", Args: fmt.Sprintf("Finish iftime_%s_%d", label, count), Origin: v}
	test := g.add(ext, &Step{Kind: StepTimeTest, Args: v.Time.String(), Origin: v})
	miss := g.add(ext, &Step{Kind: StepJump, Origin: v})

	mark := len(ext.Steps)
	g.gen(v.Then, ext, mother, label)
	test.True = stepAt(ext, mark)
	miss.True = end

	if len(v.Else) > 0 {
		g.add(ext, &Step{Kind: StepJump, True: end, Origin: v})
		mark = len(ext.Steps)
		g.gen(v.Else, ext, mother, label)
		if first := stepAt(ext, mark); first != nil {
			miss.True = first
		}
	}
	if test.True == nil {
		test.True = end
	}
	g.add(ext, end)
}

func stepAt(ext *Extension, i int) *Step {
	if i < len(ext.Steps) {
		return ext.Steps[i]
	}
	return nil
}

// genSwitch jumps to a per-arm sibling extension named after the switch
// counter and the arm value. Arms that do not end in a transfer fall
// through to the next arm, or back to the end marker after the last one.
func (g *generator) genSwitch(v *ael.Switch, ext, mother *Extension, label string) {
	count := g.next()
	g.app(ext, v, "Goto", fmt.Sprintf("sw_%d_%s,10", count, v.Expr))
	end := g.app(ext, v, "NoOp", fmt.Sprintf("Finish switch_%s_%d", label, count))

	for i, arm := range v.Arms {
		var name string
		var body []ael.Node
		switch a := arm.(type) {
		case *ael.Case:
			name, body = fmt.Sprintf("sw_%d_%s", count, a.Value), a.Body
		case *ael.Pattern:
			name, body = fmt.Sprintf("_sw_%d_%s", count, a.Value), a.Body
		case *ael.Default:
			name, body = fmt.Sprintf("_sw_%d_.", count), a.Body
		}

		arms := g.spawnArm(ext, name, arm)
		arms.loopBreak, arms.loopContinue = end, ext.loopContinue
		g.gen(body, arms, mother, name)
		if !transfers(body) {
			if i+1 < len(v.Arms) {
				g.app(arms, arm, "Goto", armEntry(count, v.Arms[i+1]))
			} else {
				g.add(arms, &Step{Kind: StepJump, True: end, Origin: arm})
			}
		}
		g.finish(arms)

		if _, ok := arm.(*ael.Default); ok {
			// An empty switch value lands here instead of matching nothing.
			null := g.spawnArm(ext, fmt.Sprintf("sw_%d_", count), arm)
			g.app(null, arm, "Goto", fmt.Sprintf("sw_%d_.,10", count))
		}
	}
}

func (g *generator) spawnArm(ext *Extension, name string, origin ael.Node) *Extension {
	arm := g.newExtension(ext.Context, name, origin)
	arm.SwitchArm = true
	arm.HasSwitch, arm.CheckedSwitch = ext.HasSwitch, true
	return arm
}

// armEntry names the first step of the arm a previous arm falls into.
func armEntry(count int, arm ael.Node) string {
	switch a := arm.(type) {
	case *ael.Case:
		return fmt.Sprintf("sw_%d_%s,10", count, a.Value)
	case *ael.Pattern:
		return fmt.Sprintf("sw_%d_%s,10", count, resolve.MatchToPattern(a.Value))
	default:
		return fmt.Sprintf("sw_%d_.,10", count)
	}
}

// transfers reports whether body ends in an unconditional transfer.
func transfers(body []ael.Node) bool {
	if len(body) == 0 {
		return false
	}
	switch body[len(body)-1].(type) {
	case *ael.Goto, *ael.Break, *ael.Return:
		return true
	}
	return false
}
