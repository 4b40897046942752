// Package link numbers generated steps, patches gotos into switch arms and
// feeds the result to the host dialplan.
package link

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/psaab/aelc/pkg/ael"
	"github.com/psaab/aelc/pkg/codegen"
	"github.com/psaab/aelc/pkg/diag"
	"github.com/psaab/aelc/pkg/dialplan"
)

// Number assigns step numbers. Running it again yields the same numbers.
func Number(f *codegen.Forest) {
	for _, e := range f.Extensions() {
		n := e.FirstNumber()
		var markers []*codegen.Step
		for _, s := range e.Steps {
			if !s.Real() {
				markers = append(markers, s)
				continue
			}
			s.Number = n
			for _, m := range markers {
				m.Number = n
			}
			markers = markers[:0]
			n++
		}
		for _, m := range markers {
			m.Number = n
		}
	}
}

// Patch rewrites every pending goto to name the switch-arm extension its
// label ended up in. It returns the number of gotos rewritten.
func Patch(f *codegen.Forest) int {
	n := 0
	for _, p := range f.Pending {
		home := f.Homes[p.Label]
		if home == nil || !home.SwitchArm {
			continue
		}
		t := p.Goto.Target
		switch len(t) {
		case 3:
			p.Step.Args = t[0] + "," + home.Name + "," + t[2]
		default:
			p.Step.Args = home.Name + "," + t[len(t)-1]
		}
		n++
	}
	return n
}

// Render returns the application and arguments a step is emitted as.
// The forest must be numbered.
func Render(s *codegen.Step) (app, args string) {
	switch s.Kind {
	case codegen.StepJump:
		return "Goto", ref(s, s.True)
	case codegen.StepLoopTest, codegen.StepIfTest, codegen.StepRandomTest:
		return "GotoIf", fmt.Sprintf("%s?%d:%s", s.Args, s.Number+1, ref(s, s.False))
	case codegen.StepTimeTest:
		return "GotoIfTime", fmt.Sprintf("%s?%s", s.Args, ref(s, s.True))
	case codegen.StepReturn:
		return "Return", ""
	}
	return s.App, s.Args
}

// ref names to as seen from s: a bare number inside the same extension,
// "exten,number" across extensions.
func ref(s, to *codegen.Step) string {
	if to == nil {
		return strconv.Itoa(s.Number + 1)
	}
	if to.Ext == s.Ext {
		return strconv.Itoa(to.Number)
	}
	return to.Ext.Name + "," + strconv.Itoa(to.Number)
}

func position(n ael.Node, fallback ael.Node) ael.Pos {
	if n != nil {
		return n.Position()
	}
	if fallback != nil {
		return fallback.Position()
	}
	return ael.Pos{}
}

// Emit inserts the forest into r: globals first, then context
// declarations, then every extension. A failed insertion is reported as a
// warning and emission continues. It returns the number of steps inserted.
func Emit(f *codegen.Forest, r dialplan.Registrar, diags *diag.Collector) int {
	for _, g := range f.Globals {
		if err := r.SetGlobal(g.Name, g.Value); err != nil {
			diags.Warnf(ael.Pos{}, "global %s: %v", g.Name, err)
		}
	}

	for _, c := range f.Contexts {
		pos := position(c.Origin, nil)
		for _, inc := range c.Includes {
			if err := r.AddInclude(c.Name, inc); err != nil {
				diags.Warnf(pos, "include %s in context %s: %v", inc, c.Name, err)
			}
		}
		for _, ip := range c.IgnorePats {
			if err := r.AddIgnorePattern(c.Name, ip); err != nil {
				diags.Warnf(pos, "ignore pattern %s in context %s: %v", ip, c.Name, err)
			}
		}
		for _, sw := range c.Switches {
			if err := r.AddSwitch(c.Name, sw.Name, sw.Data, sw.Eval); err != nil {
				diags.Warnf(pos, "switch %s in context %s: %v", sw.Name, c.Name, err)
			}
		}
	}

	inserted := 0
	for _, e := range f.Extensions() {
		if e.Hint != "" {
			if err := r.AddHint(e.Context, e.Name, e.CID, e.Hint); err != nil {
				diags.Warnf(position(e.Origin, nil), "hint for %s: %v", e.Name, err)
			}
		}
		label := ""
		for _, s := range e.Steps {
			if !s.Real() {
				label = s.Label
				continue
			}
			app, args := Render(s)
			if err := r.AddExtension(e.Context, e.Name, e.CID, s.Number, label, app, args); err != nil {
				diags.Warnf(position(s.Origin, e.Origin), "%s,%s,%d: %v", e.Context, e.Name, s.Number, err)
			} else {
				inserted++
			}
			label = ""
		}
	}
	slog.Debug("dialplan emitted", "steps", inserted, "contexts", len(f.Contexts), "globals", len(f.Globals))
	return inserted
}
