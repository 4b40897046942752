package link

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/psaab/aelc/pkg/dialplan"
	"github.com/psaab/aelc/pkg/resolve"
)

// machine replays an emitted dialplan with just enough of the switch's
// semantics for the lowering tests: variables, $[a op b] arithmetic and
// comparisons, Goto, GotoIf and NoOp tracing.
type machine struct {
	plan  *dialplan.Plan
	ctx   *dialplan.Context
	vars  map[string]string
	trace []string
}

func newMachine(plan *dialplan.Plan, context string) *machine {
	return &machine{plan: plan, ctx: plan.Context(context), vars: make(map[string]string)}
}

func (m *machine) lookup(exten string) *dialplan.Extension {
	if e := m.ctx.Extension(exten, ""); e != nil {
		return e
	}
	for _, e := range m.ctx.Extensions {
		if resolve.ExtensionMatches(exten, e.Name) {
			return e
		}
	}
	return nil
}

// run executes exten from its first step until it falls off the end.
func (m *machine) run(exten string, limit int) error {
	e := m.lookup(exten)
	if e == nil {
		return fmt.Errorf("no extension %s", exten)
	}
	n := e.Priorities[0].Number
	for i := 0; i < limit; i++ {
		p := e.Priority(n)
		if p == nil {
			return nil
		}
		args := m.expand(p.Args)
		var err error
		switch p.App {
		case "NoOp":
			if !strings.HasPrefix(args, "Finish ") {
				m.trace = append(m.trace, args)
			}
			n++
		case "MSet", "Set":
			name, value, _ := strings.Cut(args, "=")
			m.vars[name] = value
			n++
		case "Goto":
			e, n, err = m.jump(e, args)
		case "GotoIf":
			cond, dests, _ := strings.Cut(args, "?")
			yes, no, _ := strings.Cut(dests, ":")
			dest := no
			if cond != "" && cond != "0" {
				dest = yes
			}
			e, n, err = m.jump(e, dest)
		default:
			n++
		}
		if err != nil {
			return err
		}
	}
	return fmt.Errorf("no exit after %d steps", limit)
}

func (m *machine) jump(e *dialplan.Extension, dest string) (*dialplan.Extension, int, error) {
	parts := strings.Split(dest, ",")
	if len(parts) == 2 {
		if e = m.lookup(parts[0]); e == nil {
			return nil, 0, fmt.Errorf("no extension %s", parts[0])
		}
	}
	last := parts[len(parts)-1]
	if n, err := strconv.Atoi(last); err == nil {
		return e, n, nil
	}
	if p := e.Labeled(last); p != nil {
		return e, p.Number, nil
	}
	return nil, 0, fmt.Errorf("bad destination %q", dest)
}

// expand substitutes ${var} references, then evaluates $[...].
func (m *machine) expand(s string) string {
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			break
		}
		j := strings.IndexByte(s[i:], '}')
		s = s[:i] + m.vars[s[i+2:i+j]] + s[i+j+1:]
	}
	for {
		i := strings.Index(s, "$[")
		if i < 0 {
			return s
		}
		j := strings.IndexByte(s[i:], ']')
		s = s[:i] + eval(s[i+2:i+j]) + s[i+j+1:]
	}
}

func eval(expr string) string {
	f := strings.Fields(expr)
	if len(f) != 3 {
		return strings.TrimSpace(expr)
	}
	a, _ := strconv.Atoi(f[0])
	b, _ := strconv.Atoi(f[2])
	truth := func(v bool) string {
		if v {
			return "1"
		}
		return "0"
	}
	switch f[1] {
	case "+":
		return strconv.Itoa(a + b)
	case "-":
		return strconv.Itoa(a - b)
	case "<":
		return truth(a < b)
	case ">":
		return truth(a > b)
	case "=":
		return truth(a == b)
	case "!=":
		return truth(a != b)
	}
	return expr
}
