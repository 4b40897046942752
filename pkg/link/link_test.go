package link

import (
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"

	"github.com/psaab/aelc/pkg/ael"
	"github.com/psaab/aelc/pkg/appdb"
	"github.com/psaab/aelc/pkg/check"
	"github.com/psaab/aelc/pkg/codegen"
	"github.com/psaab/aelc/pkg/diag"
	"github.com/psaab/aelc/pkg/dialplan"
)

func build(t *testing.T, src string) (*codegen.Forest, *diag.Collector) {
	t.Helper()
	tree, err := ael.Parse("test.ael", src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	d := diag.NewCollector(slog.New(slog.NewTextHandler(io.Discard, nil)))
	check.Check(tree, d, check.Options{Apps: appdb.Builtin()})
	f := codegen.Generate(tree, d, codegen.Options{})
	Number(f)
	Patch(f)
	return f, d
}

func emit(t *testing.T, src string) (*dialplan.Plan, *diag.Collector) {
	t.Helper()
	f, d := build(t, src)
	plan := dialplan.NewPlan()
	Emit(f, plan, d)
	return plan, d
}

func ext(t *testing.T, plan *dialplan.Plan, context, name string) *dialplan.Extension {
	t.Helper()
	c := plan.Context(context)
	if c == nil {
		t.Fatalf("context %s not emitted", context)
	}
	e := c.Extension(name, "")
	if e == nil {
		t.Fatalf("extension %s,%s not emitted", context, name)
	}
	return e
}

func TestIfElseEndToEnd(t *testing.T) {
	plan, d := emit(t, `context X {
    100 => {
        if ("$[1=1]") {
            NoOp(yes);
        } else {
            NoOp(no);
        }
    }
}`)
	if d.Errors() != 0 || d.Warnings() != 0 {
		t.Fatalf("expected a clean compile, got %s:\n%s", d.Summary(), d.Format())
	}

	e := ext(t, plan, "X", "100")
	var apps []string
	for _, p := range e.Priorities {
		apps = append(apps, p.App+"("+p.Args+")")
	}
	want := []string{
		`GotoIf($["$[1=1]"]?2:4)`,
		"NoOp(yes)",
		"Goto(5)",
		"NoOp(no)",
		"NoOp(Finish if_100_1)",
	}
	if strings.Join(apps, " ") != strings.Join(want, " ") {
		t.Fatalf("steps:\n got %v\nwant %v", apps, want)
	}

	branch := e.Priority(1).Args
	targets := branch[strings.LastIndexByte(branch, '?')+1:]
	yes, no, _ := strings.Cut(targets, ":")
	if p := e.Priority(atoi(t, yes)); p == nil || p.Args != "yes" {
		t.Errorf("true target %s = %v", yes, p)
	}
	if p := e.Priority(atoi(t, no)); p == nil || p.Args != "no" {
		t.Errorf("false target %s = %v", no, p)
	}
	if p := e.Priority(atoi(t, e.Priority(3).Args)); p == nil || !strings.HasPrefix(p.Args, "Finish") {
		t.Errorf("skip target = %v", p)
	}
}

func atoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	if err != nil {
		t.Fatalf("not a step number: %q", s)
	}
	return n
}

const program = `context X {
    s => {
        NoOp(start);
        top:
        NoOp(at top);
        goto t,there;
    }
    t => {
        NoOp(t0);
        first:
        there:
        NoOp(there);
        goto s,top;
    }
    u => {
        for (i=0; ${i} < 2; i=${i} + 1) {
            switch (${i}) {
            case 0:
                inarm:
                NoOp(in arm);
                break;
            default:
                continue;
            }
        }
        goto inarm;
    }
    regexten v => {
        NoOp(regex);
    }
}`

func TestNumberingIsIdempotent(t *testing.T) {
	f, _ := build(t, program)
	snapshot := func() []int {
		var out []int
		for _, e := range f.Extensions() {
			for _, s := range e.Steps {
				out = append(out, s.Number)
			}
		}
		return out
	}
	first := snapshot()
	Number(f)
	Patch(f)
	second := snapshot()
	if len(first) != len(second) {
		t.Fatal("step count changed")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("step %d renumbered %d -> %d", i, first[i], second[i])
		}
	}
	for _, e := range f.Extensions() {
		want := e.FirstNumber()
		for _, s := range e.Steps {
			if !s.Real() {
				continue
			}
			if s.Number != want {
				t.Errorf("%s: step numbered %d, want %d", e.Name, s.Number, want)
			}
			want++
		}
	}
}

func TestGotoRoundTrip(t *testing.T) {
	plan, d := emit(t, program)
	if d.Errors() != 0 {
		t.Fatalf("unexpected errors:\n%s", d.Format())
	}

	s := ext(t, plan, "X", "s")
	if p := s.Labeled("top"); p == nil || p.Args != "at top" {
		t.Errorf("label top = %v", p)
	}
	tt := ext(t, plan, "X", "t")
	if p := tt.Labeled("there"); p == nil || p.Args != "there" {
		t.Errorf("label there = %v", p)
	}
	if p := tt.Labeled("first"); p != nil {
		t.Errorf("only the last of two adjacent labels is attached, got first on %v", p)
	}
	if p := ext(t, plan, "X", "v").Priority(2); p == nil || p.Args != "regex" {
		t.Errorf("regexten numbering = %v", ext(t, plan, "X", "v").Priorities)
	}

	// Follow every label goto and check it lands on the labeled step.
	for _, c := range plan.Contexts {
		for _, e := range c.Extensions {
			for _, p := range e.Priorities {
				if p.App != "Goto" {
					continue
				}
				parts := strings.Split(p.Args, ",")
				label := parts[len(parts)-1]
				if _, err := strconv.Atoi(label); err == nil {
					continue
				}
				target := e
				if len(parts) > 1 {
					target = ext(t, plan, c.Name, parts[len(parts)-2])
				}
				if target.Labeled(label) == nil {
					t.Errorf("%s,%d: Goto(%s) has no landing step", e.Name, p.Number, p.Args)
				}
			}
		}
	}

	u := ext(t, plan, "X", "u")
	last := u.Priorities[len(u.Priorities)-1]
	if last.Args != "sw_2_0,inarm" {
		t.Errorf("goto into a switch arm = Goto(%s), want Goto(sw_2_0,inarm)", last.Args)
	}
	arm := ext(t, plan, "X", "sw_2_0")
	if p := arm.Labeled("inarm"); p == nil || p.Number != 10 {
		t.Errorf("arm label = %v", p)
	}
}

func TestSwitchFallthrough(t *testing.T) {
	src := `context X {
    s => {
        switch (${x}) {
        case 1:
            NoOp(one);
        case 2:
            NoOp(two);
        default:
            NoOp(other);
            break;
        }
        NoOp(after);
    }
}`
	plan, d := emit(t, src)
	if d.Errors() != 0 {
		t.Fatalf("unexpected errors:\n%s", d.Format())
	}
	if got := ext(t, plan, "X", "sw_1_1").Priority(11); got == nil || got.String() != "Goto(sw_1_2,10)" {
		t.Errorf("A->B fallthrough = %v", got)
	}
	if got := ext(t, plan, "X", "sw_1_2").Priority(11); got == nil || got.String() != "Goto(sw_1_.,10)" {
		t.Errorf("B->C fallthrough = %v", got)
	}
	def := ext(t, plan, "X", "_sw_1_.")
	if len(def.Priorities) != 2 || def.Priorities[1].String() != "Goto(s,3)" {
		t.Errorf("default arm = %v, want its break to jump to the end marker", def.Priorities)
	}

	tests := []struct {
		x    string
		want string
	}{
		{"1", "one two other after"},
		{"2", "two other after"},
		{"7", "other after"},
		{"", "other after"},
	}
	for _, tt := range tests {
		m := newMachine(plan, "X")
		m.vars["x"] = tt.x
		if err := m.run("s", 100); err != nil {
			t.Fatalf("x=%q: %v", tt.x, err)
		}
		if got := strings.Join(m.trace, " "); got != tt.want {
			t.Errorf("x=%q: trace %q, want %q", tt.x, got, tt.want)
		}
	}
}

func TestLoopLowering(t *testing.T) {
	plan, d := emit(t, `context X {
    s => {
        for (i=0; ${i} < 3; i=${i} + 1) {
            NoOp(i=${i});
        }
        j=0;
        while (${j} < 5) {
            j=${j} + 1;
            if (${j} = 2) {
                continue;
            }
            if (${j} = 4) {
                break;
            }
            NoOp(j=${j});
        }
        NoOp(done);
    }
}`)
	if d.Errors() != 0 {
		t.Fatalf("unexpected errors:\n%s", d.Format())
	}

	// The same loops run directly.
	var want []string
	for i := 0; i < 3; i++ {
		want = append(want, "i="+strconv.Itoa(i))
	}
	for j := 0; j < 5; {
		j++
		if j == 2 {
			continue
		}
		if j == 4 {
			break
		}
		want = append(want, "j="+strconv.Itoa(j))
	}
	want = append(want, "done")

	m := newMachine(plan, "X")
	if err := m.run("s", 500); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(m.trace, " "); got != strings.Join(want, " ") {
		t.Errorf("trace:\n got %s\nwant %s", got, strings.Join(want, " "))
	}
}

func TestMisplacedBreakEmitsNothing(t *testing.T) {
	plan, d := emit(t, `context X {
    s => {
        NoOp(a);
        break;
        NoOp(b);
    }
}`)
	if d.Errors() != 1 {
		t.Fatalf("errors = %d, want 1:\n%s", d.Errors(), d.Format())
	}
	e := ext(t, plan, "X", "s")
	if len(e.Priorities) != 2 || e.Priorities[1].Args != "b" {
		t.Errorf("steps = %v", e.Priorities)
	}
}

func TestTimeTestAndReturn(t *testing.T) {
	plan, _ := emit(t, `context X {
    s => {
        ifTime (09:00-17:00|mon-fri|*|*) {
            NoOp(open);
        }
        return;
    }
}`)
	e := ext(t, plan, "X", "s")
	want := []string{
		"GotoIfTime(09:00-17:00,mon-fri,*,*?3)",
		"Goto(4)",
		"NoOp(open)",
		"NoOp(Finish iftime_s_1)",
		"Return()",
		"NoOp(End of Extension s)",
	}
	var got []string
	for _, p := range e.Priorities {
		got = append(got, p.String())
	}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("steps:\n got %v\nwant %v", got, want)
	}
}

// flaky refuses every second step.
type flaky struct {
	*dialplan.Plan
}

func (f flaky) AddExtension(context, exten, cid string, priority int, label, app, args string) error {
	if priority == 2 {
		return errors.New("host refused")
	}
	return f.Plan.AddExtension(context, exten, cid, priority, label, app, args)
}

func TestHostFailuresAreWarnings(t *testing.T) {
	f, d := build(t, `globals {
    A=1;
}
context X {
    includes {
        Y;
        Y;
    }
    s => {
        NoOp(1);
        NoOp(2);
        NoOp(3);
    }
}
context Y {
    t => NoOp();
}`)
	before := d.Warnings()
	plan := dialplan.NewPlan()
	n := Emit(f, flaky{plan}, d)
	if n != 3 {
		t.Errorf("inserted %d steps, want 3", n)
	}
	if d.Warnings()-before != 2 {
		t.Errorf("warnings = %d, want a duplicate include and a refused step:\n%s", d.Warnings()-before, d.Format())
	}
	if v, ok := plan.Global("A"); !ok || v != "1" {
		t.Errorf("global A = %q", v)
	}
	if e := ext(t, plan, "X", "s"); e.Priority(3) == nil {
		t.Error("emission stopped after a failure")
	}
}
