// Package codegen lowers the structured script tree into flat extensions:
// ordered step lists whose control transfers are explicit references to
// other steps. Numbers are assigned later by the linker.
package codegen

import (
	"fmt"

	"github.com/psaab/aelc/pkg/ael"
)

// StepKind tells the linker how to emit a step.
type StepKind int

const (
	// StepApp is a plain application call.
	StepApp StepKind = iota
	// StepJump transfers to True unconditionally.
	StepJump
	// StepLoopTest continues with the next step while Args holds, else
	// jumps to False.
	StepLoopTest
	// StepIfTest continues with the next step when Args holds, else jumps
	// to False.
	StepIfTest
	// StepRandomTest is an StepIfTest on a random-number threshold.
	StepRandomTest
	// StepTimeTest jumps to True when the current time is inside the
	// window in Args and falls through otherwise.
	StepTimeTest
	// StepLabel marks the position of a label. It takes no step number.
	StepLabel
	// StepReturn returns from a subroutine.
	StepReturn
)

func (k StepKind) String() string {
	switch k {
	case StepApp:
		return "app"
	case StepJump:
		return "jump"
	case StepLoopTest:
		return "loop-test"
	case StepIfTest:
		return "if-test"
	case StepRandomTest:
		return "random-test"
	case StepTimeTest:
		return "time-test"
	case StepLabel:
		return "label"
	case StepReturn:
		return "return"
	default:
		return "unknown"
	}
}

// Step is one compiled instruction.
type Step struct {
	Kind   StepKind
	App    string
	Args   string
	Label  string // label name for StepLabel
	True   *Step
	False  *Step
	Origin ael.Node
	Ext    *Extension
	// Number is the linked step number. Label markers carry the number of
	// the step that follows them.
	Number int

	// verbatim steps are exempt from ${EXTEN} rewriting.
	verbatim bool
}

func (s *Step) String() string {
	switch s.Kind {
	case StepLabel:
		return s.Label + ":"
	case StepJump:
		return fmt.Sprintf("jump -> %s", s.True.ref())
	case StepLoopTest, StepIfTest, StepRandomTest:
		return fmt.Sprintf("%s %s else -> %s", s.Kind, s.Args, s.False.ref())
	case StepTimeTest:
		return fmt.Sprintf("%s %s -> %s", s.Kind, s.Args, s.True.ref())
	case StepReturn:
		return "Return()"
	}
	return fmt.Sprintf("%s(%s)", s.App, s.Args)
}

func (s *Step) ref() string {
	if s == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s:%d", s.Ext.Name, s.Number)
}

// Real reports whether the step occupies a step number.
func (s *Step) Real() bool { return s.Kind != StepLabel }

// Extension is one compiled extension of a context.
type Extension struct {
	Context   string
	Name      string
	CID       string
	Hint      string
	Regexten  bool
	SwitchArm bool
	Steps     []*Step
	Origin    ael.Node

	// ReturnNeeded is set once a return is generated into the extension.
	ReturnNeeded bool
	// HasSwitch and CheckedSwitch record the per-family ${EXTEN} snapshot
	// decision; spawned siblings copy them.
	HasSwitch     bool
	CheckedSwitch bool

	loopBreak    *Step
	loopContinue *Step
}

// FirstNumber is the number given to the first real step.
func (e *Extension) FirstNumber() int {
	switch {
	case e.SwitchArm:
		return 10
	case e.Regexten:
		return 2
	default:
		return 1
	}
}

// Unit is a source extension or macro with every extension spawned from
// it (switch arms, catch blocks), root first.
type Unit struct {
	Root       *Extension
	Extensions []*Extension
	Origin     ael.Node
}

// Switch is an alternative-dialplan switch declaration.
type Switch struct {
	Name string
	Data string
	Eval bool
}

// ContextDecl carries the non-extension declarations of a context.
type ContextDecl struct {
	Name       string
	Includes   []string
	IgnorePats []string
	Switches   []Switch
	Origin     ael.Node
}

// Global is a top-level variable assignment.
type Global struct {
	Name  string
	Value string
}

// Patch is a goto whose target label sits inside a switch arm. The arm's
// extension name is only final after generation, so the linker rewrites
// the step's arguments from the label's home extension.
type Patch struct {
	Step  *Step
	Goto  *ael.Goto
	Label *ael.Label
}

// Forest is the complete output of one generator run.
type Forest struct {
	Globals  []Global
	Contexts []*ContextDecl
	Units    []*Unit
	Pending  []*Patch
	// Homes maps every generated label to the extension holding its marker.
	Homes map[*ael.Label]*Extension
}

// Extensions returns every extension of every unit in order.
func (f *Forest) Extensions() []*Extension {
	var out []*Extension
	for _, u := range f.Units {
		out = append(out, u.Extensions...)
	}
	return out
}

// StepCount returns the number of real steps in the forest.
func (f *Forest) StepCount() int {
	n := 0
	for _, e := range f.Extensions() {
		for _, s := range e.Steps {
			if s.Real() {
				n++
			}
		}
	}
	return n
}
