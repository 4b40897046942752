// Package ael implements the parsed-script tree for the dialplan language:
// the node variants, the non-owning parent index, builders, a lexer and a
// parser for the surface syntax, and a source formatter.
package ael

import "fmt"

// Pos is a source span. Lines and columns are 1-based.
type Pos struct {
	File    string
	Line    int
	Col     int
	EndLine int
	EndCol  int
}

// Position returns the span itself; every node embeds a Pos.
func (p Pos) Position() Pos { return p }

func (p Pos) String() string {
	file := p.File
	if file == "" {
		file = "<input>"
	}
	if p.EndLine > p.Line {
		return fmt.Sprintf("%s:%d-%d", file, p.Line, p.EndLine)
	}
	return fmt.Sprintf("%s:%d", file, p.Line)
}

// Node is implemented by every construct of the language. The set of
// implementations is closed to this package.
type Node interface {
	Position() Pos
	node()
}

// TimeSpec is a time-window constraint used by ifTime and timed includes.
// Empty or "*" fields match everything.
type TimeSpec struct {
	Hours       string // hh:mm-hh:mm
	DaysOfWeek  string // sun-sat
	DaysOfMonth string // 1-31
	Months      string // jan-dec
}

func (ts TimeSpec) String() string {
	return fmt.Sprintf("%s,%s,%s,%s", orStar(ts.Hours), orStar(ts.DaysOfWeek),
		orStar(ts.DaysOfMonth), orStar(ts.Months))
}

func orStar(s string) string {
	if s == "" {
		return "*"
	}
	return s
}

type (
	// Word is a bare literal: a macro parameter or a switch declaration entry.
	Word struct {
		Pos
		Value string
	}

	// Globals holds top-level variable assignments.
	Globals struct {
		Pos
		Vars []*VarDecl
	}

	// Context is a named container of extensions and declarations.
	Context struct {
		Pos
		Name     string
		Abstract bool
		Extend   bool
		Items    []Node
	}

	// Macro is a callable subroutine compiled into its own context.
	Macro struct {
		Pos
		Name   string
		Params []*Word
		Body   []Node
	}

	// Extension is a named entry point inside a context.
	Extension struct {
		Pos
		Name     string
		Hint     string
		Regexten bool
		Body     []Node
	}

	// Includes lists contexts searched after this one.
	Includes struct {
		Pos
		Entries []*Include
	}

	// Include is one entry of an includes block.
	Include struct {
		Pos
		Context string
		Time    *TimeSpec
	}

	// IgnorePat declares a dial-tone ignore pattern.
	IgnorePat struct {
		Pos
		Pattern string
	}

	// Switches declares alternative switch lookups; Eval marks eswitches.
	Switches struct {
		Pos
		Eval  bool
		Names []*Word
	}

	// Catch handles a named extension (h, i, t, ...) inside a macro or
	// extension.
	Catch struct {
		Pos
		Exten string
		Body  []Node
	}

	Block struct {
		Pos
		Body []Node
	}

	VarDecl struct {
		Pos
		Name  string
		Value string
	}

	LocalVarDecl struct {
		Pos
		Name  string
		Value string
	}

	// Goto carries one to three target parts: label, extension,label or
	// context,extension,label.
	Goto struct {
		Pos
		Target []string
	}

	Label struct {
		Pos
		Name string
	}

	For struct {
		Pos
		Init string
		Test string
		Inc  string
		Body []Node
	}

	While struct {
		Pos
		Cond string
		Body []Node
	}

	Break    struct{ Pos }
	Continue struct{ Pos }
	Return   struct{ Pos }

	// Random takes the Then branch with the given percentage.
	Random struct {
		Pos
		Percent string
		Then    []Node
		Else    []Node
	}

	IfTime struct {
		Pos
		Time TimeSpec
		Then []Node
		Else []Node
	}

	If struct {
		Pos
		Cond string
		Then []Node
		Else []Node
	}

	// Switch dispatches on Expr; Arms holds *Case, *Pattern and *Default.
	Switch struct {
		Pos
		Expr string
		Arms []Node
	}

	Case struct {
		Pos
		Value string
		Body  []Node
	}

	Pattern struct {
		Pos
		Value string
		Body  []Node
	}

	Default struct {
		Pos
		Body []Node
	}

	MacroCall struct {
		Pos
		Name string
		Args []string
	}

	AppCall struct {
		Pos
		App  string
		Args []string
	}
)

func (*Word) node()         {}
func (*Globals) node()      {}
func (*Context) node()      {}
func (*Macro) node()        {}
func (*Extension) node()    {}
func (*Includes) node()     {}
func (*Include) node()      {}
func (*IgnorePat) node()    {}
func (*Switches) node()     {}
func (*Catch) node()        {}
func (*Block) node()        {}
func (*VarDecl) node()      {}
func (*LocalVarDecl) node() {}
func (*Goto) node()         {}
func (*Label) node()        {}
func (*For) node()          {}
func (*While) node()        {}
func (*Break) node()        {}
func (*Continue) node()     {}
func (*Return) node()       {}
func (*Random) node()       {}
func (*IfTime) node()       {}
func (*If) node()           {}
func (*Switch) node()       {}
func (*Case) node()         {}
func (*Pattern) node()      {}
func (*Default) node()      {}
func (*MacroCall) node()    {}
func (*AppCall) node()      {}

// Kind returns a short lowercase name for a node's variant.
func Kind(n Node) string {
	switch n.(type) {
	case *Word:
		return "word"
	case *Globals:
		return "globals"
	case *Context:
		return "context"
	case *Macro:
		return "macro"
	case *Extension:
		return "extension"
	case *Includes:
		return "includes"
	case *Include:
		return "include"
	case *IgnorePat:
		return "ignorepat"
	case *Switches:
		return "switches"
	case *Catch:
		return "catch"
	case *Block:
		return "block"
	case *VarDecl:
		return "vardec"
	case *LocalVarDecl:
		return "localvardec"
	case *Goto:
		return "goto"
	case *Label:
		return "label"
	case *For:
		return "for"
	case *While:
		return "while"
	case *Break:
		return "break"
	case *Continue:
		return "continue"
	case *Return:
		return "return"
	case *Random:
		return "random"
	case *IfTime:
		return "iftime"
	case *If:
		return "if"
	case *Switch:
		return "switch"
	case *Case:
		return "case"
	case *Pattern:
		return "pattern"
	case *Default:
		return "default"
	case *MacroCall:
		return "macro call"
	case *AppCall:
		return "application call"
	default:
		return "unknown"
	}
}

// bodies returns pointers to every ordered statement list owned by n.
func bodies(n Node) []*[]Node {
	switch v := n.(type) {
	case *Context:
		return []*[]Node{&v.Items}
	case *Macro:
		return []*[]Node{&v.Body}
	case *Extension:
		return []*[]Node{&v.Body}
	case *Catch:
		return []*[]Node{&v.Body}
	case *Block:
		return []*[]Node{&v.Body}
	case *For:
		return []*[]Node{&v.Body}
	case *While:
		return []*[]Node{&v.Body}
	case *Random:
		return []*[]Node{&v.Then, &v.Else}
	case *IfTime:
		return []*[]Node{&v.Then, &v.Else}
	case *If:
		return []*[]Node{&v.Then, &v.Else}
	case *Switch:
		return []*[]Node{&v.Arms}
	case *Case:
		return []*[]Node{&v.Body}
	case *Pattern:
		return []*[]Node{&v.Body}
	case *Default:
		return []*[]Node{&v.Body}
	}
	return nil
}

// Children returns the direct children of n in source order.
func Children(n Node) []Node {
	var out []Node
	switch v := n.(type) {
	case *Globals:
		for _, d := range v.Vars {
			out = append(out, d)
		}
		return out
	case *Macro:
		for _, p := range v.Params {
			out = append(out, p)
		}
	case *Includes:
		for _, e := range v.Entries {
			out = append(out, e)
		}
		return out
	case *Switches:
		for _, w := range v.Names {
			out = append(out, w)
		}
		return out
	}
	for _, b := range bodies(n) {
		out = append(out, *b...)
	}
	return out
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the children of the visited node.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}
