package ael

// Builders for assembling trees in code. Positions are left zero.

func NewContext(name string, items ...Node) *Context {
	return &Context{Name: name, Items: items}
}

func NewAbstractContext(name string, items ...Node) *Context {
	return &Context{Name: name, Abstract: true, Items: items}
}

func NewMacro(name string, params []string, body ...Node) *Macro {
	m := &Macro{Name: name, Body: body}
	for _, p := range params {
		m.Params = append(m.Params, &Word{Value: p})
	}
	return m
}

func NewExtension(name string, body ...Node) *Extension {
	return &Extension{Name: name, Body: body}
}

func NewIncludes(contexts ...string) *Includes {
	inc := &Includes{}
	for _, c := range contexts {
		inc.Entries = append(inc.Entries, &Include{Context: c})
	}
	return inc
}

func NewApp(app string, args ...string) *AppCall {
	return &AppCall{App: app, Args: args}
}

func NewMacroCall(name string, args ...string) *MacroCall {
	return &MacroCall{Name: name, Args: args}
}

func NewGoto(target ...string) *Goto {
	return &Goto{Target: target}
}

func NewLabel(name string) *Label {
	return &Label{Name: name}
}

func NewSet(name, value string) *VarDecl {
	return &VarDecl{Name: name, Value: value}
}

func NewIf(cond string, then, els []Node) *If {
	return &If{Cond: cond, Then: then, Else: els}
}

func NewWhile(cond string, body ...Node) *While {
	return &While{Cond: cond, Body: body}
}

func NewFor(init, test, inc string, body ...Node) *For {
	return &For{Init: init, Test: test, Inc: inc, Body: body}
}

func NewSwitch(expr string, arms ...Node) *Switch {
	return &Switch{Expr: expr, Arms: arms}
}

func NewCase(value string, body ...Node) *Case {
	return &Case{Value: value, Body: body}
}

func NewPattern(value string, body ...Node) *Pattern {
	return &Pattern{Value: value, Body: body}
}

func NewDefault(body ...Node) *Default {
	return &Default{Body: body}
}

// List is shorthand for a statement list.
func List(n ...Node) []Node { return n }
