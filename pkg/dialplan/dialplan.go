// Package dialplan is the host side of the compiler: the insertion API the
// linker feeds and an in-memory dialplan that implements it.
package dialplan

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Registrar is the host dialplan insertion API.
type Registrar interface {
	AddExtension(context, exten, cid string, priority int, label, app, args string) error
	AddHint(context, exten, cid, hint string) error
	AddInclude(context, include string) error
	AddIgnorePattern(context, pattern string) error
	AddSwitch(context, name, data string, eval bool) error
	SetGlobal(name, value string) error
}

var (
	ErrDuplicatePriority = errors.New("duplicate priority")
	ErrDuplicateLabel    = errors.New("duplicate label")
	ErrDuplicateInclude  = errors.New("context already included")
	ErrInvalid           = errors.New("invalid dialplan entry")
)

// Priority is one numbered step of an extension.
type Priority struct {
	Number int    `json:"priority"`
	Label  string `json:"label,omitempty"`
	App    string `json:"app"`
	Args   string `json:"args"`
}

func (p *Priority) String() string {
	return fmt.Sprintf("%s(%s)", p.App, p.Args)
}

// Extension is a named, optionally caller-id qualified, priority list.
type Extension struct {
	Name       string      `json:"name"`
	CID        string      `json:"cid,omitempty"`
	Hint       string      `json:"hint,omitempty"`
	Priorities []*Priority `json:"priorities"`
}

// Priority returns the step numbered n, or nil.
func (e *Extension) Priority(n int) *Priority {
	i := sort.Search(len(e.Priorities), func(i int) bool { return e.Priorities[i].Number >= n })
	if i < len(e.Priorities) && e.Priorities[i].Number == n {
		return e.Priorities[i]
	}
	return nil
}

// Labeled returns the step carrying label, or nil.
func (e *Extension) Labeled(label string) *Priority {
	for _, p := range e.Priorities {
		if p.Label == label {
			return p
		}
	}
	return nil
}

// Switch is an alternative switch of a context.
type Switch struct {
	Name string `json:"name"`
	Data string `json:"data,omitempty"`
	Eval bool   `json:"eval,omitempty"`
}

// Context is one dialplan context.
type Context struct {
	Name       string       `json:"name"`
	Includes   []string     `json:"includes,omitempty"`
	IgnorePats []string     `json:"ignorepats,omitempty"`
	Switches   []Switch     `json:"switches,omitempty"`
	Extensions []*Extension `json:"extensions"`
}

// Extension returns the extension matching exten and cid, or nil.
func (c *Context) Extension(exten, cid string) *Extension {
	for _, e := range c.Extensions {
		if e.Name == exten && e.CID == cid {
			return e
		}
	}
	return nil
}

func (c *Context) extension(exten, cid string) *Extension {
	if e := c.Extension(exten, cid); e != nil {
		return e
	}
	e := &Extension{Name: exten, CID: cid}
	c.Extensions = append(c.Extensions, e)
	return e
}

// Global is a global channel variable.
type Global struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Plan is a complete in-memory dialplan. It implements Registrar.
type Plan struct {
	Globals  []Global   `json:"globals,omitempty"`
	Contexts []*Context `json:"contexts"`
}

// NewPlan returns an empty plan.
func NewPlan() *Plan { return &Plan{} }

// Context returns the named context, or nil.
func (p *Plan) Context(name string) *Context {
	for _, c := range p.Contexts {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (p *Plan) context(name string) *Context {
	if c := p.Context(name); c != nil {
		return c
	}
	c := &Context{Name: name}
	p.Contexts = append(p.Contexts, c)
	return c
}

// Global returns the value of a global variable.
func (p *Plan) Global(name string) (string, bool) {
	for _, g := range p.Globals {
		if g.Name == name {
			return g.Value, true
		}
	}
	return "", false
}

func (p *Plan) AddExtension(context, exten, cid string, priority int, label, app, args string) error {
	if context == "" || exten == "" || app == "" || priority < 1 {
		return fmt.Errorf("%w: context %q extension %q priority %d application %q",
			ErrInvalid, context, exten, priority, app)
	}
	e := p.context(context).extension(exten, cid)
	if e.Priority(priority) != nil {
		return fmt.Errorf("%w: %s,%s,%d", ErrDuplicatePriority, context, exten, priority)
	}
	if label != "" && e.Labeled(label) != nil {
		return fmt.Errorf("%w: %s in %s,%s", ErrDuplicateLabel, label, context, exten)
	}
	i := sort.Search(len(e.Priorities), func(i int) bool { return e.Priorities[i].Number > priority })
	e.Priorities = append(e.Priorities, nil)
	copy(e.Priorities[i+1:], e.Priorities[i:])
	e.Priorities[i] = &Priority{Number: priority, Label: label, App: app, Args: args}
	return nil
}

func (p *Plan) AddHint(context, exten, cid, hint string) error {
	if context == "" || exten == "" || hint == "" {
		return fmt.Errorf("%w: hint %q for %s,%s", ErrInvalid, hint, context, exten)
	}
	p.context(context).extension(exten, cid).Hint = hint
	return nil
}

func (p *Plan) AddInclude(context, include string) error {
	if context == "" || include == "" {
		return fmt.Errorf("%w: include %q in %q", ErrInvalid, include, context)
	}
	c := p.context(context)
	for _, inc := range c.Includes {
		if inc == include {
			return fmt.Errorf("%w: %s in %s", ErrDuplicateInclude, include, context)
		}
	}
	c.Includes = append(c.Includes, include)
	return nil
}

func (p *Plan) AddIgnorePattern(context, pattern string) error {
	if context == "" || pattern == "" {
		return fmt.Errorf("%w: ignore pattern %q in %q", ErrInvalid, pattern, context)
	}
	c := p.context(context)
	c.IgnorePats = append(c.IgnorePats, pattern)
	return nil
}

func (p *Plan) AddSwitch(context, name, data string, eval bool) error {
	if context == "" || name == "" {
		return fmt.Errorf("%w: switch %q in %q", ErrInvalid, name, context)
	}
	c := p.context(context)
	c.Switches = append(c.Switches, Switch{Name: name, Data: data, Eval: eval})
	return nil
}

func (p *Plan) SetGlobal(name, value string) error {
	if name == "" {
		return fmt.Errorf("%w: empty global name", ErrInvalid)
	}
	for i := range p.Globals {
		if p.Globals[i].Name == name {
			p.Globals[i].Value = value
			return nil
		}
	}
	p.Globals = append(p.Globals, Global{Name: name, Value: value})
	return nil
}

// Clone returns a deep copy of the plan.
func (p *Plan) Clone() *Plan {
	out := NewPlan()
	out.merge(p)
	return out
}

// merge copies src into p. A priority of src replaces one with the same
// number already in p.
func (p *Plan) merge(src *Plan) {
	for _, g := range src.Globals {
		p.SetGlobal(g.Name, g.Value)
	}
	for _, sc := range src.Contexts {
		c := p.context(sc.Name)
		c.Includes = append(c.Includes, sc.Includes...)
		c.IgnorePats = append(c.IgnorePats, sc.IgnorePats...)
		c.Switches = append(c.Switches, sc.Switches...)
		for _, se := range sc.Extensions {
			e := c.extension(se.Name, se.CID)
			if se.Hint != "" {
				e.Hint = se.Hint
			}
			for _, pr := range se.Priorities {
				cp := *pr
				i := sort.Search(len(e.Priorities), func(i int) bool { return e.Priorities[i].Number >= pr.Number })
				if i < len(e.Priorities) && e.Priorities[i].Number == pr.Number {
					e.Priorities[i] = &cp
					continue
				}
				e.Priorities = append(e.Priorities, nil)
				copy(e.Priorities[i+1:], e.Priorities[i:])
				e.Priorities[i] = &cp
			}
		}
	}
}

// Stats returns the number of contexts, extensions and priorities.
func (p *Plan) Stats() (contexts, extensions, priorities int) {
	for _, c := range p.Contexts {
		contexts++
		extensions += len(c.Extensions)
		for _, e := range c.Extensions {
			priorities += len(e.Priorities)
		}
	}
	return
}

// Format renders the plan the way the switch's "dialplan show" does.
func (p *Plan) Format() string {
	var b strings.Builder
	if len(p.Globals) > 0 {
		b.WriteString("[ globals ]\n")
		for _, g := range p.Globals {
			fmt.Fprintf(&b, "  %s=%s\n", g.Name, g.Value)
		}
		b.WriteString("\n")
	}
	for _, c := range p.Contexts {
		fmt.Fprintf(&b, "[ Context '%s' ]\n", c.Name)
		for _, e := range c.Extensions {
			name := e.Name
			if e.CID != "" {
				name += "/" + e.CID
			}
			if e.Hint != "" {
				fmt.Fprintf(&b, "  '%s' => hint: %s\n", name, e.Hint)
			}
			for i, pr := range e.Priorities {
				head := fmt.Sprintf("'%s' =>", name)
				if i > 0 {
					head = ""
				}
				step := fmt.Sprintf("%d.", pr.Number)
				if pr.Label != "" {
					step = fmt.Sprintf("[%s] %s", pr.Label, step)
				}
				fmt.Fprintf(&b, "  %-20s %-12s %s\n", head, step, pr)
			}
		}
		for _, inc := range c.Includes {
			fmt.Fprintf(&b, "  Include =>        '%s'\n", inc)
		}
		for _, ip := range c.IgnorePats {
			fmt.Fprintf(&b, "  Ignore pattern => '%s'\n", ip)
		}
		for _, sw := range c.Switches {
			kind := "Alt. Switch"
			if sw.Eval {
				kind = "Alt. ESwitch"
			}
			fmt.Fprintf(&b, "  %s =>    '%s/%s'\n", kind, sw.Name, sw.Data)
		}
		b.WriteString("\n")
	}
	return b.String()
}
