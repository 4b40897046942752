package ael

// Tree is a parsed script: globals, contexts and macros in source order.
// Parent links live in a side table rebuilt by Index.
type Tree struct {
	File    string
	Items   []Node
	parents map[Node]Node
}

// NewTree returns an indexed tree holding items.
func NewTree(items ...Node) *Tree {
	t := &Tree{Items: items}
	t.Index()
	return t
}

// Index rebuilds the parent table. Call it after editing the tree by hand.
func (t *Tree) Index() {
	t.parents = make(map[Node]Node)
	for _, item := range t.Items {
		t.indexNode(item, nil)
	}
}

func (t *Tree) indexNode(n, parent Node) {
	if parent != nil {
		t.parents[n] = parent
	}
	for _, c := range Children(n) {
		t.indexNode(c, n)
	}
}

// Parent returns the node directly containing n, or nil for top-level items.
func (t *Tree) Parent(n Node) Node {
	if t.parents == nil {
		t.Index()
	}
	return t.parents[n]
}

// Contexts returns the contexts in declaration order.
func (t *Tree) Contexts() []*Context {
	var out []*Context
	for _, item := range t.Items {
		if c, ok := item.(*Context); ok {
			out = append(out, c)
		}
	}
	return out
}

// Macros returns the macros in declaration order.
func (t *Tree) Macros() []*Macro {
	var out []*Macro
	for _, item := range t.Items {
		if m, ok := item.(*Macro); ok {
			out = append(out, m)
		}
	}
	return out
}

// Scope returns the closest enclosing extension or macro of n, falling back
// to the enclosing context. Labels and one-part gotos are searched in it.
func (t *Tree) Scope(n Node) Node {
	for p := n; p != nil; p = t.Parent(p) {
		switch p.(type) {
		case *Extension, *Macro, *Context:
			return p
		}
	}
	return nil
}

// Container returns the enclosing context or macro of n.
func (t *Tree) Container(n Node) Node {
	for p := n; p != nil; p = t.Parent(p) {
		switch p.(type) {
		case *Macro, *Context:
			return p
		}
	}
	return nil
}

// Extension returns the extension containing n, if any.
func (t *Tree) Extension(n Node) *Extension {
	for p := t.Parent(n); p != nil; p = t.Parent(p) {
		if e, ok := p.(*Extension); ok {
			return e
		}
	}
	return nil
}

// Replace swaps old for repl inside its parent's statement list.
func (t *Tree) Replace(old, repl Node) bool {
	parent := t.Parent(old)
	if parent == nil {
		return false
	}
	for _, list := range bodies(parent) {
		for i, n := range *list {
			if n == old {
				(*list)[i] = repl
				delete(t.parents, old)
				t.indexNode(repl, parent)
				return true
			}
		}
	}
	return false
}

// Append adds n at the end of the statement body of parent.
func (t *Tree) Append(parent, n Node) bool {
	lists := bodies(parent)
	if len(lists) == 0 {
		return false
	}
	*lists[0] = append(*lists[0], n)
	if t.parents == nil {
		t.Index()
	}
	t.indexNode(n, parent)
	return true
}
