package ael

import (
	"fmt"
	"strings"
)

// Format renders the tree back to script source with 4-space indentation.
func (t *Tree) Format() string {
	var b strings.Builder
	for i, item := range t.Items {
		if i > 0 {
			b.WriteByte('\n')
		}
		formatNode(&b, item, 0)
	}
	return b.String()
}

// FormatNode renders a single node.
func FormatNode(n Node) string {
	var b strings.Builder
	formatNode(&b, n, 0)
	return b.String()
}

func writeIndent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("    ")
	}
}

func formatBlock(b *strings.Builder, body []Node, depth int) {
	b.WriteString("{\n")
	for _, n := range body {
		formatNode(b, n, depth+1)
	}
	writeIndent(b, depth)
	b.WriteString("}")
}

func formatNode(b *strings.Builder, n Node, depth int) {
	writeIndent(b, depth)
	switch v := n.(type) {
	case *Globals:
		b.WriteString("globals {\n")
		for _, d := range v.Vars {
			formatNode(b, d, depth+1)
		}
		writeIndent(b, depth)
		b.WriteString("}\n")
	case *Context:
		if v.Abstract {
			b.WriteString("abstract ")
		}
		if v.Extend {
			b.WriteString("extend ")
		}
		fmt.Fprintf(b, "context %s ", v.Name)
		formatBlock(b, v.Items, depth)
		b.WriteByte('\n')
	case *Macro:
		params := make([]string, len(v.Params))
		for i, p := range v.Params {
			params[i] = p.Value
		}
		fmt.Fprintf(b, "macro %s(%s) ", v.Name, strings.Join(params, ", "))
		formatBlock(b, v.Body, depth)
		b.WriteByte('\n')
	case *Extension:
		if v.Regexten {
			b.WriteString("regexten ")
		}
		if v.Hint != "" {
			fmt.Fprintf(b, "hint(%s) ", v.Hint)
		}
		fmt.Fprintf(b, "%s => ", v.Name)
		formatBlock(b, v.Body, depth)
		b.WriteByte('\n')
	case *Includes:
		b.WriteString("includes {\n")
		for _, e := range v.Entries {
			writeIndent(b, depth+1)
			b.WriteString(e.Context)
			if e.Time != nil {
				fmt.Fprintf(b, "|%s|%s|%s|%s", orStar(e.Time.Hours), orStar(e.Time.DaysOfWeek),
					orStar(e.Time.DaysOfMonth), orStar(e.Time.Months))
			}
			b.WriteString(";\n")
		}
		writeIndent(b, depth)
		b.WriteString("}\n")
	case *IgnorePat:
		fmt.Fprintf(b, "ignorepat => %s;\n", v.Pattern)
	case *Switches:
		if v.Eval {
			b.WriteString("eswitches {\n")
		} else {
			b.WriteString("switches {\n")
		}
		for _, w := range v.Names {
			writeIndent(b, depth+1)
			fmt.Fprintf(b, "%s;\n", w.Value)
		}
		writeIndent(b, depth)
		b.WriteString("}\n")
	case *Catch:
		fmt.Fprintf(b, "catch %s ", v.Exten)
		formatBlock(b, v.Body, depth)
		b.WriteByte('\n')
	case *Block:
		formatBlock(b, v.Body, depth)
		b.WriteByte('\n')
	case *VarDecl:
		fmt.Fprintf(b, "%s=%s;\n", v.Name, v.Value)
	case *LocalVarDecl:
		fmt.Fprintf(b, "local %s=%s;\n", v.Name, v.Value)
	case *Goto:
		fmt.Fprintf(b, "goto %s;\n", strings.Join(v.Target, ","))
	case *Label:
		fmt.Fprintf(b, "%s:\n", v.Name)
	case *For:
		fmt.Fprintf(b, "for (%s; %s; %s) ", v.Init, v.Test, v.Inc)
		formatBlock(b, v.Body, depth)
		b.WriteByte('\n')
	case *While:
		fmt.Fprintf(b, "while (%s) ", v.Cond)
		formatBlock(b, v.Body, depth)
		b.WriteByte('\n')
	case *Break:
		b.WriteString("break;\n")
	case *Continue:
		b.WriteString("continue;\n")
	case *Return:
		b.WriteString("return;\n")
	case *Random:
		fmt.Fprintf(b, "random (%s) ", v.Percent)
		formatBranches(b, v.Then, v.Else, depth)
	case *IfTime:
		fmt.Fprintf(b, "ifTime (%s|%s|%s|%s) ", orStar(v.Time.Hours), orStar(v.Time.DaysOfWeek),
			orStar(v.Time.DaysOfMonth), orStar(v.Time.Months))
		formatBranches(b, v.Then, v.Else, depth)
	case *If:
		fmt.Fprintf(b, "if (%s) ", v.Cond)
		formatBranches(b, v.Then, v.Else, depth)
	case *Switch:
		fmt.Fprintf(b, "switch (%s) {\n", v.Expr)
		for _, arm := range v.Arms {
			formatNode(b, arm, depth+1)
		}
		writeIndent(b, depth)
		b.WriteString("}\n")
	case *Case:
		fmt.Fprintf(b, "case %s:\n", v.Value)
		for _, s := range v.Body {
			formatNode(b, s, depth+1)
		}
	case *Pattern:
		fmt.Fprintf(b, "pattern %s:\n", v.Value)
		for _, s := range v.Body {
			formatNode(b, s, depth+1)
		}
	case *Default:
		b.WriteString("default:\n")
		for _, s := range v.Body {
			formatNode(b, s, depth+1)
		}
	case *MacroCall:
		fmt.Fprintf(b, "&%s(%s);\n", v.Name, strings.Join(v.Args, ","))
	case *AppCall:
		if len(v.Args) == 0 {
			fmt.Fprintf(b, "%s();\n", v.App)
		} else {
			fmt.Fprintf(b, "%s(%s);\n", v.App, strings.Join(v.Args, ","))
		}
	case *Word:
		fmt.Fprintf(b, "%s\n", v.Value)
	case *Include:
		fmt.Fprintf(b, "%s;\n", v.Context)
	}
}

func formatBranches(b *strings.Builder, then, els []Node, depth int) {
	formatBlock(b, then, depth)
	if els != nil {
		b.WriteString(" else ")
		formatBlock(b, els, depth)
	}
	b.WriteByte('\n')
}
