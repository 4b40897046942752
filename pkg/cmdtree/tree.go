// Package cmdtree defines the shell command tree shared by the daemon's
// console and the remote shell: completion, ? help and abbreviation
// expansion all walk the same tree.
package cmdtree

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Values supplies the dynamic completion values of the current dialplan.
type Values interface {
	Contexts() []string
	Sources() []string
	Apps() []string
}

// Node defines a completion tree node with description, children, and optional dynamic values.
type Node struct {
	Desc      string
	Children  map[string]*Node
	DynamicFn func(v Values) []string
	// Arg names a free-form argument the command takes, for help output.
	Arg string
}

// Candidate holds a command name and its description for display.
type Candidate struct {
	Name string
	Desc string
}

func contexts(v Values) []string { return v.Contexts() }
func sources(v Values) []string  { return v.Sources() }
func apps(v Values) []string     { return v.Apps() }

// Tree is the shell's command tree.
var Tree = map[string]*Node{
	"load":     {Desc: "Compile a script and load it into the dialplan", Arg: "<file> [force]"},
	"check":    {Desc: "Compile a script without loading it", Arg: "<file>"},
	"reload":   {Desc: "Recompile and reload every configured script"},
	"unload":   {Desc: "Remove a script's content from the dialplan", DynamicFn: sources},
	"rollback": {Desc: "Restore a replaced dialplan", Arg: "[n]"},
	"show": {Desc: "Show information", Children: map[string]*Node{
		"dialplan": {Desc: "Show the loaded dialplan", Children: map[string]*Node{
			"context": {Desc: "Show one context", DynamicFn: contexts},
			"source":  {Desc: "Show what one script loaded", DynamicFn: sources},
		}},
		"status":      {Desc: "Show daemon status"},
		"contexts":    {Desc: "List loaded contexts"},
		"sources":     {Desc: "List loaded scripts"},
		"history":     {Desc: "Show replaced dialplans available for rollback"},
		"diagnostics": {Desc: "Show diagnostics of the latest compile of each script", DynamicFn: sources},
		"log":         {Desc: "Show recent daemon log records", Arg: "[level]"},
		"apps":        {Desc: "List known applications or describe one", DynamicFn: apps},
	}},
	"help": {Desc: "Show command help"},
	"exit": {Desc: "Exit the shell"},
	"quit": {Desc: "Exit the shell"},
}

// PipeFilters are the output filters accepted after " | ".
var PipeFilters = map[string]string{
	"count":  "Count occurrences",
	"except": "Show only text that does not match a pattern",
	"find":   "Search for first occurrence of pattern",
	"last":   "Display end of output only",
	"match":  "Show only text that matches a pattern",
}

// KeysFromTree returns a sorted list of keys from a Node map.
func KeysFromTree(tree map[string]*Node) []string {
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HelpCandidates returns Candidates from a tree's children for help display.
func HelpCandidates(tree map[string]*Node) []Candidate {
	candidates := make([]Candidate, 0, len(tree))
	for name, node := range tree {
		desc := node.Desc
		if node.Arg != "" {
			desc += " " + node.Arg
		}
		candidates = append(candidates, Candidate{Name: name, Desc: desc})
	}
	return candidates
}

// CompleteFromTree walks the tree to find completion candidates for the
// given words and partial. v may be nil, which disables dynamic values.
func CompleteFromTree(tree map[string]*Node, words []string, partial string, v Values) []Candidate {
	current := tree
	var currentNode *Node
	for i, w := range words {
		node, ok := current[w]
		if !ok {
			// A dynamic value ends the command.
			return nil
		}
		currentNode = node
		if node.Children == nil {
			if node.DynamicFn != nil && v != nil && i == len(words)-1 {
				return dynamic(node, v, partial)
			}
			return nil
		}
		current = node.Children
	}

	var candidates []Candidate
	for name, node := range current {
		if strings.HasPrefix(name, partial) {
			candidates = append(candidates, Candidate{Name: name, Desc: node.Desc})
		}
	}
	if currentNode != nil && currentNode.DynamicFn != nil && v != nil {
		candidates = append(candidates, dynamic(currentNode, v, partial)...)
	}
	return candidates
}

func dynamic(node *Node, v Values, partial string) []Candidate {
	var candidates []Candidate
	for _, name := range node.DynamicFn(v) {
		if strings.HasPrefix(name, partial) {
			candidates = append(candidates, Candidate{Name: name, Desc: "(loaded)"})
		}
	}
	return candidates
}

// Expand replaces unambiguous abbreviations of command keywords with the
// full keyword ("sh dialp" becomes "show dialplan"). Words past the
// keywords are returned unchanged.
func Expand(tree map[string]*Node, words []string) ([]string, error) {
	out := make([]string, 0, len(words))
	current := tree
	for i, w := range words {
		if current == nil {
			return append(out, words[i:]...), nil
		}
		node, ok := current[w]
		if !ok {
			matches := FilterPrefix(KeysOf(current), w)
			switch len(matches) {
			case 0:
				if i == 0 {
					return nil, fmt.Errorf("unknown command: %s", w)
				}
				return append(out, words[i:]...), nil
			case 1:
				w = matches[0]
				node = current[w]
			default:
				sort.Strings(matches)
				return nil, fmt.Errorf("ambiguous command %q: %s", w, strings.Join(matches, ", "))
			}
		}
		out = append(out, w)
		current = node.Children
	}
	return out, nil
}

// WriteHelp prints aligned completion candidates to w.
func WriteHelp(w io.Writer, candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	maxWidth := 20
	for _, c := range candidates {
		if len(c.Name)+2 > maxWidth {
			maxWidth = len(c.Name) + 2
		}
	}
	var sb strings.Builder
	sb.WriteString("Possible completions:\n")
	for _, c := range candidates {
		if c.Desc != "" {
			fmt.Fprintf(&sb, "  %-*s %s\n", maxWidth, c.Name, c.Desc)
		} else {
			fmt.Fprintf(&sb, "  %s\n", c.Name)
		}
	}
	io.WriteString(w, sb.String())
}

// CommonPrefix returns the longest shared prefix among the given strings.
func CommonPrefix(items []string) string {
	if len(items) == 0 {
		return ""
	}
	prefix := items[0]
	for _, s := range items[1:] {
		for !strings.HasPrefix(s, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	return prefix
}

// KeysOf returns an unsorted list of keys from a Node map.
func KeysOf(m map[string]*Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// FilterPrefix returns only items that start with the given prefix.
func FilterPrefix(items []string, prefix string) []string {
	if prefix == "" {
		return items
	}
	var result []string
	for _, item := range items {
		if strings.HasPrefix(item, prefix) {
			result = append(result, item)
		}
	}
	return result
}
