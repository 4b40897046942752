package cli

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/psaab/aelc/pkg/cmdtree"
	"github.com/psaab/aelc/pkg/grpcapi"
)

// values fetches dynamic completion values from the backend once per
// completion request.
type values struct {
	backend grpcapi.DialplanServer
	status  *grpcapi.StatusReply
}

func (v *values) fetch() *grpcapi.StatusReply {
	if v.status == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		st, err := v.backend.Status(ctx, &grpcapi.StatusRequest{})
		if err != nil {
			st = &grpcapi.StatusReply{}
		}
		v.status = st
	}
	return v.status
}

func (v *values) Contexts() []string { return v.fetch().Contexts }
func (v *values) Sources() []string  { return v.fetch().Sources }

func (v *values) Apps() []string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reply, err := v.backend.Apps(ctx, &grpcapi.AppsRequest{})
	if err != nil {
		return nil
	}
	return reply.Names
}

// candidates returns the completions of text and the partial word they
// complete.
func (c *CLI) candidates(text string) ([]cmdtree.Candidate, string) {
	trailingSpace := strings.HasSuffix(text, " ")

	if idx := strings.LastIndex(text, "|"); idx >= 0 {
		after := strings.TrimSpace(text[idx+1:])
		if trailingSpace && after != "" {
			return nil, ""
		}
		var out []cmdtree.Candidate
		for name, desc := range cmdtree.PipeFilters {
			if strings.HasPrefix(name, after) {
				out = append(out, cmdtree.Candidate{Name: name, Desc: desc})
			}
		}
		return out, after
	}

	words := strings.Fields(text)
	partial := ""
	if !trailingSpace && len(words) > 0 {
		partial = words[len(words)-1]
		words = words[:len(words)-1]
	}
	if expanded, err := cmdtree.Expand(cmdtree.Tree, words); err == nil {
		words = expanded
	}
	return cmdtree.CompleteFromTree(cmdtree.Tree, words, partial, &values{backend: c.backend}), partial
}

type completer struct {
	cli *CLI
}

// Do implements readline.AutoCompleter.
func (rc *completer) Do(line []rune, pos int) ([][]rune, int) {
	cands, partial := rc.cli.candidates(string(line[:pos]))
	if len(cands) == 0 {
		return nil, 0
	}
	if len(cands) == 1 {
		suffix := cands[0].Name[len(partial):]
		return [][]rune{[]rune(suffix + " ")}, len(partial)
	}

	// Multiple matches: show descriptions above prompt.
	cmdtree.WriteHelp(rc.cli.rl.Stdout(), cands)

	names := make([]string, len(cands))
	for i, cand := range cands {
		names[i] = cand.Name
	}
	sort.Strings(names)
	suffix := cmdtree.CommonPrefix(names)[len(partial):]
	if suffix == "" {
		return nil, 0
	}
	return [][]rune{[]rune(suffix)}, len(partial)
}

// helpKey shows the completions of the current line when '?' is typed.
func (c *CLI) helpKey(line []rune, pos int, key rune) ([]rune, int, bool) {
	if key != '?' || pos < 1 {
		return line, pos, false
	}
	// Strip the '?' that readline already inserted.
	clean := make([]rune, 0, len(line)-1)
	clean = append(clean, line[:pos-1]...)
	clean = append(clean, line[pos:]...)

	cands, _ := c.candidates(string(clean[:pos-1]))
	if len(cands) == 0 {
		c.rl.Stdout().Write([]byte("  (no help available)\n"))
		return clean, pos - 1, true
	}
	cmdtree.WriteHelp(c.rl.Stdout(), cands)
	return clean, pos - 1, true
}
