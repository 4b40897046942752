// Package cli implements the interactive dialplan shell. The daemon runs
// it on its console against the in-process service; the remote shell runs
// it against a gRPC client.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"google.golang.org/grpc/status"

	"github.com/psaab/aelc/pkg/cmdtree"
	"github.com/psaab/aelc/pkg/grpcapi"
)

// CLI is the interactive command-line interface.
type CLI struct {
	rl       *readline.Instance
	backend  grpcapi.DialplanServer
	out      io.Writer
	hostname string
	username string
	// Timeout bounds each backend call. Zero means no limit.
	Timeout time.Duration
}

// New creates a shell writing to out (os.Stdout when nil).
func New(backend grpcapi.DialplanServer, out io.Writer) *CLI {
	if out == nil {
		out = os.Stdout
	}
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "aeld"
	}
	username := os.Getenv("USER")
	if username == "" {
		username = "root"
	}
	return &CLI{
		backend:  backend,
		out:      out,
		hostname: hostname,
		username: username,
		Timeout:  30 * time.Second,
	}
}

var errExit = errors.New("exit")

// Run starts the interactive loop and returns when the user exits or
// input ends.
func (c *CLI) Run(historyFile string) error {
	var err error
	c.rl, err = readline.NewEx(&readline.Config{
		Prompt:          c.prompt(),
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    &completer{cli: c},
		Listener:        readline.FuncListener(c.helpKey),
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer c.rl.Close()
	c.out = c.rl.Stdout()

	fmt.Fprintln(c.out, "aeld dialplan shell")
	fmt.Fprintln(c.out, "Type '?' for help")
	fmt.Fprintln(c.out)

	for {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}

		if err := c.Execute(strings.TrimSpace(line)); err != nil {
			if err == errExit {
				return nil
			}
			fmt.Fprintf(c.rl.Stderr(), "error: %s\n", errMessage(err))
		}
	}
}

// errMessage strips the RPC framing from remote errors.
func errMessage(err error) string {
	if st, ok := status.FromError(err); ok {
		return st.Message()
	}
	return err.Error()
}

func (c *CLI) prompt() string {
	return fmt.Sprintf("%s@%s> ", c.username, c.hostname)
}

func (c *CLI) ctx() (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), c.Timeout)
}

// Execute runs one command line, applying a trailing pipe filter.
func (c *CLI) Execute(line string) error {
	if line == "" {
		return nil
	}
	cmd, pipeType, pipeArg, ok := extractPipe(line)
	if !ok {
		return c.dispatch(c.out, line)
	}

	var buf bytes.Buffer
	err := c.dispatch(&buf, cmd)
	applyPipe(c.out, buf.String(), pipeType, pipeArg)
	return err
}

func (c *CLI) dispatch(w io.Writer, line string) error {
	if line == "?" {
		line = "help"
	}
	words, err := cmdtree.Expand(cmdtree.Tree, strings.Fields(line))
	if err != nil {
		return err
	}

	switch words[0] {
	case "load":
		return c.handleLoad(w, words[1:])
	case "check":
		return c.handleCheck(w, words[1:])
	case "reload":
		return c.handleReload(w)
	case "unload":
		return c.handleUnload(w, words[1:])
	case "rollback":
		return c.handleRollback(w, words[1:])
	case "show":
		return c.handleShow(w, words[1:])
	case "help":
		cmdtree.WriteHelp(w, cmdtree.HelpCandidates(cmdtree.Tree))
		return nil
	case "exit", "quit":
		return errExit
	}
	return fmt.Errorf("unknown command: %s", words[0])
}

// --- Pipe filters ---

// extractPipe splits a line at the last "| <filter>" expression.
func extractPipe(line string) (string, string, string, bool) {
	idx := strings.LastIndex(line, " | ")
	if idx < 0 {
		return line, "", "", false
	}
	cmd := strings.TrimSpace(line[:idx])
	pipe := strings.TrimSpace(line[idx+3:])
	pipeType, pipeArg, _ := strings.Cut(pipe, " ")
	if _, ok := cmdtree.PipeFilters[pipeType]; !ok {
		return line, "", "", false
	}
	return cmd, pipeType, strings.TrimSpace(pipeArg), true
}

func applyPipe(w io.Writer, output, pipeType, pipeArg string) {
	lines := strings.Split(output, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	lp := strings.ToLower(pipeArg)

	switch pipeType {
	case "match":
		for _, line := range lines {
			if strings.Contains(strings.ToLower(line), lp) {
				fmt.Fprintln(w, line)
			}
		}
	case "except":
		for _, line := range lines {
			if !strings.Contains(strings.ToLower(line), lp) {
				fmt.Fprintln(w, line)
			}
		}
	case "find":
		found := false
		for _, line := range lines {
			if !found && strings.Contains(strings.ToLower(line), lp) {
				found = true
			}
			if found {
				fmt.Fprintln(w, line)
			}
		}
	case "count":
		fmt.Fprintf(w, "Count: %d lines\n", len(lines))
	case "last":
		n := 10
		if v, err := strconv.Atoi(pipeArg); err == nil && v > 0 {
			n = v
		}
		start := max(len(lines)-n, 0)
		for _, line := range lines[start:] {
			fmt.Fprintln(w, line)
		}
	}
}
