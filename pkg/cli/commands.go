package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/psaab/aelc/pkg/grpcapi"
)

func writeReport(w io.Writer, r *grpcapi.Report) {
	fmt.Fprintf(w, "%s: %s, %d steps (%s) in %s\n",
		r.File, r.Result, r.Steps, r.Summary, r.Duration.Round(time.Microsecond))
	if r.Dropped > 0 {
		fmt.Fprintf(w, "  %d units dropped for exceeding the step limit\n", r.Dropped)
	}
	for _, d := range r.Diagnostics {
		fmt.Fprintf(w, "  %s\n", d)
	}
}

func (c *CLI) handleLoad(w io.Writer, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: load <file> [force]")
	}
	force := len(args) > 1 && args[1] == "force"
	ctx, cancel := c.ctx()
	defer cancel()
	reply, err := c.backend.Load(ctx, &grpcapi.LoadRequest{Path: args[0], Force: force})
	if err != nil {
		return err
	}
	writeReport(w, reply.Report)
	if reply.Error != "" {
		return errors.New(reply.Error)
	}
	return nil
}

// handleCheck reads the file where the shell runs and compiles it on the
// daemon, so a remote shell can check a local draft.
func (c *CLI) handleCheck(w io.Writer, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: check <file>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	reply, err := c.backend.Check(ctx, &grpcapi.CheckRequest{File: args[0], Content: string(data)})
	if err != nil {
		return err
	}
	writeReport(w, reply.Report)
	if reply.Error != "" {
		return errors.New(reply.Error)
	}
	if reply.Report.Result == "rejected" {
		return fmt.Errorf("%s would be rejected: %s", args[0], reply.Report.Summary)
	}
	return nil
}

func (c *CLI) handleReload(w io.Writer) error {
	ctx, cancel := c.ctx()
	defer cancel()
	reply, err := c.backend.Reload(ctx, &grpcapi.ReloadRequest{})
	if err != nil {
		return err
	}
	for _, r := range reply.Reports {
		writeReport(w, r)
	}
	if reply.Error != "" {
		return errors.New(reply.Error)
	}
	return nil
}

func (c *CLI) handleUnload(w io.Writer, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: unload <source>")
	}
	ctx, cancel := c.ctx()
	defer cancel()
	reply, err := c.backend.Unload(ctx, &grpcapi.UnloadRequest{Path: args[0]})
	if err != nil {
		return err
	}
	if !reply.Removed {
		return fmt.Errorf("%s is not loaded", args[0])
	}
	fmt.Fprintf(w, "%s unloaded\n", args[0])
	return nil
}

func (c *CLI) handleRollback(w io.Writer, args []string) error {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			return fmt.Errorf("rollback: invalid index %q", args[0])
		}
		n = v
	}
	ctx, cancel := c.ctx()
	defer cancel()
	item, err := c.backend.Rollback(ctx, &grpcapi.RollbackRequest{N: n})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s rolled back to the content of %s\n", item.Source, item.Timestamp.Format(time.DateTime))
	return nil
}

func (c *CLI) handleShow(w io.Writer, args []string) error {
	if len(args) == 0 {
		return errors.New("show: specify what to show")
	}
	ctx, cancel := c.ctx()
	defer cancel()

	switch args[0] {
	case "dialplan":
		req := &grpcapi.ShowRequest{}
		if len(args) >= 3 {
			switch args[1] {
			case "context":
				req.Context = args[2]
			case "source":
				req.Source = args[2]
			}
		}
		reply, err := c.backend.Show(ctx, req)
		if err != nil {
			return err
		}
		io.WriteString(w, reply.Output)
		return nil

	case "status":
		st, err := c.backend.Status(ctx, &grpcapi.StatusRequest{})
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "Uptime:\t%s\n", st.Uptime)
		fmt.Fprintf(tw, "Scripts:\t%s\n", strings.Join(st.Scripts, ", "))
		fmt.Fprintf(tw, "Contexts:\t%d\n", len(st.Contexts))
		fmt.Fprintf(tw, "Extensions:\t%d\n", st.Extensions)
		fmt.Fprintf(tw, "Priorities:\t%d\n", st.Priorities)
		fmt.Fprintf(tw, "Fingerprint:\t%s\n", st.Fingerprint)
		return tw.Flush()

	case "contexts", "sources":
		st, err := c.backend.Status(ctx, &grpcapi.StatusRequest{})
		if err != nil {
			return err
		}
		list := st.Contexts
		if args[0] == "sources" {
			list = st.Sources
		}
		for _, name := range list {
			fmt.Fprintln(w, name)
		}
		return nil

	case "history":
		reply, err := c.backend.History(ctx, &grpcapi.HistoryRequest{})
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tTime\tSource\tFingerprint\tComment")
		for _, e := range reply.Entries {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
				e.Index, e.Timestamp.Format(time.DateTime), e.Source, e.Fingerprint, e.Comment)
		}
		return tw.Flush()

	case "diagnostics":
		req := &grpcapi.DiagnosticsRequest{}
		if len(args) > 1 {
			req.File = args[1]
		}
		reply, err := c.backend.Diagnostics(ctx, req)
		if err != nil {
			return err
		}
		if len(reply.Reports) == 0 {
			fmt.Fprintln(w, "no compile runs")
		}
		for _, r := range reply.Reports {
			writeReport(w, r)
		}
		return nil

	case "log":
		req := &grpcapi.LogsRequest{Limit: 50}
		if len(args) > 1 {
			req.Level = args[1]
		}
		reply, err := c.backend.Logs(ctx, req)
		if err != nil {
			return err
		}
		// Oldest first, like a log file.
		for i := len(reply.Entries) - 1; i >= 0; i-- {
			e := reply.Entries[i]
			fmt.Fprintf(w, "%s %-5s %s\n", e.Time.Format("15:04:05.000"), e.Level, e.Message)
		}
		return nil

	case "apps":
		req := &grpcapi.AppsRequest{}
		if len(args) > 1 {
			req.Name = args[1]
		}
		reply, err := c.backend.Apps(ctx, req)
		if err != nil {
			return err
		}
		if reply.App == nil {
			for _, name := range reply.Names {
				fmt.Fprintln(w, name)
			}
			return nil
		}
		writeApp(w, reply)
		return nil
	}
	return fmt.Errorf("show: unknown topic %q", args[0])
}

func writeApp(w io.Writer, reply *grpcapi.AppsReply) {
	app := reply.App
	var args []string
	for _, a := range app.Args {
		s := a.Name
		if a.Type != "" {
			s += ":" + a.Type
		}
		if !a.Required {
			s = "[" + s + "]"
		}
		args = append(args, s)
	}
	if app.Variadic {
		args = append(args, "...")
	}
	fmt.Fprintf(w, "%s(%s)\n", app.Name, strings.Join(args, ","))
	for v, values := range app.Sets {
		fmt.Fprintf(w, "  sets %s: %s\n", v, strings.Join(values, " "))
	}
}
