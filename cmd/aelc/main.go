// aelc is the batch dialplan compiler.
//
// It compiles each script, prints its diagnostics and loads the result into
// an in-memory dialplan in command-line order, so conflicts between scripts
// are reported the way the daemon would report them. The exit status is 1
// when any script fails to parse or would be rejected.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/psaab/aelc/pkg/appdb"
	"github.com/psaab/aelc/pkg/compiler"
	"github.com/psaab/aelc/pkg/dialplan"
	"github.com/psaab/aelc/pkg/metrics"
)

func main() {
	appsFile := flag.String("apps", "", "YAML application database (default: built-in list)")
	noApps := flag.Bool("no-apps", false, "skip application argument checks")
	dumpApps := flag.Bool("dump-apps", false, "print the application database as YAML and exit")
	maxSteps := flag.Int("max-steps", 0, "step limit per extension or macro (0 = default)")
	force := flag.Bool("force", false, "load scripts even when they have semantic errors")
	show := flag.Bool("show", false, "print the resulting dialplan")
	format := flag.Bool("fmt", false, "print each parsed script in canonical form")
	debug := flag.Bool("debug", false, "log compile progress to stderr")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: aelc [flags] script.ael...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	apps := appdb.Builtin()
	if *appsFile != "" {
		db, err := appdb.Load(*appsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "aelc: %v\n", err)
			os.Exit(1)
		}
		apps = db
	}
	if *dumpApps {
		out, err := apps.Marshal()
		if err != nil {
			fmt.Fprintf(os.Stderr, "aelc: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}
	if *noApps {
		apps = nil
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// Diagnostics go to stdout below; the log stream only with -debug.
	var logger *slog.Logger
	if *debug {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	} else {
		logger = slog.New(slog.DiscardHandler)
	}

	store := dialplan.New(0)
	opts := compiler.Options{
		Apps:     apps,
		Logger:   logger,
		MaxSteps: *maxSteps,
		Force:    *force,
	}

	failed := false
	for _, path := range flag.Args() {
		r, err := compiler.CompileFile(path, opts)
		if err == nil {
			err = r.Load(store)
		}
		for _, d := range r.Diags.Sorted() {
			fmt.Println(d)
		}
		if *format && r.Tree != nil {
			fmt.Print(r.Tree.Format())
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "aelc: %v\n", err)
			failed = true
			continue
		}
		fmt.Fprintf(os.Stderr, "%s: %s, %d steps (%s)\n", path, r.Result, r.Steps, r.Diags.Summary())
		if r.Dropped > 0 {
			failed = true
		}
		if r.Result != metrics.ResultLoaded {
			failed = true
		}
	}

	if *show {
		fmt.Print(store.Show())
	}
	if failed {
		os.Exit(1)
	}
}
