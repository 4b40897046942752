// aeld is the dialplan daemon.
//
// It compiles the scripts named on the command line into its dialplan,
// serves status and metrics over HTTP and the dialplan service over gRPC,
// and recompiles everything on SIGHUP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/psaab/aelc/pkg/api"
	"github.com/psaab/aelc/pkg/daemon"
)

func main() {
	appsFile := flag.String("apps", "", "YAML application database (default: built-in list)")
	maxSteps := flag.Int("max-steps", 0, "step limit per extension or macro (0 = default)")
	force := flag.Bool("force", false, "load scripts even when they have semantic errors")
	history := flag.Int("history", 10, "replaced dialplans kept for rollback")
	apiAddr := flag.String("api-addr", "127.0.0.1:8080", "HTTP API listen address (empty to disable)")
	httpsAddr := flag.String("https-addr", "", "HTTPS API listen address with a self-signed certificate")
	certDir := flag.String("cert-dir", "/var/lib/aeld", "directory holding the HTTPS certificate")
	apiKeys := flag.String("api-keys", "", "comma-separated API keys required by the HTTP API")
	grpcAddr := flag.String("grpc-addr", "127.0.0.1:50051", "gRPC API listen address (empty to disable)")
	syslogAddr := flag.String("syslog", "", "forward log records to this syslog host:port")
	syslogSeverity := flag.String("syslog-severity", "", "minimum forwarded severity: error, warning or info")
	console := flag.Bool("console", false, "run the interactive shell on the terminal")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: aeld [flags] script.ael...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	// Set up structured logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})

	var auth *api.AuthConfig
	if *apiKeys != "" {
		auth = &api.AuthConfig{APIKeys: strings.Split(*apiKeys, ",")}
	}

	d, err := daemon.New(daemon.Options{
		Scripts:        flag.Args(),
		AppsFile:       *appsFile,
		MaxSteps:       *maxSteps,
		Force:          *force,
		History:        *history,
		APIAddr:        *apiAddr,
		HTTPSAddr:      *httpsAddr,
		CertDir:        *certDir,
		APIAuth:        auth,
		GRPCAddr:       *grpcAddr,
		Syslog:         *syslogAddr,
		SyslogSeverity: *syslogSeverity,
		Console:        *console,
		HistoryFile:    "/tmp/aeld_history",
		Handler:        handler,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "aeld: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(d.Logger())

	if err := d.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "aeld: %v\n", err)
		os.Exit(1)
	}
}
