// Package daemon implements the aeld daemon lifecycle.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/psaab/aelc/pkg/api"
	"github.com/psaab/aelc/pkg/appdb"
	"github.com/psaab/aelc/pkg/cli"
	"github.com/psaab/aelc/pkg/compiler"
	"github.com/psaab/aelc/pkg/dialplan"
	"github.com/psaab/aelc/pkg/grpcapi"
	"github.com/psaab/aelc/pkg/logging"
	"github.com/psaab/aelc/pkg/metrics"
)

// Options configures the daemon.
type Options struct {
	Scripts  []string // loaded in order; earlier scripts win shared extensions
	AppsFile string   // YAML application database; empty uses the built-ins
	MaxSteps int
	Force    bool // load scripts with semantic errors
	History  int  // replaced dialplans kept for rollback

	APIAddr   string // HTTP API listen address (empty = disabled)
	HTTPSAddr string
	CertDir   string
	APIAuth   *api.AuthConfig
	GRPCAddr  string // gRPC listen address (empty = disabled)

	Syslog         string // host:port of a syslog collector
	SyslogSeverity string // error, warning or info

	Console     bool // run the interactive shell on stdin
	HistoryFile string

	// Handler receives the daemon's log records; nil uses the default
	// logger's handler.
	Handler slog.Handler
	Records int // log records kept for "show log"
}

// Daemon is the main aeld daemon.
type Daemon struct {
	opts    Options
	logger  *slog.Logger
	tee     *logging.TeeHandler
	records *logging.RecordBuffer
	store   *dialplan.Store
	metrics *metrics.Collector
	scripts *compiler.Scripts
	svc     *grpcapi.Service
	grpc    *grpcapi.Server
	api     *api.Server
}

// New creates a daemon. Nothing is loaded until Run.
func New(opts Options) (*Daemon, error) {
	if opts.History <= 0 {
		opts.History = 10
	}
	if opts.Records <= 0 {
		opts.Records = 1000
	}
	base := opts.Handler
	if base == nil {
		base = slog.Default().Handler()
	}

	d := &Daemon{
		opts:    opts,
		records: logging.NewRecordBuffer(opts.Records),
		store:   dialplan.New(opts.History),
	}
	d.tee = logging.NewTeeHandler(base, d.records)
	d.logger = slog.New(d.tee)

	if opts.Syslog != "" {
		client, err := logging.NewSyslogClient(opts.Syslog, "aeld")
		if err != nil {
			return nil, err
		}
		client.MinSeverity = logging.ParseSeverity(opts.SyslogSeverity)
		d.tee.SetSyslog(client)
	}

	apps := appdb.Builtin()
	if opts.AppsFile != "" {
		db, err := appdb.Load(opts.AppsFile)
		if err != nil {
			d.tee.Close()
			return nil, err
		}
		apps = db
	}

	d.metrics = metrics.New(d.store)
	compile := compiler.Options{
		Apps:     apps,
		Logger:   d.logger,
		MaxSteps: opts.MaxSteps,
		Force:    opts.Force,
		Metrics:  d.metrics,
	}
	d.scripts = compiler.NewScripts(d.store, compile, opts.Scripts...)

	cfg := grpcapi.Config{
		Store:   d.store,
		Scripts: d.scripts,
		Records: d.records,
		Compile: compile,
	}
	if opts.GRPCAddr != "" {
		d.grpc = grpcapi.NewServer(opts.GRPCAddr, cfg)
		d.svc = d.grpc.Service()
		d.scripts.OnReload = d.grpc.SetReady
	} else {
		d.svc = grpcapi.NewService(cfg)
	}

	if opts.APIAddr != "" {
		d.api = api.NewServer(api.Config{
			Addr:      opts.APIAddr,
			HTTPSAddr: opts.HTTPSAddr,
			TLS:       opts.HTTPSAddr != "",
			CertDir:   opts.CertDir,
			Auth:      opts.APIAuth,
			Store:     d.store,
			Metrics:   d.metrics,
			Records:   d.records,
			Reloader:  d.scripts,
			Compile:   compile,
		})
	}
	return d, nil
}

// Logger returns the logger that feeds the daemon's record buffer and
// syslog forwarding.
func (d *Daemon) Logger() *slog.Logger { return d.logger }

// Store returns the daemon's dialplan.
func (d *Daemon) Store() *dialplan.Store { return d.store }

// Run loads the configured scripts, starts the enabled servers and blocks
// until ctx is cancelled, a termination signal arrives or the console
// shell exits.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.tee.Close()
	d.logger.Info("starting aeld daemon",
		"scripts", len(d.opts.Scripts),
		"pid", os.Getpid())

	ctx, stop := signal.NotifyContext(ctx, unix.SIGTERM, unix.SIGINT)
	defer stop()

	if err := d.scripts.Reload(ctx); err != nil {
		d.logger.Warn("initial load incomplete", "err", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if d.api != nil {
		g.Go(func() error { return d.api.Run(gctx) })
	}
	if d.grpc != nil {
		g.Go(func() error { return d.grpc.Run(gctx) })
	}
	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, unix.SIGHUP)
		defer signal.Stop(hup)
		d.reloadOnHangup(gctx, hup)
		return nil
	})

	// The shell blocks in readline, so it stays outside the group and is
	// abandoned on shutdown.
	shellDone := make(chan error, 1)
	if d.opts.Console {
		shell := cli.New(d.svc, nil)
		go func() { shellDone <- shell.Run(d.opts.HistoryFile) }()
	}

	var runErr error
	select {
	case err := <-shellDone:
		if err != nil {
			runErr = fmt.Errorf("CLI: %w", err)
		}
	case <-gctx.Done():
		if ctx.Err() != nil {
			d.logger.Info("signal received, shutting down")
		}
	}

	stop()
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	_, extensions, priorities := d.store.Plan().Stats()
	d.logger.Info("shutdown complete", "extensions", extensions, "priorities", priorities)
	return runErr
}

// reloadOnHangup recompiles every script each time hup fires.
func (d *Daemon) reloadOnHangup(ctx context.Context, hup <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			d.logger.Info("SIGHUP received, reloading scripts")
			if err := d.scripts.Reload(ctx); err != nil {
				d.logger.Warn("reload failed", "err", err)
			}
		}
	}
}
