// Package grpcapi implements the gRPC API of aeld: the dialplan service
// used by the remote shell and the standard health service.
package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/psaab/aelc/pkg/compiler"
	"github.com/psaab/aelc/pkg/dialplan"
	"github.com/psaab/aelc/pkg/logging"
)

// Config configures the gRPC server.
type Config struct {
	Store   *dialplan.Store
	Scripts *compiler.Scripts
	Records *logging.RecordBuffer
	Compile compiler.Options // used by Check
}

// Service implements DialplanServer over the daemon's state.
type Service struct {
	store     *dialplan.Store
	scripts   *compiler.Scripts
	records   *logging.RecordBuffer
	compile   compiler.Options
	startTime time.Time
}

// NewService creates the in-process dialplan service.
func NewService(cfg Config) *Service {
	return &Service{
		store:     cfg.Store,
		scripts:   cfg.Scripts,
		records:   cfg.Records,
		compile:   cfg.Compile,
		startTime: time.Now(),
	}
}

// Server serves the dialplan and health services.
type Server struct {
	svc    *Service
	health *health.Server
	addr   string
}

// NewServer creates a new gRPC server. It reports NOT_SERVING until
// SetReady(true).
func NewServer(addr string, cfg Config) *Server {
	s := &Server{
		svc:    NewService(cfg),
		health: health.NewServer(),
		addr:   addr,
	}
	s.SetReady(false)
	return s
}

// Service returns the in-process service backing the server.
func (s *Server) Service() *Service { return s.svc }

// SetReady sets the health status of the server and the dialplan service.
func (s *Server) SetReady(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(serviceName, st)
}

// Run starts the gRPC server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("gRPC listen: %w", err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer()
	RegisterDialplanServer(srv, s.svc)
	healthpb.RegisterHealthServer(srv, s.health)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gRPC server listening", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.health.Shutdown()
	srv.GracefulStop()
	return nil
}

// --- Dialplan RPCs ---

func (s *Service) Status(_ context.Context, _ *StatusRequest) (*StatusReply, error) {
	plan := s.store.Plan()
	_, extensions, priorities := plan.Stats()
	reply := &StatusReply{
		Uptime:      time.Since(s.startTime).Truncate(time.Second).String(),
		Sources:     s.store.Sources(),
		Extensions:  extensions,
		Priorities:  priorities,
		Fingerprint: fmt.Sprintf("%016x", dialplan.Fingerprint(plan)),
	}
	for _, c := range plan.Contexts {
		reply.Contexts = append(reply.Contexts, c.Name)
	}
	if s.scripts != nil {
		reply.Scripts = s.scripts.Paths()
	}
	return reply, nil
}

func (s *Service) Load(_ context.Context, req *LoadRequest) (*LoadReply, error) {
	if s.scripts == nil {
		return nil, status.Error(codes.Unavailable, "no script set configured")
	}
	if req.Path == "" {
		return nil, status.Error(codes.InvalidArgument, "path is required")
	}
	r, err := s.scripts.Load(req.Path, req.Force)
	return loadReply(r, err), nil
}

func (s *Service) Check(_ context.Context, req *CheckRequest) (*LoadReply, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, status.Error(codes.InvalidArgument, "content is required")
	}
	file := req.File
	if file == "" {
		file = "check.ael"
	}
	r, err := compiler.CheckSource(file, req.Content, s.compile)
	return loadReply(r, err), nil
}

func loadReply(r *compiler.Run, err error) *LoadReply {
	reply := &LoadReply{Report: report(r)}
	if err != nil {
		reply.Error = err.Error()
	}
	return reply
}

func (s *Service) Reload(ctx context.Context, _ *ReloadRequest) (*ReloadReply, error) {
	if s.scripts == nil {
		return nil, status.Error(codes.Unavailable, "no script set configured")
	}
	err := s.scripts.Reload(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, status.FromContextError(err).Err()
	}
	reply := &ReloadReply{Reports: []*Report{}}
	for _, r := range s.scripts.LastRuns() {
		reply.Reports = append(reply.Reports, report(r))
	}
	if err != nil {
		reply.Error = err.Error()
	}
	return reply, nil
}

func (s *Service) Unload(_ context.Context, req *UnloadRequest) (*UnloadReply, error) {
	if s.scripts == nil {
		return &UnloadReply{Removed: s.store.Remove(req.Path)}, nil
	}
	return &UnloadReply{Removed: s.scripts.Unload(req.Path)}, nil
}

func (s *Service) Rollback(_ context.Context, req *RollbackRequest) (*HistoryItem, error) {
	n := req.N
	if n == 0 {
		n = 1
	}
	entry, err := s.store.Rollback(n)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	slog.Info("dialplan rolled back", "n", n, "source", entry.Source)
	item := historyItem(n, entry)
	return &item, nil
}

func historyItem(index int, e *dialplan.HistoryEntry) HistoryItem {
	return HistoryItem{
		Index:       index,
		Source:      e.Source,
		Timestamp:   e.Timestamp,
		Fingerprint: fmt.Sprintf("%016x", e.Fingerprint),
		Comment:     e.Comment,
	}
}

func (s *Service) History(_ context.Context, _ *HistoryRequest) (*HistoryReply, error) {
	reply := &HistoryReply{Entries: []HistoryItem{}}
	for i, e := range s.store.History() {
		reply.Entries = append(reply.Entries, historyItem(i+1, e))
	}
	return reply, nil
}

func (s *Service) Show(_ context.Context, req *ShowRequest) (*ShowReply, error) {
	plan := s.store.Plan()
	if req.Source != "" {
		plan = s.store.Source(req.Source)
		if plan == nil {
			return nil, status.Errorf(codes.NotFound, "source %q not loaded", req.Source)
		}
	}
	if req.Context != "" {
		c := plan.Context(req.Context)
		if c == nil {
			return nil, status.Errorf(codes.NotFound, "context %q not found", req.Context)
		}
		plan = &dialplan.Plan{Contexts: []*dialplan.Context{c}}
	}
	return &ShowReply{Output: plan.Format()}, nil
}

func (s *Service) Diagnostics(_ context.Context, req *DiagnosticsRequest) (*DiagnosticsReply, error) {
	reply := &DiagnosticsReply{Reports: []*Report{}}
	if s.scripts == nil {
		return reply, nil
	}
	for _, r := range s.scripts.LastRuns() {
		if req.File != "" && r.File != req.File {
			continue
		}
		reply.Reports = append(reply.Reports, report(r))
	}
	return reply, nil
}

func (s *Service) Logs(_ context.Context, req *LogsRequest) (*LogsReply, error) {
	if s.records == nil {
		return nil, status.Error(codes.Unavailable, "log buffer not available")
	}
	level := slog.LevelDebug
	if req.Level != "" {
		if strings.EqualFold(req.Level, "warning") {
			req.Level = "warn"
		}
		if err := level.UnmarshalText([]byte(req.Level)); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid level %q", req.Level)
		}
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	reply := &LogsReply{Entries: []LogEntry{}}
	for _, rec := range s.records.Latest(limit, level, req.Match) {
		reply.Entries = append(reply.Entries, LogEntry{Time: rec.Time, Level: rec.Level.String(), Message: rec.Message})
	}
	return reply, nil
}

func (s *Service) Apps(_ context.Context, req *AppsRequest) (*AppsReply, error) {
	db := s.compile.Apps
	if db == nil {
		return nil, status.Error(codes.Unavailable, "application database not loaded")
	}
	if req.Name == "" {
		return &AppsReply{Names: db.Names()}, nil
	}
	app, ok := db.Lookup(req.Name)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unknown application %q", req.Name)
	}
	return &AppsReply{App: app}, nil
}
