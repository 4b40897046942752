package api

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/psaab/aelc/pkg/compiler"
	"github.com/psaab/aelc/pkg/dialplan"
	"github.com/psaab/aelc/pkg/logging"
	"github.com/psaab/aelc/pkg/metrics"
)

// Reloader recompiles the daemon's scripts and remembers the most recent
// run of each.
type Reloader interface {
	Reload(ctx context.Context) error
	LastRuns() []*compiler.Run
}

// Config configures the API server.
type Config struct {
	Addr      string
	HTTPSAddr string      // HTTPS listen address (empty = no HTTPS)
	TLS       bool        // enable HTTPS with a self-signed certificate
	CertDir   string      // where the certificate is kept across restarts
	Auth      *AuthConfig // nil = no authentication
	Store     *dialplan.Store
	Metrics   *metrics.Collector
	Records   *logging.RecordBuffer
	Reloader  Reloader
	Compile   compiler.Options // used by the check endpoint
}

// Server is the HTTP API server.
type Server struct {
	httpServer  *http.Server
	httpsServer *http.Server
	store       *dialplan.Store
	records     *logging.RecordBuffer
	reloader    Reloader
	compile     compiler.Options
	startTime   time.Time
}

// NewServer creates a new API server.
func NewServer(cfg Config) *Server {
	s := &Server{
		store:     cfg.Store,
		records:   cfg.Records,
		reloader:  cfg.Reloader,
		compile:   cfg.Compile,
		startTime: time.Now(),
	}

	var handler http.Handler = s.routes(cfg.Metrics)
	if cfg.Auth != nil {
		handler = authMiddleware(*cfg.Auth, handler)
	}

	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	if cfg.TLS && cfg.HTTPSAddr != "" {
		tlsCert, err := generateSelfSignedCert(cfg.CertDir)
		if err != nil {
			slog.Warn("failed to generate self-signed certificate", "err", err)
		} else {
			s.httpsServer = &http.Server{
				Addr:    cfg.HTTPSAddr,
				Handler: handler,
				TLSConfig: &tls.Config{
					Certificates: []tls.Certificate{tlsCert},
					MinVersion:   tls.VersionTLS12,
				},
			}
		}
	}

	return s
}

func (s *Server) routes(collector *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Prometheus metrics with isolated registry
	registry := prometheus.NewRegistry()
	if collector != nil {
		registry.MustRegister(collector)
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /api/v1/status", s.statusHandler)
	mux.HandleFunc("GET /api/v1/dialplan", s.dialplanHandler)
	mux.HandleFunc("GET /api/v1/dialplan/show", s.dialplanShowHandler)
	mux.HandleFunc("GET /api/v1/sources", s.sourcesHandler)
	mux.HandleFunc("GET /api/v1/diagnostics", s.diagnosticsHandler)
	mux.HandleFunc("GET /api/v1/history", s.historyHandler)
	mux.HandleFunc("GET /api/v1/apps", s.appsHandler)
	mux.HandleFunc("GET /api/v1/logs", s.logsHandler)

	mux.HandleFunc("POST /api/v1/reload", s.reloadHandler)
	mux.HandleFunc("POST /api/v1/rollback", s.rollbackHandler)
	mux.HandleFunc("POST /api/v1/check", s.checkHandler)

	mux.HandleFunc("GET /api/v1/logs/stream", s.logStreamHandler)
	return mux
}

// Run starts the HTTP (and optionally HTTPS) server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP API server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if s.httpsServer != nil {
		go func() {
			slog.Info("HTTPS API server listening", "addr", s.httpsServer.Addr)
			if err := s.httpsServer.ListenAndServeTLS("", ""); err != http.ErrServerClosed {
				errCh <- err
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.httpsServer != nil {
		s.httpsServer.Shutdown(shutdownCtx)
	}
	return s.httpServer.Shutdown(shutdownCtx)
}

// generateSelfSignedCert loads the certificate kept in dir, or generates
// an ECDSA P-256 one and stores it there for reuse across restarts. An
// empty dir keeps the certificate in memory only.
func generateSelfSignedCert(dir string) (tls.Certificate, error) {
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")
	if dir != "" {
		if cert, err := tls.LoadX509KeyPair(certPath, keyPath); err == nil {
			return cert, nil
		}
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "aeld"
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: hostname, Organization: []string{"aeld"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(10 * 365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return tls.Certificate{}, err
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	if dir != "" {
		os.MkdirAll(dir, 0700)
		os.WriteFile(certPath, certPEM, 0644)
		os.WriteFile(keyPath, keyPEM, 0600)
	}

	return tls.X509KeyPair(certPEM, keyPEM)
}
