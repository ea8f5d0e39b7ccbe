// Package api serves stored baselines over HTTP.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethpandaops/dbbench/pkg/baseline"
	"github.com/ethpandaops/dbbench/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error

	// Addr returns the bound listen address once started.
	Addr() string
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log         logrus.FieldLogger
	cfg         *config.APIConfig
	store       baseline.Store
	detector    *baseline.Detector
	registry    *prometheus.Registry
	metrics     *metrics
	credentials map[string][]byte
	missHash    []byte
	limiter     *rateLimiterMap
	httpServer  *http.Server
	addr        string
	wg          sync.WaitGroup
	done        chan struct{}
}

// NewServer creates a new API server over store. The server owns the store
// lifecycle: Start starts it and Stop stops it.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.APIConfig,
	store baseline.Store,
	detector *baseline.Detector,
) Server {
	if detector == nil {
		detector = baseline.NewDetector()
	}

	registry := prometheus.NewRegistry()

	return &server{
		log:      log.WithField("component", "api"),
		cfg:      cfg,
		store:    store,
		detector: detector,
		registry: registry,
		metrics:  newMetrics(registry),
		done:     make(chan struct{}),
	}
}

// Start starts the store, loads credentials, and starts the HTTP server.
func (s *server) Start(ctx context.Context) error {
	if err := s.store.Start(ctx); err != nil {
		return fmt.Errorf("starting baseline store: %w", err)
	}

	if err := s.loadCredentials(); err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	listen := s.cfg.Server.Listen
	if listen == "" {
		listen = config.DefaultAPIListen
	}

	s.httpServer = &http.Server{
		Addr:              listen,
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", listen, err)
	}

	s.addr = ln.Addr().String()

	if s.limiter != nil {
		s.wg.Add(1)

		go func() {
			defer s.wg.Done()

			s.limiter.runCleanup(s.done)
		}()
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.addr).
			WithField("store", s.store.Type()).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server and closes the store.
func (s *server) Stop() error {
	close(s.done)

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	if err := s.store.Stop(); err != nil {
		return fmt.Errorf("stopping baseline store: %w", err)
	}

	s.log.Info("API server stopped")

	return nil
}

func (s *server) Addr() string {
	return s.addr
}
