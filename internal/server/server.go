package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/remootio/internal/config"
	"github.com/muurk/remootio/internal/deviceconfig"
	"github.com/muurk/remootio/internal/flow"
	"github.com/muurk/remootio/internal/logging"
	"github.com/muurk/remootio/internal/metrics"
	"github.com/muurk/remootio/internal/mqtt"
	"github.com/muurk/remootio/internal/supervisor"
)

const (
	shutdownTimeout = 10 * time.Second
	httpTimeout     = 60 * time.Second
)

// Config holds the bridge configuration
type Config struct {
	ConfigPath string // Registry file (empty = default location)
	ListenAddr string // Overrides preferences.bridge.listen_addr when set
	LogLevel   string
	NoMQTT     bool // Skip MQTT even when configured
}

// Server is the Remootio bridge: it supervises every configured device and
// serves the HTTP API.
type Server struct {
	config     *Config
	listenAddr string

	store      *config.FileStore
	metrics    *metrics.Metrics
	flow       *flow.ConfigFlow
	supervisor *supervisor.Supervisor
	publisher  *mqtt.Publisher
	handler    http.Handler

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// New creates a new Server instance
func New(cfg *Config) (*Server, error) {
	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	store, err := config.Open(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	prefs := store.Preferences()

	s := &Server{
		config:     cfg,
		listenAddr: prefs.Bridge.ListenAddr,
		store:      store,
		metrics:    metrics.New(),
		ready:      make(chan struct{}),
	}
	if cfg.ListenAddr != "" {
		s.listenAddr = cfg.ListenAddr
	}

	bootstrapper := deviceconfig.NewBootstrapper(logging.Named("bootstrap"))
	s.flow = flow.New(bootstrapper, store,
		flow.WithLogger(logging.Named("flow")),
		flow.WithRecorder(s.metrics),
	)

	supOpts := []supervisor.Option{
		supervisor.WithLogger(logging.Named("supervisor")),
		supervisor.WithRecorder(s.metrics),
		supervisor.WithBackoff(
			time.Duration(prefs.Bridge.RetryInitialDelay)*time.Second,
			time.Duration(prefs.Bridge.RetryMaxDelay)*time.Second,
		),
	}
	if prefs.Bridge.MQTT != nil && !cfg.NoMQTT {
		pub, err := mqtt.Connect(*prefs.Bridge.MQTT, logging.Named("mqtt"))
		if err != nil {
			return nil, err
		}
		s.publisher = pub
		supOpts = append(supOpts, supervisor.WithPublisher(pub))
	}
	s.supervisor = supervisor.New(bootstrapper, store, supOpts...)

	s.handler = NewRouter(Deps{
		Store:      store,
		Flow:       s.flow,
		Supervisor: s.supervisor,
		Metrics:    s.metrics.Handler(),
		Reload:     s.Reload,
	})
	return s, nil
}

// Handler returns the HTTP API handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the bound listen address once the server is running.
func (s *Server) Addr() string {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener.Addr().String()
}

// Reload re-reads the registry file and restarts sessions whose entry
// changed. Used after the config CLI edited the file.
func (s *Server) Reload() error {
	if err := s.store.Reload(); err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	logging.Info("Config reloaded", zap.Int("entries", len(s.store.Entries())))
	if err := s.supervisor.Sync(); err != nil && !errors.Is(err, supervisor.ErrNotRunning) {
		return err
	}
	return nil
}

// Start runs the bridge and blocks until SIGINT or SIGTERM. SIGHUP reloads
// the registry file.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-hup:
				if err := s.Reload(); err != nil {
					logging.Error("Reload failed", zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return s.Run(ctx)
}

// Run serves the API and supervises devices until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.listenAddr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	close(s.ready)

	logging.Info("Starting Remootio bridge",
		zap.String("addr", listener.Addr().String()),
		zap.String("config", s.store.Path()),
		zap.Int("entries", len(s.store.Entries())),
		zap.Bool("mqtt", s.publisher != nil),
	)

	httpServer := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       httpTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      httpTimeout,
		IdleTimeout:       2 * httpTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	supCtx, cancelSup := context.WithCancel(ctx)
	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		if err := s.supervisor.Run(supCtx); err != nil {
			logging.Error("Supervisor stopped", zap.Error(err))
		}
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutdown signal received, stopping bridge...")
	case err = <-errChan:
		logging.Error("HTTP server failed", zap.Error(err))
	}

	cancelSup()
	shutdownErr := s.Shutdown(httpServer, supDone)
	if err != nil {
		return err
	}
	return shutdownErr
}

// Shutdown stops the HTTP server, waits for device sessions to close and
// disconnects from MQTT.
func (s *Server) Shutdown(httpServer *http.Server, supDone <-chan struct{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := httpServer.Shutdown(ctx)
	if err != nil {
		logging.Warn("HTTP shutdown incomplete", zap.Error(err))
	}

	select {
	case <-supDone:
		logging.Info("All device sessions closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	if s.publisher != nil {
		s.publisher.Close()
	}

	logging.Sync()
	return err
}
