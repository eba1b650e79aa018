// Package gateway exposes the vehicle over HTTP and WebSocket. REST
// endpoints drive the controllers directly; the /ws hub pushes pose,
// battery, and camera frames to connected clients.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smilesmith9879/new-car/battery"
	"github.com/smilesmith9879/new-car/camera"
	"github.com/smilesmith9879/new-car/command"
	"github.com/smilesmith9879/new-car/component"
	"github.com/smilesmith9879/new-car/errors"
	"github.com/smilesmith9879/new-car/mapping"
	"github.com/smilesmith9879/new-car/metric"
	"github.com/smilesmith9879/new-car/motion"
	"github.com/smilesmith9879/new-car/pose"
)

// Config holds the HTTP server settings.
type Config struct {
	Addr            string        `json:"addr"`
	MaxRequestSize  int64         `json:"max_request_size"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	EnableCORS      bool          `json:"enable_cors"`
	CORSOrigins     []string      `json:"cors_origins"`
}

// DefaultConfig returns the default gateway settings.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxRequestSize:  1 << 20, // 1 MiB
		ShutdownTimeout: 5 * time.Second,
		EnableCORS:      true,
		CORSOrigins:     []string{"*"},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.WrapInvalidArgument(
			fmt.Errorf("listen address cannot be empty"),
			"gateway", "Validate", "config validation")
	}
	if c.MaxRequestSize <= 0 {
		return errors.WrapInvalidArgument(
			fmt.Errorf("max request size %d must be positive", c.MaxRequestSize),
			"gateway", "Validate", "config validation")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.WrapInvalidArgument(
			fmt.Errorf("shutdown timeout %v must be positive", c.ShutdownTimeout),
			"gateway", "Validate", "config validation")
	}
	return nil
}

// Deps holds everything the gateway serves.
type Deps struct {
	Config      Config
	Dispatcher  *command.Dispatcher
	Coordinator *mapping.Coordinator
	Governor    *motion.Governor
	Camera      *camera.Controller
	Battery     *battery.Monitor
	Pose        *pose.Estimator
	Metrics     *metric.Registry
	Logger      *slog.Logger
}

// Server is the HTTP + WebSocket front end.
type Server struct {
	cfg         Config
	dispatcher  *command.Dispatcher
	coordinator *mapping.Coordinator
	governor    *motion.Governor
	camera      *camera.Controller
	battery     *battery.Monitor
	pose        *pose.Estimator
	logger      *slog.Logger
	metrics     *serverMetrics

	hub *Hub

	server      *http.Server
	running     atomic.Bool
	lifecycleMu sync.Mutex
	wg          sync.WaitGroup

	startTime  time.Time
	errorCount atomic.Int64
}

// NewServer creates the gateway. Hub() is usable immediately so the
// telemetry broadcaster can be wired before Start.
func NewServer(deps Deps) (*Server, error) {
	cfg := deps.Config
	if cfg.Addr == "" {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "gateway")
	}

	metrics := newServerMetrics(deps.Metrics)

	return &Server{
		cfg:         cfg,
		dispatcher:  deps.Dispatcher,
		coordinator: deps.Coordinator,
		governor:    deps.Governor,
		camera:      deps.Camera,
		battery:     deps.Battery,
		pose:        deps.Pose,
		logger:      logger,
		metrics:     metrics,
		hub:         newHub(logger, metrics),
	}, nil
}

// Hub returns the WebSocket hub. It implements telemetry.Sink.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Meta returns the component metadata.
func (s *Server) Meta() component.Metadata {
	return component.Metadata{
		Name:        "gateway",
		Type:        "transport",
		Description: fmt.Sprintf("HTTP and WebSocket server on %s", s.cfg.Addr),
	}
}

// Start begins serving. The listener runs until Stop.
func (s *Server) Start(_ context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.running.CompareAndSwap(false, true) {
		return errors.WrapInvalidState(errors.ErrAlreadyStarted,
			"gateway", "Start", "running state check")
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.startTime = time.Now()

	s.wg.Add(1)
	go s.runServer()

	s.logger.Info("gateway listening", "addr", s.cfg.Addr)
	return nil
}

func (s *Server) runServer() {
	defer s.wg.Done()

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.errorCount.Add(1)
		s.logger.Error("http server failed", "error", err)
	}
}

// Stop drains in-flight requests, then closes the hub.
func (s *Server) Stop(timeout time.Duration) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http server shutdown", "error", err)
	}

	s.hub.Close()
	s.wg.Wait()
	s.logger.Info("gateway stopped")
	return nil
}

// Health reports the current health status.
func (s *Server) Health() component.HealthStatus {
	running := s.running.Load()
	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(s.errorCount.Load()),
		Uptime:     time.Since(s.startTime),
	}
}
