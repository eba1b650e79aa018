// Package main is the entry point for the car control daemon. It wires
// the hardware backend, the mode coordinator, the safety governor, the
// camera and battery subsystems, telemetry, and the HTTP/WebSocket
// gateway, then runs until interrupted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/smilesmith9879/new-car/battery"
	"github.com/smilesmith9879/new-car/camera"
	"github.com/smilesmith9879/new-car/command"
	"github.com/smilesmith9879/new-car/component"
	"github.com/smilesmith9879/new-car/config"
	"github.com/smilesmith9879/new-car/gateway"
	"github.com/smilesmith9879/new-car/hardware"
	"github.com/smilesmith9879/new-car/mapping"
	"github.com/smilesmith9879/new-car/mapstore"
	"github.com/smilesmith9879/new-car/metric"
	"github.com/smilesmith9879/new-car/motion"
	"github.com/smilesmith9879/new-car/natsclient"
	"github.com/smilesmith9879/new-car/pose"
	"github.com/smilesmith9879/new-car/service"
	"github.com/smilesmith9879/new-car/telemetry"
)

const (
	Version = "0.1.0"
	appName = "new-car"

	shutdownTimeout = 10 * time.Second
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\n%s\n", r, buf[:n])
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	logger.Info("starting", "version", Version, "hardware", cfg.Hardware.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var registry *metric.Registry
	if cfg.Metrics.Enabled {
		registry = metric.NewRegistry()
	}

	backend, cleanupBackend, err := buildBackend(cfg.Hardware, logger)
	if err != nil {
		return fmt.Errorf("hardware backend: %w", err)
	}
	defer cleanupBackend()

	natsClient, err := connectNATS(ctx, cfg.NATS, logger)
	if err != nil {
		return err
	}
	if natsClient != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = natsClient.Close(closeCtx)
		}()
	}

	store, err := buildMapStore(ctx, cfg.Storage, natsClient)
	if err != nil {
		return fmt.Errorf("map store: %w", err)
	}

	history, err := buildBatteryHistory(cfg.Battery, logger)
	if err != nil {
		return fmt.Errorf("battery history: %w", err)
	}
	if history != nil {
		defer func() { _ = history.Close() }()
	}

	estimator := pose.NewEstimator()

	governor := motion.NewGovernor(motion.Deps{
		Config:  cfg.Motion.Component(),
		Motors:  backend.motors,
		Metrics: registry,
		Logger:  logger.With("component", "motion"),
	})

	cameraCtl := camera.NewController(camera.Deps{
		Config:  cfg.Camera.Component(),
		Camera:  backend.camera,
		Servos:  backend.servos,
		Metrics: registry,
		Logger:  logger.With("component", "camera"),
	})

	coordinator := mapping.NewCoordinator(mapping.Deps{
		Config:  cfg.Mapping.Component(),
		Pose:    estimator,
		Store:   store,
		Metrics: registry,
		Logger:  logger.With("component", "mapping"),
	})

	monitor := battery.NewMonitor(battery.Deps{
		Config:  cfg.Battery.Component(),
		Sensor:  backend.battery,
		History: history,
		Metrics: registry,
		Logger:  logger.With("component", "battery"),
	})

	dispatcher := command.NewDispatcher(command.Deps{
		Coordinator: coordinator,
		Governor:    governor,
		Camera:      cameraCtl,
		Logger:      logger.With("component", "command"),
	})

	server, err := gateway.NewServer(gateway.Deps{
		Config:      cfg.Gateway.Component(),
		Dispatcher:  dispatcher,
		Coordinator: coordinator,
		Governor:    governor,
		Camera:      cameraCtl,
		Battery:     monitor,
		Pose:        estimator,
		Metrics:     registry,
		Logger:      logger.With("component", "gateway"),
	})
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	sinks := []telemetry.Sink{server.Hub()}
	if natsClient != nil {
		sinks = append(sinks, telemetry.NewNATSSink(natsClient))
	}

	broadcaster := telemetry.NewBroadcaster(telemetry.Deps{
		Config:  cfg.Telemetry.Component(),
		Pose:    estimator,
		Battery: monitor,
		Camera:  cameraCtl,
		Sinks:   sinks,
		Metrics: registry,
		Logger:  logger.With("component", "telemetry"),
	})

	// Start order: safety first, gateway last. Stop runs in reverse.
	manager := service.NewManager(logger.With("component", "service"))
	for _, c := range []component.Lifecycle{
		governor, cameraCtl, monitor, coordinator, broadcaster, server,
	} {
		if err := manager.Register(c); err != nil {
			return fmt.Errorf("register component: %w", err)
		}
	}

	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() { _ = metricsServer.Stop(5 * time.Second) }()
		logger.Info("metrics server listening", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
	}

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("start components: %w", err)
	}

	logger.Info("car ready", "gateway", cfg.Gateway.Addr)
	<-ctx.Done()
	logger.Info("shutdown signal received")

	if err := manager.Stop(shutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// rover groups the hardware drivers from a single backend.
type rover struct {
	motors  hardware.MotorDriver
	servos  hardware.ServoDriver
	camera  hardware.Camera
	battery hardware.BatterySensor
}

// buildBackend selects the hardware drivers. The gst backend captures
// from a real V4L2 camera; motors, servos, and the battery sensor fall
// back to the simulator until a GPIO driver is configured.
func buildBackend(cfg config.HardwareConfig, logger *slog.Logger) (rover, func(), error) {
	sim := hardware.NewSim()
	noop := func() {}

	switch cfg.Backend {
	case "gst":
		cam, err := hardware.NewGstCamera(cfg.GstCamera())
		if err != nil {
			return rover{}, noop, err
		}
		logger.Info("gstreamer camera started", "device", cfg.Device)
		return rover{
			motors:  sim,
			servos:  sim,
			camera:  cam,
			battery: sim,
		}, func() { _ = cam.Close() }, nil
	default:
		return rover{motors: sim, servos: sim, camera: sim, battery: sim}, noop, nil
	}
}

// connectNATS dials the broker when configured. A nil client means the
// car runs standalone.
func connectNATS(ctx context.Context, cfg config.NATSConfig, logger *slog.Logger) (*natsclient.Client, error) {
	if !cfg.Enabled() {
		logger.Info("nats disabled, running standalone")
		return nil, nil
	}

	client, err := natsclient.NewClient(cfg.URL,
		natsclient.WithClientName(cfg.Name),
		natsclient.WithMaxReconnects(cfg.MaxReconnects),
		natsclient.WithReconnectWait(cfg.ReconnectWait),
		natsclient.WithTimeout(cfg.Timeout),
		natsclient.WithLogger(logger.With("component", "natsclient")),
	)
	if err != nil {
		return nil, fmt.Errorf("create nats client: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	logger.Info("nats connected", "url", cfg.URL)
	return client, nil
}

// buildMapStore picks the persistence backend for saved maps.
func buildMapStore(ctx context.Context, cfg config.StorageConfig, client *natsclient.Client) (mapping.Store, error) {
	switch cfg.Backend {
	case "nats":
		if client == nil {
			return nil, fmt.Errorf("storage backend %q requires a nats connection", cfg.Backend)
		}
		return mapstore.NewObjectStore(ctx, client, cfg.Bucket)
	default:
		return mapstore.NewFileStore(cfg.Dir)
	}
}

// buildBatteryHistory opens the sqlite history when a path is set.
func buildBatteryHistory(cfg config.BatteryConfig, logger *slog.Logger) (*battery.HistoryStore, error) {
	if cfg.HistoryPath == "" {
		return nil, nil
	}
	history, err := battery.OpenHistoryStore(cfg.HistoryPath)
	if err != nil {
		return nil, err
	}
	logger.Info("battery history enabled", "path", cfg.HistoryPath)
	return history, nil
}
