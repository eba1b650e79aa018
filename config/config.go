// Package config loads the vehicle configuration from file and
// environment. Every component keeps its own Config type; this package
// aggregates them, applies defaults, and validates the whole set before
// wiring starts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/smilesmith9879/new-car/battery"
	"github.com/smilesmith9879/new-car/camera"
	"github.com/smilesmith9879/new-car/gateway"
	"github.com/smilesmith9879/new-car/hardware"
	"github.com/smilesmith9879/new-car/mapping"
	"github.com/smilesmith9879/new-car/motion"
	"github.com/smilesmith9879/new-car/telemetry"
)

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Hardware  HardwareConfig  `mapstructure:"hardware"`
	Motion    MotionConfig    `mapstructure:"motion"`
	Camera    CameraConfig    `mapstructure:"camera"`
	Mapping   MappingConfig   `mapstructure:"mapping"`
	Battery   BatteryConfig   `mapstructure:"battery"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// HardwareConfig selects the hardware backend and camera device.
type HardwareConfig struct {
	Backend string  `mapstructure:"backend"` // sim, gst
	Device  string  `mapstructure:"device"`
	Width   int     `mapstructure:"width"`
	Height  int     `mapstructure:"height"`
	FPS     float64 `mapstructure:"fps"`
	Quality int     `mapstructure:"quality"`
}

// GstCamera converts to the hardware capture settings.
func (c HardwareConfig) GstCamera() hardware.GstCameraConfig {
	return hardware.GstCameraConfig{
		Device:    c.Device,
		Width:     c.Width,
		Height:    c.Height,
		TargetFPS: c.FPS,
		Quality:   c.Quality,
	}
}

// MotionConfig holds the watchdog timing.
type MotionConfig struct {
	WatchdogInterval time.Duration `mapstructure:"watchdog_interval"`
	StaleAfter       time.Duration `mapstructure:"stale_after"`
}

// Component converts to the motion package config.
func (c MotionConfig) Component() motion.Config {
	return motion.Config{
		WatchdogInterval: c.WatchdogInterval,
		StaleAfter:       c.StaleAfter,
	}
}

// CameraConfig holds the streaming timing.
type CameraConfig struct {
	FrameInterval time.Duration `mapstructure:"frame_interval"`
	ErrorBackoff  time.Duration `mapstructure:"error_backoff"`
}

// Component converts to the camera package config.
func (c CameraConfig) Component() camera.Config {
	return camera.Config{
		FrameInterval: c.FrameInterval,
		ErrorBackoff:  c.ErrorBackoff,
	}
}

// MappingConfig holds the mapping and navigation timing.
type MappingConfig struct {
	TickInterval  time.Duration `mapstructure:"tick_interval"`
	JoinTimeout   time.Duration `mapstructure:"join_timeout"`
	ArrivalRadius float64       `mapstructure:"arrival_radius"`
	NavSpeed      float64       `mapstructure:"nav_speed"`
}

// Component converts to the mapping package config.
func (c MappingConfig) Component() mapping.Config {
	return mapping.Config{
		TickInterval:  c.TickInterval,
		JoinTimeout:   c.JoinTimeout,
		ArrivalRadius: c.ArrivalRadius,
		NavSpeed:      c.NavSpeed,
	}
}

// BatteryConfig holds the monitor timing and optional sqlite history.
type BatteryConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	HistorySize int           `mapstructure:"history_size"`
	HistoryPath string        `mapstructure:"history_path"` // empty disables persistence
}

// Component converts to the battery package config.
func (c BatteryConfig) Component() battery.Config {
	return battery.Config{
		Interval:    c.Interval,
		HistorySize: c.HistorySize,
	}
}

// TelemetryConfig holds the broadcast timing.
type TelemetryConfig struct {
	PoseInterval    time.Duration `mapstructure:"pose_interval"`
	BatteryInterval time.Duration `mapstructure:"battery_interval"`
	FrameInterval   time.Duration `mapstructure:"frame_interval"`
	ErrorBackoff    time.Duration `mapstructure:"error_backoff"`
}

// Component converts to the telemetry package config.
func (c TelemetryConfig) Component() telemetry.Config {
	return telemetry.Config{
		PoseInterval:    c.PoseInterval,
		BatteryInterval: c.BatteryInterval,
		FrameInterval:   c.FrameInterval,
		ErrorBackoff:    c.ErrorBackoff,
	}
}

// GatewayConfig holds the HTTP server settings.
type GatewayConfig struct {
	Addr            string        `mapstructure:"addr"`
	MaxRequestSize  int64         `mapstructure:"max_request_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EnableCORS      bool          `mapstructure:"enable_cors"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// Component converts to the gateway package config.
func (c GatewayConfig) Component() gateway.Config {
	return gateway.Config{
		Addr:            c.Addr,
		MaxRequestSize:  c.MaxRequestSize,
		ShutdownTimeout: c.ShutdownTimeout,
		EnableCORS:      c.EnableCORS,
		CORSOrigins:     c.CORSOrigins,
	}
}

// NATSConfig holds the messaging settings. An empty URL disables NATS.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Name          string        `mapstructure:"name"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether a NATS connection is configured.
func (c NATSConfig) Enabled() bool {
	return c.URL != ""
}

// StorageConfig selects where maps are persisted.
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // file, nats
	Dir     string `mapstructure:"dir"`
	Bucket  string `mapstructure:"bucket"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file and env. Env var overrides use
// prefix CAR_, e.g. CAR_GATEWAY_ADDR=:9000.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")

	cfgPath := os.Getenv("CAR_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath("/etc/car")
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "car"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("CAR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// config file is optional
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("hardware.backend", "sim")
	gstDefaults := hardware.DefaultGstCameraConfig()
	v.SetDefault("hardware.device", gstDefaults.Device)
	v.SetDefault("hardware.width", gstDefaults.Width)
	v.SetDefault("hardware.height", gstDefaults.Height)
	v.SetDefault("hardware.fps", gstDefaults.TargetFPS)
	v.SetDefault("hardware.quality", gstDefaults.Quality)

	motionDefaults := motion.DefaultConfig()
	v.SetDefault("motion.watchdog_interval", motionDefaults.WatchdogInterval)
	v.SetDefault("motion.stale_after", motionDefaults.StaleAfter)

	cameraDefaults := camera.DefaultConfig()
	v.SetDefault("camera.frame_interval", cameraDefaults.FrameInterval)
	v.SetDefault("camera.error_backoff", cameraDefaults.ErrorBackoff)

	mappingDefaults := mapping.DefaultConfig()
	v.SetDefault("mapping.tick_interval", mappingDefaults.TickInterval)
	v.SetDefault("mapping.join_timeout", mappingDefaults.JoinTimeout)
	v.SetDefault("mapping.arrival_radius", mappingDefaults.ArrivalRadius)
	v.SetDefault("mapping.nav_speed", mappingDefaults.NavSpeed)

	batteryDefaults := battery.DefaultConfig()
	v.SetDefault("battery.interval", batteryDefaults.Interval)
	v.SetDefault("battery.history_size", batteryDefaults.HistorySize)
	v.SetDefault("battery.history_path", "")

	telemetryDefaults := telemetry.DefaultConfig()
	v.SetDefault("telemetry.pose_interval", telemetryDefaults.PoseInterval)
	v.SetDefault("telemetry.battery_interval", telemetryDefaults.BatteryInterval)
	v.SetDefault("telemetry.frame_interval", telemetryDefaults.FrameInterval)
	v.SetDefault("telemetry.error_backoff", telemetryDefaults.ErrorBackoff)

	gatewayDefaults := gateway.DefaultConfig()
	v.SetDefault("gateway.addr", gatewayDefaults.Addr)
	v.SetDefault("gateway.max_request_size", gatewayDefaults.MaxRequestSize)
	v.SetDefault("gateway.shutdown_timeout", gatewayDefaults.ShutdownTimeout)
	v.SetDefault("gateway.enable_cors", gatewayDefaults.EnableCORS)
	v.SetDefault("gateway.cors_origins", gatewayDefaults.CORSOrigins)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.name", "car")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("nats.timeout", 5*time.Second)

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.dir", filepath.Join(os.Getenv("HOME"), ".local", "share", "car", "maps"))
	v.SetDefault("storage.bucket", "CAR_MAPS")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks every component configuration.
func (c Config) Validate() error {
	if err := c.Motion.Component().Validate(); err != nil {
		return err
	}
	if err := c.Camera.Component().Validate(); err != nil {
		return err
	}
	if err := c.Mapping.Component().Validate(); err != nil {
		return err
	}
	if err := c.Battery.Component().Validate(); err != nil {
		return err
	}
	if err := c.Telemetry.Component().Validate(); err != nil {
		return err
	}
	if err := c.Gateway.Component().Validate(); err != nil {
		return err
	}
	switch c.Hardware.Backend {
	case "sim", "gst":
	default:
		return fmt.Errorf("unknown hardware backend %q", c.Hardware.Backend)
	}
	switch c.Storage.Backend {
	case "file", "nats":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}
