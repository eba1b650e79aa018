// Package car is the control system for a small wheeled robot: mode
// coordination (idle, mapping, navigating), actuator safety, camera
// streaming, battery monitoring, and telemetry fan-out over HTTP,
// WebSocket, and NATS.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│           gateway                   │  REST + /ws hub
//	│   (HTTP API, WebSocket clients)     │
//	└──────────────┬──────────────────────┘
//	               │ drives
//	┌──────────────┴──────────────────────┐
//	│  command → mapping / motion / camera │  structured commands,
//	│            battery / telemetry       │  mode coordination
//	└──────────────┬──────────────────────┘
//	               │ reads/writes
//	┌──────────────┴──────────────────────┐
//	│           hardware                  │  motors, servos,
//	│   (sim backend, GStreamer camera)   │  battery sensor
//	└─────────────────────────────────────┘
//
// The mapping coordinator owns the vehicle mode. All transitions pass
// through Idle and are atomic check-and-set, so mapping and navigation
// can never run at once. The motion governor is the single path to the
// wheels; a watchdog stops the motors when commands go stale.
//
// # Packages
//
// Control:
//   - motion: movement validation, duty mapping, command watchdog
//   - mapping: mode coordinator, survey generation, navigation loop
//   - camera: gimbal control and frame streaming
//   - command: structured command dispatch with typo suggestions
//
// Sensing and telemetry:
//   - pose: shared position/orientation estimate
//   - battery: periodic telemetry sampling with sqlite history
//   - telemetry: periodic pose/battery/frame broadcast to sinks
//
// Infrastructure:
//   - component: lifecycle and health contracts
//   - service: ordered component start/stop
//   - config: viper-based configuration
//   - errors: classified errors (kind + component + operation)
//   - metric: Prometheus registry and endpoint
//   - natsclient: NATS connection with circuit breaker
//   - mapstore: map persistence (JSON files or NATS object store)
//   - gateway: HTTP API and WebSocket hub
//   - hardware: driver interfaces, simulator, GStreamer capture
//   - pkg/latest: single-slot overwrite cell
//   - pkg/retry: bounded retry with backoff
//
// # Binary
//
// cmd/new-car wires everything from configuration and runs until
// SIGINT/SIGTERM:
//
//	CAR_CONFIG=config.yaml go run ./cmd/new-car
package car
