package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/smilesmith9879/new-car/camera"
	"github.com/smilesmith9879/new-car/errors"
	"github.com/smilesmith9879/new-car/hardware"
	"github.com/smilesmith9879/new-car/natsclient"
	"github.com/smilesmith9879/new-car/pose"
)

// NATS subjects for the three telemetry channels.
const (
	SubjectPose    = "car.telemetry.pose"
	SubjectBattery = "car.telemetry.battery"
	SubjectFrame   = "car.camera.frame"
)

// PoseEvent is the wire shape of a pose push.
type PoseEvent struct {
	Pose      pose.Pose `json:"pose"`
	Timestamp time.Time `json:"timestamp"`
}

// BatteryEvent is the wire shape of a battery push.
type BatteryEvent struct {
	Battery   hardware.BatteryTelemetry `json:"battery"`
	Timestamp time.Time                 `json:"timestamp"`
}

// NATSSink publishes telemetry over the shared NATS client. Pose and
// battery go as JSON events; frames go as raw encoded bytes.
type NATSSink struct {
	client *natsclient.Client
}

var _ Sink = (*NATSSink)(nil)

// NewNATSSink creates a sink over an already connected client.
func NewNATSSink(client *natsclient.Client) *NATSSink {
	return &NATSSink{client: client}
}

// PublishPose publishes a pose event.
func (s *NATSSink) PublishPose(ctx context.Context, p pose.Pose) error {
	data, err := json.Marshal(PoseEvent{Pose: p, Timestamp: time.Now()})
	if err != nil {
		return errors.WrapIOFailure(err, "telemetry", "PublishPose", "serialize event")
	}
	if err := s.client.Publish(ctx, SubjectPose, data); err != nil {
		return errors.WrapIOFailure(err, "telemetry", "PublishPose", "publish event")
	}
	return nil
}

// PublishBattery publishes a battery event.
func (s *NATSSink) PublishBattery(ctx context.Context, t hardware.BatteryTelemetry) error {
	data, err := json.Marshal(BatteryEvent{Battery: t, Timestamp: time.Now()})
	if err != nil {
		return errors.WrapIOFailure(err, "telemetry", "PublishBattery", "serialize event")
	}
	if err := s.client.Publish(ctx, SubjectBattery, data); err != nil {
		return errors.WrapIOFailure(err, "telemetry", "PublishBattery", "publish event")
	}
	return nil
}

// PublishFrame publishes the encoded frame bytes.
func (s *NATSSink) PublishFrame(ctx context.Context, f camera.Frame) error {
	if err := s.client.Publish(ctx, SubjectFrame, f.Bytes); err != nil {
		return errors.WrapIOFailure(err, "telemetry", "PublishFrame", "publish frame")
	}
	return nil
}
