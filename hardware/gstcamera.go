package hardware

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/smilesmith9879/new-car/errors"
	"github.com/smilesmith9879/new-car/pkg/latest"
)

// GstCameraConfig configures the GStreamer capture pipeline.
type GstCameraConfig struct {
	Device    string  // V4L2 device, e.g. "/dev/video0"
	Width     int     // capture width in pixels
	Height    int     // capture height in pixels
	TargetFPS float64 // frame rate requested from the device
	Quality   int     // JPEG quality, 1-100
}

// DefaultGstCameraConfig returns the capture settings used on the car.
func DefaultGstCameraConfig() GstCameraConfig {
	return GstCameraConfig{
		Device:    "/dev/video0",
		Width:     640,
		Height:    480,
		TargetFPS: 30,
		Quality:   80,
	}
}

// GstCamera captures JPEG frames from a local V4L2 camera through a
// GStreamer pipeline:
//
//	v4l2src → videoconvert → videoscale → videorate → capsfilter → jpegenc → appsink
//
// The appsink callback deposits each encoded frame into a latest-value cell;
// CaptureFrame reads the cell without touching the pipeline, so readers never
// block capture.
type GstCamera struct {
	cfg      GstCameraConfig
	pipeline *gst.Pipeline
	cell     latest.Cell[[]byte]

	frameCount atomic.Uint64
	bytesRead  atomic.Uint64
}

// NewGstCamera builds and starts the capture pipeline.
func NewGstCamera(cfg GstCameraConfig) (*GstCamera, error) {
	if cfg.Device == "" {
		return nil, errors.WrapInvalidArgument(
			fmt.Errorf("empty device path"),
			"gst-camera", "NewGstCamera", "device validation")
	}
	if cfg.TargetFPS <= 0 || cfg.TargetFPS > 60 {
		return nil, errors.WrapInvalidArgument(
			fmt.Errorf("invalid fps %.2f", cfg.TargetFPS),
			"gst-camera", "NewGstCamera", "fps validation")
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = 80
	}

	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, errors.WrapHardwareFailure(err, "gst-camera", "NewGstCamera", "pipeline creation")
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return nil, errors.WrapHardwareFailure(err, "gst-camera", "NewGstCamera", "v4l2src creation")
	}
	src.SetProperty("device", cfg.Device)

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, errors.WrapHardwareFailure(err, "gst-camera", "NewGstCamera", "videoconvert creation")
	}

	scale, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, errors.WrapHardwareFailure(err, "gst-camera", "NewGstCamera", "videoscale creation")
	}

	rate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, errors.WrapHardwareFailure(err, "gst-camera", "NewGstCamera", "videorate creation")
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, errors.WrapHardwareFailure(err, "gst-camera", "NewGstCamera", "capsfilter creation")
	}
	caps := gst.NewCapsFromString(fmt.Sprintf(
		"video/x-raw,width=%d,height=%d,framerate=%d/1",
		cfg.Width, cfg.Height, int(cfg.TargetFPS)))
	capsfilter.SetProperty("caps", caps)

	enc, err := gst.NewElement("jpegenc")
	if err != nil {
		return nil, errors.WrapHardwareFailure(err, "gst-camera", "NewGstCamera", "jpegenc creation")
	}
	enc.SetProperty("quality", cfg.Quality)

	sink, err := app.NewAppSink()
	if err != nil {
		return nil, errors.WrapHardwareFailure(err, "gst-camera", "NewGstCamera", "appsink creation")
	}
	// Keep only the newest encoded frame inside the sink as well.
	sink.SetProperty("max-buffers", uint(1))
	sink.SetProperty("drop", true)

	elements := []*gst.Element{src, convert, scale, rate, capsfilter, enc, sink.Element}
	if err := pipeline.AddMany(elements...); err != nil {
		return nil, errors.WrapHardwareFailure(err, "gst-camera", "NewGstCamera", "pipeline assembly")
	}
	if err := gst.ElementLinkMany(elements...); err != nil {
		return nil, errors.WrapHardwareFailure(err, "gst-camera", "NewGstCamera", "element linking")
	}

	cam := &GstCamera{cfg: cfg, pipeline: pipeline}

	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: cam.onNewSample,
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, errors.WrapHardwareFailure(err, "gst-camera", "NewGstCamera", "pipeline start")
	}

	slog.Info("gst-camera: capture pipeline started",
		"device", cfg.Device,
		"resolution", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"target_fps", cfg.TargetFPS)

	return cam, nil
}

// onNewSample copies the encoded frame out of the GStreamer buffer and
// overwrites the latest-frame cell. A corrupt sample is skipped rather than
// terminating the stream.
func (c *GstCamera) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("gst-camera: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("gst-camera: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("gst-camera: empty buffer received")
		return gst.FlowOK
	}

	// Copy out; GStreamer reuses the buffer after Unmap.
	frame := make([]byte, len(data))
	copy(frame, data)
	buffer.Unmap()

	c.frameCount.Add(1)
	c.bytesRead.Add(uint64(len(frame)))
	c.cell.Put(frame)

	return gst.FlowOK
}

// CaptureFrame returns the most recent encoded frame.
func (c *GstCamera) CaptureFrame() ([]byte, error) {
	frame, ok := c.cell.Get()
	if !ok {
		return nil, errors.WrapHardwareFailure(errors.ErrNoFrame,
			"gst-camera", "CaptureFrame", "frame read")
	}
	return frame, nil
}

// Close stops the capture pipeline.
func (c *GstCamera) Close() error {
	if err := c.pipeline.SetState(gst.StateNull); err != nil {
		return errors.WrapHardwareFailure(err, "gst-camera", "Close", "pipeline teardown")
	}
	return nil
}

var _ Camera = (*GstCamera)(nil)
