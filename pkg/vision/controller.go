// Package vision turns coprocessor observations into a field heading estimate
// and chassis-speed commands for driving to tags and game pieces.
package vision

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/teslashibe/go-tagvision/pkg/control"
	"github.com/teslashibe/go-tagvision/pkg/protocol"
	"gonum.org/v1/gonum/floats"
)

// NoHeading is returned by EstimateHeading when no tag was seen.
const NoHeading = 69420.0

// HasHeading reports whether h is a real heading rather than the NoHeading sentinel.
func HasHeading(h float64) bool {
	return h != NoHeading && !math.IsNaN(h)
}

// Controller owns the cameras and the two regulators shared by every drive mode.
type Controller struct {
	cameras []Provider
	poses   TagPoseTable
	config  *Config
	logger  *slog.Logger

	// Drive computations share the regulators and must not interleave
	driveMu sync.Mutex
	turnPID *control.PIDController
	movePID *control.PIDController

	statusMu    sync.RWMutex
	heading     float64
	headingAt   time.Time
	lastCommand *Command
}

// Command is the most recent drive output together with the mode that produced it.
type Command struct {
	Mode   string                `json:"mode"`
	Speeds control.ChassisSpeeds `json:"speeds"`
	At     time.Time             `json:"at"`
}

// CameraStatus describes one camera for status reporting.
type CameraStatus struct {
	Index    int     `json:"index"`
	Addr     string  `json:"addr"`
	State    string  `json:"state"`
	Rotation float64 `json:"rotation"`
}

// Status is a snapshot of the controller.
type Status struct {
	Cameras     []CameraStatus `json:"cameras"`
	Heading     float64        `json:"heading"`
	HasHeading  bool           `json:"has_heading"`
	HeadingAt   time.Time      `json:"heading_at"`
	LastCommand *Command       `json:"last_command,omitempty"`
}

// NewController keeps only the cameras that are connected at construction time.
func NewController(cameras []Provider, poses TagPoseTable, opts ...Option) (*Controller, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "vision")

	c := &Controller{
		poses:   poses,
		config:  cfg,
		logger:  logger,
		turnPID: newRegulator(cfg.TurnGains, cfg),
		movePID: newRegulator(cfg.MoveGains, cfg),
		heading: NoHeading,
	}
	for _, cam := range cameras {
		if cam == nil {
			continue
		}
		if !cam.IsConnected() {
			logger.Warn("skipping disconnected camera", "addr", cam.Addr())
			continue
		}
		c.cameras = append(c.cameras, cam)
	}
	logger.Info("vision controller ready", "cameras", len(c.cameras), "tag_poses", len(poses))
	return c, nil
}

func newRegulator(g Gains, cfg *Config) *control.PIDController {
	pid := control.NewPID(g.Kp, g.Ki, g.Kd)
	pid.EnableContinuousInput(cfg.ContinuousMin, cfg.ContinuousMax)
	return pid
}

// Cameras returns the number of cameras under control.
func (c *Controller) Cameras() int {
	return len(c.cameras)
}

// Camera returns the camera at index i
func (c *Controller) Camera(i int) (Provider, bool) {
	if i < 0 || i >= len(c.cameras) {
		return nil, false
	}
	return c.cameras[i], true
}

// Config returns the controller's configuration
func (c *Controller) Config() Config {
	return *c.config
}

// =============================================================================
// Heading
// =============================================================================

// EstimateHeading averages a field heading in degrees over the tags seen by all
// cameras, stopping once maxTags samples are collected (maxTags <= 0 means no
// cap). It returns NoHeading when no tag contributes.
func (c *Controller) EstimateHeading(ctx context.Context, maxTags int) float64 {
	samples := make([]float64, 0, max(maxTags, 0))

cameras:
	for _, cam := range c.cameras {
		for _, tag := range cam.Tags(ctx) {
			yaw := tag.Yaw()
			if math.IsNaN(yaw) {
				continue
			}
			samples = append(samples, control.Degrees(c.poses.Angle(tag.TagID))+cam.Rotation()+yaw)
			if maxTags > 0 && len(samples) == maxTags {
				break cameras
			}
		}
	}

	heading := NoHeading
	if len(samples) > 0 {
		heading = math.Mod(floats.Sum(samples)/float64(len(samples)), 360)
	}

	c.statusMu.Lock()
	c.heading = heading
	c.headingAt = time.Now()
	c.statusMu.Unlock()

	c.logger.Debug("heading estimated", "samples", len(samples), "heading", heading)
	return heading
}

// DefaultHeading estimates the heading with the configured tag cap.
func (c *Controller) DefaultHeading(ctx context.Context) float64 {
	return c.EstimateHeading(ctx, c.config.DefaultMaxTags)
}

// =============================================================================
// Misc
// =============================================================================

// Info returns the camera info reported by the first camera.
func (c *Controller) Info(ctx context.Context) (protocol.CameraInfo, bool) {
	cam, ok := c.Camera(0)
	if !ok {
		return protocol.CameraInfo{}, false
	}
	return cam.Info(ctx)
}

// Clear forgets the last reply of every camera.
func (c *Controller) Clear() {
	for _, cam := range c.cameras {
		cam.Clear()
	}
}

// Close disconnects every camera that is still connected.
func (c *Controller) Close() error {
	var errs []error
	for _, cam := range c.cameras {
		if !cam.IsConnected() {
			continue
		}
		if err := cam.Disconnect(); err != nil {
			errs = append(errs, err)
		}
	}
	c.logger.Info("vision controller closed")
	return errors.Join(errs...)
}

// Status returns a snapshot for dashboards.
func (c *Controller) Status() Status {
	st := Status{Cameras: make([]CameraStatus, 0, len(c.cameras))}
	for i, cam := range c.cameras {
		st.Cameras = append(st.Cameras, CameraStatus{
			Index:    i,
			Addr:     cam.Addr(),
			State:    cam.State().String(),
			Rotation: cam.Rotation(),
		})
	}

	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	st.Heading = c.heading
	st.HasHeading = HasHeading(c.heading)
	st.HeadingAt = c.headingAt
	if c.lastCommand != nil {
		cmd := *c.lastCommand
		st.LastCommand = &cmd
	}
	return st
}

func (c *Controller) record(mode string, speeds control.ChassisSpeeds) {
	c.statusMu.Lock()
	c.lastCommand = &Command{Mode: mode, Speeds: speeds, At: time.Now()}
	c.statusMu.Unlock()
}
