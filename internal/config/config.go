// Package config loads tagvision settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/teslashibe/go-tagvision/pkg/camlink"
	"github.com/teslashibe/go-tagvision/pkg/vision"
	"gopkg.in/yaml.v3"
)

// Defaults used when neither the file nor the environment sets a value.
const (
	DefaultHost          = "127.0.0.1"
	DefaultDashboardAddr = ":8090"
	DefaultTickInterval  = 100 * time.Millisecond
)

// Environment variables read by FromEnv.
const (
	EnvConfig   = "VISION_CONFIG"
	EnvHost     = "VISION_HOST"
	EnvBasePort = "VISION_BASE_PORT"
	EnvLogLevel = "VISION_LOG_LEVEL"
)

// Config is the full runtime configuration of visiond.
type Config struct {
	Host      string              `yaml:"host" json:"host"`
	BasePort  int                 `yaml:"base_port" json:"base_port"`
	Cameras   []CameraConfig      `yaml:"cameras" json:"cameras"`
	Rotations []float64           `yaml:"rotations" json:"rotations"`
	TagPoses  vision.TagPoseTable `yaml:"tag_poses" json:"tag_poses"`

	Link      LinkConfig      `yaml:"link" json:"link"`
	Drive     DriveConfig     `yaml:"drive" json:"drive"`
	Dashboard DashboardConfig `yaml:"dashboard" json:"dashboard"`
	Log       LogConfig       `yaml:"log" json:"log"`

	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval"`
}

// CameraConfig names one coprocessor explicitly. When Cameras is empty the
// coprocessors are discovered from Host and BasePort instead.
type CameraConfig struct {
	Addr     string  `yaml:"addr" json:"addr"`
	Rotation float64 `yaml:"rotation" json:"rotation"` // Degrees
}

// LinkConfig holds camera link timing.
type LinkConfig struct {
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" json:"handshake_timeout"`
	Probe            bool          `yaml:"probe" json:"probe"`
}

// DriveConfig holds controller tuning.
type DriveConfig struct {
	MaxSpeed              float64      `yaml:"max_speed" json:"max_speed"`
	MaxIntakeAngle        float64      `yaml:"max_intake_angle" json:"max_intake_angle"`
	MisalignedPieceOffset float64      `yaml:"misaligned_piece_offset" json:"misaligned_piece_offset"`
	PieceCamera           int          `yaml:"piece_camera" json:"piece_camera"`
	MaxTags               int          `yaml:"max_tags" json:"max_tags"`
	Turn                  vision.Gains `yaml:"turn" json:"turn"`
	Move                  vision.Gains `yaml:"move" json:"move"`
}

// DashboardConfig controls the status dashboard.
type DashboardConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// LogConfig selects log level and format.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	link := camlink.DefaultConfig()
	drive := vision.DefaultConfig()
	return &Config{
		Host:     DefaultHost,
		BasePort: vision.DefaultBasePort,
		TagPoses: vision.TagPoseTable{},
		Link: LinkConfig{
			Timeout:          link.Timeout,
			HandshakeTimeout: link.HandshakeTimeout,
		},
		Drive: DriveConfig{
			MaxSpeed:              drive.MaxDriveSpeed,
			MaxIntakeAngle:        drive.MaxIntakeAngle,
			MisalignedPieceOffset: drive.MisalignedPieceOffset,
			PieceCamera:           drive.PieceCamera,
			MaxTags:               drive.DefaultMaxTags,
			Turn:                  drive.TurnGains,
			Move:                  drive.MoveGains,
		},
		Dashboard:    DashboardConfig{Addr: DefaultDashboardAddr},
		Log:          LogConfig{Level: "info", Format: "text"},
		TickInterval: DefaultTickInterval,
	}
}

// Load reads a YAML file over the defaults, then applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults, then applies environment overrides.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv loads the file named by VISION_CONFIG, or the defaults when unset.
func FromEnv() (*Config, error) {
	if path := os.Getenv(EnvConfig); path != "" {
		return Load(path)
	}
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if host := os.Getenv(EnvHost); host != "" {
		c.Host = host
	}
	if port := os.Getenv(EnvBasePort); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBasePort, err)
		}
		c.BasePort = p
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Log.Level = level
	}
	return nil
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if len(c.Cameras) == 0 {
		if c.Host == "" {
			return errors.New("config: host is required when no cameras are listed")
		}
		if c.BasePort <= 0 || c.BasePort > 65535 {
			return fmt.Errorf("config: base port %d out of range", c.BasePort)
		}
	}
	for i, cam := range c.Cameras {
		if cam.Addr == "" {
			return fmt.Errorf("config: camera %d has no address", i)
		}
	}
	if c.TickInterval <= 0 {
		return errors.New("config: tick interval must be positive")
	}
	if err := c.linkConfig(nil).Validate(); err != nil {
		return err
	}
	return c.visionConfig(nil).Validate()
}

// LinkOptions returns camera link options for this configuration.
func (c *Config) LinkOptions(logger *slog.Logger) []camlink.Option {
	opts := []camlink.Option{
		camlink.WithTimeout(c.Link.Timeout),
		camlink.WithHandshakeTimeout(c.Link.HandshakeTimeout),
		camlink.WithProbe(c.Link.Probe),
	}
	if logger != nil {
		opts = append(opts, camlink.WithLogger(logger))
	}
	return opts
}

// VisionOptions returns controller options for this configuration.
func (c *Config) VisionOptions(logger *slog.Logger) []vision.Option {
	opts := []vision.Option{
		vision.WithMaxDriveSpeed(c.Drive.MaxSpeed),
		vision.WithIntake(c.Drive.MaxIntakeAngle, c.Drive.MisalignedPieceOffset),
		vision.WithPieceCamera(c.Drive.PieceCamera),
		vision.WithTurnGains(c.Drive.Turn),
		vision.WithMoveGains(c.Drive.Move),
		vision.WithMaxTags(c.Drive.MaxTags),
	}
	if logger != nil {
		opts = append(opts, vision.WithLogger(logger))
	}
	return opts
}

func (c *Config) linkConfig(logger *slog.Logger) *camlink.Config {
	cfg := camlink.DefaultConfig()
	cfg.Apply(c.LinkOptions(logger)...)
	return cfg
}

func (c *Config) visionConfig(logger *slog.Logger) *vision.Config {
	cfg := vision.DefaultConfig()
	cfg.Apply(c.VisionOptions(logger)...)
	return cfg
}
