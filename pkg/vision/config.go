package vision

import (
	"errors"
	"log/slog"
	"math"
)

// Gains holds PID gains.
type Gains struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`
}

// Config holds all tunable parameters for vision-driven control
type Config struct {
	// Drive
	MaxDriveSpeed float64 // Scale applied to the normalized drive vector

	// Piece intake
	MaxIntakeAngle        float64 // Bearing (radians) beyond which a piece counts as misaligned
	MisalignedPieceOffset float64 // Extra approach angle (radians) for a misaligned piece 1 m away
	PieceCamera           int     // Camera used by DefaultPieceDrive

	// Regulators
	TurnGains Gains
	MoveGains Gains

	// Both regulators wrap their input over [ContinuousMin, ContinuousMax)
	ContinuousMin float64
	ContinuousMax float64

	// Heading estimation
	DefaultMaxTags int // Tag cap used by DefaultHeading

	Logger *slog.Logger
}

// Option is a functional option for configuring a Controller.
type Option func(*Config)

// WithMaxDriveSpeed sets the drive speed scale.
func WithMaxDriveSpeed(speed float64) Option {
	return func(c *Config) {
		c.MaxDriveSpeed = speed
	}
}

// WithIntake sets the misalignment threshold and the approach offset for pieces.
func WithIntake(maxAngle, misalignedOffset float64) Option {
	return func(c *Config) {
		c.MaxIntakeAngle = maxAngle
		c.MisalignedPieceOffset = misalignedOffset
	}
}

// WithPieceCamera sets the camera index used by DefaultPieceDrive.
func WithPieceCamera(index int) Option {
	return func(c *Config) {
		c.PieceCamera = index
	}
}

// WithTurnGains sets the heading regulator gains.
func WithTurnGains(g Gains) Option {
	return func(c *Config) {
		c.TurnGains = g
	}
}

// WithMoveGains sets the range regulator gains.
func WithMoveGains(g Gains) Option {
	return func(c *Config) {
		c.MoveGains = g
	}
}

// WithMaxTags sets the tag cap used by DefaultHeading.
func WithMaxTags(n int) Option {
	return func(c *Config) {
		c.DefaultMaxTags = n
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the tuning used on the competition robot
func DefaultConfig() *Config {
	return &Config{
		MaxDriveSpeed: 1.0,

		MaxIntakeAngle:        math.Pi / 6,  // 30°
		MisalignedPieceOffset: math.Pi / 12, // 15° at 1 m
		PieceCamera:           0,

		TurnGains: Gains{Kp: 0.1},
		MoveGains: Gains{Kp: 0.1},

		ContinuousMin: -180,
		ContinuousMax: 180,

		DefaultMaxTags: 4,

		Logger: slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the configuration for values that would make commands meaningless.
func (c *Config) Validate() error {
	if c.MaxDriveSpeed < 0 {
		return errors.New("vision: max drive speed must not be negative")
	}
	if c.MaxIntakeAngle < 0 {
		return errors.New("vision: max intake angle must not be negative")
	}
	if c.ContinuousMax <= c.ContinuousMin {
		return errors.New("vision: continuous input range is empty")
	}
	return nil
}
