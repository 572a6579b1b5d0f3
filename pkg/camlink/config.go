package camlink

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// Config holds camera link configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Timeouts
	Timeout          time.Duration // Default bound for Query
	HandshakeTimeout time.Duration // Bound for dialing and the optional probe
	WriteTimeout     time.Duration

	// Probe issues an info query after dialing and fails Connect if it goes unanswered.
	Probe bool

	// Rotation is the camera's mount rotation on the robot, in degrees.
	Rotation float64

	// Transport
	Dialer *websocket.Dialer

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring a Link.
type Option func(*Config)

// WithTimeout sets the default reply timeout for queries.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithHandshakeTimeout bounds how long Connect may take.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.HandshakeTimeout = timeout
	}
}

// WithProbe makes Connect verify the coprocessor answers an info query.
func WithProbe(probe bool) Option {
	return func(c *Config) {
		c.Probe = probe
	}
}

// WithRotation sets the camera mount rotation in degrees.
func WithRotation(degrees float64) Option {
	return func(c *Config) {
		c.Rotation = degrees
	}
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Config) {
		c.Dialer = d
	}
}

// WithLogger sets the structured logger for the link.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout:          5 * time.Second,
		HandshakeTimeout: 1 * time.Second,
		WriteTimeout:     2 * time.Second,
		Logger:           slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Timeout <= 0 || c.HandshakeTimeout <= 0 || c.WriteTimeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}
