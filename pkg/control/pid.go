// Package control provides the feedback regulators and chassis command types
// used to steer the robot toward vision targets.
package control

import (
	"math"
)

// PIDController implements proportional-integral-derivative control over a scalar error.
// It is not safe for concurrent use.
type PIDController struct {
	// Gains
	Kp float64 // Proportional gain
	Ki float64 // Integral gain
	Kd float64 // Derivative gain

	// State
	setpoint  float64
	integral  float64
	lastError float64

	// Continuous input
	continuous bool
	minInput   float64
	maxInput   float64
}

// NewPID creates a controller with the given gains and a setpoint of zero.
func NewPID(kp, ki, kd float64) *PIDController {
	return &PIDController{Kp: kp, Ki: ki, Kd: kd}
}

// SetSetpoint sets the value the measurement is regulated toward
func (c *PIDController) SetSetpoint(setpoint float64) {
	c.setpoint = setpoint
}

// Setpoint returns the current setpoint
func (c *PIDController) Setpoint() float64 {
	return c.setpoint
}

// EnableContinuousInput treats the input as wrapping around [min, max),
// so errors are taken along the shorter path (e.g. -180..180 degrees).
func (c *PIDController) EnableContinuousInput(min, max float64) {
	if max <= min {
		return
	}
	c.continuous = true
	c.minInput = min
	c.maxInput = max
}

// DisableContinuousInput restores plain subtraction for the error.
func (c *PIDController) DisableContinuousInput() {
	c.continuous = false
}

// IsContinuousInputEnabled reports whether wraparound is active
func (c *PIDController) IsContinuousInputEnabled() bool {
	return c.continuous
}

// Calculate returns the control output for the given measurement and
// updates the integral and derivative state. A NaN or infinite measurement
// yields NaN and leaves the state untouched.
func (c *PIDController) Calculate(measurement float64) float64 {
	if math.IsNaN(measurement) || math.IsInf(measurement, 0) {
		return math.NaN()
	}
	error := c.wrap(c.setpoint - measurement)

	c.integral += error
	derivative := c.wrap(error - c.lastError)
	c.lastError = error

	return c.Kp*error + c.Ki*c.integral + c.Kd*derivative
}

// Error returns the error seen by the last Calculate call
func (c *PIDController) Error() float64 {
	return c.lastError
}

// Reset clears the integral and derivative state. The setpoint is kept.
func (c *PIDController) Reset() {
	c.integral = 0
	c.lastError = 0
}

// wrap maps a difference into [-span/2, span/2) when continuous input is on.
func (c *PIDController) wrap(delta float64) float64 {
	if !c.continuous {
		return delta
	}
	span := c.maxInput - c.minInput
	lower := -span / 2
	return delta - span*math.Floor((delta-lower)/span)
}
