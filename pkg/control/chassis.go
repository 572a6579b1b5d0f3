package control

import (
	"fmt"
	"math"
	"strings"
)

// ChassisSpeeds is a 3-DOF velocity command for an omnidirectional drivetrain.
type ChassisSpeeds struct {
	VX    float64 `json:"vx"`    // Forward velocity
	VY    float64 `json:"vy"`    // Lateral velocity (+ = left)
	Omega float64 `json:"omega"` // Angular velocity
}

// String formats the command for logs
func (s ChassisSpeeds) String() string {
	return fmt.Sprintf("vx: %.3f, vy: %.3f, omega: %.3f", s.VX, s.VY, s.Omega)
}

// IsFinite reports whether every component is a real number
func (s ChassisSpeeds) IsFinite() bool {
	for _, v := range []float64{s.VX, s.VY, s.Omega} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Side names the face of the robot a mechanism or camera points out of.
type Side int

const (
	Front Side = iota
	Left
	Back
	Right
)

// String returns the lowercase side name
func (s Side) String() string {
	switch s {
	case Front:
		return "front"
	case Left:
		return "left"
	case Back:
		return "back"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// ParseSide parses a side name (case-insensitive).
func ParseSide(name string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "front", "":
		return Front, nil
	case "left":
		return Left, nil
	case "back":
		return Back, nil
	case "right":
		return Right, nil
	}
	return Front, fmt.Errorf("unknown side %q", name)
}

// FrontToSide rotates a command expressed for the robot's front into the frame
// of the given side. Angular velocity is unchanged.
func FrontToSide(in ChassisSpeeds, side Side) ChassisSpeeds {
	switch side {
	case Left:
		return ChassisSpeeds{VX: -in.VY, VY: in.VX, Omega: in.Omega}
	case Right:
		return ChassisSpeeds{VX: in.VY, VY: -in.VX, Omega: in.Omega}
	case Back:
		return ChassisSpeeds{VX: -in.VX, VY: -in.VY, Omega: in.Omega}
	default:
		return in
	}
}
