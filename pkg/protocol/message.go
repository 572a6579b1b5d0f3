// Package protocol defines the text/JSON protocol spoken by vision coprocessors.
// Commands are plain ASCII text frames; replies are a single JSON value per frame.
package protocol

import (
	"encoding/json"
	"fmt"
	"math"
)

// Outbound commands understood by a coprocessor. Commands are case-sensitive.
const (
	CmdInfo  = "info" // Request a CameraInfo snapshot
	CmdTags  = "fa"   // Request the current tag observation list
	CmdPiece = "fp"   // Request the current piece observation

	// Parameterized commands are a prefix followed by the argument.
	SwitchColorPrefix = "sc -new_color=" // Decimal profile index
	SaveColorsPrefix  = "sp -values"     // JSON array of ColorProfile
)

// SwitchColorCommand builds the command that switches the active color profile.
func SwitchColorCommand(index int) string {
	return fmt.Sprintf("%s%d", SwitchColorPrefix, index)
}

// SaveColorsCommand builds the command that persists a new color profile list.
func SaveColorsCommand(colors []ColorProfile) (string, error) {
	if colors == nil {
		colors = []ColorProfile{}
	}
	data, err := json.Marshal(colors)
	if err != nil {
		return "", fmt.Errorf("failed to marshal color profiles: %w", err)
	}
	return SaveColorsPrefix + string(data), nil
}

// =============================================================================
// Reply records
// =============================================================================

// ColorProfile is one color-detection profile of a coprocessor.
type ColorProfile struct {
	Red        float64 `json:"red"`
	Green      float64 `json:"green"`
	Blue       float64 `json:"blue"`
	Difference float64 `json:"difference"` // Color distance threshold
	Blur       float64 `json:"blur"`       // Blur radius
}

// CameraInfo is a snapshot of a coprocessor's camera configuration.
// Numeric fields the coprocessor did not report are NaN.
type CameraInfo struct {
	Identifier                 string         `json:"identifier"`
	CameraName                 string         `json:"cam_name"`
	HorizontalFocalLength      float64        `json:"horizontal_focal_length"`
	VerticalFocalLength        float64        `json:"vertical_focal_length"`
	Height                     float64        `json:"height"`
	HorizontalResolutionPixels float64        `json:"horizontal_resolution_pixels"`
	VerticalResolutionPixels   float64        `json:"vertical_resolution_pixels"`
	ProcessingScale            float64        `json:"processing_scale"`
	TiltAngle                  float64        `json:"tilt_angle_radians"`
	HorizontalFOV              float64        `json:"horizontal_field_of_view_radians"`
	VerticalFOV                float64        `json:"vertical_field_of_view_radians"`
	ActiveColor                float64        `json:"active_color"`
	Colors                     []ColorProfile `json:"color_list"`
}

// ActiveColorIndex returns the active color profile index, if one was reported.
func (i CameraInfo) ActiveColorIndex() (int, bool) {
	if math.IsNaN(i.ActiveColor) || i.ActiveColor < 0 {
		return 0, false
	}
	return int(i.ActiveColor), true
}

// TagObservation is one fiducial tag as seen by a camera, in the camera frame.
// Position is in meters and the bearing angles are in radians. Orientation is
// passed through as reported; coprocessors report it in degrees, and heading
// estimation and DriveToTag consume Yaw as degrees.
type TagObservation struct {
	TagID           string     `json:"tag_id"`
	Position        [3]float64 `json:"position"`
	Orientation     [3]float64 `json:"orientation"`
	Distance        float64    `json:"distance"`
	HorizontalAngle float64    `json:"horizontal_angle"`
	VerticalAngle   float64    `json:"vertical_angle"`

	// Raw is the JSON element this observation was decoded from.
	Raw string `json:"-"`
}

// Yaw returns the tag's rotation about the camera's vertical axis, in degrees.
func (t TagObservation) Yaw() float64 {
	return t.Orientation[1]
}

// PieceObservation is a colored game piece as seen by a camera.
type PieceObservation struct {
	Distance   float64    `json:"distance"`
	Angle      float64    `json:"angle"`       // Bearing from the camera axis (radians)
	Center     [2]float64 `json:"center"`      // Image or field coordinates
	PieceAngle float64    `json:"piece_angle"` // Orientation of the piece itself
}
