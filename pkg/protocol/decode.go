package protocol

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Decoding is best-effort per field. A missing or non-numeric number becomes NaN;
// a wrong top-level shape or a missing identifier invalidates the whole record.
// Nothing in this file returns an error or panics on malformed input.

// DecodeInfo decodes an info reply. It reports false when the payload is not
// a JSON object or lacks the identifier or camera name.
func DecodeInfo(payload string) (CameraInfo, bool) {
	obj, ok := object([]byte(payload))
	if !ok {
		return CameraInfo{}, false
	}

	identifier, ok := text(obj["identifier"])
	if !ok {
		return CameraInfo{}, false
	}
	name, ok := text(obj["cam_name"])
	if !ok {
		return CameraInfo{}, false
	}

	info := CameraInfo{
		Identifier:                 identifier,
		CameraName:                 name,
		HorizontalFocalLength:      number(obj["horizontal_focal_length"]),
		VerticalFocalLength:        number(obj["vertical_focal_length"]),
		Height:                     number(obj["height"]),
		HorizontalResolutionPixels: number(obj["horizontal_resolution_pixels"]),
		VerticalResolutionPixels:   number(obj["vertical_resolution_pixels"]),
		ProcessingScale:            number(obj["processing_scale"]),
		TiltAngle:                  number(obj["tilt_angle_radians"]),
		HorizontalFOV:              number(obj["horizontal_field_of_view_radians"]),
		VerticalFOV:                number(obj["vertical_field_of_view_radians"]),
		ActiveColor:                number(obj["active_color"]),
		Colors:                     []ColorProfile{},
	}

	if elems, ok := array(obj["color_list"]); ok {
		for _, elem := range elems {
			color, ok := object(elem)
			if !ok {
				continue
			}
			info.Colors = append(info.Colors, ColorProfile{
				Red:        number(color["red"]),
				Green:      number(color["green"]),
				Blue:       number(color["blue"]),
				Difference: number(color["difference"]),
				Blur:       number(color["blur"]),
			})
		}
	}

	return info, true
}

// DecodeTags decodes a tag list reply. A payload that is not a JSON array yields
// an empty list; elements without a tag_id are skipped.
func DecodeTags(payload string) []TagObservation {
	elems, ok := array([]byte(payload))
	if !ok {
		return []TagObservation{}
	}

	tags := make([]TagObservation, 0, len(elems))
	for _, elem := range elems {
		obj, ok := object(elem)
		if !ok {
			continue
		}
		id, ok := text(obj["tag_id"])
		if !ok {
			continue
		}
		tags = append(tags, TagObservation{
			TagID:           id,
			Position:        vec3(obj["position"]),
			Orientation:     vec3(obj["orientation"]),
			Distance:        math.Abs(number(obj["distance"])),
			HorizontalAngle: number(obj["horizontal_angle"]),
			VerticalAngle:   number(obj["vertical_angle"]),
			Raw:             string(elem),
		})
	}
	return tags
}

// DecodePiece decodes a piece reply. It reports false when the payload is empty,
// mentions "error", or is not a JSON object.
func DecodePiece(payload string) (PieceObservation, bool) {
	if strings.TrimSpace(payload) == "" || IsErrorReply(payload) {
		return PieceObservation{}, false
	}
	obj, ok := object([]byte(payload))
	if !ok {
		return PieceObservation{}, false
	}

	var center [2]float64
	c := vector(obj["center"], 2)
	copy(center[:], c)

	return PieceObservation{
		Distance:   number(obj["distance"]),
		Angle:      number(obj["angle"]),
		Center:     center,
		PieceAngle: number(obj["piece_angle"]),
	}, true
}

// IsErrorReply reports whether a coprocessor reply carries an error.
func IsErrorReply(payload string) bool {
	return strings.Contains(payload, `"error"`)
}

// =============================================================================
// Field helpers
// =============================================================================

func object(data []byte) (map[string]json.RawMessage, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func array(data []byte) ([]json.RawMessage, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, false
	}
	return elems, true
}

// number reads a JSON number or a numeric string. Anything else is NaN.
func number(raw json.RawMessage) float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return math.NaN()
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

// text reads a non-empty identifier. Numeric ids are accepted in their literal form.
func text(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// vector reads up to n numbers, padding missing entries with NaN.
func vector(raw json.RawMessage, n int) []float64 {
	out := make([]float64, n)
	elems, _ := array(raw)
	for i := range out {
		if i < len(elems) {
			out[i] = number(elems[i])
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

func vec3(raw json.RawMessage) [3]float64 {
	var v [3]float64
	copy(v[:], vector(raw, 3))
	return v
}
