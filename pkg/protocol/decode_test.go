package protocol

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTags_RoundTrip(t *testing.T) {
	want := []TagObservation{
		{TagID: "13", Position: [3]float64{0.1, -0.2, 2.5}, Orientation: [3]float64{0, 0.35, 0.01}, Distance: 2.51, HorizontalAngle: 0.04, VerticalAngle: -0.08},
		{TagID: "7", Position: [3]float64{-1, 0.3, 4}, Orientation: [3]float64{0.02, -1.2, 0}, Distance: 4.13, HorizontalAngle: -0.24, VerticalAngle: 0.07},
		{TagID: "blue-2", Position: [3]float64{0, 0, 0.5}, Orientation: [3]float64{}, Distance: 0.5},
	}
	payload, err := json.Marshal(want)
	require.NoError(t, err)

	got := DecodeTags(string(payload))

	require.Len(t, got, len(want))
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(TagObservation{}, "Raw")); diff != "" {
		t.Errorf("DecodeTags() mismatch (-want +got):\n%s", diff)
	}
	for _, tag := range got {
		assert.NotEmpty(t, tag.Raw, "raw payload kept for diagnostics")
	}
}

func TestDecodeTags_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantIDs []string
	}{
		{"empty array", "[]", []string{}},
		{"empty payload", "", []string{}},
		{"object instead of array", `{"tag_id":"1"}`, []string{}},
		{"garbage", "not json", []string{}},
		{"element without id skipped", `[{"distance":1},{"tag_id":"4","distance":2}]`, []string{"4"}},
		{"numeric id", `[{"tag_id":13,"distance":1}]`, []string{"13"}},
		{"non-object element skipped", `[3,{"tag_id":"a"}]`, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeTags(tt.payload)
			require.NotNil(t, got)
			ids := make([]string, 0, len(got))
			for _, tag := range got {
				ids = append(ids, tag.TagID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestDecodeTags_PartialFields(t *testing.T) {
	got := DecodeTags(`[{"tag_id":"9","position":[1,"x"],"distance":-3,"horizontal_angle":"0.5"}]`)
	require.Len(t, got, 1)

	tag := got[0]
	assert.Equal(t, 1.0, tag.Position[0])
	assert.True(t, math.IsNaN(tag.Position[1]), "non-numeric element is NaN")
	assert.True(t, math.IsNaN(tag.Position[2]), "missing element is NaN")
	assert.True(t, math.IsNaN(tag.Orientation[0]))
	assert.Equal(t, 3.0, tag.Distance, "distance is never negative")
	assert.Equal(t, 0.5, tag.HorizontalAngle, "numeric strings are accepted")
	assert.True(t, math.IsNaN(tag.VerticalAngle))
}

func TestDecodePiece(t *testing.T) {
	t.Run("full record", func(t *testing.T) {
		piece, ok := DecodePiece(`{"distance":1.2,"angle":-0.3,"center":[320,240],"piece_angle":0.7}`)
		require.True(t, ok)
		assert.Equal(t, PieceObservation{Distance: 1.2, Angle: -0.3, Center: [2]float64{320, 240}, PieceAngle: 0.7}, piece)
	})

	t.Run("missing fields are NaN", func(t *testing.T) {
		piece, ok := DecodePiece(`{"distance":2}`)
		require.True(t, ok)
		assert.Equal(t, 2.0, piece.Distance)
		assert.True(t, math.IsNaN(piece.Angle))
		assert.True(t, math.IsNaN(piece.Center[0]))
		assert.True(t, math.IsNaN(piece.PieceAngle))
	})

	for _, payload := range []string{"", "   ", `{"error":"no piece"}`, `[1,2]`, "{"} {
		if _, ok := DecodePiece(payload); ok {
			t.Errorf("DecodePiece(%q) reported a piece", payload)
		}
	}
}

func TestDecodeInfo(t *testing.T) {
	payload := `{
		"identifier": "cam-0",
		"cam_name": "front",
		"horizontal_focal_length": 600.5,
		"vertical_focal_length": 601,
		"height": 0.42,
		"horizontal_resolution_pixels": 1280,
		"vertical_resolution_pixels": 720,
		"processing_scale": 2,
		"tilt_angle_radians": 0.1,
		"horizontal_field_of_view_radians": 1.2,
		"vertical_field_of_view_radians": 0.8,
		"active_color": 1,
		"color_list": [
			{"red": 255, "green": 120, "blue": 0, "difference": 40, "blur": 3},
			{"red": 0, "green": 0, "blue": 255, "difference": 25}
		]
	}`

	info, ok := DecodeInfo(payload)
	require.True(t, ok)

	want := CameraInfo{
		Identifier:                 "cam-0",
		CameraName:                 "front",
		HorizontalFocalLength:      600.5,
		VerticalFocalLength:        601,
		Height:                     0.42,
		HorizontalResolutionPixels: 1280,
		VerticalResolutionPixels:   720,
		ProcessingScale:            2,
		TiltAngle:                  0.1,
		HorizontalFOV:              1.2,
		VerticalFOV:                0.8,
		ActiveColor:                1,
		Colors: []ColorProfile{
			{Red: 255, Green: 120, Blue: 0, Difference: 40, Blur: 3},
			{Red: 0, Green: 0, Blue: 255, Difference: 25, Blur: math.NaN()},
		},
	}
	if diff := cmp.Diff(want, info, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("DecodeInfo() mismatch (-want +got):\n%s", diff)
	}

	idx, ok := info.ActiveColorIndex()
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestDecodeInfo_Invalid(t *testing.T) {
	for _, payload := range []string{
		"",
		"[]",
		`{"cam_name":"front"}`,
		`{"identifier":"cam-0"}`,
		`{"identifier":"","cam_name":"front"}`,
	} {
		if _, ok := DecodeInfo(payload); ok {
			t.Errorf("DecodeInfo(%q) should be invalid", payload)
		}
	}

	info, ok := DecodeInfo(`{"identifier":"x","cam_name":"y"}`)
	require.True(t, ok)
	assert.True(t, math.IsNaN(info.HorizontalFocalLength))
	assert.Empty(t, info.Colors)
	_, ok = info.ActiveColorIndex()
	assert.False(t, ok)
}

func TestCommands(t *testing.T) {
	assert.Equal(t, "sc -new_color=2", SwitchColorCommand(2))

	cmd, err := SaveColorsCommand([]ColorProfile{{Red: 1, Green: 2, Blue: 3, Difference: 4, Blur: 5}})
	require.NoError(t, err)
	assert.Equal(t, `sp -values[{"red":1,"green":2,"blue":3,"difference":4,"blur":5}]`, cmd)

	cmd, err = SaveColorsCommand(nil)
	require.NoError(t, err)
	assert.Equal(t, "sp -values[]", cmd)

	// Receivers strip the exported prefixes to recover the argument
	arg, ok := strings.CutPrefix(SwitchColorCommand(11), SwitchColorPrefix)
	require.True(t, ok)
	assert.Equal(t, "11", arg)
	arg, ok = strings.CutPrefix(cmd, SaveColorsPrefix)
	require.True(t, ok)
	assert.Equal(t, "[]", arg)
}
