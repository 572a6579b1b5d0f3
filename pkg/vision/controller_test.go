package vision

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-tagvision/pkg/camlink"
	"github.com/teslashibe/go-tagvision/pkg/control"
	"github.com/teslashibe/go-tagvision/pkg/protocol"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeCamera struct {
	addr      string
	rotation  float64
	connected bool
	tags      []protocol.TagObservation
	piece     *protocol.PieceObservation
	info      protocol.CameraInfo

	tagCalls      int
	cleared       int
	disconnectErr error
}

func (f *fakeCamera) Addr() string { return f.addr }

func (f *fakeCamera) State() camlink.State {
	if f.connected {
		return camlink.Connected
	}
	return camlink.Disconnected
}

func (f *fakeCamera) IsConnected() bool { return f.connected }
func (f *fakeCamera) Rotation() float64 { return f.rotation }

func (f *fakeCamera) Tags(context.Context) []protocol.TagObservation {
	f.tagCalls++
	return f.tags
}

func (f *fakeCamera) Piece(context.Context) (protocol.PieceObservation, bool) {
	if f.piece == nil {
		return protocol.PieceObservation{}, false
	}
	return *f.piece, true
}

func (f *fakeCamera) Info(context.Context) (protocol.CameraInfo, bool) {
	return f.info, f.info.Identifier != ""
}

func (f *fakeCamera) Clear() { f.cleared++ }

func (f *fakeCamera) Disconnect() error {
	f.connected = false
	return f.disconnectErr
}

func connected(tags ...protocol.TagObservation) *fakeCamera {
	return &fakeCamera{addr: "127.0.0.1:50000", connected: true, tags: tags}
}

func tagWithYaw(id string, yaw float64) protocol.TagObservation {
	return protocol.TagObservation{TagID: id, Orientation: [3]float64{0, yaw, 0}, Distance: 1}
}

func newTestController(t *testing.T, poses TagPoseTable, cams ...*fakeCamera) *Controller {
	t.Helper()
	providers := make([]Provider, len(cams))
	for i, c := range cams {
		providers[i] = c
	}
	c, err := NewController(providers, poses, WithLogger(quiet))
	require.NoError(t, err)
	return c
}

func TestNewController_SkipsDisconnected(t *testing.T) {
	up := connected()
	down := &fakeCamera{addr: "127.0.0.1:50001"}

	c := newTestController(t, nil, up, down)
	assert.Equal(t, 1, c.Cameras())

	_, err := NewController(nil, nil, WithMaxDriveSpeed(-1))
	assert.Error(t, err)
}

func TestEstimateHeading(t *testing.T) {
	ctx := context.Background()
	poses := TagPoseTable{
		"1": {Angle: math.Pi / 2},
		"2": {Angle: 0},
	}

	t.Run("no cameras", func(t *testing.T) {
		c := newTestController(t, poses)
		h := c.EstimateHeading(ctx, 4)
		assert.Equal(t, NoHeading, h)
		assert.False(t, HasHeading(h))
	})

	t.Run("no tags", func(t *testing.T) {
		c := newTestController(t, poses, connected(), connected())
		assert.Equal(t, NoHeading, c.EstimateHeading(ctx, 4))
	})

	t.Run("pose plus rotation plus yaw", func(t *testing.T) {
		cam := connected(tagWithYaw("1", 0))
		cam.rotation = 90
		c := newTestController(t, poses, cam)
		assert.InDelta(t, 180, c.EstimateHeading(ctx, 4), 1e-9)
	})

	t.Run("average across cameras", func(t *testing.T) {
		c := newTestController(t, poses, connected(tagWithYaw("1", 0)), connected(tagWithYaw("2", 0)))
		assert.InDelta(t, 45, c.EstimateHeading(ctx, 4), 1e-9)
	})

	t.Run("unknown tag contributes zero pose", func(t *testing.T) {
		c := newTestController(t, poses, connected(tagWithYaw("99", 45)))
		assert.InDelta(t, 45, c.EstimateHeading(ctx, 4), 1e-9)
	})

	t.Run("reduced modulo 360", func(t *testing.T) {
		cam := connected(tagWithYaw("2", 0))
		cam.rotation = 370
		c := newTestController(t, poses, cam)
		assert.InDelta(t, 10, c.EstimateHeading(ctx, 4), 1e-9)
	})

	t.Run("stops at the cap", func(t *testing.T) {
		first := connected(tagWithYaw("1", 0), tagWithYaw("2", 0))
		second := connected(tagWithYaw("2", 0))
		c := newTestController(t, poses, first, second)

		assert.InDelta(t, 90, c.EstimateHeading(ctx, 1), 1e-9)
		assert.Equal(t, 0, second.tagCalls, "cameras after the cap are not queried")

		assert.InDelta(t, 30, c.EstimateHeading(ctx, 0), 1e-9, "no cap averages everything")
	})

	t.Run("tags without yaw are skipped", func(t *testing.T) {
		c := newTestController(t, poses, connected(tagWithYaw("1", math.NaN())))
		assert.Equal(t, NoHeading, c.EstimateHeading(ctx, 4))
	})

	t.Run("status tracks last estimate", func(t *testing.T) {
		c := newTestController(t, poses, connected(tagWithYaw("2", 0)))
		assert.False(t, c.Status().HasHeading)
		c.DefaultHeading(ctx)
		st := c.Status()
		assert.True(t, st.HasHeading)
		assert.InDelta(t, 0, st.Heading, 1e-9)
	})
}

func TestLockOnTag(t *testing.T) {
	ctx := context.Background()
	cam := connected(
		protocol.TagObservation{TagID: "1", Distance: 3, HorizontalAngle: 20},
		protocol.TagObservation{TagID: "2", Distance: 1, HorizontalAngle: 10},
	)
	c := newTestController(t, nil, cam)

	speeds, ok := c.LockOnTag(ctx, 0, "")
	require.True(t, ok)
	assert.Equal(t, 0.0, speeds.VX)
	assert.Equal(t, 0.0, speeds.VY)
	assert.InDelta(t, -1.0, speeds.Omega, 1e-9, "nearest tag is tag 2")

	speeds, ok = c.LockOnTag(ctx, 0, "1")
	require.True(t, ok)
	assert.InDelta(t, -2.0, speeds.Omega, 1e-9)

	_, ok = c.LockOnTag(ctx, 0, "missing")
	assert.False(t, ok)

	_, ok = c.LockOnTag(ctx, 3, "")
	assert.False(t, ok, "out of range camera gives no command")
	_, ok = c.LockOnTag(ctx, -1, "")
	assert.False(t, ok)

	require.NotNil(t, c.Status().LastCommand)
	assert.Equal(t, "lock_on_tag", c.Status().LastCommand.Mode)
}

func TestDriveToTag(t *testing.T) {
	ctx := context.Background()
	tag := protocol.TagObservation{TagID: "4", Position: [3]float64{3, 0, 4}, Distance: 5}

	tests := []struct {
		side control.Side
		want control.ChassisSpeeds
	}{
		{control.Front, control.ChassisSpeeds{VX: -0.4, VY: -0.3}},
		{control.Back, control.ChassisSpeeds{VX: 0.4, VY: 0.3}},
		{control.Left, control.ChassisSpeeds{VX: 0.3, VY: -0.4}},
		{control.Right, control.ChassisSpeeds{VX: -0.3, VY: 0.4}},
	}

	for _, tt := range tests {
		t.Run(tt.side.String(), func(t *testing.T) {
			c := newTestController(t, nil, connected(tag))
			got, ok := c.DriveToTag(ctx, TagDrive{Camera: 0, TagIDs: []string{"4"}, Side: tt.side})
			require.True(t, ok)
			assert.InDelta(t, tt.want.VX, got.VX, 1e-9)
			assert.InDelta(t, tt.want.VY, got.VY, 1e-9)
			assert.InDelta(t, 0, got.Omega, 1e-9)
		})
	}
}

func TestDriveToTag_Cases(t *testing.T) {
	ctx := context.Background()

	t.Run("offset onto tag gives no translation", func(t *testing.T) {
		tag := protocol.TagObservation{TagID: "1", Position: [3]float64{1, 0, 2}, Distance: 2}
		c := newTestController(t, nil, connected(tag))
		got, ok := c.DriveToTag(ctx, TagDrive{Side: control.Front, XOffset: 2, YOffset: 1})
		require.True(t, ok)
		assert.Equal(t, 0.0, got.VX)
		assert.Equal(t, 0.0, got.VY)
	})

	t.Run("yaw feeds the turn regulator", func(t *testing.T) {
		tag := protocol.TagObservation{TagID: "1", Position: [3]float64{0, 0, 1}, Orientation: [3]float64{0, 30, 0}, Distance: 1}
		c := newTestController(t, nil, connected(tag))
		got, ok := c.DriveToTag(ctx, TagDrive{Side: control.Front, CamOffsetAngle: 10})
		require.True(t, ok)
		assert.InDelta(t, -2.0, got.Omega, 1e-9)
	})

	t.Run("max drive speed scales translation", func(t *testing.T) {
		tag := protocol.TagObservation{TagID: "1", Position: [3]float64{0, 0, 2}, Distance: 2}
		providers := []Provider{connected(tag)}
		c, err := NewController(providers, nil, WithLogger(quiet), WithMaxDriveSpeed(0.5))
		require.NoError(t, err)
		got, ok := c.DriveToTag(ctx, DefaultTagDrive(0))
		require.True(t, ok)
		// Back side flips the -0.1 forward command
		assert.InDelta(t, 0.1, got.VX, 1e-9)
	})

	t.Run("no tags", func(t *testing.T) {
		c := newTestController(t, nil, connected())
		_, ok := c.DriveToTag(ctx, DefaultTagDrive(0))
		assert.False(t, ok)
	})

	t.Run("incomplete observation", func(t *testing.T) {
		tag := protocol.TagObservation{TagID: "1", Position: [3]float64{math.NaN(), 0, 1}, Distance: 1}
		c := newTestController(t, nil, connected(tag))
		_, ok := c.DriveToTag(ctx, DefaultTagDrive(0))
		assert.False(t, ok)
	})

	t.Run("out of range camera", func(t *testing.T) {
		c := newTestController(t, nil, connected())
		_, ok := c.DriveToTag(ctx, DefaultTagDrive(1))
		assert.False(t, ok)
	})
}

func TestDriveToPiece(t *testing.T) {
	ctx := context.Background()

	t.Run("straight ahead", func(t *testing.T) {
		cam := connected()
		cam.piece = &protocol.PieceObservation{Distance: 2, Angle: 0}
		c := newTestController(t, nil, cam)

		got, ok := c.DefaultPieceDrive(ctx)
		require.True(t, ok)
		assert.InDelta(t, -0.2, got.VX, 1e-9)
		assert.InDelta(t, 0, got.VY, 1e-9)
		assert.InDelta(t, 0, got.Omega, 1e-9)
		assert.Equal(t, "drive_to_piece", c.Status().LastCommand.Mode)
	})

	t.Run("camera rotation turns the approach", func(t *testing.T) {
		cam := connected()
		cam.rotation = 90
		cam.piece = &protocol.PieceObservation{Distance: 1, Angle: 0}
		c := newTestController(t, nil, cam)

		got, ok := c.DriveToPiece(ctx, 0, 0, 0, 0)
		require.True(t, ok)
		assert.InDelta(t, 0, got.VX, 1e-9)
		assert.InDelta(t, -0.1, got.VY, 1e-9)
	})

	t.Run("no piece", func(t *testing.T) {
		c := newTestController(t, nil, connected())
		_, ok := c.DriveToPiece(ctx, 0, 0, 0, 0)
		assert.False(t, ok)
	})

	t.Run("out of range camera", func(t *testing.T) {
		c := newTestController(t, nil, connected())
		_, ok := c.DriveToPiece(ctx, 2, 0, 0, 0)
		assert.False(t, ok)
	})
}

func TestDrive_RecoversAfterIncompleteObservation(t *testing.T) {
	ctx := context.Background()
	nan := math.NaN()

	t.Run("lock on tag", func(t *testing.T) {
		cam := connected(protocol.TagObservation{TagID: "1", Distance: 1, HorizontalAngle: nan})
		c := newTestController(t, nil, cam)
		_, ok := c.LockOnTag(ctx, 0, "")
		require.False(t, ok)

		cam.tags = []protocol.TagObservation{{TagID: "1", Distance: 1, HorizontalAngle: 10}}
		got, ok := c.LockOnTag(ctx, 0, "")
		require.True(t, ok)
		assert.InDelta(t, -1.0, got.Omega, 1e-9)
	})

	t.Run("drive to tag", func(t *testing.T) {
		cam := connected(protocol.TagObservation{TagID: "1", Position: [3]float64{0, 0, 2}, Orientation: [3]float64{0, nan, 0}, Distance: nan})
		c := newTestController(t, nil, cam)
		_, ok := c.DriveToTag(ctx, TagDrive{Side: control.Front})
		require.False(t, ok)

		cam.tags = []protocol.TagObservation{{TagID: "1", Position: [3]float64{0, 0, 2}, Orientation: [3]float64{0, 10, 0}, Distance: 2}}
		got, ok := c.DriveToTag(ctx, TagDrive{Side: control.Front})
		require.True(t, ok)
		assert.InDelta(t, -0.2, got.VX, 1e-9)
		assert.InDelta(t, -1.0, got.Omega, 1e-9)
	})

	t.Run("drive to piece", func(t *testing.T) {
		cam := connected()
		cam.piece = &protocol.PieceObservation{Distance: nan, Angle: nan}
		c := newTestController(t, nil, cam)
		_, ok := c.DefaultPieceDrive(ctx)
		require.False(t, ok)

		cam.piece = &protocol.PieceObservation{Distance: 2, Angle: 0}
		got, ok := c.DefaultPieceDrive(ctx)
		require.True(t, ok)
		assert.InDelta(t, -0.2, got.VX, 1e-9)
		assert.InDelta(t, 0, got.Omega, 1e-9)
	})
}

func TestDriveAngleModifier(t *testing.T) {
	cfg := DefaultConfig()
	offset := cfg.MisalignedPieceOffset

	tests := []struct {
		name     string
		angle    float64
		distance float64
		want     float64
	}{
		{"aligned", 0, 2, 0},
		{"at positive boundary", cfg.MaxIntakeAngle, 2, 0},
		{"at negative boundary", -cfg.MaxIntakeAngle, 2, 0},
		{"misaligned left", cfg.MaxIntakeAngle + 0.1, 2, offset / 2},
		{"misaligned right", -cfg.MaxIntakeAngle - 0.1, 2, -offset / 2},
		{"closer pieces bend more", cfg.MaxIntakeAngle + 0.1, 0.5, offset * 2},
		{"piece at the camera", cfg.MaxIntakeAngle + 0.1, 0, offset / minBiasDistance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DriveAngleModifier(tt.angle, tt.distance, cfg)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("DriveAngleModifier(%v, %v) = %v, want %v", tt.angle, tt.distance, got, tt.want)
			}
		})
	}
}

func TestInfoClearClose(t *testing.T) {
	ctx := context.Background()

	empty := newTestController(t, nil)
	_, ok := empty.Info(ctx)
	assert.False(t, ok)
	assert.NoError(t, empty.Close())

	first := connected()
	first.info = protocol.CameraInfo{Identifier: "cam-1", CameraName: "front"}
	second := connected()
	second.disconnectErr = errors.New("close failed")
	c := newTestController(t, nil, first, second)

	info, ok := c.Info(ctx)
	require.True(t, ok)
	assert.Equal(t, "front", info.CameraName)

	c.Clear()
	assert.Equal(t, 1, first.cleared)
	assert.Equal(t, 1, second.cleared)

	st := c.Status()
	require.Len(t, st.Cameras, 2)
	assert.Equal(t, "connected", st.Cameras[0].State)

	first.connected = false
	err := c.Close()
	assert.ErrorContains(t, err, "close failed")
	assert.False(t, second.connected)
}
