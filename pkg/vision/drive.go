package vision

import (
	"context"
	"math"

	"github.com/teslashibe/go-tagvision/pkg/control"
	"gonum.org/v1/gonum/spatial/r2"
)

// TagDrive groups the parameters of a DriveToTag call.
type TagDrive struct {
	Camera         int
	TagIDs         []string // Empty means the nearest tag of any id
	Side           control.Side
	CamOffsetAngle float64
	XOffset        float64
	YOffset        float64
}

// DefaultTagDrive drives the back of the robot onto the nearest of ids seen by camera cam.
func DefaultTagDrive(cam int, ids ...string) TagDrive {
	return TagDrive{Camera: cam, TagIDs: ids, Side: control.Back}
}

// LockOnTag turns the robot toward a tag without translating. An empty tagID
// locks onto the nearest tag.
func (c *Controller) LockOnTag(ctx context.Context, cam int, tagID string) (control.ChassisSpeeds, bool) {
	camera, ok := c.Camera(cam)
	if !ok {
		c.logger.Debug("lock on tag: no such camera", "camera", cam)
		return control.ChassisSpeeds{}, false
	}

	sel := NearestTag()
	if tagID != "" {
		sel = TagByID(tagID)
	}
	tag, ok := Select(camera.Tags(ctx), sel)
	if !ok {
		return control.ChassisSpeeds{}, false
	}

	if !finite(tag.HorizontalAngle) {
		c.logger.Warn("lock on tag: tag has no horizontal angle", "tag", tag.TagID)
		return control.ChassisSpeeds{}, false
	}

	c.driveMu.Lock()
	omega := c.turnPID.Calculate(tag.HorizontalAngle)
	c.driveMu.Unlock()

	speeds := control.ChassisSpeeds{Omega: omega}
	c.record("lock_on_tag", speeds)
	return speeds, true
}

// DriveToTag drives a chosen side of the robot onto a tag. The translation
// points at the offset-adjusted tag position and is scaled by the range
// regulator; the rotation squares the robot up with the tag's yaw.
func (c *Controller) DriveToTag(ctx context.Context, d TagDrive) (control.ChassisSpeeds, bool) {
	camera, ok := c.Camera(d.Camera)
	if !ok {
		c.logger.Debug("drive to tag: no such camera", "camera", d.Camera)
		return control.ChassisSpeeds{}, false
	}

	sel := NearestTag()
	if len(d.TagIDs) > 0 {
		sel = NearestOf(d.TagIDs...)
	}
	tag, ok := Select(camera.Tags(ctx), sel)
	if !ok {
		return control.ChassisSpeeds{}, false
	}

	// Camera frame: z forward, x sideways
	target := r2.Vec{
		X: tag.Position[2] - d.XOffset,
		Y: tag.Position[0] - d.YOffset,
	}
	heading := tag.Yaw() - d.CamOffsetAngle
	if !finite(target.X, target.Y, heading, tag.Distance) {
		c.logger.Warn("drive to tag: incomplete observation", "tag", tag.TagID)
		return control.ChassisSpeeds{}, false
	}

	c.driveMu.Lock()
	turn := c.turnPID.Calculate(heading)
	move := c.movePID.Calculate(tag.Distance)
	c.driveMu.Unlock()

	drive := r2.Scale(move*c.config.MaxDriveSpeed, unit(target))
	speeds := control.FrontToSide(control.ChassisSpeeds{VX: drive.X, VY: drive.Y, Omega: turn}, d.Side)
	if !speeds.IsFinite() {
		c.logger.Warn("drive to tag: non-finite command", "tag", tag.TagID)
		return control.ChassisSpeeds{}, false
	}
	c.record("drive_to_tag", speeds)
	return speeds, true
}

// DriveToPiece drives toward the game piece seen by camera cam. Pieces off to
// the side are approached along a wider arc so the intake meets them square.
func (c *Controller) DriveToPiece(ctx context.Context, cam int, camOffsetAngle, xOffset, yOffset float64) (control.ChassisSpeeds, bool) {
	camera, ok := c.Camera(cam)
	if !ok {
		c.logger.Debug("drive to piece: no such camera", "camera", cam)
		return control.ChassisSpeeds{}, false
	}

	piece, ok := camera.Piece(ctx)
	if !ok {
		return control.ChassisSpeeds{}, false
	}

	bearing := piece.Angle + control.Radians(camera.Rotation()) + DriveAngleModifier(piece.Angle, piece.Distance, c.config)
	target := r2.Sub(r2.Scale(piece.Distance, r2.Vec{X: math.Cos(bearing), Y: math.Sin(bearing)}), r2.Vec{X: xOffset, Y: yOffset})
	heading := piece.Angle - camOffsetAngle
	if !finite(target.X, target.Y, heading, piece.Distance) {
		c.logger.Warn("drive to piece: incomplete observation", "distance", piece.Distance, "angle", piece.Angle)
		return control.ChassisSpeeds{}, false
	}

	c.driveMu.Lock()
	turn := c.turnPID.Calculate(heading)
	move := c.movePID.Calculate(piece.Distance)
	c.driveMu.Unlock()

	drive := r2.Scale(move*c.config.MaxDriveSpeed, unit(target))
	speeds := control.ChassisSpeeds{VX: drive.X, VY: drive.Y, Omega: turn}
	if !speeds.IsFinite() {
		c.logger.Warn("drive to piece: non-finite command", "distance", piece.Distance, "angle", piece.Angle)
		return control.ChassisSpeeds{}, false
	}
	c.record("drive_to_piece", speeds)
	return speeds, true
}

// DefaultPieceDrive drives to a piece on the configured piece camera with no offsets.
func (c *Controller) DefaultPieceDrive(ctx context.Context) (control.ChassisSpeeds, bool) {
	return c.DriveToPiece(ctx, c.config.PieceCamera, 0, 0, 0)
}

// minBiasDistance bounds the misalignment bias for pieces right at the camera.
const minBiasDistance = 0.05

// DriveAngleModifier is the extra approach angle for a piece at the given
// bearing and distance. It is zero unless |angle| exceeds MaxIntakeAngle, and
// shrinks as the piece gets farther away.
func DriveAngleModifier(angle, distance float64, cfg *Config) float64 {
	var sign float64
	switch {
	case angle > cfg.MaxIntakeAngle:
		sign = 1
	case angle < -cfg.MaxIntakeAngle:
		sign = -1
	default:
		return 0
	}
	return sign * cfg.MisalignedPieceOffset / math.Max(distance, minBiasDistance)
}

// finite reports whether every value is a real number.
func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// unit normalizes v, mapping the zero vector to zero.
func unit(v r2.Vec) r2.Vec {
	if r2.Norm(v) == 0 {
		return r2.Vec{}
	}
	return r2.Unit(v)
}
