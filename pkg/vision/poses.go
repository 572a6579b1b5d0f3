package vision

// TagPose is the known placement of a tag on the field.
type TagPose struct {
	Angle float64 `yaml:"angle" json:"angle"` // Facing angle in radians
	X     float64 `yaml:"x" json:"x"`         // Meters
	Y     float64 `yaml:"y" json:"y"`         // Meters
}

// TagPoseTable maps tag ids to their field poses.
type TagPoseTable map[string]TagPose

// Angle returns the field angle of a tag, or 0 for an unknown id.
func (t TagPoseTable) Angle(id string) float64 {
	return t[id].Angle
}

// Lookup returns the pose of a tag and whether it is known
func (t TagPoseTable) Lookup(id string) (TagPose, bool) {
	pose, ok := t[id]
	return pose, ok
}
