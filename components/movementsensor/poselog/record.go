// Package poselog holds a time-ordered log of vehicle poses and answers pose queries against it,
// either by nearest record or by interpolating between the two records that bracket a time.
package poselog

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/geocal/spatialmath"
)

// ErrEmptyLog is returned by every query against a log with no records.
var ErrEmptyLog = errors.New("position log is empty")

// PoseRecord is the vehicle pose at one timestamp. Angles are in radians, positions in meters of
// the local frame.
type PoseRecord struct {
	Time       int64   `json:"time"`
	Roll       float64 `json:"roll"`
	Pitch      float64 `json:"pitch"`
	Yaw        float64 `json:"yaw"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Satellites [2]int  `json:"satellites"`
}

// Position returns x, y and z as a vector.
func (r PoseRecord) Position() r3.Vector {
	return r3.Vector{X: r.X, Y: r.Y, Z: r.Z}
}

// Orientation returns roll, pitch and yaw.
func (r PoseRecord) Orientation() spatialmath.EulerAngles {
	return spatialmath.EulerAngles{Roll: r.Roll, Pitch: r.Pitch, Yaw: r.Yaw}
}

// Pose2D returns the pose projected onto the ground plane.
func (r PoseRecord) Pose2D() spatialmath.Pose2D {
	return spatialmath.NewPose2D(r.X, r.Y, r.Yaw)
}
