// Package spatialmath defines the rotations and ground plane poses used by the camera model and
// the pose reader, and converts between local metric offsets and geographic coordinates.
package spatialmath

import (
	"math"
)

// EulerAngles are three angles (in radians) used to represent the rotation of an object in 3D Euclidean space.
// The rotation is applied about the fixed x axis (Roll), then the fixed y axis (Pitch), then the fixed z axis
// (Yaw), so the equivalent rotation matrix is Rz(Yaw)·Ry(Pitch)·Rx(Roll).
type EulerAngles struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// NewEulerAngles creates an empty EulerAngles struct.
func NewEulerAngles() *EulerAngles {
	return &EulerAngles{Roll: 0, Pitch: 0, Yaw: 0}
}

// RotationMatrix returns the orientation in rotation matrix representation.
func (ea *EulerAngles) RotationMatrix() RotationMatrix {
	sr, cr := math.Sincos(ea.Roll)
	sp, cp := math.Sincos(ea.Pitch)
	sy, cy := math.Sincos(ea.Yaw)

	return RotationMatrix{mat: [9]float64{
		cp * cy, cy*sr*sp - cr*sy, sr*sy + cr*cy*sp,
		cp * sy, sr*sp*sy + cr*cy, cr*sp*sy - cy*sr,
		-sp, cp * sr, cr * cp,
	}}
}

// EulerAngles recovers the angles that generate the rotation matrix. Pitch is returned in
// [-pi/2, pi/2]; at gimbal lock (|pitch| = pi/2) roll is reported as zero.
func (rm RotationMatrix) EulerAngles() *EulerAngles {
	sp := -rm.mat[6]
	if sp > 1 {
		sp = 1
	} else if sp < -1 {
		sp = -1
	}
	pitch := math.Asin(sp)
	if math.Abs(sp) > 1-1e-12 {
		return &EulerAngles{Roll: 0, Pitch: pitch, Yaw: math.Atan2(-rm.mat[1], rm.mat[4])}
	}
	return &EulerAngles{
		Roll:  math.Atan2(rm.mat[7], rm.mat[8]),
		Pitch: pitch,
		Yaw:   math.Atan2(rm.mat[3], rm.mat[0]),
	}
}
