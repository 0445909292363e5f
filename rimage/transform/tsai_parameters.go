package transform

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/geocal/spatialmath"
)

// CalibrationParameters are the result of one calibration: focal length, distortion and the rigid
// transform from world to camera. A new calibration replaces the whole value.
type CalibrationParameters struct {
	// F is the effective focal length, in mm.
	F float64
	// Kappa1 is the first order radial distortion coefficient, in 1/mm².
	Kappa1 float64
	// P1 and P2 are the decentering distortion coefficients, in 1/mm.
	P1 float64
	P2 float64
	// Translation is T in c = R·w + T, in mm.
	Translation r3.Vector
	// Rotation holds Rx, Ry and Rz as roll, pitch and yaw.
	Rotation spatialmath.EulerAngles
	// R is the rotation matrix, r1 through r9.
	R spatialmath.RotationMatrix
}

// NewCalibrationParameters builds a parameter set, deriving R = Rz·Ry·Rx from the angles.
func NewCalibrationParameters(
	f, kappa1, p1, p2 float64,
	translation r3.Vector,
	angles spatialmath.EulerAngles,
) CalibrationParameters {
	return CalibrationParameters{
		F:           f,
		Kappa1:      kappa1,
		P1:          p1,
		P2:          p2,
		Translation: translation,
		Rotation:    angles,
		R:           angles.RotationMatrix(),
	}
}

// Distortion returns the lens distortion model described by the parameters.
func (p CalibrationParameters) Distortion() *RadialDistortion {
	return &RadialDistortion{Kappa1: p.Kappa1, P1: p.P1, P2: p.P2}
}

// CheckValid checks that the focal length is positive, every value is finite and R is a rotation.
func (p CalibrationParameters) CheckValid() error {
	if !(p.F > 0) || math.IsInf(p.F, 0) {
		return NewInvalidParametersError(fmt.Sprintf("Invalid focal length f = %#v", p.F))
	}
	values := []float64{p.Kappa1, p.P1, p.P2, p.Translation.X, p.Translation.Y, p.Translation.Z,
		p.Rotation.Roll, p.Rotation.Pitch, p.Rotation.Yaw}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewInvalidParametersError("parameters must be finite")
		}
	}
	if !p.R.IsOrthonormal(1e-6) {
		return NewInvalidParametersError("rotation matrix is not orthonormal")
	}
	return nil
}
