package transform

import (
	"math"

	"github.com/pkg/errors"
)

const (
	distortMaxIterations = 20
	distortTolerance     = 1.0e-8
)

// RadialDistortion is the first order radial lens model with optional decentering terms.
// Given distorted sensor coordinates (Xd, Yd) and r² = Xd² + Yd², the undistorted coordinates are
//
//	Xu = Xd(1 + κr²) + 2·p1·Xd·Yd + p2(r² + 2Xd²)
//	Yu = Yd(1 + κr²) + 2·p2·Xd·Yd + p1(r² + 2Yd²)
//
// With P1 = P2 = 0 it is the purely radial model.
type RadialDistortion struct {
	Kappa1 float64 `json:"kappa1"`
	P1     float64 `json:"p1"`
	P2     float64 `json:"p2"`
}

// NewRadialDistortion takes in a slice of up to three floats (kappa1, p1, p2); missing values are zero.
func NewRadialDistortion(inp []float64) (*RadialDistortion, error) {
	if len(inp) > 3 {
		return nil, errors.Errorf("list of parameters too long, expected max 3, got %d", len(inp))
	}
	padded := make([]float64, 3)
	copy(padded, inp)
	return &RadialDistortion{Kappa1: padded[0], P1: padded[1], P2: padded[2]}, nil
}

// ModelType returns the type of distortion model.
func (rd *RadialDistortion) ModelType() DistortionType {
	return TsaiRadialDistortionType
}

// CheckValid checks if the fields for RadialDistortion have valid inputs.
func (rd *RadialDistortion) CheckValid() error {
	if rd == nil {
		return InvalidDistortionError("RadialDistortion shaped distortion_parameters not provided")
	}
	for _, v := range rd.Parameters() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return InvalidDistortionError("distortion coefficients must be finite")
		}
	}
	return nil
}

// Parameters returns the parameters of the distortion model as a list of floats.
func (rd *RadialDistortion) Parameters() []float64 {
	if rd == nil {
		return []float64{}
	}
	return []float64{rd.Kappa1, rd.P1, rd.P2}
}

// Undistort evaluates the model in closed form.
func (rd *RadialDistortion) Undistort(xd, yd float64) (float64, float64) {
	if rd == nil {
		return xd, yd
	}
	r2 := xd*xd + yd*yd
	radial := 1 + rd.Kappa1*r2
	xu := xd*radial + 2*rd.P1*xd*yd + rd.P2*(r2+2*xd*xd)
	yu := yd*radial + 2*rd.P2*xd*yd + rd.P1*(r2+2*yd*yd)
	return xu, yu
}

// Distort finds the distorted point whose undistortion is (xu, yu). There is no closed form, so it
// runs Newton-Raphson from the undistorted point until the step falls under 1e-8 mm. It fails with
// ErrProjectionFailure when the Jacobian becomes singular or the iteration does not converge.
func (rd *RadialDistortion) Distort(xu, yu float64) (float64, float64, error) {
	if rd == nil {
		return xu, yu, nil
	}
	xd, yd := xu, yu
	for i := 0; i < distortMaxIterations; i++ {
		ux, uy := rd.Undistort(xd, yd)
		errX, errY := ux-xu, uy-yu

		r2 := xd*xd + yd*yd
		radial := 1 + rd.Kappa1*r2
		cross := 2 * rd.Kappa1 * xd * yd
		dUxDxd := radial + 2*rd.Kappa1*xd*xd + 2*rd.P1*yd + 6*rd.P2*xd
		dUxDyd := cross + 2*rd.P1*xd + 2*rd.P2*yd
		dUyDxd := cross + 2*rd.P2*yd + 2*rd.P1*xd
		dUyDyd := radial + 2*rd.Kappa1*yd*yd + 2*rd.P2*xd + 6*rd.P1*yd

		det := dUxDxd*dUyDyd - dUxDyd*dUyDxd
		if math.Abs(det) < Epsilon {
			return 0, 0, projectionFailure("distortion jacobian is singular at (%v, %v)", xd, yd)
		}

		stepX := (dUyDyd*errX - dUxDyd*errY) / det
		stepY := (-dUyDxd*errX + dUxDxd*errY) / det
		xd -= stepX
		yd -= stepY
		if math.Hypot(stepX, stepY) <= distortTolerance {
			return xd, yd, nil
		}
	}
	return 0, 0, projectionFailure("distortion inversion of (%v, %v) did not converge in %d iterations",
		xu, yu, distortMaxIterations)
}
