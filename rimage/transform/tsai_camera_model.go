// Package transform implements the Tsai camera model: conversions between world, camera, sensor
// and image coordinates, lens distortion, and reading and publishing calibrated cameras.
package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// TsaiCameraModel carries points between the world (mm), camera (mm), sensor plane (mm) and
// image (pixels) frames of one calibrated camera. A model is never modified after construction,
// so it can be shared between goroutines.
type TsaiCameraModel struct {
	Intrinsics TsaiIntrinsics
	Params     CalibrationParameters
}

// NewTsaiCameraModel validates and pairs intrinsics with a calibration.
func NewTsaiCameraModel(intrinsics TsaiIntrinsics, params CalibrationParameters) (*TsaiCameraModel, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	return &TsaiCameraModel{Intrinsics: intrinsics, Params: params}, nil
}

// WithParameters returns a new model for the same camera with a different calibration.
func (m *TsaiCameraModel) WithParameters(params CalibrationParameters) (*TsaiCameraModel, error) {
	return NewTsaiCameraModel(m.Intrinsics, params)
}

// WorldToCamera applies c = R·w + T.
func (m *TsaiCameraModel) WorldToCamera(w r3.Vector) r3.Vector {
	return m.Params.R.Mul(w).Add(m.Params.Translation)
}

// CameraToWorld applies w = Rᵀ·(c - T).
func (m *TsaiCameraModel) CameraToWorld(c r3.Vector) r3.Vector {
	return m.Params.R.TransposeMul(c.Sub(m.Params.Translation))
}

// CameraToUndistortedSensor projects a camera frame point onto the ideal image plane.
func (m *TsaiCameraModel) CameraToUndistortedSensor(c r3.Vector) (r2.Point, error) {
	if c.Z <= Epsilon {
		return r2.Point{}, projectionFailure("point (%v, %v, %v) is not in front of the camera", c.X, c.Y, c.Z)
	}
	return r2.Point{X: m.Params.F * c.X / c.Z, Y: m.Params.F * c.Y / c.Z}, nil
}

// UndistortedToDistortedSensor applies lens distortion on the sensor plane.
func (m *TsaiCameraModel) UndistortedToDistortedSensor(p r2.Point) (r2.Point, error) {
	xd, yd, err := m.Params.Distortion().Distort(p.X, p.Y)
	if err != nil {
		return r2.Point{}, err
	}
	return r2.Point{X: xd, Y: yd}, nil
}

// DistortedToUndistortedSensor removes lens distortion on the sensor plane.
func (m *TsaiCameraModel) DistortedToUndistortedSensor(p r2.Point) r2.Point {
	xu, yu := m.Params.Distortion().Undistort(p.X, p.Y)
	return r2.Point{X: xu, Y: yu}
}

// DistortedSensorToImage converts sensor plane millimeters to frame buffer pixels.
func (m *TsaiCameraModel) DistortedSensorToImage(p r2.Point) r2.Point {
	in := m.Intrinsics
	return r2.Point{X: p.X*in.Sx/in.Dpx + in.Cx, Y: p.Y/in.Dpy + in.Cy}
}

// ImageToDistortedSensor converts frame buffer pixels to sensor plane millimeters.
func (m *TsaiCameraModel) ImageToDistortedSensor(p r2.Point) r2.Point {
	in := m.Intrinsics
	return r2.Point{X: in.Dpx * (p.X - in.Cx) / in.Sx, Y: in.Dpy * (p.Y - in.Cy)}
}

// UndistortedToDistortedImage moves a pixel of the ideal image to where the lens actually puts it.
func (m *TsaiCameraModel) UndistortedToDistortedImage(p r2.Point) (r2.Point, error) {
	d, err := m.UndistortedToDistortedSensor(m.ImageToDistortedSensor(p))
	if err != nil {
		return r2.Point{}, err
	}
	return m.DistortedSensorToImage(d), nil
}

// DistortedToUndistortedImage moves an observed pixel to where the ideal pinhole camera would put it.
func (m *TsaiCameraModel) DistortedToUndistortedImage(p r2.Point) r2.Point {
	return m.DistortedSensorToImage(m.DistortedToUndistortedSensor(m.ImageToDistortedSensor(p)))
}

// WorldToImage projects a world point to the pixel it is observed at.
func (m *TsaiCameraModel) WorldToImage(w r3.Vector) (r2.Point, error) {
	u, err := m.CameraToUndistortedSensor(m.WorldToCamera(w))
	if err != nil {
		return r2.Point{}, err
	}
	d, err := m.UndistortedToDistortedSensor(u)
	if err != nil {
		return r2.Point{}, err
	}
	return m.DistortedSensorToImage(d), nil
}

// ImageToWorld back-projects an observed pixel onto the world plane z = zw. A single view only
// fixes a ray, so the height of the plane must be known.
func (m *TsaiCameraModel) ImageToWorld(p r2.Point, zw float64) (r3.Vector, error) {
	u := m.DistortedToUndistortedSensor(m.ImageToDistortedSensor(p))
	f := m.Params.F
	r := m.Params.R.Entries()
	t := m.Params.Translation

	// Each row is Xu·zc = f·xc (resp. Yu) with xw and yw unknown.
	a11 := f*r[0] - u.X*r[6]
	a12 := f*r[1] - u.X*r[7]
	b1 := u.X*(r[8]*zw+t.Z) - f*(r[2]*zw+t.X)
	a21 := f*r[3] - u.Y*r[6]
	a22 := f*r[4] - u.Y*r[7]
	b2 := u.Y*(r[8]*zw+t.Z) - f*(r[5]*zw+t.Y)

	det := a11*a22 - a12*a21
	if math.Abs(det) < Epsilon {
		return r3.Vector{}, projectionFailure("viewing ray of pixel (%v, %v) is parallel to the plane z = %v", p.X, p.Y, zw)
	}
	w := r3.Vector{
		X: (b1*a22 - a12*b2) / det,
		Y: (a11*b2 - b1*a21) / det,
		Z: zw,
	}
	if m.WorldToCamera(w).Z <= Epsilon {
		return r3.Vector{}, projectionFailure("plane z = %v is met behind the camera", zw)
	}
	return w, nil
}

// ProjectAll projects every world point, failing on the first that cannot be projected.
func (m *TsaiCameraModel) ProjectAll(points []r3.Vector) ([]r2.Point, error) {
	out := make([]r2.Point, 0, len(points))
	for i, w := range points {
		p, err := m.WorldToImage(w)
		if err != nil {
			return nil, errors.Wrapf(err, "point %d", i)
		}
		out = append(out, p)
	}
	return out, nil
}
