package transform

import "github.com/pkg/errors"

// DistortionType is the name of the distortion model.
type DistortionType string

// TsaiRadialDistortionType is the first order radial model, optionally with two decentering terms.
const TsaiRadialDistortionType = DistortionType("tsai_radial")

// Distorter relates undistorted and distorted sensor plane coordinates, in millimeters.
type Distorter interface {
	ModelType() DistortionType
	CheckValid() error
	Parameters() []float64
	// Undistort maps a distorted sensor point to where the ideal pinhole camera would see it.
	Undistort(xd, yd float64) (float64, float64)
	// Distort is the inverse of Undistort.
	Distort(xu, yu float64) (float64, float64, error)
}

// InvalidDistortionError is used when the distortion_parameters are invalid.
func InvalidDistortionError(msg string) error {
	return errors.Wrapf(errors.New("invalid distortion_parameters"), msg)
}

// NewDistorter returns a Distorter given a valid DistortionType and its parameters.
func NewDistorter(distortionType DistortionType, parameters []float64) (Distorter, error) {
	switch distortionType {
	case TsaiRadialDistortionType:
		return NewRadialDistortion(parameters)
	default:
		return nil, errors.Errorf("do not know how to parse %q distortion model", distortionType)
	}
}
