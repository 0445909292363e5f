package transform

import (
	"fmt"

	"github.com/pkg/errors"
)

// Epsilon is the magnitude below which a denominator or determinant is treated as zero.
const Epsilon = 1.0e-8

// ErrProjectionFailure is returned when a point cannot be carried through the camera model:
// it lies behind the camera, a denominator vanishes, or the distortion cannot be inverted.
var ErrProjectionFailure = errors.New("projection failure")

func projectionFailure(format string, args ...interface{}) error {
	return errors.Wrap(ErrProjectionFailure, fmt.Sprintf(format, args...))
}

// NewInvalidIntrinsicsError is used when the intrinsic parameters of a camera are missing or unusable.
func NewInvalidIntrinsicsError(msg string) error {
	return errors.Wrap(errors.New("invalid intrinsic parameters"), msg)
}

// NewInvalidParametersError is used when a calibration parameter set is unusable.
func NewInvalidParametersError(msg string) error {
	return errors.Wrap(errors.New("invalid calibration parameters"), msg)
}
