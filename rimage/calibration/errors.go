package calibration

import "github.com/pkg/errors"

var (
	// ErrCalibrationData is returned when the correspondences cannot support a calibration: too few,
	// too many, degenerate geometry, or a result with a non-positive focal length.
	ErrCalibrationData = errors.New("invalid calibration data")

	// ErrCalibrationConvergence is returned when the optimizer spends its evaluation budget
	// without meeting either tolerance.
	ErrCalibrationConvergence = errors.New("calibration did not converge")
)

func dataError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrCalibrationData, format, args...)
}
