package cli

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"

	"go.viam.com/geocal/rimage/calibration"
	"go.viam.com/geocal/rimage/transform"
)

func parseMode(s string) (calibration.Mode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return calibration.ModeAuto, nil
	case "coplanar":
		return calibration.ModeCoplanar, nil
	case "noncoplanar":
		return calibration.ModeNoncoplanar, nil
	default:
		return 0, errors.Errorf("unknown calibration mode %q", s)
	}
}

func readDataset(path string) (*calibration.Dataset, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	data, err := calibration.ReadDataset(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return data, nil
}

// CalibrateAction is the corresponding Action for 'calibrate'.
func CalibrateAction(c *cli.Context) error {
	logger, closeLogger := newLogger(c, "calibrate")
	defer closeLogger()

	camera, err := transform.ReadCameraFile(c.String(calibrateFlagIntrinsics))
	if err != nil {
		return err
	}
	data, err := readDataset(c.String(calibrateFlagPoints))
	if err != nil {
		return err
	}
	mode, err := parseMode(c.String(calibrateFlagMode))
	if err != nil {
		return err
	}

	opts := calibration.DefaultOptions()
	opts.Mode = mode
	opts.FitDecentering = c.Bool(calibrateFlagDecentering)
	if c.Bool(calibrateFlagRefine) {
		initial := camera.Params
		opts.Initial = &initial
	}

	res, err := calibration.NewCalibrator(camera.Intrinsics, opts, logger).Calibrate(c.Context, data)
	if err != nil {
		return err
	}

	p := res.Parameters
	printf(c.App.Writer, "mode %s, %d evaluations, %d iterations", res.Mode, res.Evaluations, res.Iterations)
	printf(c.App.Writer, "f = %.6f mm, kappa1 = %.6e, p1 = %.6e, p2 = %.6e", p.F, p.Kappa1, p.P1, p.P2)
	printf(c.App.Writer, "T = (%.4f, %.4f, %.4f) mm", p.Translation.X, p.Translation.Y, p.Translation.Z)
	printf(c.App.Writer, "R = (%.6f, %.6f, %.6f) rad", p.Rotation.Roll, p.Rotation.Pitch, p.Rotation.Yaw)
	printf(c.App.Writer, "%s", res.Report.String())
	if bins := c.Int(calibrateFlagHistogram); bins > 0 {
		if err := res.Report.WriteHistogram(c.App.Writer, bins); err != nil {
			return err
		}
	}

	if out := c.String(calibrateFlagOut); out != "" {
		if err := transform.WriteCameraFile(out, res.Model); err != nil {
			return err
		}
		printf(c.App.Writer, "wrote %s", out)
	}
	return nil
}
