package calibration

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/geocal/logging"
	"go.viam.com/geocal/rimage/transform"
	"go.viam.com/geocal/spatialmath"
	"go.viam.com/geocal/utils"
)

// minNoncoplanarPoints is the fewest correspondences a noncoplanar calibration accepts.
const minNoncoplanarPoints = 7

// minSpreadRatio is the smallest ratio of the least to the greatest extent of a noncoplanar target.
const minSpreadRatio = 1e-6

// Options tune a calibration. Zero values are replaced by the defaults of DefaultOptions.
type Options struct {
	// Mode forces coplanar or noncoplanar calibration; ModeAuto detects it from the data.
	Mode Mode
	// FitDecentering adds the decentering coefficients p1 and p2 to the fit.
	FitDecentering bool
	// Initial replaces the linear estimate as the optimizer's starting point.
	Initial *transform.CalibrationParameters

	FunctionTolerance          float64
	ParameterTolerance         float64
	StepFactor                 float64
	Epsfcn                     float64
	MaxEvaluationsPerParameter int
	// CoplanarPriorWeight weights the residual holding Rz, the rotation about the optical axis, near
	// its initial estimate in coplanar mode.
	CoplanarPriorWeight float64
}

// DefaultOptions returns the options used for any zero field.
func DefaultOptions() Options {
	return Options{
		FunctionTolerance:          1e-5,
		ParameterTolerance:         1e-7,
		StepFactor:                 100,
		Epsfcn:                     1e-16,
		MaxEvaluationsPerParameter: 1000,
		CoplanarPriorWeight:        1e-3,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.FunctionTolerance <= 0 {
		o.FunctionTolerance = def.FunctionTolerance
	}
	if o.ParameterTolerance <= 0 {
		o.ParameterTolerance = def.ParameterTolerance
	}
	if o.StepFactor <= 0 {
		o.StepFactor = def.StepFactor
	}
	if o.Epsfcn <= 0 {
		o.Epsfcn = def.Epsfcn
	}
	if o.MaxEvaluationsPerParameter <= 0 {
		o.MaxEvaluationsPerParameter = def.MaxEvaluationsPerParameter
	}
	if o.CoplanarPriorWeight <= 0 {
		o.CoplanarPriorWeight = def.CoplanarPriorWeight
	}
	return o
}

// Result is a successful calibration.
type Result struct {
	Parameters  transform.CalibrationParameters
	Model       *transform.TsaiCameraModel
	Report      Report
	Mode        Mode
	Evaluations int
	Iterations  int
}

// Calibrator fits calibration parameters for a camera with known intrinsics.
type Calibrator struct {
	Intrinsics transform.TsaiIntrinsics
	Options    Options
	// Logger receives per-iteration progress at debug level. Nil discards it.
	Logger logging.Logger
}

// NewCalibrator returns a calibrator for a camera with the given intrinsics.
func NewCalibrator(intrinsics transform.TsaiIntrinsics, opts Options, logger logging.Logger) *Calibrator {
	return &Calibrator{Intrinsics: intrinsics, Options: opts, Logger: logger}
}

// Calibrate fits f, κ1, optionally p1 and p2, R and T so that the model maps every world point of
// the dataset as close as possible to its observed pixel, minimizing the sum of squared pixel
// distances. Invalid data fails with ErrCalibrationData before the optimizer runs.
func (c *Calibrator) Calibrate(ctx context.Context, data *Dataset) (Result, error) {
	logger := c.Logger
	if logger == nil {
		logger = logging.NewBlankLogger("calibration")
	}
	opts := c.Options.withDefaults()

	if err := c.Intrinsics.CheckValid(); err != nil {
		return Result{}, errors.Wrap(ErrCalibrationData, err.Error())
	}
	if data == nil || data.Len() == 0 {
		return Result{}, dataError("no correspondences")
	}
	points := data.Points()
	if len(points) > MaxPoints {
		return Result{}, dataError("%d points exceed the maximum of %d", len(points), MaxPoints)
	}

	mode := opts.Mode
	if mode == ModeAuto {
		mode = data.Mode()
	}
	layout := newParameterLayout(opts.FitDecentering)
	switch mode {
	case ModeCoplanar:
		for i, p := range points {
			if p.World.Z != 0 {
				return Result{}, dataError("coplanar calibration needs z = 0 for every point, point %d has z = %g",
					i, p.World.Z)
			}
		}
		if len(points) <= layout.size {
			return Result{}, dataError("coplanar calibration of %d parameters needs more than %d points, got %d",
				layout.size, layout.size, len(points))
		}
	case ModeNoncoplanar:
		if len(points) < minNoncoplanarPoints {
			return Result{}, dataError("noncoplanar calibration needs at least %d points, got %d",
				minNoncoplanarPoints, len(points))
		}
		if len(points) <= layout.size {
			return Result{}, dataError("calibration of %d parameters needs more than %d points, got %d",
				layout.size, layout.size, len(points))
		}
		sv := spread(data.WorldPoints())
		if sv[0] == 0 || sv[2]/sv[0] < minSpreadRatio {
			return Result{}, dataError("noncoplanar calibration needs world points spanning three dimensions")
		}
	default:
		return Result{}, dataError("unknown calibration mode %d", mode)
	}

	var initial transform.CalibrationParameters
	if opts.Initial != nil {
		initial = *opts.Initial
	} else {
		var err error
		if initial, err = linearEstimate(c.Intrinsics, points, mode); err != nil {
			return Result{}, err
		}
	}
	start := transform.TsaiCameraModel{Intrinsics: c.Intrinsics, Params: initial}
	for i, p := range points {
		if _, err := start.WorldToImage(p.World); err != nil {
			return Result{}, errors.Wrapf(ErrCalibrationData, "initial estimate cannot project point %d: %v", i, err)
		}
	}
	logger.Debugw("initial estimate", "mode", mode.String(), "f", initial.F, "translation", initial.Translation)

	x0 := layout.pack(initial)
	rz0 := initial.Rotation.Yaw
	m := 2 * len(points)
	if mode == ModeCoplanar {
		m++
	}
	residuals := func(r, x []float64) error {
		model := transform.TsaiCameraModel{Intrinsics: c.Intrinsics, Params: layout.unpack(x)}
		for i, p := range points {
			img, err := model.WorldToImage(p.World)
			if err != nil {
				return err
			}
			r[2*i] = img.X - p.Image.X
			r[2*i+1] = img.Y - p.Image.Y
		}
		// Rz is applied last in R = Rz·Ry·Rx, so it turns the camera about its optical axis.
		if mode == ModeCoplanar {
			r[m-1] = opts.CoplanarPriorWeight * (x[paramRz] - rz0)
		}
		return nil
	}

	solved, err := levenbergMarquardt(ctx, residuals, m, x0, lmSettings{
		ftol:   opts.FunctionTolerance,
		xtol:   opts.ParameterTolerance,
		epsfcn: opts.Epsfcn,
		factor: opts.StepFactor,
		maxfev: opts.MaxEvaluationsPerParameter * len(x0),
	}, logger)
	if err != nil {
		return Result{}, err
	}

	params := layout.unpack(solved.x)
	if !(params.F > 0) {
		return Result{}, dataError("calibration produced a non-positive focal length %g", params.F)
	}
	model, err := transform.NewTsaiCameraModel(c.Intrinsics, params)
	if err != nil {
		return Result{}, errors.Wrap(ErrCalibrationData, err.Error())
	}
	report, err := NewReport(model, points)
	if err != nil {
		return Result{}, err
	}
	logger.Infow("calibration finished",
		"mode", mode.String(),
		"points", len(points),
		"evaluations", solved.evaluations,
		"iterations", solved.iterations,
		"f", params.F,
		"kappa1", params.Kappa1,
		"rms", report.RMS)

	return Result{
		Parameters:  params,
		Model:       model,
		Report:      report,
		Mode:        mode,
		Evaluations: solved.evaluations,
		Iterations:  solved.iterations,
	}, nil
}

// Indices into the optimizer's parameter vector.
const (
	paramRx = iota
	paramRy
	paramRz
	paramTx
	paramTy
	paramTz
	paramF
	paramKappa1
	paramP1
	paramP2
)

type parameterLayout struct {
	decentering bool
	size        int
}

func newParameterLayout(decentering bool) parameterLayout {
	if decentering {
		return parameterLayout{decentering: true, size: paramP2 + 1}
	}
	return parameterLayout{size: paramKappa1 + 1}
}

func (l parameterLayout) pack(p transform.CalibrationParameters) []float64 {
	x := []float64{
		p.Rotation.Roll, p.Rotation.Pitch, p.Rotation.Yaw,
		p.Translation.X, p.Translation.Y, p.Translation.Z,
		p.F, p.Kappa1,
	}
	if l.decentering {
		x = append(x, p.P1, p.P2)
	}
	return x
}

func (l parameterLayout) unpack(x []float64) transform.CalibrationParameters {
	var p1, p2 float64
	if l.decentering {
		p1, p2 = x[paramP1], x[paramP2]
	}
	return transform.NewCalibrationParameters(
		x[paramF], x[paramKappa1], p1, p2,
		r3.Vector{X: x[paramTx], Y: x[paramTy], Z: x[paramTz]},
		spatialmath.EulerAngles{
			Roll:  utils.WrapAngleRad(x[paramRx]),
			Pitch: x[paramRy],
			Yaw:   utils.WrapAngleRad(x[paramRz]),
		},
	)
}
