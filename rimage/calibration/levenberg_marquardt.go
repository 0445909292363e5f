package calibration

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/geocal/logging"
)

const machineEpsilon = 2.220446049250313e-16

// residualFunc fills r with the residuals at x. An error means x is outside the function's domain.
type residualFunc func(r, x []float64) error

// lmSettings are the knobs of the solver, named after their MINPACK lmdif counterparts.
type lmSettings struct {
	ftol   float64
	xtol   float64
	epsfcn float64
	factor float64
	maxfev int
}

type lmResult struct {
	x           []float64
	residuals   []float64
	evaluations int
	iterations  int
}

// levenbergMarquardt minimizes the sum of squares of m residuals over n parameters starting from
// x0. The Jacobian is estimated with forward differences, parameters are scaled by the norms of
// the Jacobian columns, and the step is bounded by a trust region that grows and shrinks with the
// ratio of actual to predicted reduction. It stops when the relative reduction of the sum of
// squares falls under ftol, when the relative step falls under xtol, or with
// ErrCalibrationConvergence after maxfev evaluations.
func levenbergMarquardt(
	ctx context.Context,
	fn residualFunc,
	m int,
	x0 []float64,
	settings lmSettings,
	logger logging.Logger,
) (lmResult, error) {
	n := len(x0)
	x := append([]float64(nil), x0...)
	r := make([]float64, m)
	if err := fn(r, x); err != nil {
		return lmResult{}, errors.Wrap(err, "cannot evaluate residuals at the initial estimate")
	}
	nfev := 1
	fnorm := floats.Norm(r, 2)

	diag := make([]float64, n)
	scaled := make([]float64, n)
	jac := mat.NewDense(m, n, nil)
	rTrial := make([]float64, m)
	xTrial := make([]float64, n)
	var delta, xnorm float64

	for iter := 0; ; iter++ {
		if err := ctx.Err(); err != nil {
			return lmResult{}, errors.Wrap(err, "calibration interrupted")
		}
		if fnorm == 0 {
			return lmResult{x: x, residuals: r, evaluations: nfev, iterations: iter}, nil
		}

		if err := forwardJacobian(jac, fn, x, r, settings.epsfcn); err != nil {
			return lmResult{}, errors.Wrap(ErrCalibrationConvergence, err.Error())
		}
		nfev += n

		for j := 0; j < n; j++ {
			colNorm := mat.Norm(jac.ColView(j), 2)
			switch {
			case iter == 0 && colNorm == 0:
				diag[j] = 1
			case iter == 0:
				diag[j] = colNorm
			default:
				diag[j] = math.Max(diag[j], colNorm)
			}
		}
		if iter == 0 {
			floats.MulTo(scaled, diag, x)
			xnorm = floats.Norm(scaled, 2)
			delta = settings.factor * xnorm
			if delta == 0 {
				delta = settings.factor
			}
		}

		// inner loop: shrink the trust region until a step is accepted
		for {
			step, lambda := trustRegionStep(jac, r, diag, delta)
			floats.MulTo(scaled, diag, step)
			pnorm := floats.Norm(scaled, 2)
			if iter == 0 {
				delta = math.Min(delta, pnorm)
			}

			floats.AddTo(xTrial, x, step)
			fnorm1 := math.Inf(1)
			if err := fn(rTrial, xTrial); err == nil {
				fnorm1 = floats.Norm(rTrial, 2)
			}
			nfev++

			actred := -1.
			if 0.1*fnorm1 < fnorm {
				actred = 1 - (fnorm1/fnorm)*(fnorm1/fnorm)
			}
			var jp mat.VecDense
			jp.MulVec(jac, mat.NewVecDense(n, step))
			temp1 := mat.Norm(&jp, 2) / fnorm
			temp2 := math.Sqrt(lambda) * pnorm / fnorm
			prered := temp1*temp1 + 2*temp2*temp2
			dirder := -(temp1*temp1 + temp2*temp2)
			ratio := 0.
			if prered != 0 {
				ratio = actred / prered
			}

			if ratio <= 0.25 {
				temp := 0.5
				if actred < 0 {
					temp = 0.5 * dirder / (dirder + 0.5*actred)
				}
				if 0.1*fnorm1 >= fnorm || temp < 0.1 {
					temp = 0.1
				}
				delta = temp * math.Min(delta, pnorm/0.1)
			} else if lambda == 0 || ratio >= 0.75 {
				delta = pnorm / 0.5
			}

			if ratio >= 1e-4 {
				copy(x, xTrial)
				copy(r, rTrial)
				fnorm = fnorm1
				floats.MulTo(scaled, diag, x)
				xnorm = floats.Norm(scaled, 2)
			}

			logger.Debugw("levenberg-marquardt step",
				"iteration", iter, "evaluations", nfev, "residual", fnorm, "ratio", ratio, "bound", delta)

			switch {
			case math.Abs(actred) <= settings.ftol && prered <= settings.ftol && 0.5*ratio <= 1,
				delta <= settings.xtol*xnorm,
				math.Abs(actred) <= machineEpsilon && prered <= machineEpsilon && 0.5*ratio <= 1,
				delta <= machineEpsilon*xnorm,
				fnorm == 0:
				return lmResult{x: x, residuals: r, evaluations: nfev, iterations: iter + 1}, nil
			}
			if nfev >= settings.maxfev {
				return lmResult{}, errors.Wrapf(ErrCalibrationConvergence,
					"no convergence after %d evaluations, residual norm %g", nfev, fnorm)
			}
			if ratio >= 1e-4 {
				break
			}
		}
	}
}

// forwardJacobian estimates the Jacobian of fn at x, whose residuals are r, into jac. Parameter j
// is perturbed by sqrt(max(epsfcn, machine epsilon))·|x_j|, or by the bare square root when x_j is
// zero, which fd.Jacobian is given as a unit step in a rescaled function.
func forwardJacobian(jac *mat.Dense, fn residualFunc, x, r []float64, epsfcn float64) error {
	n := len(x)
	eps := math.Sqrt(math.Max(epsfcn, machineEpsilon))
	h := make([]float64, n)
	for j, v := range x {
		h[j] = eps * math.Abs(v)
		if h[j] == 0 {
			h[j] = eps
		}
	}

	var evalErr error
	shifted := make([]float64, n)
	scaledFn := func(y, u []float64) {
		for j := range shifted {
			shifted[j] = x[j] + h[j]*u[j]
		}
		if err := fn(y, shifted); err != nil {
			evalErr = err
			copy(y, r)
		}
	}
	fd.Jacobian(jac, scaledFn, make([]float64, n), &fd.JacobianSettings{
		Formula:     fd.Forward,
		OriginValue: r,
		Step:        1,
	})
	if evalErr != nil {
		return errors.Wrap(evalErr, "cannot estimate jacobian")
	}
	for j := 0; j < n; j++ {
		col := jac.ColView(j).(*mat.VecDense)
		col.ScaleVec(1/h[j], col)
	}
	return nil
}

// trustRegionStep finds the step p minimizing |J·p + r|² + λ|D·p|² with the smallest λ ≥ 0 for
// which |D·p| stays within delta, searching λ geometrically.
func trustRegionStep(jac *mat.Dense, r, diag []float64, delta float64) ([]float64, float64) {
	m, n := jac.Dims()
	if p, ok := dampedStep(jac, r, diag, 0); ok && scaledNorm(diag, p) <= 1.1*delta {
		return p, 0
	}

	// |D·p(λ)| ≤ |D⁻¹·Jᵀ·r| / λ, so hi always satisfies the bound
	var grad mat.VecDense
	grad.MulVec(jac.T(), mat.NewVecDense(m, r))
	for j := 0; j < n; j++ {
		grad.SetVec(j, grad.AtVec(j)/diag[j])
	}
	hi := mat.Norm(&grad, 2) / delta
	if hi == 0 {
		hi = 1
	}
	lo := hi * 1e-12

	best, ok := dampedStep(jac, r, diag, hi)
	bestLambda := hi
	if !ok {
		return make([]float64, n), hi
	}
	for i := 0; i < 60; i++ {
		lambda := math.Sqrt(lo * hi)
		p, ok := dampedStep(jac, r, diag, lambda)
		if !ok {
			lo = lambda
			continue
		}
		pnorm := scaledNorm(diag, p)
		switch {
		case pnorm > 1.1*delta:
			lo = lambda
		case pnorm < 0.9*delta:
			hi = lambda
			best, bestLambda = p, lambda
		default:
			return p, lambda
		}
		if hi/lo < 1+1e-6 {
			break
		}
	}
	return best, bestLambda
}

// dampedStep solves the stacked least squares system [J; sqrt(λ)·D]·p = [-r; 0] by QR.
func dampedStep(jac *mat.Dense, r, diag []float64, lambda float64) ([]float64, bool) {
	m, n := jac.Dims()
	rows := m
	if lambda > 0 {
		rows += n
	}
	a := mat.NewDense(rows, n, nil)
	a.Slice(0, m, 0, n).(*mat.Dense).Copy(jac)
	b := mat.NewVecDense(rows, nil)
	for i := 0; i < m; i++ {
		b.SetVec(i, -r[i])
	}
	if lambda > 0 {
		sq := math.Sqrt(lambda)
		for j := 0; j < n; j++ {
			a.Set(m+j, j, sq*diag[j])
		}
	}

	var p mat.VecDense
	if err := p.SolveVec(a, b); err != nil {
		return nil, false
	}
	out := mat.Col(nil, 0, &p)
	for _, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
	}
	return out, true
}

func scaledNorm(diag, p []float64) float64 {
	var sum float64
	for j := range p {
		sum += (diag[j] * p[j]) * (diag[j] * p[j])
	}
	return math.Sqrt(sum)
}
