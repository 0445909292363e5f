package calibration

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// normalizePoints translates pts to their centroid and scales them to an average distance of
// sqrt(2) from it. It returns the new points and the 3x3 transform that was applied.
func normalizePoints(pts []r2.Point) ([]r2.Point, *mat.Dense) {
	nPoints := len(pts)
	mu := r2.Point{}
	for _, pt := range pts {
		mu = mu.Add(pt)
	}
	mu = mu.Mul(1. / float64(nPoints))

	d := 0.0
	for _, pt := range pts {
		d += pt.Sub(mu).Norm() / float64(nPoints)
	}
	scale := 1.
	if d > 0 {
		scale = math.Sqrt(2) / d
	}
	T := mat.NewDense(3, 3, []float64{
		scale, 0, -scale * mu.X,
		0, scale, -scale * mu.Y,
		0, 0, 1,
	})
	pointsTransformed := make([]r2.Point, nPoints)
	for i := range pointsTransformed {
		pointsTransformed[i] = pts[i].Sub(mu).Mul(scale)
	}
	return pointsTransformed, T
}

// normalizePoints3D is normalizePoints for world points, scaling to an average distance of sqrt(3).
// The returned transform is 4x4.
func normalizePoints3D(pts []r3.Vector) ([]r3.Vector, *mat.Dense) {
	nPoints := len(pts)
	mu := r3.Vector{}
	for _, pt := range pts {
		mu = mu.Add(pt)
	}
	mu = mu.Mul(1. / float64(nPoints))

	d := 0.0
	for _, pt := range pts {
		d += pt.Sub(mu).Norm() / float64(nPoints)
	}
	scale := 1.
	if d > 0 {
		scale = math.Sqrt(3) / d
	}
	T := mat.NewDense(4, 4, []float64{
		scale, 0, 0, -scale * mu.X,
		0, scale, 0, -scale * mu.Y,
		0, 0, scale, -scale * mu.Z,
		0, 0, 0, 1,
	})
	pointsTransformed := make([]r3.Vector, nPoints)
	for i := range pointsTransformed {
		pointsTransformed[i] = pts[i].Sub(mu).Mul(scale)
	}
	return pointsTransformed, T
}

// spread returns the singular values, largest first, of the centered world points. A target that
// spans three dimensions has three values well above zero.
func spread(pts []r3.Vector) []float64 {
	centered, _ := normalizePoints3D(pts)
	m := mat.NewDense(len(centered), 3, nil)
	for i, pt := range centered {
		m.SetRow(i, []float64{pt.X, pt.Y, pt.Z})
	}
	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDNone) {
		return []float64{0, 0, 0}
	}
	return svd.Values(nil)
}

// nullVector returns the unit vector x minimizing |A·x|, the right singular vector of the smallest
// singular value. It fails if that vector is not unique.
func nullVector(a *mat.Dense) ([]float64, error) {
	_, c := a.Dims()
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, dataError("cannot factor linear system")
	}
	values := svd.Values(nil)
	if values[c-2] <= 1e-10*values[0] {
		return nil, dataError("points are degenerate, the linear system has no unique solution")
	}
	var v mat.Dense
	svd.VTo(&v)
	return mat.Col(nil, c-1, &v), nil
}

// matsSVD stores the matrices from SVD decomposition.
type matsSVD struct {
	U  *mat.Dense
	V  *mat.Dense
	VT *mat.Dense
	S  *mat.Dense
}

// performSVD performs SVD on inputMatrix and returns matrices U, Sigma and V from the decomposition.
func performSVD(inputMatrix *mat.Dense) *matsSVD {
	var svd mat.SVD
	ok := svd.Factorize(inputMatrix, mat.SVDFull)
	if !ok {
		return nil
	}

	u, v, sigma, vt := &mat.Dense{}, &mat.Dense{}, &mat.Dense{}, &mat.Dense{}

	svd.UTo(u)
	svd.VTo(v)
	vt.CloneFrom(v.T())

	singularValues := svd.Values(nil)
	sigma.CloneFrom(mat.NewDiagDense(len(singularValues), singularValues))

	return &matsSVD{u, v, vt, sigma}
}
