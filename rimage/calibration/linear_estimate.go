package calibration

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/geocal/rimage/transform"
	"go.viam.com/geocal/spatialmath"
)

// linearEstimate computes starting parameters for the nonlinear fit by ignoring lens distortion
// and solving for the projection with the direct linear transform. The principal point and pixel
// sizes are known, so the only intrinsic left in K is the focal length.
func linearEstimate(intrinsics transform.TsaiIntrinsics, points []Correspondence, mode Mode) (transform.CalibrationParameters, error) {
	cam := transform.TsaiCameraModel{Intrinsics: intrinsics}
	sensor := make([]r2.Point, len(points))
	for i, c := range points {
		sensor[i] = cam.ImageToDistortedSensor(c.Image)
	}

	var (
		f        float64
		rot      *mat.Dense
		t        r3.Vector
		err      error
		estimate func([]Correspondence, []r2.Point) (float64, *mat.Dense, r3.Vector, error)
	)
	if mode == ModeCoplanar {
		estimate = estimateFromHomography
	} else {
		estimate = estimateFromProjection
	}
	if f, rot, t, err = estimate(points, sensor); err != nil {
		return transform.CalibrationParameters{}, err
	}

	rm, err := orthonormalize(rot)
	if err != nil {
		return transform.CalibrationParameters{}, err
	}
	angles := rm.EulerAngles()
	return transform.NewCalibrationParameters(f, 0, 0, 0, t, *angles), nil
}

// estimateFromProjection solves for the 3x4 camera matrix P = λ·K·[R|T] and factors it.
func estimateFromProjection(points []Correspondence, sensor []r2.Point) (float64, *mat.Dense, r3.Vector, error) {
	world, worldT := normalizePoints3D(lo.Map(points, func(c Correspondence, _ int) r3.Vector { return c.World }))
	img, imgT := normalizePoints(sensor)

	a := mat.NewDense(2*len(points), 12, nil)
	for i := range points {
		w := []float64{world[i].X, world[i].Y, world[i].Z, 1}
		x, y := img[i].X, img[i].Y
		for j := 0; j < 4; j++ {
			a.Set(2*i, j, w[j])
			a.Set(2*i, 8+j, -x*w[j])
			a.Set(2*i+1, 4+j, w[j])
			a.Set(2*i+1, 8+j, -y*w[j])
		}
	}
	h, err := nullVector(a)
	if err != nil {
		return 0, nil, r3.Vector{}, err
	}

	// P = imgT⁻¹ · Pn · worldT
	var imgTInv, p mat.Dense
	if err := imgTInv.Inverse(imgT); err != nil {
		return 0, nil, r3.Vector{}, errors.Wrap(err, "cannot invert image normalization")
	}
	p.Product(&imgTInv, mat.NewDense(3, 4, h), worldT)

	m1 := r3.Vector{X: p.At(0, 0), Y: p.At(0, 1), Z: p.At(0, 2)}
	m2 := r3.Vector{X: p.At(1, 0), Y: p.At(1, 1), Z: p.At(1, 2)}
	m3 := r3.Vector{X: p.At(2, 0), Y: p.At(2, 1), Z: p.At(2, 2)}
	scale := m3.Norm()
	if scale < transform.Epsilon {
		return 0, nil, r3.Vector{}, dataError("projection matrix is degenerate")
	}
	// the sign of λ is the one that puts the target in front of the camera
	lambda := math.Copysign(scale, p.At(2, 3))
	f := (m1.Norm() + m2.Norm()) / (2 * scale)
	if !(f > 0) {
		return 0, nil, r3.Vector{}, dataError("linear estimate found no focal length")
	}

	rot := mat.NewDense(3, 3, nil)
	for j, row := range []r3.Vector{m1.Mul(1 / (lambda * f)), m2.Mul(1 / (lambda * f)), m3.Mul(1 / lambda)} {
		rot.SetRow(j, []float64{row.X, row.Y, row.Z})
	}
	t := r3.Vector{X: p.At(0, 3) / (lambda * f), Y: p.At(1, 3) / (lambda * f), Z: p.At(2, 3) / lambda}
	return f, rot, t, nil
}

// estimateFromHomography solves for the plane to sensor homography H = λ·K·[r1 r2 T] of a z = 0
// target. The focal length follows from r1 and r2 being orthogonal and of equal length.
func estimateFromHomography(points []Correspondence, sensor []r2.Point) (float64, *mat.Dense, r3.Vector, error) {
	plane := make([]r2.Point, len(points))
	for i, c := range points {
		plane[i] = r2.Point{X: c.World.X, Y: c.World.Y}
	}
	world, worldT := normalizePoints(plane)
	img, imgT := normalizePoints(sensor)

	a := mat.NewDense(2*len(points), 9, nil)
	for i := range points {
		w := []float64{world[i].X, world[i].Y, 1}
		x, y := img[i].X, img[i].Y
		for j := 0; j < 3; j++ {
			a.Set(2*i, j, w[j])
			a.Set(2*i, 6+j, -x*w[j])
			a.Set(2*i+1, 3+j, w[j])
			a.Set(2*i+1, 6+j, -y*w[j])
		}
	}
	hn, err := nullVector(a)
	if err != nil {
		return 0, nil, r3.Vector{}, err
	}

	var imgTInv, h mat.Dense
	if err := imgTInv.Inverse(imgT); err != nil {
		return 0, nil, r3.Vector{}, errors.Wrap(err, "cannot invert image normalization")
	}
	h.Product(&imgTInv, mat.NewDense(3, 3, hn), worldT)
	h.Scale(1/mat.Norm(&h, 2), &h)

	h11, h12, h13 := h.At(0, 0), h.At(0, 1), h.At(0, 2)
	h21, h22, h23 := h.At(1, 0), h.At(1, 1), h.At(1, 2)
	h31, h32, h33 := h.At(2, 0), h.At(2, 1), h.At(2, 2)

	// perspective foreshortening across the target; without it f is unobservable
	var tilt float64
	for _, pt := range plane {
		tilt = math.Max(tilt, math.Abs(h31*pt.X+h32*pt.Y))
	}
	if math.Abs(h33) < transform.Epsilon || tilt/math.Abs(h33) < 1e-6 {
		return 0, nil, r3.Vector{}, dataError("target plane is parallel to the image plane, focal length is unobservable")
	}

	// with w = 1/f², r1·r2 = 0 gives a1·w + b1 = 0 and |r1| = |r2| gives a2·w + b2 = 0
	a1, b1 := h11*h12+h21*h22, h31*h32
	a2, b2 := h11*h11+h21*h21-h12*h12-h22*h22, h31*h31-h32*h32
	denom := a1*a1 + a2*a2
	if denom < transform.Epsilon*transform.Epsilon {
		return 0, nil, r3.Vector{}, dataError("homography does not constrain the focal length")
	}
	w := -(a1*b1 + a2*b2) / denom
	if !(w > 0) || math.IsInf(w, 0) {
		return 0, nil, r3.Vector{}, dataError("linear estimate found no focal length")
	}
	f := 1 / math.Sqrt(w)

	c1 := r3.Vector{X: h11 / f, Y: h21 / f, Z: h31}
	c2 := r3.Vector{X: h12 / f, Y: h22 / f, Z: h32}
	c3 := r3.Vector{X: h13 / f, Y: h23 / f, Z: h33}
	lambda := 2 / (c1.Norm() + c2.Norm())
	if h33 < 0 {
		lambda = -lambda
	}
	r1, r2 := c1.Mul(lambda), c2.Mul(lambda)
	r3c := r1.Cross(r2)

	rot := mat.NewDense(3, 3, []float64{
		r1.X, r2.X, r3c.X,
		r1.Y, r2.Y, r3c.Y,
		r1.Z, r2.Z, r3c.Z,
	})
	return f, rot, c3.Mul(lambda), nil
}

// orthonormalize returns the rotation closest to m in the Frobenius norm.
func orthonormalize(m *mat.Dense) (spatialmath.RotationMatrix, error) {
	svd := performSVD(m)
	if svd == nil {
		return spatialmath.RotationMatrix{}, dataError("cannot factor rotation estimate")
	}
	var rot mat.Dense
	rot.Mul(svd.U, svd.VT)
	if mat.Det(&rot) < 0 {
		var flipped mat.Dense
		flip := mat.NewDiagDense(3, []float64{1, 1, -1})
		flipped.Product(svd.U, flip, svd.VT)
		rot.CloneFrom(&flipped)
	}
	entries := make([]float64, 0, 9)
	for i := 0; i < 3; i++ {
		entries = append(entries, mat.Row(nil, i, &rot)...)
	}
	return spatialmath.NewRotationMatrix(entries)
}
