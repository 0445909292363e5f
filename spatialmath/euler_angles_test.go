package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestEulerAnglesRotationMatrix(t *testing.T) {
	t.Run("identity", func(t *testing.T) {
		rm := NewEulerAngles().RotationMatrix()
		test.That(t, RotationMatrixAlmostEqual(rm, IdentityRotationMatrix(), 1e-12), test.ShouldBeTrue)
	})

	t.Run("yaw rotates x toward y", func(t *testing.T) {
		rm := (&EulerAngles{Yaw: math.Pi / 2}).RotationMatrix()
		test.That(t, R3VectorAlmostEqual(rm.Mul(r3.Vector{X: 1}), r3.Vector{Y: 1}, 1e-12), test.ShouldBeTrue)
	})

	t.Run("roll rotates y toward z", func(t *testing.T) {
		rm := (&EulerAngles{Roll: math.Pi / 2}).RotationMatrix()
		test.That(t, R3VectorAlmostEqual(rm.Mul(r3.Vector{Y: 1}), r3.Vector{Z: 1}, 1e-12), test.ShouldBeTrue)
	})

	t.Run("pitch rotates z toward x", func(t *testing.T) {
		rm := (&EulerAngles{Pitch: math.Pi / 2}).RotationMatrix()
		test.That(t, R3VectorAlmostEqual(rm.Mul(r3.Vector{Z: 1}), r3.Vector{X: 1}, 1e-12), test.ShouldBeTrue)
	})

	t.Run("composition order", func(t *testing.T) {
		ea := &EulerAngles{Roll: 0.3, Pitch: -0.2, Yaw: 0.1}
		rx := (&EulerAngles{Roll: ea.Roll}).RotationMatrix()
		ry := (&EulerAngles{Pitch: ea.Pitch}).RotationMatrix()
		rz := (&EulerAngles{Yaw: ea.Yaw}).RotationMatrix()
		v := r3.Vector{X: 1.5, Y: -2, Z: 0.25}
		expected := rz.Mul(ry.Mul(rx.Mul(v)))
		test.That(t, R3VectorAlmostEqual(ea.RotationMatrix().Mul(v), expected, 1e-12), test.ShouldBeTrue)
	})

	t.Run("orthonormal", func(t *testing.T) {
		rm := (&EulerAngles{Roll: 1.1, Pitch: 0.4, Yaw: -2.7}).RotationMatrix()
		test.That(t, rm.IsOrthonormal(1e-12), test.ShouldBeTrue)
		v := r3.Vector{X: 3, Y: 4, Z: 5}
		test.That(t, R3VectorAlmostEqual(rm.TransposeMul(rm.Mul(v)), v, 1e-12), test.ShouldBeTrue)
	})
}

func TestRotationMatrixEulerAnglesRoundTrip(t *testing.T) {
	for _, ea := range []EulerAngles{
		{Roll: 0.3, Pitch: -0.2, Yaw: 0.1},
		{Roll: -2.5, Pitch: 1.2, Yaw: 3.0},
		{Roll: 0, Pitch: 0, Yaw: -math.Pi / 3},
	} {
		got := ea.RotationMatrix().EulerAngles()
		test.That(t, got.Roll, test.ShouldAlmostEqual, ea.Roll, 1e-12)
		test.That(t, got.Pitch, test.ShouldAlmostEqual, ea.Pitch, 1e-12)
		test.That(t, got.Yaw, test.ShouldAlmostEqual, ea.Yaw, 1e-12)
	}

	t.Run("gimbal lock", func(t *testing.T) {
		ea := EulerAngles{Roll: 0, Pitch: math.Pi / 2, Yaw: 0.7}
		got := ea.RotationMatrix().EulerAngles()
		test.That(t, RotationMatrixAlmostEqual(got.RotationMatrix(), ea.RotationMatrix(), 1e-9), test.ShouldBeTrue)
	})
}

func TestNewRotationMatrix(t *testing.T) {
	_, err := NewRotationMatrix([]float64{1, 0, 0})
	test.That(t, err, test.ShouldNotBeNil)

	rm, err := NewRotationMatrix([]float64{0, -1, 0, 1, 0, 0, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rm.At(1, 0), test.ShouldEqual, 1.)
	test.That(t, rm.Row(0), test.ShouldResemble, r3.Vector{X: 0, Y: -1, Z: 0})
	test.That(t, rm.Col(0), test.ShouldResemble, r3.Vector{X: 0, Y: 1, Z: 0})
	test.That(t, rm.IsOrthonormal(1e-12), test.ShouldBeTrue)

	reflection, err := NewRotationMatrix([]float64{-1, 0, 0, 0, 1, 0, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reflection.IsOrthonormal(1e-12), test.ShouldBeFalse)
}
