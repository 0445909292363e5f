package spatialmath

import (
	"math"

	"github.com/golang/geo/r2"
)

// Pose2D is a rigid transform of the ground plane: a counter-clockwise rotation by Theta radians
// followed by a translation by Point.
type Pose2D struct {
	Point r2.Point
	Theta float64
}

// NewPose2D returns the ground plane pose at (x, y) with heading theta.
func NewPose2D(x, y, theta float64) Pose2D {
	return Pose2D{Point: r2.Point{X: x, Y: y}, Theta: theta}
}

// Transform maps pt from the pose's frame into the parent frame.
func (p Pose2D) Transform(pt r2.Point) r2.Point {
	s, c := math.Sincos(p.Theta)
	return r2.Point{
		X: c*pt.X - s*pt.Y + p.Point.X,
		Y: s*pt.X + c*pt.Y + p.Point.Y,
	}
}

// InverseTransform maps pt from the parent frame into the pose's frame.
func (p Pose2D) InverseTransform(pt r2.Point) r2.Point {
	s, c := math.Sincos(p.Theta)
	d := pt.Sub(p.Point)
	return r2.Point{
		X: c*d.X + s*d.Y,
		Y: -s*d.X + c*d.Y,
	}
}

// Compose returns the pose equivalent to applying q and then p.
func (p Pose2D) Compose(q Pose2D) Pose2D {
	return Pose2D{Point: p.Transform(q.Point), Theta: p.Theta + q.Theta}
}

// Inverse returns the pose that undoes p.
func (p Pose2D) Inverse() Pose2D {
	return Pose2D{Point: p.InverseTransform(r2.Point{}), Theta: -p.Theta}
}
