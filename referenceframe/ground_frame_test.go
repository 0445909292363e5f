package referenceframe

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	geo "github.com/kellydunn/golang-geo"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/geocal/spatialmath"
)

func TestExtents(t *testing.T) {
	e := NewExtents([]r2.Point{{X: 1, Y: -2}, {X: -3, Y: 4}, {X: 0, Y: 0}})
	test.That(t, e, test.ShouldResemble, Extents{MinX: -3, MaxX: 1, MinY: -2, MaxY: 4})
	test.That(t, e.Contains(r2.Point{X: 1, Y: 4}), test.ShouldBeTrue)
	test.That(t, e.Contains(r2.Point{X: 1.01, Y: 0}), test.ShouldBeFalse)
	test.That(t, e.Empty(), test.ShouldBeFalse)

	empty := NewExtents(nil)
	test.That(t, empty.Empty(), test.ShouldBeTrue)
	test.That(t, empty.Contains(r2.Point{}), test.ShouldBeFalse)
}

func TestUninitializedReference(t *testing.T) {
	rf := NewReferenceFrame(NewExtents([]r2.Point{{X: 0, Y: 0}, {X: 10, Y: 10}}))
	test.That(t, rf.Established(), test.ShouldBeFalse)

	_, err := rf.VehicleToGlobal(spatialmath.Pose2D{}, r3.Vector{X: 1})
	test.That(t, errors.Is(err, ErrUninitializedReference), test.ShouldBeTrue)
	_, err = rf.GlobalToVehicle(spatialmath.Pose2D{}, r2.Point{X: 1})
	test.That(t, errors.Is(err, ErrUninitializedReference), test.ShouldBeTrue)
	_, err = rf.GlobalToGeo(r2.Point{})
	test.That(t, errors.Is(err, ErrUninitializedReference), test.ShouldBeTrue)
	_, err = rf.GeoToGlobal(geo.NewPoint(40, -74))
	test.That(t, errors.Is(err, ErrUninitializedReference), test.ShouldBeTrue)
}

func TestVehicleToGlobal(t *testing.T) {
	rf := NewReferenceFrame(NewExtents([]r2.Point{{X: 0, Y: 0}, {X: 10, Y: 10}}))
	rf.Establish(spatialmath.NewPose2D(100, 200, math.Pi/2))
	test.That(t, rf.Established(), test.ShouldBeTrue)

	// vehicle at local (5, 5) facing +x; a point 2 m ahead lands at local (7, 5), which the
	// quarter turn maps to global (95, 207)
	pose := spatialmath.NewPose2D(5, 5, 0)
	gp, err := rf.VehicleToGlobal(pose, r3.Vector{X: 2, Z: 3})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.R2PointAlmostEqual(gp.Point, r2.Point{X: 95, Y: 207}, 1e-9), test.ShouldBeTrue)
	test.That(t, gp.OutOfBounds, test.ShouldBeFalse)

	back, err := rf.GlobalToVehicle(pose, gp.Point)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.R3VectorAlmostEqual(back, r3.Vector{X: 2}, 1e-9), test.ShouldBeTrue)

	// out of bounds points are flagged, not rejected
	gp, err = rf.VehicleToGlobal(pose, r3.Vector{X: 20})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, gp.OutOfBounds, test.ShouldBeTrue)
	test.That(t, spatialmath.R2PointAlmostEqual(gp.Point, r2.Point{X: 95, Y: 225}, 1e-9), test.ShouldBeTrue)
}

func TestGeoConversions(t *testing.T) {
	rf := NewReferenceFrame(Extents{})
	rf.Establish(spatialmath.NewPose2D(0, 0, 0))
	_, err := rf.GlobalToGeo(r2.Point{})
	test.That(t, errors.Is(err, ErrNoGeoOrigin), test.ShouldBeTrue)

	origin := geo.NewPoint(40.7, -74.0)
	rf.SetGeoOrigin(origin)
	pt, err := rf.GlobalToGeo(r2.Point{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pt.Lat(), test.ShouldAlmostEqual, 40.7, 1e-9)
	test.That(t, pt.Lng(), test.ShouldAlmostEqual, -74.0, 1e-9)

	p := r2.Point{X: 120, Y: -45}
	g, err := rf.GlobalToGeo(p)
	test.That(t, err, test.ShouldBeNil)
	back, err := rf.GeoToGlobal(g)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.R2PointAlmostEqual(back, p, 1e-3), test.ShouldBeTrue)

	_, err = rf.GeoToGlobal(nil)
	test.That(t, err, test.ShouldNotBeNil)
}
