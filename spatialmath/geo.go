package spatialmath

import (
	"math"

	"github.com/golang/geo/r2"
	geo "github.com/kellydunn/golang-geo"

	"go.viam.com/geocal/utils"
)

// GeoPointToPoint returns the east (X) and north (Y) displacement, in meters, of point relative to
// origin. Because the function we use to project a point on a spheroid to a plane is nonlinear,
// we linearize it about the specified origin point; the closer the points are the more accurate
// the approximation is.
func GeoPointToPoint(point, origin *geo.Point) r2.Point {
	distKm := origin.GreatCircleDistance(point)
	if distKm == 0 {
		return r2.Point{}
	}
	bearing := utils.DegToRad(origin.BearingTo(point))
	return r2.Point{
		X: 1e3 * distKm * math.Sin(bearing),
		Y: 1e3 * distKm * math.Cos(bearing),
	}
}

// PointToGeoPoint is the inverse of GeoPointToPoint: it returns the geographic point found at the
// east/north displacement p, in meters, from origin.
func PointToGeoPoint(p r2.Point, origin *geo.Point) *geo.Point {
	distKm := p.Norm() / 1e3
	if distKm == 0 {
		return geo.NewPoint(origin.Lat(), origin.Lng())
	}
	// math.Atan2(x, y) measures clockwise from north, which is the bearing convention geo uses.
	bearing := utils.RadToDeg(math.Atan2(p.X, p.Y))
	return origin.PointAtDistanceAndBearing(distKm, bearing)
}
