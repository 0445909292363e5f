// Package referenceframe relates the local frame of a position log, a global ground frame and
// geographic coordinates.
package referenceframe

import (
	"sync"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	geo "github.com/kellydunn/golang-geo"
	"github.com/pkg/errors"

	"go.viam.com/geocal/spatialmath"
)

// GroundPoint is a point in the global frame. OutOfBounds is set when the point lies outside the
// area the position log covers; such points are still valid.
type GroundPoint struct {
	Point       r2.Point
	OutOfBounds bool
}

// ReferenceFrame relates three frames on the ground plane: the vehicle frame, the local frame the
// position log is recorded in, and a global frame reached from the local one by a rigid transform.
// The global frame can further be anchored to a geographic origin. All distances are in meters.
type ReferenceFrame struct {
	mu            sync.RWMutex
	extents       Extents
	localToGlobal spatialmath.Pose2D
	established   bool
	geoOrigin     *geo.Point
}

// NewReferenceFrame returns an unestablished frame whose bounds, in the local frame, are extents.
func NewReferenceFrame(extents Extents) *ReferenceFrame {
	return &ReferenceFrame{extents: extents}
}

// Establish sets the transform from the local frame to the global frame. Until it is called every
// conversion fails with ErrUninitializedReference.
func (rf *ReferenceFrame) Establish(localToGlobal spatialmath.Pose2D) {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	rf.localToGlobal = localToGlobal
	rf.established = true
}

// SetGeoOrigin anchors the global frame's origin at a latitude and longitude, with +y north and
// +x east.
func (rf *ReferenceFrame) SetGeoOrigin(origin *geo.Point) {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if origin == nil {
		rf.geoOrigin = nil
		return
	}
	rf.geoOrigin = geo.NewPoint(origin.Lat(), origin.Lng())
}

// Established reports whether Establish has been called.
func (rf *ReferenceFrame) Established() bool {
	rf.mu.RLock()
	defer rf.mu.RUnlock()
	return rf.established
}

// Extents returns the bounds of the local frame.
func (rf *ReferenceFrame) Extents() Extents {
	return rf.extents
}

// VehicleToGlobal maps a point in the frame of a vehicle at pose, which is in the local frame,
// onto the global ground plane. The point's z is ignored.
func (rf *ReferenceFrame) VehicleToGlobal(pose spatialmath.Pose2D, pt r3.Vector) (GroundPoint, error) {
	rf.mu.RLock()
	defer rf.mu.RUnlock()
	if !rf.established {
		return GroundPoint{}, ErrUninitializedReference
	}
	local := pose.Transform(r2.Point{X: pt.X, Y: pt.Y})
	return GroundPoint{
		Point:       rf.localToGlobal.Transform(local),
		OutOfBounds: !rf.extents.Contains(local),
	}, nil
}

// GlobalToVehicle maps a global point into the frame of a vehicle at pose. The result lies on the
// ground plane, z = 0.
func (rf *ReferenceFrame) GlobalToVehicle(pose spatialmath.Pose2D, pt r2.Point) (r3.Vector, error) {
	rf.mu.RLock()
	defer rf.mu.RUnlock()
	if !rf.established {
		return r3.Vector{}, ErrUninitializedReference
	}
	v := pose.InverseTransform(rf.localToGlobal.InverseTransform(pt))
	return r3.Vector{X: v.X, Y: v.Y}, nil
}

// GlobalToGeo converts a global point to latitude and longitude.
func (rf *ReferenceFrame) GlobalToGeo(pt r2.Point) (*geo.Point, error) {
	rf.mu.RLock()
	defer rf.mu.RUnlock()
	if !rf.established {
		return nil, ErrUninitializedReference
	}
	if rf.geoOrigin == nil {
		return nil, ErrNoGeoOrigin
	}
	return spatialmath.PointToGeoPoint(pt, rf.geoOrigin), nil
}

// GeoToGlobal converts latitude and longitude to a global point.
func (rf *ReferenceFrame) GeoToGlobal(pt *geo.Point) (r2.Point, error) {
	rf.mu.RLock()
	defer rf.mu.RUnlock()
	if !rf.established {
		return r2.Point{}, ErrUninitializedReference
	}
	if rf.geoOrigin == nil {
		return r2.Point{}, ErrNoGeoOrigin
	}
	if pt == nil {
		return r2.Point{}, errors.New("geographic point is nil")
	}
	return spatialmath.GeoPointToPoint(pt, rf.geoOrigin), nil
}
