package referenceframe

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// Extents is an axis aligned bounding box on the ground plane.
type Extents struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

// NewExtents returns the smallest box holding every point. With no points the box is empty and
// contains nothing.
func NewExtents(points []r2.Point) Extents {
	e := Extents{MinX: math.Inf(1), MaxX: math.Inf(-1), MinY: math.Inf(1), MaxY: math.Inf(-1)}
	for _, p := range points {
		e.MinX = math.Min(e.MinX, p.X)
		e.MaxX = math.Max(e.MaxX, p.X)
		e.MinY = math.Min(e.MinY, p.Y)
		e.MaxY = math.Max(e.MaxY, p.Y)
	}
	return e
}

// Contains reports whether p lies within the box, edges included.
func (e Extents) Contains(p r2.Point) bool {
	return p.X >= e.MinX && p.X <= e.MaxX && p.Y >= e.MinY && p.Y <= e.MaxY
}

// Empty reports whether the box holds no points.
func (e Extents) Empty() bool {
	return e.MinX > e.MaxX || e.MinY > e.MaxY
}

func (e Extents) String() string {
	return fmt.Sprintf("x:[%.3f, %.3f] y:[%.3f, %.3f]", e.MinX, e.MaxX, e.MinY, e.MaxY)
}
