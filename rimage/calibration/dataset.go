// Package calibration fits the extrinsic and distortion parameters of a Tsai camera model to
// observed correspondences between world points and image points.
package calibration

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// MaxPoints is the largest number of correspondences a dataset holds.
const MaxPoints = 500

// Correspondence pairs a world point, in mm, with the pixel it was observed at.
type Correspondence struct {
	World r3.Vector
	Image r2.Point
}

// Mode distinguishes targets that lie in the plane z = 0 from targets that span three dimensions.
type Mode int

// The calibration modes.
const (
	ModeAuto Mode = iota
	ModeCoplanar
	ModeNoncoplanar
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeCoplanar:
		return "coplanar"
	case ModeNoncoplanar:
		return "noncoplanar"
	default:
		return "unknown"
	}
}

// Dataset is an ordered collection of at most MaxPoints correspondences.
type Dataset struct {
	points []Correspondence
}

// NewDataset builds a dataset from points, failing if there are more than MaxPoints.
func NewDataset(points ...Correspondence) (*Dataset, error) {
	d := &Dataset{}
	for _, c := range points {
		if err := d.Add(c); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Add appends a correspondence.
func (d *Dataset) Add(c Correspondence) error {
	if len(d.points) >= MaxPoints {
		return dataError("dataset already holds the maximum of %d points", MaxPoints)
	}
	d.points = append(d.points, c)
	return nil
}

// Len returns the number of correspondences.
func (d *Dataset) Len() int {
	return len(d.points)
}

// Points returns a copy of the correspondences in insertion order.
func (d *Dataset) Points() []Correspondence {
	return append([]Correspondence(nil), d.points...)
}

// WorldPoints returns the world half of every correspondence.
func (d *Dataset) WorldPoints() []r3.Vector {
	return lo.Map(d.points, func(c Correspondence, _ int) r3.Vector { return c.World })
}

// ImagePoints returns the image half of every correspondence.
func (d *Dataset) ImagePoints() []r2.Point {
	return lo.Map(d.points, func(c Correspondence, _ int) r2.Point { return c.Image })
}

// Mode reports ModeCoplanar if every world point has z = 0, ModeNoncoplanar otherwise.
func (d *Dataset) Mode() Mode {
	if len(d.points) > 0 && lo.EveryBy(d.points, func(c Correspondence) bool { return c.World.Z == 0 }) {
		return ModeCoplanar
	}
	return ModeNoncoplanar
}

// ReadDataset reads correspondences, one per line as "xw yw zw Xf Yf". Fields may be separated
// by whitespace or commas; blank lines and everything after a '#' are ignored.
func ReadDataset(r io.Reader) (*Dataset, error) {
	d := &Dataset{}
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		fields := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 5 {
			return nil, errors.Errorf("line %d: expected 5 values, got %d", lineNum, len(fields))
		}
		var v [5]float64
		for i, f := range fields {
			parsed, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNum)
			}
			v[i] = parsed
		}
		if err := d.Add(Correspondence{
			World: r3.Vector{X: v[0], Y: v[1], Z: v[2]},
			Image: r2.Point{X: v[3], Y: v[4]},
		}); err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNum)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return d, nil
}
