package calibration

import (
	"strings"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestReadDataset(t *testing.T) {
	input := `# xw yw zw Xf Yf
0 0 0 320 240
10, 0, 0, 330.5, 240

0 10 5 320 250.25 # trailing comment
`
	d, err := ReadDataset(strings.NewReader(input))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.Len(), test.ShouldEqual, 3)
	test.That(t, d.Points()[1], test.ShouldResemble, Correspondence{
		World: r3.Vector{X: 10},
		Image: r2.Point{X: 330.5, Y: 240},
	})
	test.That(t, d.Mode(), test.ShouldEqual, ModeNoncoplanar)

	_, err = ReadDataset(strings.NewReader("1 2 3 4\n"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "line 1")

	_, err = ReadDataset(strings.NewReader("1 2 3 4 five\n"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDatasetMode(t *testing.T) {
	d := &Dataset{}
	test.That(t, d.Mode(), test.ShouldEqual, ModeNoncoplanar)
	test.That(t, d.Add(Correspondence{World: r3.Vector{X: 1, Y: 2}}), test.ShouldBeNil)
	test.That(t, d.Mode(), test.ShouldEqual, ModeCoplanar)
	test.That(t, d.Add(Correspondence{World: r3.Vector{Z: 1}}), test.ShouldBeNil)
	test.That(t, d.Mode(), test.ShouldEqual, ModeNoncoplanar)
	test.That(t, ModeCoplanar.String(), test.ShouldEqual, "coplanar")
}

func TestDatasetLimit(t *testing.T) {
	points := make([]Correspondence, MaxPoints)
	d, err := NewDataset(points...)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.Len(), test.ShouldEqual, MaxPoints)

	err = d.Add(Correspondence{})
	test.That(t, errors.Is(err, ErrCalibrationData), test.ShouldBeTrue)
	test.That(t, d.Len(), test.ShouldEqual, MaxPoints)

	_, err = NewDataset(make([]Correspondence, MaxPoints+1)...)
	test.That(t, errors.Is(err, ErrCalibrationData), test.ShouldBeTrue)

	// Points hands out a copy
	d.Points()[0].World.X = 42
	test.That(t, d.Points()[0].World.X, test.ShouldEqual, 0)
	test.That(t, len(d.WorldPoints()), test.ShouldEqual, MaxPoints)
	test.That(t, len(d.ImagePoints()), test.ShouldEqual, MaxPoints)
}
