package transform

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/geocal/spatialmath"
)

func TestCameraFileRoundTrip(t *testing.T) {
	in := NewTsaiIntrinsics(537, 512, 0.0088, 0.0066, 258.1/3, 2.0/3, 1.0000001)
	params := NewCalibrationParameters(8.0/3, -1.2345678901234e-3, 1e-17, -7.5e-5,
		r3.Vector{X: -0.1, Y: 1.0 / 7, Z: 1234.5678},
		spatialmath.EulerAngles{Roll: 0.3, Pitch: -0.2, Yaw: 3.1})
	m, err := NewTsaiCameraModel(in, params)
	test.That(t, err, test.ShouldBeNil)

	fn := filepath.Join(t.TempDir(), "flea2.cal")
	test.That(t, WriteCameraFile(fn, m), test.ShouldBeNil)

	read, err := ReadCameraFile(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read, test.ShouldResemble, m)

	// writing what was read reproduces the file byte for byte
	var first, second bytes.Buffer
	test.That(t, FormatCameraFile(&first, m), test.ShouldBeNil)
	test.That(t, FormatCameraFile(&second, read), test.ShouldBeNil)
	test.That(t, second.String(), test.ShouldEqual, first.String())

	entries, err := os.ReadDir(filepath.Dir(fn))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(entries), test.ShouldEqual, 1)
}

func TestParseCameraFile(t *testing.T) {
	valid := `# Ncx Nfx dx dy dpx dpy Cx Cy sx
640 640 0.01 0.01 0.01 0.01 320 240 1
# f kappa1 p1 p2
16 0.001 0 0
# T and R
10 -20 1200 0 0 0
1 0 0 0 1 0 0 0 1
`
	m, err := ParseCameraFile(strings.NewReader(valid))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Params.F, test.ShouldEqual, 16.)
	test.That(t, m.Params.Translation, test.ShouldResemble, r3.Vector{X: 10, Y: -20, Z: 1200})
	test.That(t, m.Intrinsics.Cy, test.ShouldEqual, 240.)

	t.Run("too few values", func(t *testing.T) {
		_, err := ParseCameraFile(strings.NewReader("640 640 0.01"))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "has 3 values")
	})

	t.Run("too many values", func(t *testing.T) {
		_, err := ParseCameraFile(strings.NewReader(valid + " 7"))
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("bad number", func(t *testing.T) {
		_, err := ParseCameraFile(strings.NewReader(strings.Replace(valid, "0.001", "1e-3x", 1)))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "kappa1")
	})

	t.Run("degenerate focal length", func(t *testing.T) {
		_, err := ParseCameraFile(strings.NewReader(strings.Replace(valid, "16 0.001", "0 0.001", 1)))
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadCameraFile(filepath.Join(t.TempDir(), "missing.cal"))
		test.That(t, err, test.ShouldNotBeNil)
	})
}
