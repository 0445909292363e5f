package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/geocal/rimage/transform"
	"go.viam.com/geocal/spatialmath"
)

func testCamera(t *testing.T) *transform.TsaiCameraModel {
	t.Helper()
	m, err := transform.NewTsaiCameraModel(
		transform.NewTsaiIntrinsics(640, 640, 0.01, 0.01, 320, 240, 1),
		transform.NewCalibrationParameters(16, 1e-3, 0, 0, r3.Vector{X: 10, Y: -20, Z: 1200},
			spatialmath.EulerAngles{Roll: 0.3, Pitch: -0.2, Yaw: 0.1}))
	test.That(t, err, test.ShouldBeNil)
	return m
}

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run(append([]string{"geocal"}, args...))
	return out.String(), errOut.String(), err
}

func TestProjectAction(t *testing.T) {
	dir := t.TempDir()
	camera := testCamera(t)
	cameraPath := filepath.Join(dir, "camera.txt")
	test.That(t, transform.WriteCameraFile(cameraPath, camera), test.ShouldBeNil)

	want, err := camera.WorldToImage(r3.Vector{X: 50, Y: -30})
	test.That(t, err, test.ShouldBeNil)

	out, _, err := runApp(t, "project", "--camera", cameraPath, "50", "-30", "0")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.TrimSpace(out), test.ShouldEqual, fmt.Sprintf("%.6f %.6f", want.X, want.Y))

	out, _, err = runApp(t, "project", "--camera", cameraPath, "--inverse", "--",
		fmt.Sprint(want.X), fmt.Sprint(want.Y), "0")
	test.That(t, err, test.ShouldBeNil)
	var back r3.Vector
	_, err = fmt.Sscan(out, &back.X, &back.Y, &back.Z)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.R3VectorAlmostEqual(back, r3.Vector{X: 50, Y: -30}, 1e-5), test.ShouldBeTrue)

	_, _, err = runApp(t, "project", "--camera", cameraPath, "1", "2")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "expected 3 arguments")

	_, _, err = runApp(t, "project", "--camera", cameraPath, "0", "0", "-5000")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCalibrateAction(t *testing.T) {
	dir := t.TempDir()
	camera := testCamera(t)
	cameraPath := filepath.Join(dir, "camera.txt")
	test.That(t, transform.WriteCameraFile(cameraPath, camera), test.ShouldBeNil)

	var points strings.Builder
	points.WriteString("# xw yw zw Xf Yf\n")
	for _, z := range []float64{0, 100, 200} {
		for x := -150.; x <= 150; x += 75 {
			for y := -150.; y <= 150; y += 75 {
				img, err := camera.WorldToImage(r3.Vector{X: x, Y: y, Z: z})
				test.That(t, err, test.ShouldBeNil)
				fmt.Fprintf(&points, "%v %v %v %v %v\n", x, y, z, img.X, img.Y)
			}
		}
	}
	pointsPath := filepath.Join(dir, "points.txt")
	test.That(t, os.WriteFile(pointsPath, []byte(points.String()), 0o600), test.ShouldBeNil)

	outPath := filepath.Join(dir, "calibrated.txt")
	out, _, err := runApp(t, "calibrate",
		"--intrinsics", cameraPath, "--points", pointsPath, "--out", outPath, "--histogram", "5")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "mode noncoplanar")
	test.That(t, out, test.ShouldContainSubstring, "RMS")
	test.That(t, out, test.ShouldContainSubstring, "wrote "+outPath)

	calibrated, err := transform.ReadCameraFile(outPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, calibrated.Params.F, test.ShouldAlmostEqual, 16, 1e-3)
	test.That(t, calibrated.Intrinsics, test.ShouldResemble, camera.Intrinsics)

	_, _, err = runApp(t, "calibrate", "--intrinsics", cameraPath, "--points", pointsPath, "--mode", "sideways")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown calibration mode")

	_, _, err = runApp(t, "calibrate", "--intrinsics", cameraPath, "--points", pointsPath, "--mode", "coplanar")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPoseAction(t *testing.T) {
	dir := t.TempDir()
	poses := "100 0 0 0 0 0 0 5 2\n200 0 0 1.5707963267948966 10 0 0 6 2\n"
	test.That(t, os.WriteFile(filepath.Join(dir, "poses.txt"), []byte(poses), 0o600), test.ShouldBeNil)
	configPath := filepath.Join(dir, "geocal.yaml")
	cfg := "position_log: poses.txt\ngeo_origin:\n  lat: 40.7\n  lng: -74.0\n"
	test.That(t, os.WriteFile(configPath, []byte(cfg), 0o600), test.ShouldBeNil)

	logPath := filepath.Join(dir, "geocal.log")
	out, _, err := runApp(t, "--log-file", logPath, "pose", "--config", configPath, "--geo", "150", "300")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "GLOBAL X")
	test.That(t, out, test.ShouldContainSubstring, "5.000")
	test.That(t, out, test.ShouldContainSubstring, "40.70")

	logged, err := os.ReadFile(logPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(logged), test.ShouldContainSubstring, "pose reader initialized")

	_, _, err = runApp(t, "pose", "--config", configPath)
	test.That(t, err, test.ShouldNotBeNil)
	_, _, err = runApp(t, "pose", "--config", configPath, "soon")
	test.That(t, err, test.ShouldNotBeNil)
	_, _, err = runApp(t, "pose", "--config", filepath.Join(dir, "missing.json"), "1")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSchemaAction(t *testing.T) {
	out, _, err := runApp(t, "schema")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "position_log")
	test.That(t, out, test.ShouldContainSubstring, "INTERPOLATED")
}
