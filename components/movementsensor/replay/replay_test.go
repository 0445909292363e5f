package replay

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/geocal/components/movementsensor/poselog"
	"go.viam.com/geocal/config"
	"go.viam.com/geocal/logging"
	"go.viam.com/geocal/referenceframe"
	"go.viam.com/geocal/rimage/calibration"
	"go.viam.com/geocal/rimage/transform"
	"go.viam.com/geocal/spatialmath"
)

const testPoses = `# time roll pitch yaw x y z sv1 sv2
100 0 0 0 0 0 0 5 2
200 0 0 1.5707963267948966 10 0 0 6 2
300 0 0 3.141592653589793 10 10 0 7 3
`

func testCamera(t *testing.T, f float64) *transform.TsaiCameraModel {
	t.Helper()
	m, err := transform.NewTsaiCameraModel(
		transform.NewTsaiIntrinsics(640, 640, 0.01, 0.01, 320, 240, 1),
		transform.NewCalibrationParameters(f, 1e-3, 0, 0, r3.Vector{X: 10, Y: -20, Z: 1200},
			spatialmath.EulerAngles{Roll: 0.3, Pitch: -0.2, Yaw: 0.1}))
	test.That(t, err, test.ShouldBeNil)
	return m
}

// setup writes a position log, a camera file and a config referencing them with relative paths.
func setup(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	test.That(t, os.WriteFile(filepath.Join(dir, "poses.txt"), []byte(testPoses), 0o600), test.ShouldBeNil)
	test.That(t, transform.WriteCameraFile(filepath.Join(dir, "camera.txt"), testCamera(t, 16)), test.ShouldBeNil)
	cfg := fmt.Sprintf(`{
	"position_log": "poses.txt",
	"calibration_file": "camera.txt",
	"reference": {"x": 100, "y": 200, "heading_deg": 90},
	"geo_origin": {"lat": 40.7, "lng": -74.0}%s
}`, extra)
	path := filepath.Join(dir, "geocal.json")
	test.That(t, os.WriteFile(path, []byte(cfg), 0o600), test.ShouldBeNil)
	return path
}

func newTestReader(t *testing.T, configPath string) (*Reader, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	r, err := NewReader(logging.NewTestLogger(t), reg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Init(context.Background(), configPath), test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, r.Close(context.Background()), test.ShouldBeNil)
	})
	return r, reg
}

func TestUninitialized(t *testing.T) {
	r, err := NewReader(nil, nil)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, errors.Is(r.GrabData(10), ErrNotInitialized), test.ShouldBeTrue)
	_, err = r.CurrentData()
	test.That(t, errors.Is(err, ErrNotInitialized), test.ShouldBeTrue)
	_, err = r.VehicleToGlobal(r3.Vector{X: 1})
	test.That(t, errors.Is(err, referenceframe.ErrUninitializedReference), test.ShouldBeTrue)
	_, err = r.GlobalToVehicle(r2.Point{X: 1})
	test.That(t, errors.Is(err, referenceframe.ErrUninitializedReference), test.ShouldBeTrue)
	_, err = r.WorldToImage(0, 0, 0)
	test.That(t, errors.Is(err, ErrNotInitialized), test.ShouldBeTrue)
	test.That(t, errors.Is(r.Reload(context.Background()), ErrNotInitialized), test.ShouldBeTrue)
	test.That(t, r.Desc().Type, test.ShouldEqual, SensorType)
	test.That(t, r.Desc().Path, test.ShouldEqual, "")
}

func TestInitErrors(t *testing.T) {
	r, err := NewReader(logging.NewTestLogger(t), nil)
	test.That(t, err, test.ShouldBeNil)

	err = r.Init(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, errors.Is(err, config.ErrConfig), test.ShouldBeTrue)

	path := setup(t, "")
	test.That(t, os.Remove(filepath.Join(filepath.Dir(path), "poses.txt")), test.ShouldBeNil)
	err = r.Init(context.Background(), path)
	test.That(t, errors.Is(err, config.ErrConfig), test.ShouldBeTrue)

	path = setup(t, "")
	test.That(t, os.WriteFile(filepath.Join(filepath.Dir(path), "camera.txt"), []byte("1 2 3"), 0o600), test.ShouldBeNil)
	err = r.Init(context.Background(), path)
	test.That(t, errors.Is(err, config.ErrConfig), test.ShouldBeTrue)

	path = setup(t, "")
	test.That(t, os.WriteFile(filepath.Join(filepath.Dir(path), "poses.txt"), []byte("# nothing\n"), 0o600), test.ShouldBeNil)
	err = r.Init(context.Background(), path)
	test.That(t, errors.Is(err, poselog.ErrEmptyLog), test.ShouldBeTrue)
}

func TestFailedInitKeepsState(t *testing.T) {
	r, _ := newTestReader(t, setup(t, ""))
	test.That(t, r.GrabData(150), test.ShouldBeNil)
	before, err := r.CurrentData()
	test.That(t, err, test.ShouldBeNil)
	desc := r.Desc()

	orig := newFileWatcher
	t.Cleanup(func() { newFileWatcher = orig })
	newFileWatcher = func(string, *transform.CameraStore, logging.Logger) (*transform.FileWatcher, error) {
		return nil, errors.New("too many open files")
	}

	err = r.Init(context.Background(), setup(t, `, "watch_calibration": true`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "watching calibration file")

	test.That(t, r.Desc(), test.ShouldResemble, desc)
	after, err := r.CurrentData()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, after, test.ShouldResemble, before)
	test.That(t, r.watcher, test.ShouldBeNil)
	_, err = r.Camera()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.GrabData(250), test.ShouldBeNil)
}

func TestGrabData(t *testing.T) {
	r, reg := newTestReader(t, setup(t, ""))
	test.That(t, r.Desc().Path, test.ShouldEndWith, "poses.txt")

	_, err := r.CurrentData()
	test.That(t, errors.Is(err, ErrNoData), test.ShouldBeTrue)
	_, err = r.VehicleToGlobal(r3.Vector{})
	test.That(t, errors.Is(err, ErrNoData), test.ShouldBeTrue)

	test.That(t, r.GrabData(150), test.ShouldBeNil)
	cur, err := r.CurrentData()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cur.X, test.ShouldAlmostEqual, 5)
	test.That(t, cur.Yaw, test.ShouldAlmostEqual, math.Pi/4)
	_, err = r.PrevData()
	test.That(t, errors.Is(err, ErrNoData), test.ShouldBeTrue)

	test.That(t, r.GrabData(200), test.ShouldBeNil)
	prev, err := r.PrevData()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, prev, test.ShouldResemble, cur)
	cur, err = r.CurrentData()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cur.Time, test.ShouldEqual, int64(200))

	readings, err := r.Readings(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, readings["time"], test.ShouldEqual, int64(200))
	test.That(t, readings["position"], test.ShouldResemble, r3.Vector{X: 10})
	test.That(t, readings["satellites"], test.ShouldResemble, []int{6, 2})

	// out of order
	test.That(t, r.GrabData(120), test.ShouldBeNil)
	test.That(t, testutil.ToFloat64(r.metrics.queries.WithLabelValues("INTERPOLATED")), test.ShouldEqual, 3.)
	test.That(t, testutil.ToFloat64(r.metrics.resets), test.ShouldEqual, 1.)

	count, err := testutil.GatherAndCount(reg, "geocal_pose_queries_total")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, count, test.ShouldEqual, 1)
}

func TestNearestMethod(t *testing.T) {
	r, _ := newTestReader(t, setup(t, `, "method": "NEAREST"`))
	test.That(t, r.GrabData(240), test.ShouldBeNil)
	cur, err := r.CurrentData()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cur.Time, test.ShouldEqual, int64(200))
	test.That(t, cur.Satellites, test.ShouldResemble, [2]int{6, 2})
}

func TestVehicleGlobalRoundTrip(t *testing.T) {
	r, _ := newTestReader(t, setup(t, ""))
	test.That(t, r.GrabData(200), test.ShouldBeNil)

	// vehicle at local (10, 0) facing +y; 1 m ahead is local (10, 1), which the reference
	// quarter turn about (100, 200) maps to global (99, 210)
	gp, err := r.VehicleToGlobal(r3.Vector{X: 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.R2PointAlmostEqual(gp.Point, r2.Point{X: 99, Y: 210}, 1e-9), test.ShouldBeTrue)
	test.That(t, gp.OutOfBounds, test.ShouldBeFalse)

	v, err := r.GlobalToVehicle(gp.Point)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.R3VectorAlmostEqual(v, r3.Vector{X: 1}, 1e-9), test.ShouldBeTrue)

	gp, err = r.VehicleToGlobal(r3.Vector{X: -5})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, gp.OutOfBounds, test.ShouldBeTrue)

	frame, err := r.Frame()
	test.That(t, err, test.ShouldBeNil)
	origin, err := frame.GlobalToGeo(r2.Point{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, origin.Lat(), test.ShouldAlmostEqual, 40.7, 1e-9)

	test.That(t, r.EstablishReference(spatialmath.NewPose2D(0, 0, 0)), test.ShouldBeNil)
	gp, err = r.VehicleToGlobal(r3.Vector{X: 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.R2PointAlmostEqual(gp.Point, r2.Point{X: 10, Y: 1}, 1e-9), test.ShouldBeTrue)
}

func TestCameraProjection(t *testing.T) {
	r, reg := newTestReader(t, setup(t, ""))
	img, err := r.WorldToImage(50, -30, 0)
	test.That(t, err, test.ShouldBeNil)
	w, err := r.ImageToWorld(img.X, img.Y, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.R3VectorAlmostEqual(w, r3.Vector{X: 50, Y: -30}, 1e-6), test.ShouldBeTrue)

	// behind the camera
	_, err = r.WorldToImage(0, 0, -5000)
	test.That(t, errors.Is(err, transform.ErrProjectionFailure), test.ShouldBeTrue)
	test.That(t, testutil.ToFloat64(r.metrics.queryErrors.WithLabelValues("world_to_image")), test.ShouldEqual, 1.)

	count, err := testutil.GatherAndCount(reg, "geocal_query_errors_total")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, count, test.ShouldEqual, 1)
}

func TestNoCalibrationFile(t *testing.T) {
	dir := t.TempDir()
	test.That(t, os.WriteFile(filepath.Join(dir, "poses.txt"), []byte(testPoses), 0o600), test.ShouldBeNil)
	path := filepath.Join(dir, "geocal.yaml")
	test.That(t, os.WriteFile(path, []byte("position_log: poses.txt\n"), 0o600), test.ShouldBeNil)

	r, _ := newTestReader(t, path)
	_, err := r.WorldToImage(0, 0, 0)
	test.That(t, errors.Is(err, config.ErrConfig), test.ShouldBeTrue)
	_, err = r.Camera()
	test.That(t, errors.Is(err, config.ErrConfig), test.ShouldBeTrue)
}

func TestCalibratePublishes(t *testing.T) {
	r, _ := newTestReader(t, setup(t, ""))
	before, err := r.Camera()
	test.That(t, err, test.ShouldBeNil)

	// observations of a camera with a longer focal length
	truth := testCamera(t, 20)
	data := &calibration.Dataset{}
	for _, z := range []float64{0, 100, 200} {
		for x := -150.; x <= 150; x += 75 {
			for y := -150.; y <= 150; y += 75 {
				w := r3.Vector{X: x, Y: y, Z: z}
				img, err := truth.WorldToImage(w)
				test.That(t, err, test.ShouldBeNil)
				test.That(t, data.Add(calibration.Correspondence{World: w, Image: img}), test.ShouldBeNil)
			}
		}
	}

	res, err := r.Calibrate(context.Background(), data, calibration.Options{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Parameters.F, test.ShouldAlmostEqual, 20, 1e-3)

	after, err := r.Camera()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, after, test.ShouldEqual, res.Model)
	test.That(t, before.Params.F, test.ShouldEqual, 16.)

	_, err = r.Calibrate(context.Background(), &calibration.Dataset{}, calibration.Options{})
	test.That(t, errors.Is(err, calibration.ErrCalibrationData), test.ShouldBeTrue)
}

func TestWatchCalibration(t *testing.T) {
	path := setup(t, `, "watch_calibration": true`)
	r, _ := newTestReader(t, path)

	cameraPath := filepath.Join(filepath.Dir(path), "camera.txt")
	test.That(t, transform.WriteCameraFile(cameraPath, testCamera(t, 25)), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		camera, err := r.Camera()
		test.That(tb, err, test.ShouldBeNil)
		test.That(tb, camera.Params.F, test.ShouldEqual, 25.)
	})
}

func TestReload(t *testing.T) {
	path := setup(t, "")
	r, reg := newTestReader(t, path)
	test.That(t, r.GrabData(150), test.ShouldBeNil)

	moved := "100 0 0 0 100 0 0 1 1\n200 0 0 0 200 0 0 1 1\n"
	test.That(t, os.WriteFile(filepath.Join(filepath.Dir(path), "poses.txt"), []byte(moved), 0o600), test.ShouldBeNil)
	test.That(t, r.Reload(context.Background()), test.ShouldBeNil)

	cur, err := r.CurrentData()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cur.X, test.ShouldAlmostEqual, 5)

	test.That(t, r.GrabData(150), test.ShouldBeNil)
	cur, err = r.CurrentData()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cur.X, test.ShouldAlmostEqual, 150)
	test.That(t, testutil.ToFloat64(r.metrics.reloads), test.ShouldEqual, 1.)

	count, err := testutil.GatherAndCount(reg, "geocal_position_log_reloads_total")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, count, test.ShouldEqual, 1)
}

func TestSQLiteSource(t *testing.T) {
	dir := t.TempDir()
	records := []poselog.PoseRecord{{Time: 1, X: 1}, {Time: 3, X: 3}}
	test.That(t, poselog.WriteSQLite(context.Background(), filepath.Join(dir, "poses.db"), "track", records), test.ShouldBeNil)
	path := filepath.Join(dir, "geocal.json")
	test.That(t, os.WriteFile(path,
		[]byte(`{"position_log": "poses.db", "source": "sqlite", "sqlite_table": "track"}`), 0o600), test.ShouldBeNil)

	r, _ := newTestReader(t, path)
	test.That(t, r.GrabData(2), test.ShouldBeNil)
	cur, err := r.CurrentData()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cur.X, test.ShouldAlmostEqual, 2)
}

func TestClose(t *testing.T) {
	r, err := NewReader(logging.NewTestLogger(t), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Init(context.Background(), setup(t, `, "watch_calibration": true`)), test.ShouldBeNil)
	test.That(t, r.Close(context.Background()), test.ShouldBeNil)
	test.That(t, r.Close(context.Background()), test.ShouldBeNil)
	test.That(t, r.GrabData(100), test.ShouldNotBeNil)
	test.That(t, r.Init(context.Background(), setup(t, "")), test.ShouldNotBeNil)
}
