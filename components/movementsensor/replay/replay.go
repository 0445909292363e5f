// Package replay implements a pose reader that replays a recorded position log. Given a time it
// reports where the vehicle was, maps points between the vehicle, local, global and geographic
// frames, and projects between the world and a calibrated camera's image.
package replay

import (
	"context"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"go.viam.com/geocal/components/movementsensor/poselog"
	"go.viam.com/geocal/config"
	"go.viam.com/geocal/logging"
	"go.viam.com/geocal/referenceframe"
	"go.viam.com/geocal/rimage/calibration"
	"go.viam.com/geocal/rimage/transform"
	"go.viam.com/geocal/sensor"
	"go.viam.com/geocal/spatialmath"
)

// SensorType is the sensor type a Reader describes itself as.
const SensorType = sensor.Type("pose_replay")

var (
	// ErrNotInitialized is returned by every operation of a Reader before Init succeeds.
	ErrNotInitialized = errors.New("pose reader is not initialized")

	// ErrNoData is returned when the current or previous pose is asked for before GrabData has
	// produced one.
	ErrNoData = errors.New("no pose has been grabbed")

	errClosed = errors.New("pose reader is closed")

	newFileWatcher = transform.NewFileWatcher
)

// Reader replays a position log. It is safe for concurrent use; GrabData calls are serialized and
// should come in non-decreasing time order.
type Reader struct {
	logger  logging.Logger
	metrics *metrics

	mu      sync.RWMutex
	cfg     *config.Config
	cursor  *poselog.Cursor
	frame   *referenceframe.ReferenceFrame
	cameras *transform.CameraStore
	workers *goutils.StoppableWorkers
	watcher *transform.FileWatcher
	current *poselog.PoseRecord
	prev    *poselog.PoseRecord
	closed  bool
}

var _ sensor.Sensor = (*Reader)(nil)

// NewReader returns an uninitialized reader. Counters are registered with reg when it is not nil.
func NewReader(logger logging.Logger, reg prometheus.Registerer) (*Reader, error) {
	m, err := newMetrics(reg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewBlankLogger("replay")
	}
	return &Reader{logger: logger, metrics: m}, nil
}

// Init reads the configuration at configPath and loads the position log and, if configured, the
// camera calibration. Calling Init again replaces everything the reader holds; a failed Init leaves
// the reader as it was.
func (r *Reader) Init(ctx context.Context, configPath string) error {
	cfg, err := config.Read(configPath)
	if err != nil {
		return err
	}

	var (
		log    *poselog.PositionLog
		camera *transform.TsaiCameraModel
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		log, err = loadPositionLog(gctx, cfg)
		return err
	})
	if cfg.CalibrationFile != "" {
		g.Go(func() error {
			var err error
			camera, err = transform.ReadCameraFile(cfg.CalibrationFile)
			return config.NewError(configPath, errors.Wrapf(err, "loading calibration file %s", cfg.CalibrationFile))
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	extents, err := log.Extents()
	if err != nil {
		return errors.Wrapf(err, "position log %s", cfg.PositionLog)
	}
	frame := referenceframe.NewReferenceFrame(extents)
	frame.Establish(cfg.ReferencePose())
	if cfg.GeoOrigin != nil {
		frame.SetGeoOrigin(cfg.GeoOrigin.Point())
	}

	cameras := transform.NewCameraStore(camera)
	var watcher *transform.FileWatcher
	if cfg.WatchCalibration {
		watcher, err = newFileWatcher(cfg.CalibrationFile, cameras, r.logger)
		if err != nil {
			return errors.Wrap(err, "watching calibration file")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		if watcher != nil {
			return multierr.Combine(errClosed, watcher.Close())
		}
		return errClosed
	}
	if err := r.stopWatcher(); err != nil {
		r.logger.Warnw("failed to stop calibration watcher", "error", err)
	}
	r.cfg = cfg
	r.cursor = poselog.NewCursor(log, r.logger)
	r.frame = frame
	r.current, r.prev = nil, nil
	r.cameras = cameras
	if watcher != nil {
		r.watcher = watcher
		r.workers = goutils.NewBackgroundStoppableWorkers(watcher.Run)
	}

	r.logger.Infow("pose reader initialized",
		"config", configPath,
		"records", log.Len(),
		"extents", extents.String(),
		"method", string(cfg.Method),
		"camera", camera != nil)
	return nil
}

func loadPositionLog(ctx context.Context, cfg *config.Config) (*poselog.PositionLog, error) {
	var (
		log *poselog.PositionLog
		err error
	)
	switch cfg.Source {
	case config.SourceSQLite:
		log, err = poselog.ReadSQLite(ctx, cfg.PositionLog, cfg.SQLiteTable)
	default:
		log, err = poselog.ReadTextFile(cfg.PositionLog)
	}
	if err != nil {
		return nil, config.NewError(cfg.ConfigFilePath, errors.Wrapf(err, "loading position log %s", cfg.PositionLog))
	}
	return log, nil
}

// Reload reads the position log again and rebinds the cursor to it. The current and previous
// poses are kept.
func (r *Reader) Reload(ctx context.Context) error {
	r.mu.RLock()
	cfg := r.cfg
	r.mu.RUnlock()
	if cfg == nil {
		return ErrNotInitialized
	}

	log, err := loadPositionLog(ctx, cfg)
	if err != nil {
		return err
	}
	extents, err := log.Extents()
	if err != nil {
		return errors.Wrapf(err, "position log %s", cfg.PositionLog)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errClosed
	}
	frame := referenceframe.NewReferenceFrame(extents)
	frame.Establish(cfg.ReferencePose())
	if cfg.GeoOrigin != nil {
		frame.SetGeoOrigin(cfg.GeoOrigin.Point())
	}
	r.frame = frame
	r.cursor.Rebind(log)
	r.metrics.observeReload()
	r.logger.Infow("position log reloaded", "records", log.Len())
	return nil
}

// GrabData moves the current pose to time t using the configured query method. The pose it
// replaces becomes the previous pose. A failed query leaves both untouched.
func (r *Reader) GrabData(t int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkReady(); err != nil {
		r.metrics.observeError("grab_data")
		return err
	}

	resetsBefore := r.cursor.Resets()
	rec, err := r.cursor.Query(t, r.cfg.Method)
	if err != nil {
		r.metrics.observeError("grab_data")
		return err
	}
	r.metrics.observeQuery(string(r.cfg.Method), resetsBefore, r.cursor.Resets())

	r.prev = r.current
	r.current = &rec
	return nil
}

// CurrentData returns the pose of the latest GrabData.
func (r *Reader) CurrentData() (poselog.PoseRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.checkReady(); err != nil {
		return poselog.PoseRecord{}, err
	}
	if r.current == nil {
		return poselog.PoseRecord{}, ErrNoData
	}
	return *r.current, nil
}

// PrevData returns the pose of the GrabData before the latest one.
func (r *Reader) PrevData() (poselog.PoseRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.checkReady(); err != nil {
		return poselog.PoseRecord{}, err
	}
	if r.prev == nil {
		return poselog.PoseRecord{}, ErrNoData
	}
	return *r.prev, nil
}

// Readings returns the current pose keyed by field name.
func (r *Reader) Readings(ctx context.Context) (map[string]interface{}, error) {
	rec, err := r.CurrentData()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"time":       rec.Time,
		"roll":       rec.Roll,
		"pitch":      rec.Pitch,
		"yaw":        rec.Yaw,
		"position":   rec.Position(),
		"satellites": rec.Satellites[:],
	}, nil
}

// Desc describes the reader by the position log it replays.
func (r *Reader) Desc() sensor.Description {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc := sensor.Description{Type: SensorType}
	if r.cfg != nil {
		desc.Path = r.cfg.PositionLog
	}
	return desc
}

// VehicleToGlobal maps a point in the frame of the vehicle at its current pose onto the global
// ground plane.
func (r *Reader) VehicleToGlobal(pt r3.Vector) (referenceframe.GroundPoint, error) {
	frame, pose, err := r.currentFrame()
	if err != nil {
		r.metrics.observeError("vehicle_to_global")
		return referenceframe.GroundPoint{}, err
	}
	gp, err := frame.VehicleToGlobal(pose, pt)
	if err != nil {
		r.metrics.observeError("vehicle_to_global")
	}
	return gp, err
}

// GlobalToVehicle maps a global point into the frame of the vehicle at its current pose.
func (r *Reader) GlobalToVehicle(pt r2.Point) (r3.Vector, error) {
	frame, pose, err := r.currentFrame()
	if err != nil {
		r.metrics.observeError("global_to_vehicle")
		return r3.Vector{}, err
	}
	v, err := frame.GlobalToVehicle(pose, pt)
	if err != nil {
		r.metrics.observeError("global_to_vehicle")
	}
	return v, err
}

// Frame returns the reader's reference frame, for geographic conversions.
func (r *Reader) Frame() (*referenceframe.ReferenceFrame, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.frame == nil {
		return nil, referenceframe.ErrUninitializedReference
	}
	return r.frame, nil
}

// EstablishReference replaces the configured local to global transform.
func (r *Reader) EstablishReference(localToGlobal spatialmath.Pose2D) error {
	frame, err := r.Frame()
	if err != nil {
		return err
	}
	frame.Establish(localToGlobal)
	return nil
}

func (r *Reader) currentFrame() (*referenceframe.ReferenceFrame, spatialmath.Pose2D, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.frame == nil {
		return nil, spatialmath.Pose2D{}, referenceframe.ErrUninitializedReference
	}
	if r.current == nil {
		return nil, spatialmath.Pose2D{}, ErrNoData
	}
	return r.frame, r.current.Pose2D(), nil
}

// WorldToImage projects a world point, in mm, to the pixel it is seen at.
func (r *Reader) WorldToImage(xw, yw, zw float64) (r2.Point, error) {
	camera, err := r.camera()
	if err != nil {
		r.metrics.observeError("world_to_image")
		return r2.Point{}, err
	}
	p, err := camera.WorldToImage(r3.Vector{X: xw, Y: yw, Z: zw})
	if err != nil {
		r.metrics.observeError("world_to_image")
	}
	return p, err
}

// ImageToWorld back projects a distorted pixel onto the world plane z = zw.
func (r *Reader) ImageToWorld(xfd, yfd, zw float64) (r3.Vector, error) {
	camera, err := r.camera()
	if err != nil {
		r.metrics.observeError("image_to_world")
		return r3.Vector{}, err
	}
	w, err := camera.ImageToWorld(r2.Point{X: xfd, Y: yfd}, zw)
	if err != nil {
		r.metrics.observeError("image_to_world")
	}
	return w, err
}

// Camera returns the camera model currently in use.
func (r *Reader) Camera() (*transform.TsaiCameraModel, error) {
	return r.camera()
}

func (r *Reader) camera() (*transform.TsaiCameraModel, error) {
	r.mu.RLock()
	cfg, cameras := r.cfg, r.cameras
	r.mu.RUnlock()
	if cfg == nil {
		return nil, ErrNotInitialized
	}
	camera := cameras.Load()
	if camera == nil {
		return nil, config.NewError(cfg.ConfigFilePath, errors.New("no calibration_file configured"))
	}
	return camera, nil
}

// Calibrate fits new calibration parameters for the current camera's intrinsics and publishes
// the resulting model. Projections running concurrently see either the old model or the new
// one, never a mix.
func (r *Reader) Calibrate(ctx context.Context, data *calibration.Dataset, opts calibration.Options) (calibration.Result, error) {
	camera, err := r.camera()
	if err != nil {
		return calibration.Result{}, err
	}
	c := calibration.NewCalibrator(camera.Intrinsics, opts, r.logger.Sublogger("calibration"))
	res, err := c.Calibrate(ctx, data)
	if err != nil {
		r.metrics.observeError("calibrate")
		return calibration.Result{}, err
	}
	r.mu.RLock()
	cameras := r.cameras
	r.mu.RUnlock()
	if err := cameras.Publish(res.Model); err != nil {
		return calibration.Result{}, err
	}
	return res, nil
}

// Close stops the calibration watcher. The reader cannot be used afterwards.
func (r *Reader) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.stopWatcher()
}

func (r *Reader) stopWatcher() error {
	if r.workers == nil {
		return nil
	}
	r.workers.Stop()
	err := r.watcher.Close()
	r.workers, r.watcher = nil, nil
	return err
}

// checkReady must be called with mu held.
func (r *Reader) checkReady() error {
	if r.closed {
		return errClosed
	}
	if r.cursor == nil {
		return ErrNotInitialized
	}
	return nil
}
