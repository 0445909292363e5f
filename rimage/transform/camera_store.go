package transform

import (
	"context"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"go.viam.com/geocal/logging"
)

// watchDebounce is how long a camera file must stay quiet before it is reloaded.
const watchDebounce = 100 * time.Millisecond

// CameraStore holds the current camera model. A new calibration is published by swapping in a new
// immutable model, so readers always see either the old model or the new one, never a mix.
type CameraStore struct {
	model   *atomic.Pointer[TsaiCameraModel]
	version *atomic.Uint64
}

// NewCameraStore returns a store holding m, which may be nil.
func NewCameraStore(m *TsaiCameraModel) *CameraStore {
	return &CameraStore{
		model:   atomic.NewPointer(m),
		version: atomic.NewUint64(0),
	}
}

// Load returns the current model, or nil if none has been published.
func (s *CameraStore) Load() *TsaiCameraModel {
	return s.model.Load()
}

// Version counts the models published since the store was created.
func (s *CameraStore) Version() uint64 {
	return s.version.Load()
}

// Publish replaces the current model.
func (s *CameraStore) Publish(m *TsaiCameraModel) error {
	if m == nil {
		return errors.New("cannot publish a nil camera model")
	}
	s.model.Store(m)
	s.version.Inc()
	return nil
}

// PublishParameters replaces the calibration of the current model, keeping its intrinsics.
func (s *CameraStore) PublishParameters(params CalibrationParameters) (*TsaiCameraModel, error) {
	for {
		current := s.model.Load()
		if current == nil {
			return nil, errors.New("no camera model to recalibrate")
		}
		next, err := current.WithParameters(params)
		if err != nil {
			return nil, err
		}
		if s.model.CompareAndSwap(current, next) {
			s.version.Inc()
			return next, nil
		}
	}
}

// FileWatcher republishes a camera file into a CameraStore whenever it changes on disk.
type FileWatcher struct {
	path    string
	store   *CameraStore
	logger  logging.Logger
	watcher *fsnotify.Watcher
}

// NewFileWatcher starts watching path. The directory is watched rather than the file itself so
// that editors which replace the file by renaming over it are still noticed.
func NewFileWatcher(path string, store *CameraStore, logger logging.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return nil, multierr.Combine(err, watcher.Close())
	}
	return &FileWatcher{
		path:    filepath.Clean(path),
		store:   store,
		logger:  logger,
		watcher: watcher,
	}, nil
}

// Run reloads the camera file after each burst of changes until ctx is done. A file that fails to
// load is logged and the previously published model stays in place.
func (fw *FileWatcher) Run(ctx context.Context) {
	debounced := debounce.New(watchDebounce)
	reload := func() {
		m, err := ReadCameraFile(fw.path)
		if err != nil {
			fw.logger.Warnw("keeping previous camera model", "path", fw.path, "error", err)
			return
		}
		if err := fw.store.Publish(m); err != nil {
			fw.logger.Warnw("failed to publish camera model", "path", fw.path, "error", err)
			return
		}
		fw.logger.Infow("reloaded camera model", "path", fw.path, "version", fw.store.Version())
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				debounced(reload)
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warnw("camera file watcher error", "error", err)
		}
	}
}

// Close stops watching.
func (fw *FileWatcher) Close() error {
	return fw.watcher.Close()
}
