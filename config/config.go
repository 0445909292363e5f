// Package config defines the configuration of a pose reader and how it is read from disk.
package config

import (
	"regexp"

	"github.com/invopop/jsonschema"
	geo "github.com/kellydunn/golang-geo"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/geocal/spatialmath"
	"go.viam.com/geocal/utils"
)

// Method selects how a pose is produced for a query time.
type Method string

// The known query methods.
const (
	MethodNearest      Method = "NEAREST"
	MethodInterpolated Method = "INTERPOLATED"
)

// Source selects the format of the position log.
type Source string

// The known position log sources.
const (
	SourceText   Source = "text"
	SourceSQLite Source = "sqlite"
)

// DefaultSQLiteTable is the table poses are read from when none is configured.
const DefaultSQLiteTable = "poses"

var tableNameRegexValidator = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Reference is the rigid transform from the local frame of the position log into the global frame.
type Reference struct {
	X          float64 `json:"x" yaml:"x"`
	Y          float64 `json:"y" yaml:"y"`
	HeadingDeg float64 `json:"heading_deg" yaml:"heading_deg"`
}

// Pose returns the reference as a ground plane pose.
func (r Reference) Pose() spatialmath.Pose2D {
	return spatialmath.NewPose2D(r.X, r.Y, utils.DegToRad(r.HeadingDeg))
}

// GeoOrigin is the latitude and longitude, in degrees, of the global frame's origin.
type GeoOrigin struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Point returns the origin as a geo point.
func (g GeoOrigin) Point() *geo.Point {
	return geo.NewPoint(g.Lat, g.Lng)
}

// Config describes where a pose reader finds its inputs and how it answers queries.
type Config struct {
	PositionLog      string     `json:"position_log" yaml:"position_log"`
	IMULog           string     `json:"imu_log,omitempty" yaml:"imu_log,omitempty"`
	CalibrationFile  string     `json:"calibration_file,omitempty" yaml:"calibration_file,omitempty"`
	Method           Method     `json:"method,omitempty" yaml:"method,omitempty" jsonschema:"enum=NEAREST,enum=INTERPOLATED"`
	Source           Source     `json:"source,omitempty" yaml:"source,omitempty" jsonschema:"enum=text,enum=sqlite"`
	SQLiteTable      string     `json:"sqlite_table,omitempty" yaml:"sqlite_table,omitempty"`
	Reference        *Reference `json:"reference,omitempty" yaml:"reference,omitempty"`
	GeoOrigin        *GeoOrigin `json:"geo_origin,omitempty" yaml:"geo_origin,omitempty"`
	WatchCalibration bool       `json:"watch_calibration,omitempty" yaml:"watch_calibration,omitempty"`

	ConfigFilePath string `json:"-" yaml:"-"`
}

// Schema returns the JSON schema of a configuration file.
func Schema() *jsonschema.Schema {
	return jsonschema.Reflect(&Config{})
}

// applyDefaults fills in every optional field that was left empty.
func (cfg *Config) applyDefaults() {
	if cfg.Method == "" {
		cfg.Method = MethodInterpolated
	}
	if cfg.Source == "" {
		cfg.Source = SourceText
	}
	if cfg.Source == SourceSQLite && cfg.SQLiteTable == "" {
		cfg.SQLiteTable = DefaultSQLiteTable
	}
}

// ReferencePose returns the configured local to global transform, the identity if there is none.
func (cfg *Config) ReferencePose() spatialmath.Pose2D {
	if cfg.Reference == nil {
		return spatialmath.Pose2D{}
	}
	return cfg.Reference.Pose()
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	var errs error
	if cfg.PositionLog == "" {
		errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(path, "position_log"))
	}

	switch cfg.Method {
	case MethodNearest, MethodInterpolated:
	default:
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("method must be %s or %s, got %q", MethodNearest, MethodInterpolated, cfg.Method)))
	}

	switch cfg.Source {
	case SourceText:
	case SourceSQLite:
		if !tableNameRegexValidator.MatchString(cfg.SQLiteTable) {
			errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
				errors.Errorf("invalid sqlite_table %q", cfg.SQLiteTable)))
		}
	default:
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("source must be %s or %s, got %q", SourceText, SourceSQLite, cfg.Source)))
	}

	if cfg.GeoOrigin != nil {
		if cfg.GeoOrigin.Lat < -90 || cfg.GeoOrigin.Lat > 90 {
			errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
				errors.Errorf("geo_origin latitude %v out of range", cfg.GeoOrigin.Lat)))
		}
		if cfg.GeoOrigin.Lng < -180 || cfg.GeoOrigin.Lng > 180 {
			errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
				errors.Errorf("geo_origin longitude %v out of range", cfg.GeoOrigin.Lng)))
		}
	}

	if cfg.WatchCalibration && cfg.CalibrationFile == "" {
		errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(path, "calibration_file"))
	}
	return errs
}
