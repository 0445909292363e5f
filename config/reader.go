package config

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"go.viam.com/geocal/utils"
)

// Read reads a config from the given file. Environment variables referenced as $VAR or ${VAR}
// are substituted first. Files ending in .yaml or .yml are decoded as YAML, everything else
// as JSON. Relative file paths inside the config are resolved against the config's directory.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, NewError(filePath, err)
	}
	return FromBytes(filePath, buf)
}

// FromBytes decodes and validates a config whose contents came from originalPath.
func FromBytes(originalPath string, buf []byte) (*Config, error) {
	cfg := Config{ConfigFilePath: originalPath}
	switch strings.ToLower(filepath.Ext(originalPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return nil, NewError(originalPath, errors.Wrap(err, "failed to decode Config from yaml"))
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(buf))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, NewError(originalPath, errors.Wrap(err, "failed to decode Config from json"))
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(originalPath); err != nil {
		return nil, NewError(originalPath, err)
	}

	dir := filepath.Dir(originalPath)
	cfg.PositionLog = utils.ResolveRelative(dir, cfg.PositionLog)
	cfg.IMULog = utils.ResolveRelative(dir, cfg.IMULog)
	cfg.CalibrationFile = utils.ResolveRelative(dir, cfg.CalibrationFile)
	return &cfg, nil
}
