// Package sensor defines an abstract sensing device that can provide measurement readings.
package sensor

import (
	"context"
)

// A Sensor represents a general purpose sensor that is initialized once from a configuration
// file and can then give arbitrary readings of some thing that it is sensing.
type Sensor interface {
	// Init loads everything the sensor needs from the configuration at configPath.
	Init(ctx context.Context, configPath string) error

	// Readings return the current snapshot, keyed by measurement name.
	Readings(ctx context.Context) (map[string]interface{}, error)

	// Desc returns a description of this sensor.
	Desc() Description
}

// Type specifies the type of sensor.
type Type string

// Description describes information about the device.
type Description struct {
	Type Type

	// Path is some universal descriptor of how to find the device.
	Path string
}
