package referenceframe

import "github.com/pkg/errors"

var (
	// ErrUninitializedReference is returned by every transform of a reference frame whose
	// local to global transform has not been established.
	ErrUninitializedReference = errors.New("reference frame has not been established")

	// ErrNoGeoOrigin is returned by geographic conversions of a frame without a geographic origin.
	ErrNoGeoOrigin = errors.New("reference frame has no geographic origin")
)
