package config

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrConfig matches every configuration failure: a missing, unreadable or malformed input file,
// or a configuration that does not validate.
var ErrConfig = errors.New("configuration error")

// Error records the file a configuration failure came from.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %q: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports every *Error as ErrConfig.
func (e *Error) Is(target error) bool {
	return target == ErrConfig
}

// NewError wraps err as a configuration failure for the file at path.
func NewError(path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Path: path, Err: err}
}
