package utils

import (
	"os"
	"path/filepath"

	"go.viam.com/utils"
)

// ResolveRelative returns fn unchanged if it is empty or absolute, otherwise fn joined onto dir.
func ResolveRelative(dir, fn string) string {
	if fn == "" || filepath.IsAbs(fn) {
		return fn
	}
	return filepath.Join(dir, fn)
}

// RemoveFileNoError will remove the file at the given path if it exists. Any
// errors will be suppressed.
func RemoveFileNoError(path string) {
	utils.UncheckedErrorFunc(func() error {
		if _, err := os.Stat(path); err == nil {
			return os.Remove(path)
		}
		return nil
	})
}
