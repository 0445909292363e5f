package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/geocal/logging"
)

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// warningf prints a message prefixed with a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, "\033[1;33mWarning:\033[0m "+format+"\n", a...)
}

// newLogger builds the logger for one command. Logs go to the app's error writer, and to a
// rotating file when --log-file is set. The returned func flushes and closes the file.
func newLogger(c *cli.Context, name string) (logging.Logger, func()) {
	logger := logging.NewBlankLogger(name)
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	if !c.Bool(debugFlag) {
		logger.SetLevel(logging.INFO)
	}

	path := c.String(logFileFlag)
	if path == "" {
		return logger, func() {}
	}
	file := logging.NewFileAppender(path)
	logger.AddAppender(file)
	return logger, func() {
		if err := file.Close(); err != nil {
			warningf(c.App.ErrWriter, "failed to close log file %s: %v", path, err)
		}
	}
}

// parseFloatArgs parses every positional argument as a float, requiring exactly n of them.
func parseFloatArgs(c *cli.Context, n int) ([]float64, error) {
	if c.Args().Len() != n {
		return nil, errors.Errorf("expected %d arguments, got %d", n, c.Args().Len())
	}
	values := make([]float64, n)
	for i, arg := range c.Args().Slice() {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d", i+1)
		}
		values[i] = v
	}
	return values, nil
}
