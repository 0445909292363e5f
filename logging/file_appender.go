package logging

import (
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileAppender writes tab delimited logs to a file that is rotated once it reaches MaxSize
// megabytes.
type FileAppender struct {
	ConsoleAppender
	file *lumberjack.Logger
}

// NewFileAppender returns an appender that writes to path, keeping two compressed backups.
func NewFileAppender(path string) *FileAppender {
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    64,
		MaxBackups: 2,
		Compress:   true,
	}
	return &FileAppender{ConsoleAppender: NewWriterAppender(file), file: file}
}

// Write outputs the log entry to the file.
func (fa *FileAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return fa.ConsoleAppender.Write(entry, fields)
}

// Sync is a no-op; every entry is written through.
func (fa *FileAppender) Sync() error {
	return nil
}

// Close closes the current file.
func (fa *FileAppender) Close() error {
	return multierr.Combine(fa.Sync(), fa.file.Close())
}
