// Package logging configures the process-wide loggo context.
package logging

import (
	"io"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/lumberjack/v2"
)

const fileWriterName = "file"

var logger = loggo.GetLogger("lmis.logging")

type Options struct {
	// Spec is a loggo logger specification such as
	// "<root>=INFO;lmis.requisition=DEBUG".
	Spec string

	// File, when set, receives a copy of every log entry. The file is
	// rotated once it reaches MaxSizeMB.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Setup applies the logger specification and registers the optional file
// writer. The returned closer flushes and closes the file.
func Setup(opts Options) (io.Closer, error) {
	if opts.Spec != "" {
		if err := loggo.ConfigureLoggers(opts.Spec); err != nil {
			return nil, errors.Annotatef(err, "configuring loggers %q", opts.Spec)
		}
	}
	if opts.File == "" {
		return nopCloser{}, nil
	}

	if opts.MaxSizeMB == 0 {
		opts.MaxSizeMB = 100
	}
	if opts.MaxBackups == 0 {
		opts.MaxBackups = 3
	}
	writer := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB, // megabytes
		MaxBackups: opts.MaxBackups,
		Compress:   true,
	}
	_, _ = loggo.RemoveWriter(fileWriterName)
	if err := loggo.RegisterWriter(fileWriterName, loggo.NewSimpleWriter(writer, loggo.DefaultFormatter)); err != nil {
		_ = writer.Close()
		return nil, errors.Annotate(err, "registering log file writer")
	}
	logger.Debugf("logging to %q, max size %d MB, %d backups", opts.File, opts.MaxSizeMB, opts.MaxBackups)
	return writer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
