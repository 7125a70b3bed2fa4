package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/lumberjack/v2"
)

// FileName is the log file created inside the log directory.
const FileName = "authguard.log"

// NewFileSink returns a size-rotated log file in dir. The directory is
// created with mode 0750 if needed.
func NewFileSink(dir string) (io.WriteCloser, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Annotatef(err, "creating log directory %s", dir)
	}
	if err := os.Chmod(dir, 0o750); err != nil {
		return nil, errors.Annotatef(err, "setting permissions on %s", dir)
	}

	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, FileName),
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}, nil
}
