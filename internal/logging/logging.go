package logging

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls the process-wide logger.
type Options struct {
	Level string
	// File, when set, receives a rotated copy of everything written to stderr.
	File string
}

// Setup configures the standard logrus logger and returns a closer for the
// log file, if any.
func Setup(opts Options) (io.Closer, error) {
	level, err := log.ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)
	log.SetFormatter(&prefixed.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
		ForceFormatting: true,
	})

	if opts.File == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return rotator, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
