// Package logging sets up the gateway's structured logger and the gin
// middleware that feeds it, following the teacher's internal/logging
// package: a base logrus logger optionally rotated to disk with lumberjack,
// a recovery middleware that never leaks a stack trace to the client, and a
// per-request-id middleware.
package logging

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupBaseLogger configures the package-level logrus logger with a text
// formatter suitable for local development; callers may upgrade to file
// logging with EnableFileLogging once the data directory is known.
func SetupBaseLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
}

// SetDebug toggles verbose logging.
func SetDebug(debug bool) {
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// EnableFileLogging tees logs to a rotated file under dataDir/logs/gateway.log
// using lumberjack, keeping stdout output alongside it.
func EnableFileLogging(dataDir string) error {
	dir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "gateway.log"),
		MaxSize:    50, // megabytes
		MaxBackups: 10,
		MaxAge:     14, // days
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	return nil
}
