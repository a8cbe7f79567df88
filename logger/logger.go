// Package logger provides the ambient structured logging used across
// transport, client, manager and config. Call sites pass a message plus
// loose positional context (a language tag, a URI, an error) the way the
// rest of this codebase does; we fold that into logrus fields rather than
// requiring callers to build key/value pairs themselves.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu  sync.RWMutex
	log = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	l.SetLevel(levelFromEnv())
	return l
}

func levelFromEnv() logrus.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LSPMUX_LOG_LEVEL"))) {
	case "debug", "trace":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "":
		return logrus.InfoLevel
	default:
		return logrus.InfoLevel
	}
}

// SetLevel overrides the configured log level at runtime (used by
// cmd/lspmuxd's --verbose flag).
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(level) {
	case "debug", "trace":
		log.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
}

// SetOutputDiscard silences the logger; used by tests that exercise noisy
// paths (restart ladders, unhandled-notification bursts) without cluttering
// test output.
func SetOutputDiscard() {
	mu.Lock()
	defer mu.Unlock()
	log.SetOutput(io.Discard)
}

func withArgs(entry *logrus.Entry, args []any) *logrus.Entry {
	if len(args) == 0 {
		return entry
	}
	fields := make(logrus.Fields, len(args))
	for i, a := range args {
		fields[fmt.Sprintf("arg%d", i)] = a
	}
	return entry.WithFields(fields)
}

func Debug(msg string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	withArgs(log.WithField("component", "lspmux"), args).Debug(msg)
}

func Info(msg string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	withArgs(log.WithField("component", "lspmux"), args).Info(msg)
}

func Warn(msg string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	withArgs(log.WithField("component", "lspmux"), args).Warn(msg)
}

func Error(msg string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	withArgs(log.WithField("component", "lspmux"), args).Error(msg)
}
