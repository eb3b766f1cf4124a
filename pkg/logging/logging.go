// Package logging provides the structured logger used throughout the
// service, a thin wrapper over logrus matched to the rest of the pipeline's
// component-scoped logging convention.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the logging surface every long-lived component depends on. It
// is satisfied by *logrus.Logger and *logrus.Entry, so a component can be
// handed either the root logger or a field-scoped derivative.
type Logger interface {
	logrus.FieldLogger
}

// NewRoot constructs the process-wide root logger, reading its level from
// the given string (as produced by config.Config.LogLevel). An unrecognized
// level falls back to info.
func NewRoot(level string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}

// Component returns a derivative logger tagged with a "component" field,
// mirroring the convention used across the pipeline's stages (each stage
// logs as itself, never through the bare root logger).
func Component(log Logger, name string) Logger {
	return log.WithField("component", name)
}
