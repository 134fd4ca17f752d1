// Package stdlogger adapts zerolog to printf style logger interfaces,
// e.g. the one expected by the resty http client.
package stdlogger

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quillblog/quill/internal/logger"
)

// Logger forwards printf style calls to zerolog.
type Logger struct {
	log zerolog.Logger
}

// New returns a Logger using the global zerolog logger.
func New() *Logger {
	return &Logger{log: log.Logger}
}

// NewComponent returns a Logger of a named component, see logger.Component.
func NewComponent(name string) *Logger {
	return &Logger{log: logger.Component(name)}
}

// Debugf logs on debug level.
func (l *Logger) Debugf(format string, v ...any) {
	l.log.Debug().Msgf(format, v...)
}

// Infof logs on info level.
func (l *Logger) Infof(format string, v ...any) {
	l.log.Info().Msgf(format, v...)
}

// Warnf logs on warn level.
func (l *Logger) Warnf(format string, v ...any) {
	l.log.Warn().Msgf(format, v...)
}

// Warningf is an alias of Warnf.
func (l *Logger) Warningf(format string, v ...any) {
	l.Warnf(format, v...)
}

// Errorf logs on error level.
func (l *Logger) Errorf(format string, v ...any) {
	l.log.Error().Msgf(format, v...)
}
