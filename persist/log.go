package persist

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// Logger is a structured, file-backed logger. It is built on zerolog but
// keeps the teacher's plain Println/Close call shape so call sites written
// against it read like any other Sia-style component log: a STARTUP line is
// written when the logger is created, and a SHUTDOWN line when it is
// closed, bracketing every other line the component writes in between.
type Logger struct {
	logger zerolog.Logger
	file   *os.File
}

// NewLogger returns a Logger that appends to filename, creating it if
// necessary, and immediately writes a STARTUP line.
func NewLogger(filename string) (*Logger, error) {
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	l := &Logger{
		logger: zerolog.New(f).With().Timestamp().Logger(),
		file:   f,
	}
	l.logger.Info().Msg("STARTUP: log has started logging")
	return l, nil
}

// Println writes a line to the log at info level, mirroring the standard
// library's log.Println call shape.
func (l *Logger) Println(v ...interface{}) {
	l.logger.Info().Msg(fmt.Sprint(v...))
}

// Printf writes a formatted line to the log at info level.
func (l *Logger) Printf(format string, v ...interface{}) {
	l.logger.Info().Msg(fmt.Sprintf(format, v...))
}

// Critical writes a CRITICAL-tagged line at the error level, marking a
// protocol invariant violation. Unlike build.Critical it neither prints a
// stack trace nor panics. Used for the forest-proof-empty and
// forest-root-mismatch conditions (spec.md §7).
func (l *Logger) Critical(v ...interface{}) {
	l.logger.Error().Msg("CRITICAL: " + fmt.Sprint(v...))
}

// Severe writes a line at the warn level for conditions serious enough to
// flag but not severe enough to treat as an invariant violation.
func (l *Logger) Severe(v ...interface{}) {
	l.logger.Warn().Msg("SEVERE: " + fmt.Sprint(v...))
}

// Close writes a SHUTDOWN line and closes the underlying file.
func (l *Logger) Close() error {
	l.logger.Info().Msg("SHUTDOWN: log has stopped logging")
	return l.file.Close()
}
