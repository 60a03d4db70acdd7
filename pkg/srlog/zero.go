package srlog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var Zero = NewZeroLogger("", "info", false)

// NewZeroLogger builds a logger writing JSON lines to filepath, or to stdout
// when filepath is empty. Pretty output switches to zerolog.ConsoleWriter.
func NewZeroLogger(filepath string, level string, pretty bool) *zerolog.Logger {
	_, writer, err := newWriter(filepath)
	if err != nil {
		fmt.Printf("FAILED TO INITIALIZE LOGGER: %v", err)
		writer = os.Stdout
	}
	if pretty {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}
	}

	lvl, err := parseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	logger := zerolog.New(writer).Level(lvl).With().Timestamp().Logger()

	return &logger
}

// ReloadLogger replaces the package logger, keeping the current level when
// level is empty.
func ReloadLogger(filepath string, level string, pretty bool) {
	if level == "" {
		level = Zero.GetLevel().String()
	}
	Zero = NewZeroLogger(filepath, level, pretty)
}

func UpdateZeroLogLevel(logLevel string) error {
	level, err := parseLevel(logLevel)
	if err != nil {
		return err
	}
	zeroLogger := Zero.With().Logger().Level(level)
	Zero = &zeroLogger
	return nil
}

func parseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warning", "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "fatal":
		return zerolog.FatalLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("no matching log level found %v", level)
	}
}

// newWriter returns os.Stdout for an empty path, otherwise the file opened
// in append mode.
func newWriter(filepath string) (*os.File, io.Writer, error) {
	if filepath == "" {
		return nil, os.Stdout, nil
	}
	f, err := os.OpenFile(filepath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}
