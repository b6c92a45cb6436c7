package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options selects level, output format and an optional log file.
type Options struct {
	Level  string
	Format string
	File   string
}

// Logger owns the process logger and the log file behind it, if any.
type Logger struct {
	zerolog.Logger
	file *os.File
}

// New builds the process logger and installs it as zerolog's global logger.
func New(opts Options, stdout io.Writer) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if stdout == nil {
		stdout = os.Stderr
	}

	var console io.Writer
	switch strings.ToLower(opts.Format) {
	case "", FormatConsole:
		console = zerolog.ConsoleWriter{Out: stdout, TimeFormat: "15:04:05.000"}
	case FormatJSON:
		console = stdout
	default:
		return nil, fmt.Errorf("unknown log format %q (want %s or %s)", opts.Format, FormatConsole, FormatJSON)
	}

	l := &Logger{}
	writer := console
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.file = f
		// The file always gets JSON so it can be grepped and parsed later.
		writer = zerolog.MultiLevelWriter(console, f)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	l.Logger = zerolog.New(writer).Level(level).With().Timestamp().Logger()
	log.Logger = l.Logger
	return l, nil
}

// ParseLevel accepts zerolog level names; empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zerolog.InfoLevel, nil
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return parsed, nil
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return err
	}
	return l.file.Close()
}
