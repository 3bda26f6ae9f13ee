package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// Global logger instance
	Logger = zerolog.Nop()

	// output is the sink every logger writes through; swapped by InitializeWithWriter
	output io.Writer = io.Discard
	mu     sync.RWMutex
)

// Initialize sets up the global console logger at the given level
func Initialize(logLevel string) {
	InitializeWithWriter(os.Stdout, logLevel, false)
}

// InitializeWithWriter sets up the global logger on an arbitrary writer.
// When jsonOutput is false the writer is wrapped in a human-readable console writer.
func InitializeWithWriter(w io.Writer, logLevel string, jsonOutput bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	var sink io.Writer = w
	if !jsonOutput {
		sink = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: "2006-01-02 15:04:05",
			NoColor:    w != os.Stdout,
		}
	}

	mu.Lock()
	output = sink
	mu.Unlock()

	Logger = zerolog.New(sharedWriter{}).
		With().
		Timestamp().
		Caller().
		Logger()

	zerolog.SetGlobalLevel(ParseLevel(logLevel))

	// Replace standard log with zerolog
	log.Logger = Logger
}

// ParseLevel maps a config string to a zerolog level, defaulting to info
func ParseLevel(logLevel string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get returns the global logger instance
func Get() *zerolog.Logger {
	return &Logger
}

// GetForComponent returns a logger with a component field for better filtering.
// Package-level component loggers are created before Initialize runs, so they write
// through the shared sink rather than capturing the writer at construction.
func GetForComponent(component string) zerolog.Logger {
	return zerolog.New(sharedWriter{}).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// sharedWriter forwards encoded events to the currently configured sink.
type sharedWriter struct{}

func (sharedWriter) Write(p []byte) (int, error) {
	mu.RLock()
	w := output
	mu.RUnlock()
	return w.Write(p)
}

// FileWriter returns a writer to a log file for optional use alongside console logging
func FileWriter(path string) (io.Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	return file, nil
}
