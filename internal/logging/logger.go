// Package logging provides structured logging with file and console output.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents logging levels
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LogEntry is one line of the in-memory history.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Component string `json:"component"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
}

// Logger wraps zerolog with a daily log file and a bounded history of recent
// entries.
type Logger struct {
	zlog    zerolog.Logger
	file    *os.File
	logPath string
	history *history
}

// Config holds logger configuration
type Config struct {
	LogDir     string    // Directory for log files (default: ~/.facerig/logs). Empty with NoFile disables the file.
	NoFile     bool      // Skip the log file entirely
	Level      LogLevel  // Minimum log level (default: info)
	MaxHistory int       // Max entries to keep in memory (default: 500)
	Console    bool      // Also log to the console writer
	ConsoleOut io.Writer // Console destination (default: stderr, stdout is reserved for command output)
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		LogDir:     filepath.Join(home, ".facerig", "logs"),
		Level:      LevelInfo,
		MaxHistory: 500,
		Console:    true,
	}
}

// ParseLevel maps a config string to a zerolog level. Unknown strings are info.
func ParseLevel(level LogLevel) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates a new Logger with file and console output
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 500
	}

	logger := &Logger{history: newHistory(cfg.MaxHistory)}
	writers := []io.Writer{logger.history}

	if !cfg.NoFile {
		if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		logFileName := fmt.Sprintf("facerig_%s.log", time.Now().Format("2006-01-02"))
		logger.logPath = filepath.Join(cfg.LogDir, logFileName)

		file, err := os.OpenFile(logger.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.file = file
		writers = append(writers, file)
	}

	if cfg.Console {
		out := cfg.ConsoleOut
		if out == nil {
			out = os.Stderr
		}
		writers = append(writers, zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"})
	}

	logger.zlog = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("app", "facerig").
		Logger()

	logger.zlog.Debug().
		Str("component", "logging").
		Str("logFile", logger.logPath).
		Str("level", string(cfg.Level)).
		Msg("Logger initialized")

	return logger, nil
}

// Nop returns a logger that discards everything. Used by tests and by
// commands that run before configuration is loaded.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop(), history: newHistory(1)}
}

// SetOnLog sets a callback for real-time log streaming.
func (l *Logger) SetOnLog(fn func(LogEntry)) {
	l.history.setOnLog(fn)
}

// GetHistory returns up to limit recent entries, oldest first.
func (l *Logger) GetHistory(limit int) []LogEntry {
	return l.history.recent(limit)
}

// GetLogPath returns the current log file path
func (l *Logger) GetLogPath() string {
	return l.logPath
}

// Close closes the log file
func (l *Logger) Close() error {
	if l.file != nil {
		l.zlog.Debug().Str("component", "logging").Msg("Logger shutting down")
		return l.file.Close()
	}
	return nil
}

// Component returns a zerolog.Logger with the component field set
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zlog.With().Str("component", name).Logger()
}

// Zerolog returns the underlying zerolog.Logger
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// history decodes zerolog's JSON lines into a bounded ring of entries.
type history struct {
	mu      sync.RWMutex
	entries []LogEntry
	max     int
	onLog   func(LogEntry)
}

func newHistory(max int) *history {
	return &history{entries: make([]LogEntry, 0, max), max: max}
}

func (h *history) Write(p []byte) (int, error) {
	var line struct {
		Time      string `json:"time"`
		Level     string `json:"level"`
		Component string `json:"component"`
		Message   string `json:"message"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(p, &line); err != nil {
		// Not ours to fail the write over.
		return len(p), nil
	}

	entry := LogEntry{
		Timestamp: line.Time,
		Level:     line.Level,
		Component: line.Component,
		Message:   line.Message,
		Error:     line.Error,
	}

	h.mu.Lock()
	h.entries = append(h.entries, entry)
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
	onLog := h.onLog
	h.mu.Unlock()

	if onLog != nil {
		go onLog(entry)
	}
	return len(p), nil
}

func (h *history) setOnLog(fn func(LogEntry)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onLog = fn
}

func (h *history) recent(limit int) []LogEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > len(h.entries) {
		limit = len(h.entries)
	}
	result := make([]LogEntry, limit)
	copy(result, h.entries[len(h.entries)-limit:])
	return result
}
