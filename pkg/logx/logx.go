// Package logx provides leveled, component-scoped logging for the simulation service.
package logx

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Logger writes leveled log lines tagged with a component name.
type Logger struct {
	component string
	logger    *log.Logger
}

// Level identifies the severity of a log line.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// fileConfig controls optional mirroring of log output to files.
type fileConfig struct {
	enabled bool
	dir     string
	file    *os.File
}

var (
	debugEnabled bool
	files        fileConfig
	mu           sync.Mutex
)

func init() {
	if v := os.Getenv("DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		debugEnabled = true
	}
	if dir := os.Getenv("LOG_DIR"); dir != "" {
		if err := EnableFileLogging(dir); err != nil {
			fmt.Fprintf(os.Stderr, "logx: file logging disabled: %v\n", err)
		}
	}
}

// NewLogger returns a logger tagged with the given component name.
func NewLogger(component string) *Logger {
	return &Logger{
		component: component,
		logger:    log.New(os.Stderr, "", 0), // stderr keeps stdout clean for CLI output
	}
}

// SetDebug toggles debug-level output globally.
func SetDebug(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	debugEnabled = enabled
}

// IsDebugEnabled reports whether debug-level output is enabled.
func IsDebugEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return debugEnabled
}

// EnableFileLogging mirrors all log output into a timestamped file under dir.
func EnableFileLogging(dir string) error {
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	name := fmt.Sprintf("app_%s.log", time.Now().Format("20060102_150405"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	if files.file != nil {
		_ = files.file.Close()
	}
	files = fileConfig{enabled: true, dir: dir, file: f}
	return nil
}

// CloseFileLogging flushes and closes the active log file, if any.
func CloseFileLogging() {
	mu.Lock()
	defer mu.Unlock()

	if files.file != nil {
		_ = files.file.Close()
	}
	files = fileConfig{}
}

func (l *Logger) log(level Level, format string, args ...any) {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	message := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("[%s] [%s] %s: %s", timestamp, l.component, level, message)
	l.logger.Println(line)

	mu.Lock()
	if files.enabled && files.file != nil {
		fmt.Fprintln(files.file, line)
	}
	mu.Unlock()
}

// Debug logs at debug level when debug output is enabled.
func (l *Logger) Debug(format string, args ...any) {
	if !IsDebugEnabled() {
		return
	}
	l.log(LevelDebug, format, args...)
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

// Error logs at error level.
func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

// GetComponent returns the component name this logger is tagged with.
func (l *Logger) GetComponent() string {
	return l.component
}

// WithComponent returns a new logger tagged with a different component name.
func (l *Logger) WithComponent(component string) *Logger {
	return NewLogger(component)
}
