// Package logging provides config-driven categorized logging for the captcha
// client, backed by zap.
//
// The interactive client owns the terminal, so log lines never go to stdout.
// When debug mode is off every logger is a no-op; when on, JSON lines are
// appended to the configured file, one field "cat" per category.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup and configuration
	CategorySession Category = "session" // Session state transitions
	CategoryGateway Category = "gateway" // Generate/verify round trips
	CategoryTUI     Category = "tui"     // Terminal UI events
	CategoryStub    Category = "stub"    // Local stub backend
)

// Config mirrors config.LoggingConfig to avoid an import cycle.
type Config struct {
	DebugMode  bool
	Level      string // debug, info, warn, error
	File       string
	Categories map[string]bool
	// Console also writes human-readable lines to stderr. Only commands
	// that do not own the terminal set it.
	Console bool
}

// Logger is a category logger with printf-style helpers.
type Logger struct {
	category Category
	z        *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	cfg     Config
	base    *zap.Logger = zap.NewNop()
	loggers             = make(map[Category]*Logger)
)

// Initialize configures logging. Calling it again replaces the previous
// setup; loggers obtained earlier keep writing to the old sink.
func Initialize(c Config) error {
	mu.Lock()
	defer mu.Unlock()

	cfg = c
	loggers = make(map[Category]*Logger)
	if !c.DebugMode && !c.Console {
		base = zap.NewNop()
		return nil
	}

	level := parseLevel(c.Level)
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	if c.DebugMode {
		if c.File == "" {
			return fmt.Errorf("logging file required in debug mode")
		}
		if err := os.MkdirAll(filepath.Dir(c.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(file), level))
	}
	if c.Console {
		consoleConfig := encoderConfig
		consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), zapcore.Lock(os.Stderr), level))
	}
	base = zap.New(zapcore.NewTee(cores...))
	return nil
}

// NewWithCore installs a logger built on core, enabling every category.
// Tests use it with an observer core.
func NewWithCore(core zapcore.Core) {
	mu.Lock()
	defer mu.Unlock()
	cfg = Config{DebugMode: true}
	base = zap.New(core)
	loggers = make(map[Category]*Logger)
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return cfg.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled.
// Categories not listed are enabled in debug mode.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabled(category)
}

func categoryEnabled(category Category) bool {
	if !cfg.DebugMode && !cfg.Console {
		return false
	}
	enabled, exists := cfg.Categories[string(category)]
	return !exists || enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	z := zap.NewNop()
	if categoryEnabled(category) {
		z = base.With(zap.String("cat", string(category)))
	}
	l := &Logger{category: category, z: z.Sugar()}
	loggers[category] = l
	return l
}

// With returns a child logger carrying key/value pairs.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, z: l.z.With(keysAndValues...)}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) { l.z.Debugf(format, args...) }

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) { l.z.Infof(format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) { l.z.Warnf(format, args...) }

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) { l.z.Errorf(format, args...) }

// Sync flushes buffered entries (call at shutdown)
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// Session logs to the session category
func Session(format string, args ...interface{}) {
	Get(CategorySession).Info(format, args...)
}

// SessionDebug logs debug to the session category
func SessionDebug(format string, args ...interface{}) {
	Get(CategorySession).Debug(format, args...)
}

// Gateway logs to the gateway category
func Gateway(format string, args ...interface{}) {
	Get(CategoryGateway).Info(format, args...)
}

// TUIDebug logs debug to the tui category
func TUIDebug(format string, args ...interface{}) {
	Get(CategoryTUI).Debug(format, args...)
}
