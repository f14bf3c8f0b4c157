package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with textfix specific helpers
type Logger struct {
	*zap.Logger
	logText bool
}

// Config contains logger configuration
type Config struct {
	Level  string
	Format string // json or console
	// LogText includes submitted and corrected text in correction logs.
	LogText bool
	File    *FileConfig
}

// FileConfig contains file logging configuration
type FileConfig struct {
	Enabled bool
	Path    string
}

// New creates a new logger instance
func New(config Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", config.Level, err)
	}

	var encoder zapcore.Encoder
	if config.Format == "console" {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level),
	}

	if config.File != nil && config.File.Enabled {
		if dir := filepath.Dir(config.File.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		file, err := os.OpenFile(config.File.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}

		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(file),
			level,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	return &Logger{Logger: logger, logText: config.LogText}, nil
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// WithRequestID adds a request ID to the logger context
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("request_id", requestID)), logText: l.logText}
}

// WithComponent adds a component name to the logger context
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("component", component)), logText: l.logText}
}

// LogCorrection logs a finished correction. Text bodies are only logged
// when LogText is enabled; otherwise lengths stand in for them.
func (l *Logger) LogCorrection(tone, mode, original, corrected string, cacheHit bool, duration time.Duration) {
	fields := []zap.Field{
		zap.String("tone", tone),
		zap.String("mode", mode),
		zap.Int("input_length", len(original)),
		zap.Int("output_length", len(corrected)),
		zap.Bool("changed", original != corrected),
		zap.Bool("cache_hit", cacheHit),
		zap.Duration("duration", duration),
	}
	if l.logText {
		fields = append(fields,
			zap.String("original", original),
			zap.String("corrected", corrected),
		)
	}

	l.Info("Text corrected", fields...)
}
