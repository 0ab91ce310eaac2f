package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wonny/strikegate/pkg/config"
)

// serviceName service field on every entry
const serviceName = "strikegate"

// Logger is a structured logger wrapper around zerolog
// ⭐ SSOT: 모든 로깅은 이 패키지를 통해서만 수행
type Logger struct {
	zlog zerolog.Logger
}

// New creates a new Logger from config, writing to stdout
// ⭐ SSOT: zerolog 인스턴스는 여기서만 생성
func New(cfg *config.Config) *Logger {
	return NewForOutput(os.Stdout, cfg)
}

// NewForOutput creates a Logger writing to w with the configured format and level.
// console/pretty → human-readable, anything else → JSON.
func NewForOutput(w io.Writer, cfg *config.Config) *Logger {
	if cfg.LogFormat == "console" || cfg.LogFormat == "pretty" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	l := NewWithWriter(w, cfg.Env)
	// 레벨은 인스턴스 단위 (전역 레벨 변경 금지: 테스트 간 간섭)
	l.zlog = l.zlog.Level(ParseLevel(cfg.LogLevel))
	return l
}

// NewWithWriter creates a JSON logger writing to w at debug level (tests, CLI stderr)
func NewWithWriter(w io.Writer, env string) *Logger {
	zlog := zerolog.New(w).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("env", env).
		Logger()

	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// ParseLevel converts a LOG_LEVEL string; unknown values map to info
func ParseLevel(levelStr string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Level current minimum level
func (l *Logger) Level() zerolog.Level {
	return l.zlog.GetLevel()
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.zlog.Debug().Msg(msg)
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.zlog.Info().Msg(msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.zlog.Warn().Msg(msg)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.zlog.Error().Msg(msg)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string) {
	l.zlog.Fatal().Msg(msg)
}

// WithField returns a new logger with an additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zlog: l.zlog.With().Interface(key, value).Logger()}
}

// WithFields returns a new logger with multiple fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger()}
}

// WithError returns a new logger with an error field
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zlog: l.zlog.With().Err(err).Logger()}
}

// WithRun scopes a logger to one validation run
func (l *Logger) WithRun(runID string, strikeID uint64, symbol string) *Logger {
	return &Logger{zlog: l.zlog.With().
		Str("run_id", runID).
		Uint64("strike_id", strikeID).
		Str("symbol", symbol).
		Logger()}
}

// WithCheck scopes a run logger to one check ("#3 liquidity")
func (l *Logger) WithCheck(id int, name string) *Logger {
	return &Logger{zlog: l.zlog.With().
		Int("check_id", id).
		Str("check", name).
		Logger()}
}
