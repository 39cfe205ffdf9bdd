package log

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _logger *zap.Logger
var defaultlogger *zap.Logger
var initOnce sync.Once

type contextKey int

const (
	contextKeyFields contextKey = iota
)

// Format of the log output
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// Config of the process-wide logger
type Config struct {
	Format Format
	Level  string
}

func onK8S() bool {
	_, err := os.Stat("/var/run/secrets/kubernetes.io")
	return !os.IsNotExist(err)
}

func init() {
	_logger = structured(levelFromEnv(os.Getenv("LOGLEVEL")))
	defaultlogger = _logger
}

func setLogger(l *zap.Logger) {
	defaultlogger = l
}
func resetLogger() {
	defaultlogger = _logger
}

// Init configures the process-wide logger.
// Only the first call has an effect: the logger is never replaced once a run has started.
func Init(cfg Config) error {
	var err error
	initOnce.Do(func() {
		var lvl zap.AtomicLevel
		if lvl, err = parseLevel(cfg.Level); err != nil {
			return
		}
		switch cfg.Format {
		case FormatConsole:
			_logger = console(lvl)
		case FormatJSON, "":
			_logger = structured(lvl)
		default:
			err = fmt.Errorf("unknown log format: %s", cfg.Format)
			return
		}
		defaultlogger = _logger
	})
	return err
}

// Sync flushes any buffered log entries. To be called once before the process exits.
func Sync() {
	// Syncing stderr/stdout returns EINVAL on some platforms
	_ = defaultlogger.Sync()
}

func parseLevel(level string) (zap.AtomicLevel, error) {
	if level == "" {
		return zap.NewAtomicLevelAt(zap.InfoLevel), nil
	}
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return lvl, fmt.Errorf("invalid log level %s: %w", level, err)
	}
	return lvl, nil
}

func levelFromEnv(level string) zap.AtomicLevel {
	lvl, err := parseLevel(level)
	if err != nil || level == "" {
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return lvl
}

// structured returns a JSON encoded logger
func structured(lvl zap.AtomicLevel) *zap.Logger {
	cfg := zap.NewProductionConfig()
	enc := zap.NewProductionEncoderConfig()
	enc.LevelKey = "severity"
	enc.TimeKey = "timestamp"
	if onK8S() {
		//log collection in k8s handles timestamps
		enc.TimeKey = ""
	} else {
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	enc.StacktraceKey = ""
	enc.MessageKey = "message"
	cfg.EncoderConfig = enc
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	cfg.Level = lvl
	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return l
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02T15:04:05.000"))
}

// console returns a human-readable logger
func console(lvl zap.AtomicLevel) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	enc := zap.NewDevelopmentEncoderConfig()
	enc.LevelKey = "severity"
	enc.TimeKey = "timestamp"
	enc.EncodeTime = timeEncoder
	enc.StacktraceKey = ""
	enc.MessageKey = "message"
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig = enc
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	cfg.Level = lvl
	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return l
}

// Logger returns a logger that will print fields previously added to the context
func Logger(ctx context.Context) *zap.Logger {
	flds := ctx.Value(contextKeyFields)
	if flds != nil {
		fflds := flds.([]zap.Field)
		return defaultlogger.With(fflds...)
	}
	return defaultlogger
}

// With adds a key=value field to the returned context
func With(ctx context.Context, key string, value interface{}) context.Context {
	fld := zap.Any(key, value)
	return WithFields(ctx, fld)
}

// WithFields adds fields to the returned context
func WithFields(ctx context.Context, fields ...zapcore.Field) context.Context {
	flds := ctx.Value(contextKeyFields)
	var fflds []zap.Field
	if flds != nil {
		fflds = flds.([]zap.Field)
	}
	fflds = append(fflds[:len(fflds):len(fflds)], fields...)
	return context.WithValue(ctx, contextKeyFields, fflds)
}
