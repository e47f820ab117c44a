package util

import (
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var GLOBAL_LOG_LEVEL = LogLevelInfo
var GLOBAL_LOG_CATEGORIES = LogVoxel | LogPhysics | LogSystem | LogIO

type LogLevel int

const (
	LogLevelError LogLevel = 1 << iota
	LogLevelWarning
	LogLevelInfo
	LogLevelDebug
)

type LogCategory int

const (
	LogVoxel LogCategory = 1 << iota
	LogPhysics
	LogSystem
	LogIO
)

var logger atomic.Pointer[zap.Logger]

func init() {
	logger.Store(zap.NewNop())
}

// SetLogger replaces the sink of all Log* helpers. A nil logger silences them.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}

func Logger() *zap.Logger {
	return logger.Load()
}

// NewLogger builds a zap logger writing to stderr, human readable when
// console is set and JSON otherwise.
func NewLogger(level string, console bool) (*zap.Logger, error) {
	if strings.EqualFold(level, "warning") {
		level = "warn"
	}
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", level)
	}
	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    true,
	}
	if console {
		config.Encoding = "console"
		config.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return config.Build()
}

// ParseLogLevel maps zap level names onto the category filter levels.
func ParseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug, nil
	case "info", "":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarning, nil
	case "error":
		return LogLevelError, nil
	}
	return 0, errors.Errorf("unknown log level %q", level)
}

func ParseLogCategories(names []string) (LogCategory, error) {
	var categories LogCategory
	for _, name := range names {
		switch strings.ToLower(name) {
		case "voxel":
			categories |= LogVoxel
		case "physics":
			categories |= LogPhysics
		case "system":
			categories |= LogSystem
		case "io":
			categories |= LogIO
		default:
			return 0, errors.Errorf("unknown log category %q", name)
		}
	}
	return categories, nil
}

func (c LogCategory) String() string {
	switch c {
	case LogVoxel:
		return "voxel"
	case LogPhysics:
		return "physics"
	case LogSystem:
		return "system"
	case LogIO:
		return "io"
	}
	return "mixed"
}

func log(cat LogCategory, lvl LogLevel, msg string, fields ...zap.Field) {
	if lvl > GLOBAL_LOG_LEVEL {
		return
	}
	if GLOBAL_LOG_CATEGORIES&cat == 0 {
		return
	}
	l := logger.Load().With(zap.Stringer("category", cat))
	switch lvl {
	case LogLevelError:
		l.Error(msg, fields...)
	case LogLevelWarning:
		l.Warn(msg, fields...)
	case LogLevelDebug:
		l.Debug(msg, fields...)
	default:
		l.Info(msg, fields...)
	}
}

func LogVoxelInfo(msg string, fields ...zap.Field) {
	log(LogVoxel, LogLevelInfo, msg, fields...)
}

func LogVoxelDebug(msg string, fields ...zap.Field) {
	log(LogVoxel, LogLevelDebug, msg, fields...)
}

func LogVoxelWarning(msg string, fields ...zap.Field) {
	log(LogVoxel, LogLevelWarning, msg, fields...)
}

func LogPhysicsInfo(msg string, fields ...zap.Field) {
	log(LogPhysics, LogLevelInfo, msg, fields...)
}

func LogPhysicsDebug(msg string, fields ...zap.Field) {
	log(LogPhysics, LogLevelDebug, msg, fields...)
}

func LogPhysicsWarning(msg string, fields ...zap.Field) {
	log(LogPhysics, LogLevelWarning, msg, fields...)
}

func LogSystemInfo(msg string, fields ...zap.Field) {
	log(LogSystem, LogLevelInfo, msg, fields...)
}

func LogSystemError(msg string, fields ...zap.Field) {
	log(LogSystem, LogLevelError, msg, fields...)
}

func LogIOError(msg string, fields ...zap.Field) {
	log(LogIO, LogLevelError, msg, fields...)
}
