package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the process-wide logger.
type Config struct {
	Level       string // debug, info, warn, error
	Format      string // json or console
	OutputPath  string // stdout, stderr, or file path
	Environment string
}

var (
	mu          sync.RWMutex
	base        *zap.Logger
	sugar       *zap.SugaredLogger
	development = os.Getenv("ENVIRONMENT") == "development"
)

func init() {
	l, err := build(Config{Level: "info", Format: "console", OutputPath: "stdout"})
	if err != nil {
		l = zap.NewNop()
	}
	set(l)
}

// Init replaces the default console logger. It is called once from main.
func Init(cfg Config) error {
	l, err := build(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	development = cfg.Environment == "development"
	mu.Unlock()
	set(l)
	return nil
}

func build(cfg Config) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "json" {
		encoderConfig = zap.NewProductionEncoderConfig()
	} else {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var writeSyncer zapcore.WriteSyncer
	switch cfg.OutputPath {
	case "stdout", "":
		writeSyncer = zapcore.AddSync(os.Stdout)
	case "stderr":
		writeSyncer = zapcore.AddSync(os.Stderr)
	default:
		if dir := filepath.Dir(cfg.OutputPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
		file, err := os.OpenFile(cfg.OutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		writeSyncer = zapcore.AddSync(file)
	}

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, writeSyncer, level)
	// Skip one frame so callers see their own file:line, not this package.
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if base != nil {
		_ = base.Sync()
	}
	base = l
	sugar = l.Sugar()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// L returns the structured logger for call sites that want typed fields.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func Info(format string, v ...interface{}) {
	current().Infof(format, v...)
}

func Error(format string, v ...interface{}) {
	current().Errorf(format, v...)
}

func Debug(format string, v ...interface{}) {
	mu.RLock()
	dev := development
	mu.RUnlock()
	if dev {
		current().Debugf(format, v...)
	}
}

func Warn(format string, v ...interface{}) {
	current().Warnf(format, v...)
}

// Sync flushes buffered entries; call it before exit.
func Sync() {
	if l := L(); l != nil {
		_ = l.Sync()
	}
}

// LogEscrowEvent records a ledger state change with the fields support needs to trace it.
func LogEscrowEvent(escrowID, action, actorID string, err error) {
	fields := []zap.Field{
		zap.String("escrow_id", escrowID),
		zap.String("action", action),
		zap.String("actor_id", actorID),
	}
	if err != nil {
		L().Warn("escrow action failed", append(fields, zap.Error(err))...)
		return
	}
	L().Info("escrow action", fields...)
}
