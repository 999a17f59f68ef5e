package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLevel maps a LogLevel onto the equivalent zap level.
func (l LogLevel) ZapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Zap returns a zap logger for third-party clients that insist on one (the
// etcd client does). It writes to the output and in the format of the last
// Init, log file included. The etcd client is chatty at info level, so the
// logger never goes below warn unless debug logging is enabled.
func Zap(subsystem string) *zap.Logger {
	mu.RLock()
	level := currentLevel
	output := currentOutput
	format := currentFormat
	mu.RUnlock()

	if level == LevelInfo {
		level = LevelWarn
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.LevelKey = "level"
	encoderCfg.MessageKey = "msg"
	encoderCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if format == FormatJSON {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	sink := zapcore.Lock(zapcore.AddSync(output))
	core := zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(level.ZapLevel()))
	opts := []zap.Option{zap.ErrorOutput(sink)}
	if level == LevelDebug {
		opts = append(opts, zap.Development(), zap.AddCaller())
	}
	return zap.New(core, opts...).With(zap.String("subsystem", subsystem))
}
