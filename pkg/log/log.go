package log

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EncodingConsole = "console"
	EncodingJSON    = "json"
)

// InitLog builds the process logger. Unknown encodings fall back to console.
func InitLog(lvl zap.AtomicLevel, encoding string) *zap.Logger {
	encoding = strings.ToLower(strings.TrimSpace(encoding))
	if encoding != EncodingJSON {
		encoding = EncodingConsole
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "severity",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if encoding == EncodingJSON {
		// log collectors expect the duration as seconds in structured output
		encoderCfg.EncodeDuration = zapcore.SecondsDurationEncoder
	}

	loggerCfg := &zap.Config{
		Level:            lvl,
		Encoding:         encoding,
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	plain, err := loggerCfg.Build(zap.AddStacktrace(zap.DPanicLevel))
	if err != nil {
		panic(err)
	}

	return plain
}

// GormWriter sends the output of gorm's logger to the global zap logger.
// gorm only writes warnings, errors and slow queries at the level we run it.
type GormWriter struct{}

func (GormWriter) Printf(format string, args ...any) {
	zap.S().Named("gorm").Warnf(strings.TrimSpace(format), args...)
}
