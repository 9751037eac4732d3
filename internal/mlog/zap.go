package mlog

import "go.uber.org/zap"

// ZapLogger is the zap-backed implementation of Logger used in every
// deployed mode. Construct via NewZapLogger; the zero value is not usable.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a ZapLogger at the given level ("debug", "info",
// "warn", "error"). Invalid levels fall back to info.
func NewZapLogger(level string) (*ZapLogger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.EncoderConfig.TimeKey = "ts"

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &ZapLogger{sugar: logger.Sugar()}, nil
}

func (l *ZapLogger) Info(args ...any)                 { l.sugar.Info(args...) }
func (l *ZapLogger) Infof(format string, args ...any) { l.sugar.Infof(format, args...) }
func (l *ZapLogger) Infoln(args ...any)                { l.sugar.Infoln(args...) }

func (l *ZapLogger) Error(args ...any)                 { l.sugar.Error(args...) }
func (l *ZapLogger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }
func (l *ZapLogger) Errorln(args ...any)                { l.sugar.Errorln(args...) }

func (l *ZapLogger) Warn(args ...any)                 { l.sugar.Warn(args...) }
func (l *ZapLogger) Warnf(format string, args ...any) { l.sugar.Warnf(format, args...) }
func (l *ZapLogger) Warnln(args ...any)                { l.sugar.Warnln(args...) }

func (l *ZapLogger) Debug(args ...any)                 { l.sugar.Debug(args...) }
func (l *ZapLogger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *ZapLogger) Debugln(args ...any)                { l.sugar.Debugln(args...) }

func (l *ZapLogger) Fatal(args ...any)                 { l.sugar.Fatal(args...) }
func (l *ZapLogger) Fatalf(format string, args ...any) { l.sugar.Fatalf(format, args...) }
func (l *ZapLogger) Fatalln(args ...any)                { l.sugar.Fatalln(args...) }

// WithFields returns a new logger with the given key/value pairs attached
// to every subsequent entry. The receiver is left unchanged.
//
//nolint:ireturn
func (l *ZapLogger) WithFields(fields ...any) Logger {
	return &ZapLogger{sugar: l.sugar.With(fields...)}
}

func (l *ZapLogger) Sync() error { return l.sugar.Sync() }
