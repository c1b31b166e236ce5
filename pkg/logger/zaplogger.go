package logger

import "go.uber.org/zap"

type ZapLogger struct {
	log *zap.SugaredLogger
}

var zapLogger *ZapLogger

// NewLogger builds a logger from config and installs it as the package
// logger used by the top level helpers.
func NewLogger(config zap.Config, opts ...zap.Option) (*ZapLogger, error) {
	base, err := config.Build(opts...)
	if err != nil {
		return nil, err
	}
	SetLogger(base)
	return zapLogger, nil
}

// SetLogger replaces the package logger. Tests use it with zaptest/observer.
func SetLogger(base *zap.Logger) {
	zapLogger = &ZapLogger{log: base.WithOptions(zap.AddCallerSkip(2)).Sugar()}
}

func GetLogger() *ZapLogger {
	if zapLogger == nil {
		panic("logger not initialized")
	}
	return zapLogger
}

// With returns a child logger carrying the given key/value pairs. Its
// caller skip is one frame shorter since it is used directly.
func (l *ZapLogger) With(values ...any) *ZapLogger {
	return &ZapLogger{log: l.log.Desugar().WithOptions(zap.AddCallerSkip(-1)).Sugar().With(values...)}
}

func (l *ZapLogger) Panic(message string, values ...any) {
	l.log.Panicw(message, values...)
}

func (l *ZapLogger) Fatal(error error, values ...any) {
	l.log.Fatalw(error.Error(), values...)
}

func (l *ZapLogger) Info(message string, values ...any) {
	l.log.Infow(message, values...)
}

func (l *ZapLogger) Warn(message string, values ...any) {
	l.log.Warnw(message, values...)
}

func (l *ZapLogger) Error(message string, values ...any) {
	l.log.Errorw(message, values...)
}

func (l *ZapLogger) Debug(message string, values ...any) {
	l.log.Debugw(message, values...)
}

// Printf lets fasthttp use the logger for its own messages.
func (l *ZapLogger) Printf(format string, args ...any) {
	l.log.Infof(format, args...)
}
