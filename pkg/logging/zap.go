package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger implements Logger on top of uber-go/zap for production use.
type ZapLogger struct {
	logger *zap.Logger
	fields []Field
}

// ZapOption configures NewZapLogger.
type ZapOption func(*zapOptions)

type zapOptions struct {
	development bool
	level       *zapcore.Level
	outputPaths []string
}

// WithDevelopmentMode switches to zap's human-readable development config.
func WithDevelopmentMode() ZapOption {
	return func(o *zapOptions) { o.development = true }
}

// WithLogLevel sets the minimum level.
func WithLogLevel(level Level) ZapOption {
	return func(o *zapOptions) {
		var zl zapcore.Level
		switch level {
		case DEBUG:
			zl = zapcore.DebugLevel
		case WARN:
			zl = zapcore.WarnLevel
		case ERROR:
			zl = zapcore.ErrorLevel
		default:
			zl = zapcore.InfoLevel
		}
		o.level = &zl
	}
}

// WithOutputPaths overrides where log entries are written.
func WithOutputPaths(paths ...string) ZapOption {
	return func(o *zapOptions) { o.outputPaths = paths }
}

// NewZapLogger builds a zap-backed Logger. On configuration failure it
// falls back to the default JSON logger rather than returning an error.
func NewZapLogger(options ...ZapOption) Logger {
	opts := &zapOptions{outputPaths: []string{"stdout"}}
	for _, opt := range options {
		opt(opts)
	}

	config := zap.NewProductionConfig()
	if opts.development {
		config = zap.NewDevelopmentConfig()
	}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = opts.outputPaths
	if opts.level != nil {
		config.Level = zap.NewAtomicLevelAt(*opts.level)
	}

	logger, err := config.Build(
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return NewLogger()
	}

	return &ZapLogger{logger: logger}
}

func (l *ZapLogger) Debug(msg string, fields ...Field) { l.write(zapcore.DebugLevel, msg, fields) }
func (l *ZapLogger) Info(msg string, fields ...Field)  { l.write(zapcore.InfoLevel, msg, fields) }
func (l *ZapLogger) Warn(msg string, fields ...Field)  { l.write(zapcore.WarnLevel, msg, fields) }
func (l *ZapLogger) Error(msg string, fields ...Field) { l.write(zapcore.ErrorLevel, msg, fields) }

func (l *ZapLogger) write(level zapcore.Level, msg string, fields []Field) {
	if ce := l.logger.Check(level, msg); ce != nil {
		ce.Write(l.convertFields(fields)...)
	}
}

func (l *ZapLogger) WithFields(fields ...Field) Logger {
	child := *l
	child.fields = append(append([]Field{}, l.fields...), fields...)
	return &child
}

// SetLevel is not supported after construction; use WithLogLevel instead.
func (l *ZapLogger) SetLevel(level Level) {}

// SetOutput rebuilds the core around the given writer, keeping the level.
func (l *ZapLogger) SetOutput(w io.Writer) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	atom := zap.NewAtomicLevel()
	atom.SetLevel(l.logger.Level())

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(w), atom)
	l.logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

func (l *ZapLogger) convertFields(fields []Field) []zap.Field {
	all := make([]zap.Field, 0, len(l.fields)+len(fields))
	for _, f := range l.fields {
		all = append(all, zap.Any(f.Key, f.Value))
	}
	for _, f := range fields {
		all = append(all, zap.Any(f.Key, f.Value))
	}
	return all
}
