package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel 日志级别
type LogLevel int

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// String 返回日志级别的字符串表示
func (l LogLevel) String() string {
	switch l {
	case LogLevelTrace:
		return "TRACE"
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// zapLevel 映射到 zap 的级别，zap 没有 trace，归入 debug
func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LogLevelTrace, LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// Field 日志字段
type Field struct {
	Key   string
	Value any
}

// Logger 日志接口
type Logger interface {
	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Log(level LogLevel, msg string, fields ...Field)
	WithFields(fields ...Field) Logger
	WithCategory(category string) Logger
}

// LoggerFactory 日志工厂接口
type LoggerFactory interface {
	CreateLogger(category string) Logger
	SetMinimumLevel(level LogLevel)
	// Sync 刷新底层缓冲
	Sync() error
}

// loggerFactory 基于 zap 的日志工厂
type loggerFactory struct {
	root  *zap.Logger
	level zap.AtomicLevel
}

func (f *loggerFactory) CreateLogger(category string) Logger {
	return &zapLogger{root: f.root, category: category, z: named(f.root, category)}
}

func (f *loggerFactory) SetMinimumLevel(level LogLevel) {
	f.level.SetLevel(level.zapLevel())
}

func (f *loggerFactory) Sync() error {
	return f.root.Sync()
}

// zapLogger Logger 的 zap 实现
type zapLogger struct {
	root     *zap.Logger
	z        *zap.Logger
	category string
	fields   []Field
}

func named(root *zap.Logger, category string) *zap.Logger {
	if category == "" {
		return root
	}
	return root.Named(category)
}

func (l *zapLogger) Trace(msg string, fields ...Field) {
	l.Log(LogLevelTrace, msg, fields...)
}

func (l *zapLogger) Debug(msg string, fields ...Field) {
	l.Log(LogLevelDebug, msg, fields...)
}

func (l *zapLogger) Info(msg string, fields ...Field) {
	l.Log(LogLevelInfo, msg, fields...)
}

func (l *zapLogger) Warn(msg string, fields ...Field) {
	l.Log(LogLevelWarn, msg, fields...)
}

func (l *zapLogger) Error(msg string, fields ...Field) {
	l.Log(LogLevelError, msg, fields...)
}

func (l *zapLogger) Log(level LogLevel, msg string, fields ...Field) {
	ce := l.z.Check(level.zapLevel(), msg)
	if ce == nil {
		return
	}
	ce.Write(toZapFields(fields)...)
}

func (l *zapLogger) WithFields(fields ...Field) Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &zapLogger{
		root:     l.root,
		z:        named(l.root, l.category).With(toZapFields(merged)...),
		category: l.category,
		fields:   merged,
	}
}

func (l *zapLogger) WithCategory(category string) Logger {
	return &zapLogger{
		root:     l.root,
		z:        named(l.root, category).With(toZapFields(l.fields)...),
		category: category,
		fields:   l.fields,
	}
}

func toZapFields(fields []Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			out = append(out, zap.NamedError(f.Key, err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
