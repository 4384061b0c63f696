package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingBuilder 日志构建器
type LoggingBuilder struct {
	minimumLevel LogLevel
	encoding     string
	color        bool
	outputs      []string
	cores        []zapcore.Core
	mu           sync.RWMutex
}

// NewLoggingBuilder 创建日志构建器
func NewLoggingBuilder() *LoggingBuilder {
	return &LoggingBuilder{
		minimumLevel: LogLevelInfo,
		encoding:     "console",
	}
}

// SetMinimumLevel 设置最小日志级别
func (b *LoggingBuilder) SetMinimumLevel(level LogLevel) *LoggingBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.minimumLevel = level
	return b
}

// AddConsole 添加控制台输出（带颜色的级别）
func (b *LoggingBuilder) AddConsole() *LoggingBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.color = true
	b.outputs = append(b.outputs, "stdout")
	return b
}

// AddFile 添加文件输出
func (b *LoggingBuilder) AddFile(path string) *LoggingBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outputs = append(b.outputs, path)
	return b
}

// UseJSON 使用 JSON 编码代替控制台编码
func (b *LoggingBuilder) UseJSON() *LoggingBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.encoding = "json"
	b.color = false
	return b
}

// AddCore 追加一个自定义 zapcore.Core（例如测试中的 observer）
func (b *LoggingBuilder) AddCore(core zapcore.Core) *LoggingBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cores = append(b.cores, core)
	return b
}

// Build 构建日志工厂
func (b *LoggingBuilder) Build() (LoggerFactory, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	level := zap.NewAtomicLevelAt(b.minimumLevel.zapLevel())

	var cores []zapcore.Core
	if len(b.outputs) > 0 {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		if b.color {
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}

		cfg := zap.Config{
			Level:            level,
			Encoding:         b.encoding,
			EncoderConfig:    encCfg,
			OutputPaths:      b.outputs,
			ErrorOutputPaths: []string{"stderr"},
		}
		base, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("logging: failed to build zap logger: %w", err)
		}
		cores = append(cores, base.Core())
	}

	// 自定义 core 也受最小级别约束
	for _, c := range b.cores {
		cores = append(cores, &levelCore{Core: c, level: level})
	}

	var root *zap.Logger
	switch len(cores) {
	case 0:
		root = zap.NewNop()
	case 1:
		root = zap.New(cores[0])
	default:
		root = zap.New(zapcore.NewTee(cores...))
	}

	return &loggerFactory{root: root, level: level}, nil
}

// levelCore 用共享的 AtomicLevel 过滤外部 core
type levelCore struct {
	zapcore.Core
	level zap.AtomicLevel
}

func (c *levelCore) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l) && c.Core.Enabled(l)
}

func (c *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelCore{Core: c.Core.With(fields), level: c.level}
}

func (c *levelCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.level.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}
