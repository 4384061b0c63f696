package logging

import "go.uber.org/zap"

// NewLogger 创建一个默认的控制台 Logger
func NewLogger() Logger {
	factory, err := NewLoggingBuilder().AddConsole().Build()
	if err != nil {
		return NewNop()
	}
	return factory.CreateLogger("default")
}

// NewNop 创建一个丢弃所有输出的 Logger
func NewNop() Logger {
	return NewZap(zap.NewNop())
}

// NewZap 用已有的 *zap.Logger 创建 Logger
func NewZap(z *zap.Logger) Logger {
	return &zapLogger{root: z, z: z}
}
