package core

import (
	"github.com/gocrud/spring/aop"
	"github.com/gocrud/spring/beans"
	"github.com/gocrud/spring/config"
	"github.com/gocrud/spring/logging"
)

// Option 配置 ApplicationContext
type Option func(*contextOptions)

type contextOptions struct {
	logger     logging.Logger
	env        *config.Environment
	advice     *aop.Registry
	registry   *beans.Registry
	processors []beans.PostProcessor
	listeners  []Listener
}

// WithLogger 设置日志
func WithLogger(logger logging.Logger) Option {
	return func(o *contextOptions) {
		o.logger = logger
	}
}

// WithEnvironment 使用已构建好的 Environment
func WithEnvironment(env *config.Environment) Option {
	return func(o *contextOptions) {
		o.env = env
	}
}

// WithAdviceRegistry 使用外部创建的切面注册表
func WithAdviceRegistry(advice *aop.Registry) Option {
	return func(o *contextOptions) {
		o.advice = advice
	}
}

// WithRegistry 使用已填充的 Definition 注册表
func WithRegistry(registry *beans.Registry) Option {
	return func(o *contextOptions) {
		o.registry = registry
	}
}

// WithPostProcessors 添加后置处理器
func WithPostProcessors(processors ...beans.PostProcessor) Option {
	return func(o *contextOptions) {
		o.processors = append(o.processors, processors...)
	}
}

// WithListeners 添加事件监听器
func WithListeners(listeners ...Listener) Option {
	return func(o *contextOptions) {
		o.listeners = append(o.listeners, listeners...)
	}
}
