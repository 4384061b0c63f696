package spring

import "github.com/gocrud/spring/core"

// NewApplicationBuilder 创建应用程序构建器
// 这是创建应用程序的入口点
func NewApplicationBuilder() *core.ApplicationBuilder {
	return core.NewApplicationBuilder()
}

// NewApplicationContext 创建独立的容器，不经过构建器
func NewApplicationContext(opts ...core.Option) *core.ApplicationContext {
	return core.NewApplicationContext(opts...)
}
