package core

import "fmt"

// Extension 应用程序扩展的基础接口
// 扩展需要实现 BuilderConfigurator 或 ContextConfigurator（或两者都实现）
type Extension interface {
	// Name 返回扩展名称，用于日志
	Name() string
}

// BuilderConfigurator 在 AddExtension 时立即配置构建器
// 用于添加属性源、Definition、切面等
type BuilderConfigurator interface {
	ConfigureBuilder(b *ApplicationBuilder)
}

// ContextConfigurator 在容器创建后、Refresh 之前执行
// 用于注册后置处理器、手动单例等
type ContextConfigurator interface {
	ConfigureContext(c *ApplicationContext) error
}

// validateExtension 未实现任何支持的接口时 panic
func validateExtension(ext Extension) {
	_, isBuilderConfigurator := ext.(BuilderConfigurator)
	_, isContextConfigurator := ext.(ContextConfigurator)

	if !isBuilderConfigurator && !isContextConfigurator {
		panic(fmt.Sprintf("core: Extension '%s' does not implement any supported interfaces (BuilderConfigurator, ContextConfigurator). \n"+
			"Check if your method signatures exactly match the interface definitions.", ext.Name()))
	}
}
