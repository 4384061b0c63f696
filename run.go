package spring

import (
	"context"

	"github.com/gocrud/spring/core"
)

// Run 构建并运行应用程序，阻塞直到收到退出信号
//
//	err := spring.Run(func(b *core.ApplicationBuilder) {
//		b.AddApplicationProperties("config").
//			AddDefinitions(beans.Component[UserService]())
//	})
func Run(configure ...func(*core.ApplicationBuilder)) error {
	return RunContext(context.Background(), configure...)
}

// RunContext 同 Run，ctx 取消时退出
func RunContext(ctx context.Context, configure ...func(*core.ApplicationBuilder)) error {
	builder := core.NewApplicationBuilder()
	for _, fn := range configure {
		fn(builder)
	}
	app, err := builder.Build()
	if err != nil {
		return err
	}
	return app.Run(ctx)
}
