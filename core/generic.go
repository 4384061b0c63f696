package core

import (
	"github.com/gocrud/spring/beans"
	"github.com/gocrud/spring/config"
)

// GetBean 查找已创建的单例并转换为 T，未创建或类型不符时返回 false
func GetBean[T any](c *ApplicationContext, name string) (T, bool) {
	var zero T
	bean, ok := c.GetBean(name)
	if !ok {
		return zero, false
	}
	t, ok := bean.(T)
	return t, ok
}

// DoCreateBean 获取或创建 Bean 并转换为 T
func DoCreateBean[T any](c *ApplicationContext, name string) (T, error) {
	if c.State() == StateClosed {
		var zero T
		return zero, ErrContextClosed
	}
	return beans.Get[T](c.factory, name)
}

// ConfigurationProperties 生成把 prefix 下的属性绑定到 *T 的单例 Definition
// 绑定后按 validate tag 校验
//
//	type ServerProperties struct {
//		Port int    `prop:"port" validate:"min=1,max=65535"`
//		Host string `prop:"host" validate:"required"`
//	}
//	def := core.ConfigurationProperties[ServerProperties]("serverProperties", "server")
func ConfigurationProperties[T any](name, prefix string, opts ...beans.Option) *beans.Definition {
	return beans.Define(name, func(_ beans.Dependencies, env *config.Environment) (*T, error) {
		target := new(T)
		if err := config.Bind(env, prefix, target); err != nil {
			return nil, err
		}
		return target, nil
	}, opts...)
}
