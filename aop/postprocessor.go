package aop

import (
	"fmt"

	"github.com/gocrud/spring/logging"
)

// AdvisedBeanPostProcessor 在调试模式下记录哪些 Bean 有切面
// 不创建代理，Bean 的方法需要自己调用 Registry
type AdvisedBeanPostProcessor struct {
	registry *Registry
	logger   logging.Logger
}

// NewPostProcessor 创建处理器
func NewPostProcessor(registry *Registry) *AdvisedBeanPostProcessor {
	return &AdvisedBeanPostProcessor{
		registry: registry,
		logger:   registry.logger,
	}
}

func (p *AdvisedBeanPostProcessor) PostProcessBeforeInitialization(bean any, _ string) (any, error) {
	return bean, nil
}

func (p *AdvisedBeanPostProcessor) PostProcessAfterInitialization(bean any, name string) (any, error) {
	if p.registry.Config().Debug && p.registry.HasAdvisorsFor(name) {
		p.logger.Debug("Bean has advisors",
			logging.Field{Key: "bean", Value: name},
			logging.Field{Key: "type", Value: fmt.Sprintf("%T", bean)})
	}
	return bean, nil
}
