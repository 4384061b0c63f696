package metrics

import (
	"github.com/gocrud/spring/core"
)

// DefaultBeanName Collector 单例名称
const DefaultBeanName = "metricsCollector"

// Extension 为应用程序注册 Collector
// pointcuts 中的每个 "bean::method" 都会以 Before 通知统计调用次数
type Extension struct {
	namespace string
	pointcuts []string
	collector *Collector
}

// NewExtension 创建指标扩展
func NewExtension(namespace string, pointcuts ...string) *Extension {
	return &Extension{namespace: namespace, pointcuts: pointcuts}
}

func (e *Extension) Name() string {
	return "metrics"
}

// Collector 返回 ConfigureContext 创建的 Collector
func (e *Extension) Collector() *Collector {
	return e.collector
}

// ConfigureContext 注册后置处理器、切面以及 Collector 单例
func (e *Extension) ConfigureContext(c *core.ApplicationContext) error {
	collector := NewCollector(e.namespace, c.Registry())
	collector.TrackSingletons(func() int { return len(c.BeanFactory().SingletonNames()) })
	for _, pc := range e.pointcuts {
		if err := c.Advice().RegisterBefore(pc, collector.Observe); err != nil {
			return err
		}
	}
	c.AddPostProcessor(collector)
	if err := c.BeanFactory().RegisterSingleton(DefaultBeanName, collector); err != nil {
		return err
	}
	e.collector = collector
	return nil
}
