package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gocrud/spring/aop"
	"github.com/gocrud/spring/beans"
)

// Collector 容器指标
//
// 作为后置处理器统计 Bean 创建数量和初始化耗时，Observe 作为切面处理函数统计方法调用。
// 每个 Collector 使用自己的 prometheus.Registry，多个容器之间互不影响。
//
// BeansCreated 统计通过后置处理的创建次数，工厂之后拒绝或回滚的 Bean 也计入；
// Singletons 直接读取工厂缓存，反映当前已就绪的单例数量。
type Collector struct {
	registry    *prometheus.Registry
	definitions *beans.Registry

	BeansCreated      *prometheus.CounterVec
	InitDuration      prometheus.Histogram
	AdviceInvocations *prometheus.CounterVec
	Singletons        prometheus.GaugeFunc

	starts     sync.Map // bean name -> time.Time，同名的下一次创建会覆盖残留项
	singletons atomic.Pointer[func() int]
}

// NewCollector 创建 Collector，definitions 用于查询 Bean 作用域，可以为 nil
func NewCollector(namespace string, definitions *beans.Registry) *Collector {
	c := &Collector{
		registry:    prometheus.NewRegistry(),
		definitions: definitions,
		BeansCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "beans_created_total",
				Help:      "Total number of beans that passed the after-initialization callback",
			},
			[]string{"scope"},
		),
		InitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bean_initialization_seconds",
				Help:      "Time spent between before and after initialization callbacks",
				Buckets:   prometheus.DefBuckets,
			},
		),
		AdviceInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "advice_invocations_total",
				Help:      "Total number of advised method invocations",
			},
			[]string{"bean", "method"},
		),
	}
	c.Singletons = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "singletons",
			Help:      "Number of ready singleton beans held by the container",
		},
		func() float64 {
			if fn := c.singletons.Load(); fn != nil {
				return float64((*fn)())
			}
			return 0
		},
	)

	c.registry.MustRegister(
		c.BeansCreated,
		c.InitDuration,
		c.AdviceInvocations,
		c.Singletons,
	)
	return c
}

// Registry 返回 prometheus 注册表
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// TrackSingletons 设置 singletons 指标的数据来源
func (c *Collector) TrackSingletons(count func() int) {
	c.singletons.Store(&count)
}

// Observe 切面处理函数，记录一次方法调用
// 以 Before 注册，每次调用计数一次
func (c *Collector) Observe(jp aop.JoinPoint) {
	c.AdviceInvocations.WithLabelValues(jp.Bean, jp.Method).Inc()
}

func (c *Collector) PostProcessBeforeInitialization(bean any, name string) (any, error) {
	c.starts.Store(name, time.Now())
	return bean, nil
}

func (c *Collector) PostProcessAfterInitialization(bean any, name string) (any, error) {
	if v, ok := c.starts.LoadAndDelete(name); ok {
		c.InitDuration.Observe(time.Since(v.(time.Time)).Seconds())
	}

	scope := beans.ScopeSingleton
	if c.definitions != nil {
		if def, ok := c.definitions.Get(name); ok {
			scope = def.Scope
		}
	}
	c.BeansCreated.WithLabelValues(scope.String()).Inc()
	return bean, nil
}

// Order 最先执行
func (c *Collector) Order() int {
	return -1 << 20
}
