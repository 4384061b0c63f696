package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gocrud/spring/aop"
	"github.com/gocrud/spring/beans"
	"github.com/gocrud/spring/config"
	"github.com/gocrud/spring/logging"
)

// ApplicationContext 组合 Definition 注册表、Bean 工厂和后置处理器链
//
// 状态机 Unrefreshed → Refreshing → Active → Closed。Refresh 只能执行一次，
// 关闭后不能再创建 Bean。
type ApplicationContext struct {
	id        string
	startedAt time.Time

	registry *beans.Registry
	factory  *beans.Factory
	env      *config.Environment
	advice   *aop.Registry
	logger   logging.Logger
	events   *multicaster

	mu      sync.Mutex
	state   State
	running []lifecycleBean
}

// NewApplicationContext 创建容器
func NewApplicationContext(opts ...Option) *ApplicationContext {
	o := &contextOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.env == nil {
		o.env = config.NewEnvironment()
	}
	if o.registry == nil {
		o.registry = beans.NewRegistry()
	}
	if o.advice == nil {
		o.advice = aop.NewRegistry(aop.WithLogger(o.logger))
	}

	logger := o.logger.WithCategory("core.ApplicationContext")
	c := &ApplicationContext{
		id:        uuid.NewString(),
		startedAt: time.Now(),
		registry:  o.registry,
		factory:   beans.NewFactory(o.registry, o.env, o.logger),
		env:       o.env,
		advice:    o.advice,
		logger:    logger,
		events:    &multicaster{logger: logger},
	}

	c.factory.AddPostProcessor(aop.NewPostProcessor(o.advice))
	for _, p := range o.processors {
		c.factory.AddPostProcessor(p)
	}
	for _, l := range o.listeners {
		c.events.add(l)
	}
	return c
}

// ID 容器唯一标识
func (c *ApplicationContext) ID() string {
	return c.id
}

// StartupDate 容器创建时间
func (c *ApplicationContext) StartupDate() time.Time {
	return c.startedAt
}

// State 当前状态
func (c *ApplicationContext) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsActive 仅在 Active 状态返回 true
func (c *ApplicationContext) IsActive() bool {
	return c.State() == StateActive
}

// Environment 属性环境
func (c *ApplicationContext) Environment() *config.Environment {
	return c.env
}

// Advice 切面注册表
func (c *ApplicationContext) Advice() *aop.Registry {
	return c.advice
}

// BeanFactory 底层 Bean 工厂
func (c *ApplicationContext) BeanFactory() *beans.Factory {
	return c.factory
}

// Registry Definition 注册表
func (c *ApplicationContext) Registry() *beans.Registry {
	return c.registry
}

// Logger 容器日志
func (c *ApplicationContext) Logger() logging.Logger {
	return c.logger
}

// RegisterDefinition 注册 Definition，同名覆盖
func (c *ApplicationContext) RegisterDefinition(def *beans.Definition) error {
	if def == nil {
		return errors.New("core: definition must not be nil")
	}
	if c.State() == StateClosed {
		return ErrContextClosed
	}
	return c.registry.Register(def.Name, def)
}

// RemoveDefinition 移除 Definition，已创建的单例不受影响
func (c *ApplicationContext) RemoveDefinition(name string) bool {
	return c.registry.Remove(name)
}

// AddPostProcessor 添加后置处理器，只影响之后创建的 Bean
func (c *ApplicationContext) AddPostProcessor(p beans.PostProcessor) {
	c.factory.AddPostProcessor(p)
}

// AddListener 注册事件监听器
func (c *ApplicationContext) AddListener(l Listener) {
	c.events.add(l)
}

// Publish 同步发布事件
func (c *ApplicationContext) Publish(event Event) {
	c.events.publish(event)
}

// Refresh 按注册顺序创建所有非延迟单例
//
// 单个 Bean 创建失败只记录下来，不影响其它独立的 Bean，最后容器仍然进入 Active，
// 返回值为所有失败的合并错误。
func (c *ApplicationContext) Refresh() error {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return ErrContextClosed
	case StateRefreshing, StateActive:
		c.mu.Unlock()
		return ErrAlreadyRefreshed
	}
	c.state = StateRefreshing
	c.mu.Unlock()

	start := time.Now()
	names := c.registry.Names()
	c.logger.Info("Refreshing application context",
		logging.Field{Key: "id", Value: c.id},
		logging.Field{Key: "definitions", Value: len(names)})

	var (
		errs   []error
		failed []string
	)
	for _, name := range names {
		def, ok := c.registry.Get(name)
		if !ok || def.Lazy || !def.IsSingleton() {
			continue
		}
		if _, err := c.factory.GetOrCreate(name); err != nil {
			c.logger.Error("Failed to create bean",
				logging.Field{Key: "bean", Value: name},
				logging.Field{Key: "error", Value: err.Error()})
			errs = append(errs, err)
			failed = append(failed, name)
			continue
		}
		c.logger.Debug("Bean created", logging.Field{Key: "bean", Value: name})
	}

	for _, name := range c.factory.SingletonNames() {
		if bean, ok := c.factory.GetBean(name); ok {
			if l, ok := bean.(Listener); ok {
				c.events.add(l)
			}
		}
	}

	c.mu.Lock()
	// Refresh 期间可能已被 Close
	if c.state == StateRefreshing {
		c.state = StateActive
	}
	c.mu.Unlock()

	c.logger.Info("Application context refreshed",
		logging.Field{Key: "singletons", Value: len(c.factory.SingletonNames())},
		logging.Field{Key: "failed", Value: len(failed)},
		logging.Field{Key: "elapsed", Value: time.Since(start).String()})

	c.Publish(ContextRefreshedEvent{Context: c, Failed: failed})
	return errors.Join(errs...)
}

// GetBean 只读查找已创建的单例（包括提前暴露的），不触发创建
func (c *ApplicationContext) GetBean(name string) (any, bool) {
	return c.factory.GetBean(name)
}

// DoCreateBean 获取或创建 Bean，延迟单例和原型通过它实例化
func (c *ApplicationContext) DoCreateBean(name string) (any, error) {
	if c.State() == StateClosed {
		return nil, ErrContextClosed
	}
	return c.factory.GetOrCreate(name)
}

// ContainsBean 存在 Definition 或已注册的单例
func (c *ApplicationContext) ContainsBean(name string) bool {
	return c.factory.ContainsBean(name)
}

// IsSingleton 是否为单例
func (c *ApplicationContext) IsSingleton(name string) bool {
	return c.factory.IsSingleton(name)
}

// Start 按创建顺序启动所有 Lifecycle 单例
func (c *ApplicationContext) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return ErrNotActive
	}
	if c.running != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	started, err := startAll(ctx, c.logger, c.lifecycleBeans())
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.running = started
	c.mu.Unlock()

	c.Publish(ContextStartedEvent{Context: c})
	return nil
}

// Stop 逆序停止已启动的 Lifecycle 单例
func (c *ApplicationContext) Stop(ctx context.Context) error {
	c.mu.Lock()
	running := c.running
	c.running = nil
	c.mu.Unlock()

	if running == nil {
		return nil
	}
	err := stopAll(ctx, c.logger, running)
	c.Publish(ContextStoppedEvent{Context: c})
	return err
}

// IsRunning 是否已调用 Start 且尚未 Stop
func (c *ApplicationContext) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running != nil
}

// Close 停止 Lifecycle Bean，发布关闭事件并逆序销毁所有单例
// 任意状态都可以关闭，重复调用无效果
func (c *ApplicationContext) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	c.mu.Unlock()

	c.logger.Info("Closing application context", logging.Field{Key: "id", Value: c.id})

	var errs []error
	if err := c.Stop(context.Background()); err != nil {
		errs = append(errs, err)
	}
	c.Publish(ContextClosedEvent{Context: c})
	if err := c.factory.DestroySingletons(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// environmentChanged 属性重新加载后通知监听器
func (c *ApplicationContext) environmentChanged(env *config.Environment) {
	c.logger.Info("Environment reloaded", logging.Field{Key: "properties", Value: len(env.Keys())})
	c.Publish(EnvironmentChangedEvent{Environment: env, At: time.Now()})
}

func (c *ApplicationContext) lifecycleBeans() []lifecycleBean {
	var result []lifecycleBean
	for _, name := range c.factory.SingletonNames() {
		bean, ok := c.factory.GetBean(name)
		if !ok {
			continue
		}
		if l, ok := bean.(Lifecycle); ok {
			result = append(result, lifecycleBean{name: name, bean: l})
		}
	}
	return result
}

func (c *ApplicationContext) String() string {
	return fmt.Sprintf("ApplicationContext[%s, %s]", c.id, c.State())
}
