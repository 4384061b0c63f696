package aop

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gocrud/spring/logging"
)

// Config AOP 配置
type Config struct {
	// Debug 为 true 时记录每次触发的通知以及被增强的 Bean
	Debug bool
}

// Option 配置 Registry
type Option func(*Registry)

// WithDebug 开启调试日志
func WithDebug(debug bool) Option {
	return func(r *Registry) {
		r.config.Debug = debug
	}
}

// WithConfig 使用完整配置
func WithConfig(cfg Config) Option {
	return func(r *Registry) {
		r.config = cfg
	}
}

// WithLogger 设置日志
func WithLogger(logger logging.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Registry 保存 Advisor 并负责触发
//
// 只追加，触发顺序即注册顺序。触发时先在锁内取快照，处理函数在锁外执行，
// 因此处理函数内可以继续注册新的 Advisor（下次触发才生效）。
type Registry struct {
	mu       sync.RWMutex
	advisors []Advisor
	config   Config
	logger   logging.Logger
}

// NewRegistry 创建 Registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithCategory("aop.Registry")
	return r
}

// Config 返回配置
func (r *Registry) Config() Config {
	return r.config
}

// Register 追加 Advisor
func (r *Registry) Register(advisor Advisor) {
	if advisor.Advice.Handler == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advisors = append(r.advisors, advisor)
}

// RegisterBefore 注册 Before 通知
func (r *Registry) RegisterBefore(expr string, handler Handler) error {
	return r.register(expr, Before, handler)
}

// RegisterAfter 注册 After 通知
func (r *Registry) RegisterAfter(expr string, handler Handler) error {
	return r.register(expr, After, handler)
}

// RegisterAround 注册 Around 通知，调用前后各触发一次
func (r *Registry) RegisterAround(expr string, handler Handler) error {
	return r.register(expr, Around, handler)
}

func (r *Registry) register(expr string, kind AdviceKind, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("aop: nil handler for %s", expr)
	}
	pc, err := ParsePointcut(expr)
	if err != nil {
		return err
	}
	r.Register(NewAdvisor(pc, kind, handler))
	return nil
}

// Load 批量加载切面声明，任一表达式错误时不注册任何一项
func (r *Registry) Load(registrations ...AspectRegistration) error {
	advisors := make([]Advisor, 0, len(registrations))
	for _, reg := range registrations {
		if reg.Handler == nil {
			return fmt.Errorf("aop: nil handler for %s", reg.Pointcut)
		}
		pc, err := ParsePointcut(reg.Pointcut)
		if err != nil {
			return err
		}
		advisors = append(advisors, NewAdvisor(pc, reg.Kind, reg.Handler))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.advisors = append(r.advisors, advisors...)
	return nil
}

// FireBefore 触发匹配的 Before 和 Around 通知
func (r *Registry) FireBefore(bean, method string) {
	r.fire(bean, method, AdviceKind.firesBefore)
}

// FireAfter 触发匹配的 After 和 Around 通知
func (r *Registry) FireAfter(bean, method string) {
	r.fire(bean, method, AdviceKind.firesAfter)
}

func (r *Registry) fire(bean, method string, accept func(AdviceKind) bool) {
	r.mu.RLock()
	var matched []Advisor
	for _, a := range r.advisors {
		if accept(a.Advice.Kind) && a.Pointcut.Matches(bean, method) {
			matched = append(matched, a)
		}
	}
	r.mu.RUnlock()

	jp := JoinPoint{Bean: bean, Method: method}
	for _, a := range matched {
		if r.config.Debug {
			r.logger.Debug("Firing advice",
				logging.Field{Key: "joinPoint", Value: jp.String()},
				logging.Field{Key: "kind", Value: a.Advice.Kind.String()})
		}
		a.Advice.Handler(jp)
	}
}

// Invoke 在 fn 前后触发通知，fn 失败时仍触发 After
func (r *Registry) Invoke(bean, method string, fn func() error) error {
	r.FireBefore(bean, method)
	defer r.FireAfter(bean, method)
	return fn()
}

// HasAdvisorsFor 是否有切点指向该 Bean
func (r *Registry) HasAdvisorsFor(bean string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.ContainsFunc(r.advisors, func(a Advisor) bool {
		return a.Pointcut.Bean == bean
	})
}

// Advisors 返回快照
func (r *Registry) Advisors() []Advisor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.advisors)
}

// Len Advisor 数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.advisors)
}
