package scheduling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gocrud/spring/aop"
	"github.com/gocrud/spring/logging"
)

// Options 调度器配置
type Options struct {
	// Location 时区，默认 UTC
	Location string
	// EnableSeconds 启用秒级表达式（六段）
	EnableSeconds bool
	// EnableCronLogger 输出 cron 库内部的调度日志
	EnableCronLogger bool
	// Logger 日志
	Logger logging.Logger
}

// Option 配置调度器
type Option func(*Options)

// WithSeconds 启用秒级精度
func WithSeconds() Option {
	return func(o *Options) {
		o.EnableSeconds = true
	}
}

// WithLocation 设置时区
func WithLocation(location string) Option {
	return func(o *Options) {
		o.Location = location
	}
}

// EnableCronLogger 启用 cron 库的内部调度日志
func EnableCronLogger() Option {
	return func(o *Options) {
		o.EnableCronLogger = true
	}
}

// WithLogger 设置日志
func WithLogger(logger logging.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// Scheduler 按 cron 表达式调用 Bean 方法
//
// 每次执行都经过 aop.Registry.Invoke，匹配 "bean::method" 的切面会在执行前后触发。
// 实现 Start/Stop/IsRunning，容器启动时自动运行。
type Scheduler struct {
	cron   *cron.Cron
	advice *aop.Registry
	logger logging.Logger

	mu      sync.RWMutex
	jobs    map[string]cron.EntryID
	running bool
}

// NewScheduler 创建调度器，advice 为 nil 时使用空的切面注册表
func NewScheduler(advice *aop.Registry, opts ...Option) (*Scheduler, error) {
	o := &Options{
		Location: "UTC",
		Logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if advice == nil {
		advice = aop.NewRegistry()
	}

	loc, err := time.LoadLocation(o.Location)
	if err != nil {
		return nil, fmt.Errorf("scheduling: invalid location %q: %w", o.Location, err)
	}

	logger := o.Logger.WithCategory("scheduling.Scheduler")
	cronOpts := []cron.Option{
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(newCronLogger(logger))),
	}
	if o.EnableCronLogger {
		cronOpts = append(cronOpts, cron.WithLogger(newCronLogger(logger)))
	}
	if o.EnableSeconds {
		cronOpts = append(cronOpts, cron.WithSeconds())
	}

	return &Scheduler{
		cron:   cron.New(cronOpts...),
		advice: advice,
		logger: logger,
		jobs:   make(map[string]cron.EntryID),
	}, nil
}

// Schedule 为 bean 注册任务
func (s *Scheduler) Schedule(task Task, bean any) error {
	if err := task.validate(); err != nil {
		return err
	}
	name := task.name()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("scheduling: task %s already scheduled", name)
	}

	id, err := s.cron.AddFunc(task.Spec, func() {
		_ = s.run(task, bean)
	})
	if err != nil {
		return fmt.Errorf("scheduling: failed to add task '%s': %w", name, err)
	}
	s.jobs[name] = id
	s.logger.Info(fmt.Sprintf("Task '%s' registered with spec '%s'", name, task.Spec))
	return nil
}

// Unschedule 移除任务
func (s *Scheduler) Unschedule(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, exists := s.jobs[name]
	if !exists {
		return false
	}
	s.cron.Remove(id)
	delete(s.jobs, name)
	s.logger.Info(fmt.Sprintf("Task '%s' removed", name))
	return true
}

// Tasks 已注册的任务名称
func (s *Scheduler) Tasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// Next 任务下一次执行时间
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.RLock()
	id, exists := s.jobs[name]
	s.mu.RUnlock()
	if !exists {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

func (s *Scheduler) run(task Task, bean any) error {
	name := task.name()
	s.logger.Debug(fmt.Sprintf("Task '%s' started", name))

	err := s.advice.Invoke(task.Bean, task.Method, func() error {
		return task.Run(bean)
	})
	if err != nil {
		s.logger.Error(fmt.Sprintf("Task '%s' failed", name),
			logging.Field{Key: "error", Value: err.Error()})
		return err
	}
	s.logger.Debug(fmt.Sprintf("Task '%s' completed", name))
	return nil
}

// Start 启动调度，不阻塞
func (s *Scheduler) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.logger.Info(fmt.Sprintf("Scheduler starting with %d tasks", len(s.jobs)))
	s.cron.Start()
	s.running = true
	return nil
}

// Stop 停止调度并等待正在执行的任务结束，ctx 超时则提前返回
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Scheduler stopping")
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning 是否正在调度
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// cronLogger 把 cron.Logger 适配到 logging.Logger
type cronLogger struct {
	logger logging.Logger
}

func newCronLogger(logger logging.Logger) cron.Logger {
	return &cronLogger{logger: logger}
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, convertToFields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := convertToFields(keysAndValues)
	fields = append(fields, logging.Field{Key: "error", Value: err.Error()})
	l.logger.Error(msg, fields...)
}

func convertToFields(keysAndValues []any) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Field{Key: fmt.Sprintf("%v", keysAndValues[i]), Value: keysAndValues[i+1]})
	}
	return fields
}
