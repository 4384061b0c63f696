package scheduling

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gocrud/spring/aop"
	"github.com/gocrud/spring/beans"
	"github.com/gocrud/spring/config"
	"github.com/gocrud/spring/core"
)

// DefaultBeanName 调度器单例的默认名称
const DefaultBeanName = "taskScheduler"

// Task 一个定时执行的 Bean 方法
//
//	scheduling.Task{
//		Spec:   "@every 1m",
//		Bean:   "reportService",
//		Method: "generate",
//		Run:    func(bean any) error { return bean.(*ReportService).Generate() },
//	}
type Task struct {
	// Name 任务名称，缺省为 Bean::Method
	Name string
	// Spec cron 表达式，支持 @every 1m 这类描述符
	Spec string
	// Bean 执行任务的 Bean 名称
	Bean string
	// Method 方法名，用于匹配切面
	Method string
	// Run 执行任务，参数为 Bean 实例
	Run func(bean any) error
}

func (t Task) name() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Bean + "::" + t.Method
}

func (t Task) validate() error {
	switch {
	case t.Spec == "":
		return fmt.Errorf("scheduling: task %s has no spec", t.name())
	case t.Bean == "" || t.Method == "":
		return errors.New("scheduling: task requires both bean and method")
	case t.Run == nil:
		return fmt.Errorf("scheduling: task %s has no run function", t.name())
	}
	return nil
}

// Definition 生成调度器单例的 Definition
// 依赖所有任务的 Bean，这些 Bean 先于调度器创建
func Definition(name string, advice *aop.Registry, tasks []Task, opts ...Option) *beans.Definition {
	var deps []string
	for _, t := range tasks {
		if t.Bean != "" && !slices.Contains(deps, t.Bean) {
			deps = append(deps, t.Bean)
		}
	}

	return beans.Define(name, func(resolved beans.Dependencies, _ *config.Environment) (*Scheduler, error) {
		s, err := NewScheduler(advice, opts...)
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			if err := s.Schedule(t, resolved[t.Bean]); err != nil {
				return nil, err
			}
		}
		return s, nil
	}, beans.WithDependsOn(deps...), beans.WithDescription("cron task scheduler"))
}

// Extension 把调度器注册到应用程序
type Extension struct {
	beanName string
	tasks    []Task
	opts     []Option
}

// NewExtension 创建调度扩展
func NewExtension(tasks ...Task) *Extension {
	return &Extension{beanName: DefaultBeanName, tasks: tasks}
}

// WithBeanName 修改调度器的 Bean 名称
func (e *Extension) WithBeanName(name string) *Extension {
	e.beanName = name
	return e
}

// WithOptions 追加调度器配置
func (e *Extension) WithOptions(opts ...Option) *Extension {
	e.opts = append(e.opts, opts...)
	return e
}

func (e *Extension) Name() string {
	return "scheduling"
}

// ConfigureContext 使用容器的切面注册表和日志注册调度器
func (e *Extension) ConfigureContext(c *core.ApplicationContext) error {
	opts := append([]Option{WithLogger(c.Logger())}, e.opts...)
	return c.RegisterDefinition(Definition(e.beanName, c.Advice(), e.tasks, opts...))
}
