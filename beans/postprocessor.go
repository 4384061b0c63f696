package beans

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gocrud/spring/logging"
)

// PostProcessor 在 Bean 初始化前后调用
// 返回的实例会替换当前实例；返回 nil 表示保持不变
type PostProcessor interface {
	PostProcessBeforeInitialization(bean any, name string) (any, error)
	PostProcessAfterInitialization(bean any, name string) (any, error)
}

// Ordered 处理器排序，值越小越先执行，未实现时为 0
type Ordered interface {
	Order() int
}

// InitializingBean 属性填充完成后回调
type InitializingBean interface {
	AfterPropertiesSet() error
}

// DisposableBean 单例销毁时回调
type DisposableBean interface {
	Destroy() error
}

func orderOf(p PostProcessor) int {
	if o, ok := p.(Ordered); ok {
		return o.Order()
	}
	return 0
}

// sortProcessors 按 Order 稳定排序
func sortProcessors(ps []PostProcessor) {
	slices.SortStableFunc(ps, func(a, b PostProcessor) int {
		return orderOf(a) - orderOf(b)
	})
}

type phase int

const (
	phaseBefore phase = iota
	phaseAfter
)

// applyProcessors 依次执行处理器链
func applyProcessors(ps []PostProcessor, ph phase, bean any, name string) (any, error) {
	current := bean
	for _, p := range ps {
		var (
			next any
			err  error
		)
		if ph == phaseBefore {
			next, err = p.PostProcessBeforeInitialization(current, name)
		} else {
			next, err = p.PostProcessAfterInitialization(current, name)
		}
		if err != nil {
			var ppe *PostProcessorError
			if errors.As(err, &ppe) {
				return nil, err
			}
			return nil, &PostProcessorError{
				Processor: fmt.Sprintf("%T", p),
				Bean:      name,
				Kind:      ProcessingFailed,
				Cause:     err,
			}
		}
		if next != nil {
			current = next
		}
	}
	return current, nil
}

// LoggingPostProcessor 只记录日志的处理器
type LoggingPostProcessor struct {
	logger logging.Logger
}

// NewLoggingPostProcessor 创建日志处理器
func NewLoggingPostProcessor(logger logging.Logger) *LoggingPostProcessor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LoggingPostProcessor{logger: logger.WithCategory("beans.PostProcessor")}
}

func (p *LoggingPostProcessor) PostProcessBeforeInitialization(bean any, name string) (any, error) {
	p.logger.Trace("Before initialization",
		logging.Field{Key: "bean", Value: name},
		logging.Field{Key: "type", Value: fmt.Sprintf("%T", bean)})
	return bean, nil
}

func (p *LoggingPostProcessor) PostProcessAfterInitialization(bean any, name string) (any, error) {
	p.logger.Trace("After initialization",
		logging.Field{Key: "bean", Value: name},
		logging.Field{Key: "type", Value: fmt.Sprintf("%T", bean)})
	return bean, nil
}

// Order 排在其它处理器之后
func (p *LoggingPostProcessor) Order() int {
	return 1 << 20
}
