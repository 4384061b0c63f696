package beans

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrBeanNotFound 没有对应名称的 Definition
	ErrBeanNotFound = errors.New("beans: bean not found")
	// ErrCircularReference 单例正在创建且没有可提前暴露的引用
	ErrCircularReference = errors.New("beans: circular reference")
)

// BeanCreationError Bean 创建失败
type BeanCreationError struct {
	Bean  string
	Cause error
}

func (e *BeanCreationError) Error() string {
	return fmt.Sprintf("beans: error creating bean %q: %v", e.Bean, e.Cause)
}

func (e *BeanCreationError) Unwrap() error {
	return e.Cause
}

// TypeMismatchError 实例类型与期望不符
type TypeMismatchError struct {
	Bean     string
	Expected reflect.Type
	Actual   reflect.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("beans: bean %q is %v, expected %v", e.Bean, e.Actual, e.Expected)
}

// ProcessorErrorKind 后置处理器错误类别
type ProcessorErrorKind int

const (
	ProcessingFailed ProcessorErrorKind = iota
	TypeCastFailed
	OtherFailure
)

func (k ProcessorErrorKind) String() string {
	switch k {
	case ProcessingFailed:
		return "processing failed"
	case TypeCastFailed:
		return "type cast failed"
	default:
		return "other"
	}
}

// PostProcessorError 后置处理器返回的错误
type PostProcessorError struct {
	Processor string
	Bean      string
	Kind      ProcessorErrorKind
	Cause     error
}

func (e *PostProcessorError) Error() string {
	return fmt.Sprintf("beans: post-processor %s on bean %q: %s: %v", e.Processor, e.Bean, e.Kind, e.Cause)
}

func (e *PostProcessorError) Unwrap() error {
	return e.Cause
}

func notFound(name string) error {
	return fmt.Errorf("%w: %s", ErrBeanNotFound, name)
}
