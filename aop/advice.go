package aop

import "fmt"

// JoinPoint 被拦截的调用点
type JoinPoint struct {
	Bean   string
	Method string
}

func (jp JoinPoint) String() string {
	return jp.Bean + separator + jp.Method
}

// AdviceKind 通知类型
type AdviceKind int

const (
	Before AdviceKind = iota
	After
	// Around 在调用前后各触发一次
	Around
)

func (k AdviceKind) String() string {
	switch k {
	case Before:
		return "Before"
	case After:
		return "After"
	case Around:
		return "Around"
	default:
		return fmt.Sprintf("AdviceKind(%d)", int(k))
	}
}

// firesBefore 调用前是否触发
func (k AdviceKind) firesBefore() bool {
	return k == Before || k == Around
}

// firesAfter 调用后是否触发
func (k AdviceKind) firesAfter() bool {
	return k == After || k == Around
}

// Handler 通知处理函数，只用于观察，不能改变调用流程
type Handler func(jp JoinPoint)

// Advice 通知
type Advice struct {
	Kind    AdviceKind
	Handler Handler
}

// Advisor 切点与通知的组合
type Advisor struct {
	Pointcut Pointcut
	Advice   Advice
}

// NewAdvisor 创建 Advisor
func NewAdvisor(pc Pointcut, kind AdviceKind, handler Handler) Advisor {
	return Advisor{Pointcut: pc, Advice: Advice{Kind: kind, Handler: handler}}
}

// AspectRegistration 声明式的切面注册项，由 Registry.Load 批量加载
type AspectRegistration struct {
	Pointcut string
	Kind     AdviceKind
	Handler  Handler
}
