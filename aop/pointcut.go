package aop

import (
	"fmt"
	"strings"
)

const separator = "::"

// PointcutSyntaxError 切点表达式格式错误
type PointcutSyntaxError struct {
	Expr string
}

func (e *PointcutSyntaxError) Error() string {
	return fmt.Sprintf("aop: pointcut expression %q must be 'beanName::methodName'", e.Expr)
}

// Pointcut 按 Bean 名称和方法名精确匹配，不支持通配符
type Pointcut struct {
	Bean   string
	Method string
}

// ParsePointcut 解析 "beanName::methodName"，只按第一个 "::" 切分
func ParsePointcut(expr string) (Pointcut, error) {
	bean, method, found := strings.Cut(expr, separator)
	if !found || bean == "" || method == "" {
		return Pointcut{}, &PointcutSyntaxError{Expr: expr}
	}
	return Pointcut{Bean: bean, Method: method}, nil
}

// MustParsePointcut 解析失败时 panic，用于静态声明
func MustParsePointcut(expr string) Pointcut {
	pc, err := ParsePointcut(expr)
	if err != nil {
		panic(err)
	}
	return pc
}

// Matches 精确匹配
func (p Pointcut) Matches(bean, method string) bool {
	return p.Bean == bean && p.Method == method
}

func (p Pointcut) String() string {
	return p.Bean + separator + p.Method
}
