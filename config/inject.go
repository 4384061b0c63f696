package config

import (
	"fmt"
	"reflect"
)

// ValueTag 字段注入使用的 struct tag，例如 `value:"${server.port:8080}"`
const ValueTag = "value"

// ValueInjectionError 字段注入失败
type ValueInjectionError struct {
	Key   string
	Field string
	Value string
	Cause error
}

func (e *ValueInjectionError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config: cannot inject %s into field %s: %v", e.Key, e.Field, e.Cause)
	}
	return fmt.Sprintf("config: cannot inject %s=%q into field %s: %v", e.Key, e.Value, e.Field, e.Cause)
}

func (e *ValueInjectionError) Unwrap() error {
	return e.Cause
}

// InjectValues 按 value tag 把属性注入到结构体字段
// target 必须是结构体指针；tag 既可以是 ${key:default}，也可以是字面量
func InjectValues(env *Environment, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: InjectValues target must be a non-nil struct pointer, got %T", target)
	}

	rv = rv.Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		expr, ok := sf.Tag.Lookup(ValueTag)
		if !ok || !sf.IsExported() {
			continue
		}

		key := expr
		raw := expr
		if IsPlaceholder(expr) {
			p, err := ParsePlaceholder(expr)
			if err != nil {
				return &ValueInjectionError{Key: expr, Field: sf.Name, Cause: err}
			}
			key = p.Key
			raw, err = env.ResolvePlaceholder(expr)
			if err != nil {
				return &ValueInjectionError{Key: key, Field: sf.Name, Cause: err}
			}
		}

		if err := setFromString(rv.Field(i), raw); err != nil {
			return &ValueInjectionError{Key: key, Field: sf.Name, Value: raw, Cause: err}
		}
	}
	return nil
}
