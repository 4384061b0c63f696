package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// PropTag 绑定时使用的 struct tag，缺省为字段名首字母小写
const PropTag = "prop"

var validate = validator.New()

// Bind 把 prefix 下的属性绑定到 target 并执行 validate tag 校验
//
//	type ServerProperties struct {
//		Host string        `prop:"host" validate:"required"`
//		Port int           `prop:"port" validate:"min=1,max=65535"`
//		TLS  TLSProperties `prop:"tls"`
//	}
//	err := config.Bind(env, "server", &props)
func Bind(env *Environment, prefix string, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: Bind target must be a non-nil struct pointer, got %T", target)
	}

	props := env.Properties()
	if err := bindStruct(props, prefix, rv.Elem()); err != nil {
		return err
	}
	if err := validate.Struct(target); err != nil {
		return fmt.Errorf("config: validation failed for %q: %w", prefix, err)
	}
	return nil
}

// Load 绑定 prefix 下的属性到新的 T
func Load[T any](env *Environment, prefix string) (T, error) {
	var t T
	err := Bind(env, prefix, &t)
	return t, err
}

func bindStruct(props map[string]string, prefix string, rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := sf.Tag.Get(PropTag)
		if name == "-" {
			continue
		}
		if name == "" {
			name = lowerFirst(sf.Name)
		}
		key := joinKey(prefix, name)
		field := rv.Field(i)

		if field.Kind() == reflect.Struct && field.Type() != durationType &&
			!field.Addr().Type().Implements(textUnmarshalerType) {
			if err := bindStruct(props, key, field); err != nil {
				return err
			}
			continue
		}

		if field.Kind() == reflect.Slice {
			if items, ok := indexedValues(props, key); ok {
				slice := reflect.MakeSlice(field.Type(), len(items), len(items))
				for j, item := range items {
					if err := setFromString(slice.Index(j), item); err != nil {
						return &ValueInjectionError{Key: key + "[" + strconv.Itoa(j) + "]", Field: sf.Name, Value: item, Cause: err}
					}
				}
				field.Set(slice)
				continue
			}
		}

		raw, ok := props[key]
		if !ok {
			continue
		}
		if err := setFromString(field, raw); err != nil {
			return &ValueInjectionError{Key: key, Field: sf.Name, Value: raw, Cause: err}
		}
	}
	return nil
}

// indexedValues 读取 key[0], key[1], ... 直到第一个缺失的下标
func indexedValues(props map[string]string, key string) ([]string, bool) {
	var items []string
	for i := 0; ; i++ {
		v, ok := props[key+"["+strconv.Itoa(i)+"]"]
		if !ok {
			break
		}
		items = append(items, v)
	}
	return items, len(items) > 0
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	// 连续大写前缀整体转小写：URLPath -> urlPath
	n := 0
	for n < len(r) && unicode.IsUpper(r[n]) {
		n++
	}
	switch {
	case n == 0:
		return s
	case n == 1 || n == len(r):
		return strings.ToLower(string(r[:n])) + string(r[n:])
	default:
		return strings.ToLower(string(r[:n-1])) + string(r[n-1:])
	}
}
