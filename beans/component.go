package beans

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gocrud/spring/config"
)

// AutowiredTag 依赖注入使用的 struct tag
// `autowired:"name"` 注入指定 Bean，`autowired:""` 使用字段类型名的首字母小写形式
const AutowiredTag = "autowired"

type autowiredField struct {
	index int
	name  string
	bean  string
}

// WithName 覆盖 Bean 名称
func WithName(name string) Option {
	return func(d *Definition) {
		d.Name = name
	}
}

// Component 根据结构体 T 的 tag 生成 Definition，实例类型为 *T
//
//	type UserService struct {
//		Repo    *UserRepository `autowired:""`
//		Timeout time.Duration   `value:"${user.timeout:5s}"`
//	}
//	def := beans.Component[UserService]()
//
// value 字段在构造时注入；autowired 字段在提前暴露后注入，单例之间可以互相引用。
func Component[T any](opts ...Option) *Definition {
	typ := typeOf[T]()
	if typ.Kind() != reflect.Struct {
		panic(fmt.Sprintf("beans: Component requires a struct type, got %v", typ))
	}
	fields := autowiredFields(typ)

	def := NewDefinition(DefaultBeanName(typ), reflect.PointerTo(typ), func(_ Dependencies, env *config.Environment) (any, error) {
		bean := new(T)
		if err := config.InjectValues(env, bean); err != nil {
			return nil, err
		}
		return bean, nil
	})
	for _, f := range fields {
		def.Autowired = append(def.Autowired, f.bean)
	}
	if len(fields) > 0 {
		def.Populate = func(bean any, deps Dependencies, _ *config.Environment) error {
			return wireFields(reflect.ValueOf(bean).Elem(), fields, deps)
		}
	}
	for _, opt := range opts {
		opt(def)
	}
	return def
}

// DefaultBeanName 类型名首字母小写，指针取元素类型
func DefaultBeanName(typ reflect.Type) string {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	name := typ.Name()
	if name == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToLower(r)) + name[size:]
}

func autowiredFields(typ reflect.Type) []autowiredField {
	var fields []autowiredField
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		bean, ok := sf.Tag.Lookup(AutowiredTag)
		if !ok {
			continue
		}
		if !sf.IsExported() {
			panic(fmt.Sprintf("beans: autowired field %s.%s must be exported", typ.Name(), sf.Name))
		}
		bean = strings.TrimSpace(bean)
		if bean == "" {
			bean = DefaultBeanName(sf.Type)
		}
		fields = append(fields, autowiredField{index: i, name: sf.Name, bean: bean})
	}
	return fields
}

// wireFields 指针或接口字段直接赋值；值类型字段接收依赖指针指向值的副本
func wireFields(target reflect.Value, fields []autowiredField, deps Dependencies) error {
	for _, f := range fields {
		dep, ok := deps[f.bean]
		if !ok {
			return fmt.Errorf("field %s: %w", f.name, notFound(f.bean))
		}
		field := target.Field(f.index)
		dv := reflect.ValueOf(dep)

		switch {
		case dv.Type().AssignableTo(field.Type()):
			field.Set(dv)
		case dv.Kind() == reflect.Pointer && dv.Elem().Type().AssignableTo(field.Type()):
			field.Set(dv.Elem())
		default:
			return fmt.Errorf("field %s: %w", f.name,
				&TypeMismatchError{Bean: f.bean, Expected: field.Type(), Actual: dv.Type()})
		}
	}
	return nil
}
