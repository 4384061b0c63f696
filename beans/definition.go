package beans

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/gocrud/spring/config"
)

// Scope 定义 Bean 的生命周期
type Scope int

const (
	// ScopeSingleton 每个容器一个共享实例（默认）
	ScopeSingleton Scope = iota
	// ScopePrototype 每次请求创建新实例，容器不缓存
	ScopePrototype
)

func (s Scope) String() string {
	switch s {
	case ScopeSingleton:
		return "singleton"
	case ScopePrototype:
		return "prototype"
	default:
		return "unknown"
	}
}

// ParseScope 解析 "singleton" / "prototype"，空字符串视为 singleton
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "singleton":
		return ScopeSingleton, nil
	case "prototype":
		return ScopePrototype, nil
	default:
		return 0, fmt.Errorf("beans: unknown scope %q", s)
	}
}

// Dependencies 已解析的依赖，按 Bean 名称索引
type Dependencies map[string]any

// Supplier 创建实例
// deps 只包含 DependsOn 中声明的依赖；Supplier 不得回调容器
type Supplier func(deps Dependencies, env *config.Environment) (any, error)

// Populator 在实例提前暴露之后完成属性填充
// deps 包含 DependsOn 和 Autowired 中声明的全部依赖
type Populator func(bean any, deps Dependencies, env *config.Environment) error

// Definition 描述一个 Bean
//
// DependsOn 在调用 Supplier 之前解析，因此 DependsOn 之间不能成环；
// Autowired 在实例提前暴露之后解析，单例之间的循环引用只能通过 Autowired 建立。
type Definition struct {
	Name        string
	Type        reflect.Type // 类型标记，创建后用于校验实例类型
	Scope       Scope
	Lazy        bool
	DependsOn   []string
	Autowired   []string
	Supplier    Supplier
	Populate    Populator
	Primary     bool
	Description string
}

// Option 配置 Definition
type Option func(*Definition)

// WithScope 设置作用域
func WithScope(scope Scope) Option {
	return func(d *Definition) {
		d.Scope = scope
	}
}

// WithPrototype 设置为 prototype 作用域
func WithPrototype() Option {
	return WithScope(ScopePrototype)
}

// WithLazy 设置为延迟初始化，refresh 时不创建
func WithLazy() Option {
	return func(d *Definition) {
		d.Lazy = true
	}
}

// WithDependsOn 追加构造前必须就绪的依赖
func WithDependsOn(names ...string) Option {
	return func(d *Definition) {
		d.DependsOn = append(d.DependsOn, names...)
	}
}

// WithAutowired 追加在提前暴露后注入的依赖
func WithAutowired(names ...string) Option {
	return func(d *Definition) {
		d.Autowired = append(d.Autowired, names...)
	}
}

// WithPopulate 设置属性填充函数
func WithPopulate(fn Populator) Option {
	return func(d *Definition) {
		d.Populate = fn
	}
}

// WithPrimary 同类型多个 Bean 时优先选择
func WithPrimary() Option {
	return func(d *Definition) {
		d.Primary = true
	}
}

// WithDescription 设置描述
func WithDescription(desc string) Option {
	return func(d *Definition) {
		d.Description = desc
	}
}

// NewDefinition 创建 Definition
func NewDefinition(name string, typ reflect.Type, supplier Supplier, opts ...Option) *Definition {
	d := &Definition{
		Name:     name,
		Type:     typ,
		Scope:    ScopeSingleton,
		Supplier: supplier,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Define 以类型 T 创建 Definition
//
//	beans.Define("user", func(deps beans.Dependencies, env *config.Environment) (*User, error) {
//		person, err := beans.Dep[*Person](deps, "person")
//		if err != nil {
//			return nil, err
//		}
//		return &User{Person: person}, nil
//	}, beans.WithDependsOn("person"))
func Define[T any](name string, supplier func(deps Dependencies, env *config.Environment) (T, error), opts ...Option) *Definition {
	return NewDefinition(name, typeOf[T](), func(deps Dependencies, env *config.Environment) (any, error) {
		return supplier(deps, env)
	}, opts...)
}

// IsSingleton 是否单例
func (d *Definition) IsSingleton() bool {
	return d.Scope == ScopeSingleton
}

// IsPrototype 是否原型
func (d *Definition) IsPrototype() bool {
	return d.Scope == ScopePrototype
}

// needsEarlyExposure 只有存在后置注入的单例才提前暴露
func (d *Definition) needsEarlyExposure() bool {
	return d.IsSingleton() && (len(d.Autowired) > 0 || d.Populate != nil)
}

func (d *Definition) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("beans: definition name must not be empty")
	}
	if d.Supplier == nil {
		return fmt.Errorf("beans: definition %s has no supplier", d.Name)
	}
	if d.Scope != ScopeSingleton && d.Scope != ScopePrototype {
		return fmt.Errorf("beans: definition %s has unknown scope %d", d.Name, d.Scope)
	}
	return nil
}

// clone 返回副本，注册后的 Definition 不受调用方修改影响
func (d *Definition) clone() *Definition {
	c := *d
	c.DependsOn = slices.Clone(d.DependsOn)
	c.Autowired = slices.Clone(d.Autowired)
	return &c
}

func (d *Definition) String() string {
	typ := "<nil>"
	if d.Type != nil {
		typ = d.Type.String()
	}
	return fmt.Sprintf("Definition(name=%s, type=%s, scope=%s, lazy=%t)", d.Name, typ, d.Scope, d.Lazy)
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
