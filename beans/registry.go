package beans

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// Registry Bean 名称到 Definition 的映射
// 名称按首次注册顺序保存，refresh 按此顺序创建单例
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]*Definition
	names       []string
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[string]*Definition)}
}

// Register 注册 Definition，同名时覆盖（保留原有顺序）
func (r *Registry) Register(name string, def *Definition) error {
	if def == nil {
		return fmt.Errorf("beans: nil definition for %s", name)
	}
	def = def.clone()
	def.Name = name
	if err := def.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.definitions[name]; !exists {
		r.names = append(r.names, name)
	}
	r.definitions[name] = def
	return nil
}

// Remove 删除 Definition
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.definitions[name]; !exists {
		return false
	}
	delete(r.definitions, name)
	r.names = slices.DeleteFunc(r.names, func(n string) bool { return n == name })
	return true
}

// Contains 是否存在 Definition
func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.definitions[name]
	return ok
}

// Get 获取 Definition，返回值只读
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[name]
	return def, ok
}

// Names 按注册顺序返回全部名称
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.names)
}

// Count Definition 数量
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.definitions)
}

// NamesForType 返回类型标记可赋值给 typ 的 Bean 名称，Primary 排在最前
func (r *Registry) NamesForType(typ reflect.Type) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var primary, others []string
	for _, name := range r.names {
		def := r.definitions[name]
		if def.Type == nil || !def.Type.AssignableTo(typ) {
			continue
		}
		if def.Primary {
			primary = append(primary, name)
		} else {
			others = append(others, name)
		}
	}
	return append(primary, others...)
}

// Validate 检查 DependsOn 之间的环
// DependsOn 在构造之前解析，成环的 Bean 永远无法创建；Autowired 不参与检查
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		visited[name] = true
		onStack[name] = true
		path = append(path, name)

		for _, dep := range r.definitions[name].DependsOn {
			// 未注册的依赖留到创建时报告
			if _, exists := r.definitions[dep]; !exists {
				continue
			}
			if !visited[dep] {
				if err := visit(dep); err != nil {
					return err
				}
			} else if onStack[dep] {
				start := slices.Index(path, dep)
				cycle := append(slices.Clone(path[start:]), dep)
				return fmt.Errorf("%w: %v", ErrCircularReference, cycle)
			}
		}

		onStack[name] = false
		path = path[:len(path)-1]
		return nil
	}

	for _, name := range r.names {
		if !visited[name] {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}
