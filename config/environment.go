package config

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// ActiveProfilesProperty 激活 profile 的属性名，多个值以逗号分隔
const ActiveProfilesProperty = "spring.profiles.active"

// Environment 合并后的属性视图
//
// 多个属性源按注册顺序合并，先注册的优先（MergeFrom 从不覆盖已有的 key）。
// 读取走 ValueStore 的快照，无锁；写入由 ValueStore 复制后整体发布，mu 只保护 profile 和属性源名称。
type Environment struct {
	store    *ValueStore
	mu       sync.Mutex
	profiles []string
	sources  []string
}

// NewEnvironment 创建空的 Environment
func NewEnvironment() *Environment {
	return &Environment{store: NewValueStore()}
}

// NewEnvironmentFrom 用给定属性创建 Environment（便于测试）
func NewEnvironmentFrom(props map[string]string) *Environment {
	e := NewEnvironment()
	e.store.Replace(props)
	return e
}

// Get 获取属性值
func (e *Environment) Get(key string) (string, bool) {
	v, ok := e.store.Load()[key]
	return v, ok
}

// GetProperty 获取属性值，不存在时返回空字符串
func (e *Environment) GetProperty(key string) string {
	return e.store.Load()[key]
}

// Resolve 精确查找 key，不存在时原样返回 defaultValue（不做占位符展开）
func (e *Environment) Resolve(key, defaultValue string) string {
	if v, ok := e.Get(key); ok {
		return v
	}
	return defaultValue
}

// Contains 判断属性是否存在
func (e *Environment) Contains(key string) bool {
	_, ok := e.Get(key)
	return ok
}

// GetInt 获取整数属性
func (e *Environment) GetInt(key string) (int, error) {
	v, ok := e.Get(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrPropertyNotFound, key)
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("config: property %s is not an int: %w", key, err)
	}
	return n, nil
}

// GetBool 获取布尔属性
func (e *Environment) GetBool(key string) (bool, error) {
	v, ok := e.Get(key)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrPropertyNotFound, key)
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("config: property %s is not a bool: %w", key, err)
	}
	return b, nil
}

// SetProperty 设置属性（覆盖已有值）
func (e *Environment) SetProperty(key, value string) {
	e.store.Update(func(next map[string]string) {
		next[key] = value
	})
}

// MergeFrom 合并属性源：只插入当前不存在的 key
func (e *Environment) MergeFrom(source PropertySource) error {
	props, err := source.Load()
	if err != nil {
		return fmt.Errorf("config: failed to load property source %s: %w", source.Name(), err)
	}

	e.store.Update(func(next map[string]string) {
		for k, v := range props {
			if _, exists := next[k]; !exists {
				next[k] = v
			}
		}
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sources = append(e.sources, source.Name())
	return nil
}

// Replace 用新的属性整体替换（属性文件热更新时使用）
func (e *Environment) Replace(other *Environment) {
	e.store.Replace(other.store.Load())
	sources := other.SourceNames()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sources = sources
}

// Version 属性每次变化递增，可用来判断缓存的解析结果是否过期
func (e *Environment) Version() uint64 {
	return e.store.Version()
}

// SourceNames 已合并属性源的名称，按合并顺序
func (e *Environment) SourceNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.sources)
}

// ResolvePlaceholder 解析单个 ${key} / ${key:default} 表达式
func (e *Environment) ResolvePlaceholder(expr string) (string, error) {
	p, err := ParsePlaceholder(expr)
	if err != nil {
		return "", err
	}
	return p.resolve(e.store.Load())
}

// ResolvePlaceholders 替换文本中所有的占位符
func (e *Environment) ResolvePlaceholders(text string) (string, error) {
	return resolveText(text, e.store.Load())
}

// Properties 返回属性副本
func (e *Environment) Properties() map[string]string {
	return maps.Clone(e.store.Load())
}

// Keys 返回排序后的全部 key
func (e *Environment) Keys() []string {
	m := e.store.Load()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SetActiveProfiles 显式设置激活的 profile
func (e *Environment) SetActiveProfiles(profiles ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profiles = slices.Clone(profiles)
}

// ActiveProfiles 返回激活的 profile
// 未显式设置时读取 spring.profiles.active
func (e *Environment) ActiveProfiles() []string {
	e.mu.Lock()
	explicit := slices.Clone(e.profiles)
	e.mu.Unlock()
	if len(explicit) > 0 {
		return explicit
	}

	raw, ok := e.Get(ActiveProfilesProperty)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AcceptsProfile 判断 profile 是否激活
func (e *Environment) AcceptsProfile(profile string) bool {
	return slices.Contains(e.ActiveProfiles(), profile)
}
