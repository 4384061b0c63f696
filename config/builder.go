package config

import (
	"slices"
	"sync"
)

// EnvironmentBuilder 属性源构建器
//
// 属性源按添加顺序合并，先添加的优先级最高。
// 通常的顺序是：命令行/内存 → 环境变量 → profile 文件 → 默认文件。
type EnvironmentBuilder struct {
	sources  []PropertySource
	profiles []string
	mu       sync.RWMutex
}

// NewEnvironmentBuilder 创建构建器
func NewEnvironmentBuilder() *EnvironmentBuilder {
	return &EnvironmentBuilder{}
}

// Add 添加属性源
func (b *EnvironmentBuilder) Add(source PropertySource) *EnvironmentBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources = append(b.sources, source)
	return b
}

// AddInMemory 添加内存属性源
func (b *EnvironmentBuilder) AddInMemory(data map[string]string) *EnvironmentBuilder {
	return b.Add(NewMapPropertySource("InMemory", data))
}

// AddPropertiesFile 添加 .properties 文件
func (b *EnvironmentBuilder) AddPropertiesFile(path string, optional ...bool) *EnvironmentBuilder {
	return b.Add(&PropertiesFileSource{Path: path, Optional: isOptional(optional)})
}

// AddYamlFile 添加 YAML 文件
func (b *EnvironmentBuilder) AddYamlFile(path string, optional ...bool) *EnvironmentBuilder {
	return b.Add(&YamlFileSource{Path: path, Optional: isOptional(optional)})
}

// AddJsonFile 添加 JSON 文件
func (b *EnvironmentBuilder) AddJsonFile(path string, optional ...bool) *EnvironmentBuilder {
	return b.Add(&JsonFileSource{Path: path, Optional: isOptional(optional)})
}

// AddDotenvFile 添加 .env 文件
func (b *EnvironmentBuilder) AddDotenvFile(path string, optional ...bool) *EnvironmentBuilder {
	return b.Add(&DotenvFileSource{Path: path, Optional: isOptional(optional)})
}

// AddEnvironmentVariables 添加环境变量
func (b *EnvironmentBuilder) AddEnvironmentVariables(prefix string) *EnvironmentBuilder {
	return b.Add(&EnvironmentVariableSource{Prefix: prefix})
}

// AddEtcd 添加 etcd 属性源
func (b *EnvironmentBuilder) AddEtcd(opts EtcdOptions) *EnvironmentBuilder {
	opts.applyDefaults()
	return b.Add(&EtcdSource{Options: opts})
}

// SetActiveProfiles 设置激活的 profile
func (b *EnvironmentBuilder) SetActiveProfiles(profiles ...string) *EnvironmentBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profiles = slices.Clone(profiles)
	return b
}

// Sources 返回已添加的属性源
func (b *EnvironmentBuilder) Sources() []PropertySource {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.sources)
}

// Build 依次合并所有属性源
func (b *EnvironmentBuilder) Build() (*Environment, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	env := NewEnvironment()
	for _, source := range b.sources {
		if err := env.MergeFrom(source); err != nil {
			return nil, err
		}
	}
	if len(b.profiles) > 0 {
		env.SetActiveProfiles(b.profiles...)
	}
	return env, nil
}

func isOptional(optional []bool) bool {
	return len(optional) > 0 && optional[0]
}
