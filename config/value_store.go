package config

import (
	"maps"
	"sync"
	"sync/atomic"
)

// snapshot 一个已发布的属性版本，发布后只读
type snapshot struct {
	props   map[string]string
	version uint64
}

// ValueStore 属性快照，读取无锁
// 写入复制当前快照，修改后整体发布并递增版本号
type ValueStore struct {
	mu      sync.Mutex
	current atomic.Pointer[snapshot]
}

// NewValueStore 创建空的 ValueStore
func NewValueStore() *ValueStore {
	s := &ValueStore{}
	s.current.Store(&snapshot{props: map[string]string{}})
	return s
}

// Load 当前快照，调用方不得修改
func (s *ValueStore) Load() map[string]string {
	return s.current.Load().props
}

// Version 每次写入递增
func (s *ValueStore) Version() uint64 {
	return s.current.Load().version
}

// Update 在当前快照的副本上执行 fn 并发布
func (s *ValueStore) Update(fn func(next map[string]string)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()
	next := maps.Clone(prev.props)
	fn(next)
	s.current.Store(&snapshot{props: next, version: prev.version + 1})
}

// Replace 用 props 的副本整体替换
func (s *ValueStore) Replace(props map[string]string) {
	next := maps.Clone(props)
	if next == nil {
		next = map[string]string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(&snapshot{props: next, version: s.current.Load().version + 1})
}
