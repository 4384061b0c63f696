package core

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gocrud/spring/config"
	"github.com/gocrud/spring/logging"
)

// Event 应用事件
type Event interface {
	EventName() string
}

// ContextRefreshedEvent refresh 完成
type ContextRefreshedEvent struct {
	Context *ApplicationContext
	// Failed 创建失败的 Bean
	Failed []string
}

func (ContextRefreshedEvent) EventName() string { return "ContextRefreshed" }

// ContextStartedEvent Lifecycle Bean 已启动
type ContextStartedEvent struct {
	Context *ApplicationContext
}

func (ContextStartedEvent) EventName() string { return "ContextStarted" }

// ContextStoppedEvent Lifecycle Bean 已停止
type ContextStoppedEvent struct {
	Context *ApplicationContext
}

func (ContextStoppedEvent) EventName() string { return "ContextStopped" }

// ContextClosedEvent 容器关闭，单例销毁之前发布
type ContextClosedEvent struct {
	Context *ApplicationContext
}

func (ContextClosedEvent) EventName() string { return "ContextClosed" }

// EnvironmentChangedEvent 属性文件重新加载
type EnvironmentChangedEvent struct {
	Environment *config.Environment
	At          time.Time
}

func (EnvironmentChangedEvent) EventName() string { return "EnvironmentChanged" }

// Listener 事件监听器
// 实现此接口的单例 Bean 在 refresh 后自动注册
type Listener interface {
	OnEvent(event Event)
}

// ListenerFunc 函数形式的监听器
type ListenerFunc func(event Event)

func (f ListenerFunc) OnEvent(event Event) {
	f(event)
}

// multicaster 同步分发事件，监听器 panic 只记录日志
type multicaster struct {
	mu        sync.RWMutex
	listeners []Listener
	logger    logging.Logger
}

func (m *multicaster) add(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.ContainsFunc(m.listeners, func(existing Listener) bool { return sameListener(existing, l) }) {
		return
	}
	m.listeners = append(m.listeners, l)
}

func (m *multicaster) publish(event Event) {
	m.mu.RLock()
	listeners := slices.Clone(m.listeners)
	m.mu.RUnlock()

	for _, l := range listeners {
		m.deliver(l, event)
	}
}

func (m *multicaster) deliver(l Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Event listener panicked",
				logging.Field{Key: "event", Value: event.EventName()},
				logging.Field{Key: "listener", Value: fmt.Sprintf("%T", l)},
				logging.Field{Key: "panic", Value: r})
		}
	}()
	l.OnEvent(event)
}

// sameListener 函数监听器无法比较，总是视为不同
func sameListener(a, b Listener) bool {
	if _, ok := a.(ListenerFunc); ok {
		return false
	}
	defer func() { _ = recover() }()
	return a == b
}
