package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gocrud/spring/logging"
)

// DefaultDebounce 文件变化后等待的时间，合并连续的写事件
const DefaultDebounce = 300 * time.Millisecond

// Watcher 监听属性文件，变化时重新构建 Environment 并原地替换
type Watcher struct {
	env      *Environment
	builder  *EnvironmentBuilder
	logger   logging.Logger
	debounce time.Duration

	watcher   *fsnotify.Watcher
	files     map[string]struct{}
	callbacks []func(*Environment)
	mu        sync.RWMutex
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewWatcher 创建 Watcher，files 为需要监听的文件
// 监听的是文件所在目录，编辑器的原子替换写入也能收到事件
func NewWatcher(env *Environment, builder *EnvironmentBuilder, logger logging.Logger, files ...string) (*Watcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: failed to create file watcher: %w", err)
	}

	w := &Watcher{
		env:      env,
		builder:  builder,
		logger:   logger.WithCategory("config.Watcher"),
		debounce: DefaultDebounce,
		watcher:  fsw,
		files:    make(map[string]struct{}),
		stopCh:   make(chan struct{}),
	}

	var dirs []string
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("config: invalid watch path %s: %w", f, err)
		}
		w.files[abs] = struct{}{}
		if dir := filepath.Dir(abs); !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("config: failed to watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// SetDebounce 设置去抖时间
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// OnChange 注册重新加载成功后的回调
func (w *Watcher) OnChange(callback func(*Environment)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start 启动监听循环
func (w *Watcher) Start() {
	go w.loop()
}

// Stop 停止监听，可重复调用
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
	})
}

func (w *Watcher) loop() {
	var timer *time.Timer
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			abs, _ := filepath.Abs(event.Name)
			if _, watched := w.files[abs]; !watched {
				continue
			}
			w.logger.Debug("Property file changed",
				logging.Field{Key: "file", Value: event.Name},
				logging.Field{Key: "op", Value: event.Op.String()})

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", logging.Field{Key: "error", Value: err})

		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (w *Watcher) reload() {
	next, err := w.builder.Build()
	if err != nil {
		// 保留旧值
		w.logger.Error("Failed to reload properties", logging.Field{Key: "error", Value: err})
		return
	}
	w.env.Replace(next)

	w.mu.RLock()
	callbacks := slices.Clone(w.callbacks)
	w.mu.RUnlock()

	w.logger.Info("Properties reloaded", logging.Field{Key: "callbacks", Value: len(callbacks)})
	for _, cb := range callbacks {
		w.invoke(cb)
	}
}

func (w *Watcher) invoke(cb func(*Environment)) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Property change callback panicked", logging.Field{Key: "panic", Value: r})
		}
	}()
	cb(w.env)
}
