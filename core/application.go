package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/gocrud/spring/aop"
	"github.com/gocrud/spring/beans"
	"github.com/gocrud/spring/config"
	"github.com/gocrud/spring/logging"
)

// DefaultShutdownTimeout 默认关闭超时
const DefaultShutdownTimeout = 30 * time.Second

// ApplicationBuilder 应用程序构建器
type ApplicationBuilder struct {
	envBuilder      *config.EnvironmentBuilder
	loggingBuilder  *logging.LoggingBuilder
	profiles        []string
	propertiesDir   string
	definitions     []*beans.Definition
	aspects         []aop.AspectRegistration
	aopConfig       aop.Config
	processors      []beans.PostProcessor
	listeners       []Listener
	configurators   []func(*ApplicationContext) error
	watch           bool
	shutdownTimeout time.Duration
	mu              sync.RWMutex
}

// NewApplicationBuilder 创建应用程序构建器
func NewApplicationBuilder() *ApplicationBuilder {
	return &ApplicationBuilder{
		envBuilder:      config.NewEnvironmentBuilder(),
		loggingBuilder:  logging.NewLoggingBuilder(),
		shutdownTimeout: DefaultShutdownTimeout,
	}
}

// ConfigureEnvironment 配置属性源
// 这里添加的属性源优先于 application.properties
func (b *ApplicationBuilder) ConfigureEnvironment(configure func(*config.EnvironmentBuilder)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.envBuilder)
	}
	return b
}

// ConfigureLogging 配置日志系统
func (b *ApplicationBuilder) ConfigureLogging(configure func(*logging.LoggingBuilder)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.loggingBuilder)
	}
	return b
}

// ConfigureAop 设置 AOP 配置
func (b *ApplicationBuilder) ConfigureAop(cfg aop.Config) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.aopConfig = cfg
	return b
}

// UseProfiles 显式设置激活的 profile，未设置时读取 spring.profiles.active
func (b *ApplicationBuilder) UseProfiles(profiles ...string) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profiles = slices.Clone(profiles)
	return b
}

// AddApplicationProperties 从 dir 加载 application.properties
// 以及每个激活 profile 的 application-<profile>.properties，文件都是可选的
func (b *ApplicationBuilder) AddApplicationProperties(dir string) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.propertiesDir = dir
	return b
}

// AddDefinitions 添加 Bean Definition
func (b *ApplicationBuilder) AddDefinitions(defs ...*beans.Definition) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.definitions = append(b.definitions, defs...)
	return b
}

// AddAspects 添加切面声明，Build 时统一解析
func (b *ApplicationBuilder) AddAspects(aspects ...aop.AspectRegistration) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.aspects = append(b.aspects, aspects...)
	return b
}

// AddPostProcessor 添加后置处理器
func (b *ApplicationBuilder) AddPostProcessor(p beans.PostProcessor) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.processors = append(b.processors, p)
	return b
}

// AddListener 添加事件监听器
func (b *ApplicationBuilder) AddListener(l Listener) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
	return b
}

// ConfigureContext 在 Refresh 之前配置容器
func (b *ApplicationBuilder) ConfigureContext(configure func(*ApplicationContext) error) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		b.configurators = append(b.configurators, configure)
	}
	return b
}

// WatchProperties 监听所有文件属性源，变化时重新加载并发布 EnvironmentChangedEvent
func (b *ApplicationBuilder) WatchProperties() *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.watch = true
	return b
}

// UseShutdownTimeout 设置关闭超时
func (b *ApplicationBuilder) UseShutdownTimeout(timeout time.Duration) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdownTimeout = timeout
	return b
}

// AddExtension 添加应用程序扩展
func (b *ApplicationBuilder) AddExtension(ext Extension) *ApplicationBuilder {
	validateExtension(ext)

	if bc, ok := ext.(BuilderConfigurator); ok {
		bc.ConfigureBuilder(b)
	}
	if cc, ok := ext.(ContextConfigurator); ok {
		b.ConfigureContext(cc.ConfigureContext)
	}
	return b
}

// Build 构建应用程序，此时还不会创建任何 Bean
func (b *ApplicationBuilder) Build() (*Application, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	loggerFactory, err := b.loggingBuilder.Build()
	if err != nil {
		return nil, fmt.Errorf("core: failed to build logging: %w", err)
	}
	logger := loggerFactory.CreateLogger("Application")

	env, err := b.buildEnvironment()
	if err != nil {
		return nil, err
	}
	logger.Info("Building application",
		logging.Field{Key: "profiles", Value: env.ActiveProfiles()},
		logging.Field{Key: "sources", Value: env.SourceNames()})

	advice := aop.NewRegistry(aop.WithConfig(b.aopConfig), aop.WithLogger(logger))
	if err := advice.Load(b.aspects...); err != nil {
		return nil, err
	}

	registry := beans.NewRegistry()
	for _, def := range b.definitions {
		if err := registry.Register(def.Name, def); err != nil {
			return nil, err
		}
	}
	if err := registry.Validate(); err != nil {
		return nil, err
	}

	processors := append([]beans.PostProcessor{beans.NewLoggingPostProcessor(logger)}, b.processors...)
	appCtx := NewApplicationContext(
		WithLogger(logger),
		WithEnvironment(env),
		WithAdviceRegistry(advice),
		WithRegistry(registry),
		WithPostProcessors(processors...),
		WithListeners(b.listeners...),
	)
	for _, configure := range b.configurators {
		if err := configure(appCtx); err != nil {
			return nil, err
		}
	}

	app := &Application{
		context:         appCtx,
		loggerFactory:   loggerFactory,
		logger:          logger,
		shutdownTimeout: b.shutdownTimeout,
		stopCh:          make(chan struct{}),
	}

	if b.watch {
		if files := watchedFiles(b.envBuilder.Sources()); len(files) > 0 {
			w, err := config.NewWatcher(env, b.envBuilder, logger, files...)
			if err != nil {
				return nil, err
			}
			w.OnChange(appCtx.environmentChanged)
			app.watcher = w
		}
	}

	logger.Info("Application built", logging.Field{Key: "definitions", Value: registry.Count()})
	return app, nil
}

// buildEnvironment 按优先级合并属性源：用户属性源，profile 文件，application.properties
func (b *ApplicationBuilder) buildEnvironment() (*config.Environment, error) {
	if b.propertiesDir == "" {
		b.envBuilder.SetActiveProfiles(b.profiles...)
		return b.envBuilder.Build()
	}

	base := filepath.Join(b.propertiesDir, "application.properties")
	profiles := b.profiles
	if len(profiles) == 0 {
		probe := config.NewEnvironmentBuilder()
		for _, s := range b.envBuilder.Sources() {
			probe.Add(s)
		}
		probe.AddPropertiesFile(base, true)
		env, err := probe.Build()
		if err != nil {
			return nil, err
		}
		profiles = env.ActiveProfiles()
	}

	// 后面的 profile 优先
	for i := len(profiles) - 1; i >= 0; i-- {
		name := fmt.Sprintf("application-%s.properties", profiles[i])
		b.envBuilder.AddPropertiesFile(filepath.Join(b.propertiesDir, name), true)
	}
	b.envBuilder.AddPropertiesFile(base, true)
	b.envBuilder.SetActiveProfiles(profiles...)
	return b.envBuilder.Build()
}

// watchedFiles 文件属性源的路径，所在目录不存在的跳过
func watchedFiles(sources []config.PropertySource) []string {
	var files []string
	for _, s := range sources {
		var path string
		switch src := s.(type) {
		case *config.PropertiesFileSource:
			path = src.Path
		case *config.YamlFileSource:
			path = src.Path
		case *config.JsonFileSource:
			path = src.Path
		case *config.DotenvFileSource:
			path = src.Path
		default:
			continue
		}
		if info, err := os.Stat(filepath.Dir(path)); err == nil && info.IsDir() {
			files = append(files, path)
		}
	}
	return files
}

// Application 运行中的应用程序
type Application struct {
	context         *ApplicationContext
	loggerFactory   logging.LoggerFactory
	logger          logging.Logger
	watcher         *config.Watcher
	shutdownTimeout time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	running  bool
	mu       sync.Mutex
}

// Context 返回容器
func (a *Application) Context() *ApplicationContext {
	return a.context
}

// Logger 返回应用日志
func (a *Application) Logger() logging.Logger {
	return a.logger
}

// Run 刷新容器并启动 Lifecycle Bean，阻塞直到收到信号、ctx 取消或调用 Stop
func (a *Application) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return errors.New("core: application is already running")
	}
	a.running = true
	a.mu.Unlock()

	a.logger.Info("Starting application", logging.Field{Key: "context", Value: a.context.ID()})

	if err := a.context.Refresh(); err != nil {
		a.logger.Error("Application context refresh failed", logging.Field{Key: "error", Value: err.Error()})
		return errors.Join(err, a.shutdown())
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.watcher != nil {
		a.watcher.Start()
	}
	if err := a.context.Start(runCtx); err != nil {
		return errors.Join(err, a.shutdown())
	}

	a.logger.Info("Application started successfully")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.logger.Info("Received shutdown signal", logging.Field{Key: "signal", Value: sig.String()})
	case <-a.stopCh:
		a.logger.Info("Application stop requested")
	case <-ctx.Done():
		a.logger.Info("Context cancelled")
	}

	cancel()
	return a.shutdown()
}

// Stop 请求 Run 返回，可重复调用
func (a *Application) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopCh)
	})
}

// Close 不经过 Run 直接关闭容器
func (a *Application) Close() error {
	return a.shutdown()
}

func (a *Application) shutdown() error {
	a.logger.Info("Shutting down application",
		logging.Field{Key: "timeout", Value: a.shutdownTimeout.String()})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.context.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if err := a.context.Close(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("Application stopped")
	// stdout 的 Sync 在部分平台会返回错误
	_ = a.loggerFactory.Sync()
	return errors.Join(errs...)
}
