package beans

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"sync"

	"github.com/gocrud/spring/config"
	"github.com/gocrud/spring/logging"
)

// beanState 单例条目的状态，每个名称在 entries 中只有一个状态
type beanState int

const (
	// stateCreating 正在创建，尚无可用引用
	stateCreating beanState = iota
	// stateEarly 实例已构造，属性尚未填充，可被循环依赖方提前引用
	stateEarly
	// stateReady 初始化完成，不再回退
	stateReady
)

type entry struct {
	state      beanState
	bean       any
	exposed    bool     // 提前引用已交给其它 Bean
	dependents []string // 创建期间持有其提前引用并已就绪的单例，失败时一并回滚
}

// frame 一次 Bean 创建的作用域，记录它（直接或间接）拿到的提前引用
type frame struct {
	name  string
	early map[string]struct{}
}

// Factory 根据 Registry 创建并缓存 Bean
//
// 创建过程持有写锁，同一单例最多构造一次。Supplier、Populator 和后置处理器
// 在锁内执行，不得回调 Factory。单例创建失败时，期间拿到它提前引用的单例
// 一并移除并销毁。
type Factory struct {
	registry *Registry
	env      *config.Environment
	logger   logging.Logger

	mu         sync.RWMutex
	entries    map[string]*entry
	order      []string // 单例完成顺序，销毁时逆序
	processors []PostProcessor
	stack      []*frame
	holds      map[string]map[string]struct{} // 就绪单例 -> 仍在创建中的提前引用

	inCreation sync.Map // name -> *int，不加锁可读
}

// NewFactory 创建 Factory
func NewFactory(registry *Registry, env *config.Environment, logger logging.Logger) *Factory {
	if registry == nil {
		registry = NewRegistry()
	}
	if env == nil {
		env = config.NewEnvironment()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Factory{
		registry: registry,
		env:      env,
		logger:   logger.WithCategory("beans.Factory"),
		entries:  make(map[string]*entry),
		holds:    make(map[string]map[string]struct{}),
	}
}

// Registry 返回 Definition 注册表
func (f *Factory) Registry() *Registry {
	return f.registry
}

// Environment 返回属性环境
func (f *Factory) Environment() *config.Environment {
	return f.env
}

// AddPostProcessor 添加后置处理器，按 Order 稳定排序
func (f *Factory) AddPostProcessor(p PostProcessor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processors = append(f.processors, p)
	sortProcessors(f.processors)
}

// PostProcessors 返回排序后的处理器
func (f *Factory) PostProcessors() []PostProcessor {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.processors)
}

// GetOrCreate 获取 Bean，不存在时创建
// 单例创建后缓存，重复调用返回同一实例；原型每次都重新创建
func (f *Factory) GetOrCreate(name string) (any, error) {
	f.mu.RLock()
	if e, ok := f.entries[name]; ok && e.state == stateReady {
		f.mu.RUnlock()
		return e.bean, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	// 上一次创建若因 panic 中断，作用域栈可能残留
	f.stack = f.stack[:0]
	return f.getOrCreate(name)
}

// GetBean 只查找已创建（或提前暴露）的单例，不触发创建
func (f *Factory) GetBean(name string) (any, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.entries[name]
	if !ok || e.state == stateCreating {
		return nil, false
	}
	return e.bean, true
}

// ContainsBean 存在 Definition 或已注册的单例
func (f *Factory) ContainsBean(name string) bool {
	if f.registry.Contains(name) {
		return true
	}
	_, ok := f.GetBean(name)
	return ok
}

// IsSingleton 已缓存的单例，或 Definition 作用域为单例
func (f *Factory) IsSingleton(name string) bool {
	if _, ok := f.GetBean(name); ok {
		return true
	}
	def, ok := f.registry.Get(name)
	return ok && def.IsSingleton()
}

// IsCurrentlyInCreation 是否正在创建
func (f *Factory) IsCurrentlyInCreation(name string) bool {
	_, ok := f.inCreation.Load(name)
	return ok
}

// IsNameInUse 名称已被 Definition、缓存或正在创建的 Bean 占用
func (f *Factory) IsNameInUse(name string) bool {
	if f.registry.Contains(name) || f.IsCurrentlyInCreation(name) {
		return true
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.entries[name]
	return ok
}

// RegisterSingleton 直接注册已创建好的单例
func (f *Factory) RegisterSingleton(name string, bean any) error {
	if bean == nil {
		return fmt.Errorf("beans: singleton %s must not be nil", name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.entries[name]; exists {
		return fmt.Errorf("beans: singleton %s already registered", name)
	}
	f.entries[name] = &entry{state: stateReady, bean: bean}
	f.order = append(f.order, name)
	return nil
}

// SingletonNames 已就绪单例的名称，按创建顺序
func (f *Factory) SingletonNames() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.order)
}

// DestroySingleton 移除并销毁单个单例
func (f *Factory) DestroySingleton(name string) error {
	f.mu.Lock()
	e, ok := f.entries[name]
	if ok {
		delete(f.entries, name)
		delete(f.holds, name)
		f.order = slices.DeleteFunc(f.order, func(n string) bool { return n == name })
	}
	f.mu.Unlock()

	if !ok || e.state != stateReady {
		return nil
	}
	return destroyBean(name, e.bean)
}

// DestroySingletons 按创建逆序销毁全部单例并清空缓存
func (f *Factory) DestroySingletons() error {
	f.mu.Lock()
	order := f.order
	entries := f.entries
	f.entries = make(map[string]*entry)
	f.order = nil
	f.holds = make(map[string]map[string]struct{})
	f.inCreation.Range(func(k, _ any) bool {
		f.inCreation.Delete(k)
		return true
	})
	f.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		e := entries[order[i]]
		if e == nil || e.state != stateReady {
			continue
		}
		if err := destroyBean(order[i], e.bean); err != nil {
			f.logger.Error("Failed to destroy bean",
				logging.Field{Key: "bean", Value: order[i]},
				logging.Field{Key: "error", Value: err})
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Factory) getOrCreate(name string) (any, error) {
	if e, ok := f.entries[name]; ok {
		switch e.state {
		case stateReady:
			f.noteUse(name)
			return e.bean, nil
		case stateEarly:
			e.exposed = true
			f.noteUse(name)
			return e.bean, nil
		default:
			return nil, fmt.Errorf("%w: %s is currently in creation", ErrCircularReference, name)
		}
	}

	def, ok := f.registry.Get(name)
	if !ok {
		return nil, notFound(name)
	}

	if def.IsPrototype() {
		if f.IsCurrentlyInCreation(name) {
			return nil, fmt.Errorf("%w: prototype %s is currently in creation", ErrCircularReference, name)
		}
		f.markInCreation(name)
		defer f.inCreation.Delete(name)

		fr := f.push(name)
		bean, err := f.createBean(def, nil)
		f.pop()
		if err != nil {
			return nil, err
		}
		// 原型不缓存，它拿到的提前引用转交给调用方
		if top := f.top(); top != nil {
			for x := range fr.early {
				top.early[x] = struct{}{}
			}
		}
		return bean, nil
	}

	e := &entry{state: stateCreating}
	f.entries[name] = e
	f.markInCreation(name)
	defer f.inCreation.Delete(name)

	fr := f.push(name)
	bean, err := f.createBean(def, e)
	f.pop()
	if err != nil {
		delete(f.entries, name)
		f.rollback(name, e.dependents)
		return nil, err
	}

	e.state = stateReady
	e.bean = bean
	f.order = append(f.order, name)
	for _, d := range e.dependents {
		if held := f.holds[d]; held != nil {
			delete(held, name)
			if len(held) == 0 {
				delete(f.holds, d)
			}
		}
	}
	e.dependents = nil

	delete(fr.early, name)
	if len(fr.early) > 0 {
		f.holds[name] = fr.early
		for x := range fr.early {
			if xe := f.entries[x]; xe != nil {
				xe.dependents = append(xe.dependents, name)
			}
		}
	}
	f.noteUse(name)
	return bean, nil
}

func (f *Factory) push(name string) *frame {
	fr := &frame{name: name, early: make(map[string]struct{})}
	f.stack = append(f.stack, fr)
	return fr
}

func (f *Factory) pop() {
	f.stack = f.stack[:len(f.stack)-1]
}

func (f *Factory) top() *frame {
	if len(f.stack) == 0 {
		return nil
	}
	return f.stack[len(f.stack)-1]
}

// noteUse 当前创建作用域拿到了 name，记录 name 本身或它持有的未完成的提前引用
func (f *Factory) noteUse(name string) {
	top := f.top()
	if top == nil {
		return
	}
	if e := f.entries[name]; e != nil && e.state == stateEarly {
		top.early[name] = struct{}{}
	}
	for x := range f.holds[name] {
		if xe := f.entries[x]; xe != nil && xe.state != stateReady {
			top.early[x] = struct{}{}
		}
	}
}

// rollback 移除并逆序销毁持有失败 Bean 提前引用的单例
func (f *Factory) rollback(failed string, dependents []string) {
	for i := len(dependents) - 1; i >= 0; i-- {
		d := dependents[i]
		de, ok := f.entries[d]
		if !ok || de.state != stateReady {
			continue
		}
		delete(f.entries, d)
		delete(f.holds, d)
		f.order = slices.DeleteFunc(f.order, func(n string) bool { return n == d })
		f.logger.Debug("Discarding bean holding a failed early reference",
			logging.Field{Key: "bean", Value: d},
			logging.Field{Key: "failed", Value: failed})
		if err := destroyBean(d, de.bean); err != nil {
			f.logger.Error("Failed to destroy bean",
				logging.Field{Key: "bean", Value: d},
				logging.Field{Key: "error", Value: err})
		}
	}
}

func (f *Factory) markInCreation(name string) {
	f.inCreation.Store(name, struct{}{})
}

// createBean 依次执行：DependsOn → Supplier → 提前暴露 → Autowired/Populate →
// 前置处理 → AfterPropertiesSet → 后置处理
func (f *Factory) createBean(def *Definition, e *entry) (any, error) {
	fail := func(err error) (any, error) {
		f.logger.Debug("Bean creation failed",
			logging.Field{Key: "bean", Value: def.Name},
			logging.Field{Key: "error", Value: err})
		return nil, &BeanCreationError{Bean: def.Name, Cause: err}
	}

	f.logger.Trace("Creating bean",
		logging.Field{Key: "bean", Value: def.Name},
		logging.Field{Key: "scope", Value: def.Scope.String()})

	deps := make(Dependencies, len(def.DependsOn))
	for _, dep := range def.DependsOn {
		v, err := f.getOrCreate(dep)
		if err != nil {
			return fail(err)
		}
		deps[dep] = v
	}

	bean, err := f.invokeSupplier(def, deps)
	if err != nil {
		return fail(err)
	}
	if def.Type != nil {
		if actual := reflect.TypeOf(bean); !actual.AssignableTo(def.Type) {
			return fail(&TypeMismatchError{Bean: def.Name, Expected: def.Type, Actual: actual})
		}
	}

	if e != nil && def.needsEarlyExposure() {
		e.state = stateEarly
		e.bean = bean
	}

	if len(def.Autowired) > 0 || def.Populate != nil {
		wired := make(Dependencies, len(deps)+len(def.Autowired))
		for k, v := range deps {
			wired[k] = v
		}
		for _, dep := range def.Autowired {
			if _, done := wired[dep]; done {
				continue
			}
			v, err := f.getOrCreate(dep)
			if err != nil {
				return fail(err)
			}
			wired[dep] = v
		}
		if def.Populate != nil {
			if err := safeCall("populate", func() error { return def.Populate(bean, wired, f.env) }); err != nil {
				return fail(err)
			}
		}
	}

	early := bean
	if bean, err = applyProcessors(f.processors, phaseBefore, bean, def.Name); err != nil {
		return fail(err)
	}
	if ib, ok := bean.(InitializingBean); ok {
		if err := safeCall("AfterPropertiesSet", ib.AfterPropertiesSet); err != nil {
			return fail(err)
		}
	}
	if bean, err = applyProcessors(f.processors, phaseAfter, bean, def.Name); err != nil {
		return fail(err)
	}

	if e != nil && e.exposed && !sameInstance(early, bean) {
		return fail(fmt.Errorf("bean was replaced by a post-processor after its early reference was injected into other beans"))
	}
	return bean, nil
}

func (f *Factory) invokeSupplier(def *Definition, deps Dependencies) (bean any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("supplier panicked: %v", r)
		}
	}()
	bean, err = def.Supplier(deps, f.env)
	if err == nil && bean == nil {
		err = errors.New("supplier returned nil")
	}
	return bean, err
}

func safeCall(what string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", what, r)
		}
	}()
	return fn()
}

func destroyBean(name string, bean any) error {
	var err error
	switch b := bean.(type) {
	case DisposableBean:
		err = safeCall("Destroy", b.Destroy)
	case io.Closer:
		err = safeCall("Close", b.Close)
	}
	if err != nil {
		return fmt.Errorf("beans: destroy %s: %w", name, err)
	}
	return nil
}

// sameInstance 引用类型比较地址，可比较的值类型比较值
func sameInstance(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}
	return va.Comparable() && va.Equal(vb)
}

// Get 获取或创建 Bean 并转换为 T
func Get[T any](f *Factory, name string) (T, error) {
	var zero T
	bean, err := f.GetOrCreate(name)
	if err != nil {
		return zero, err
	}
	t, ok := bean.(T)
	if !ok {
		return zero, &TypeMismatchError{Bean: name, Expected: typeOf[T](), Actual: reflect.TypeOf(bean)}
	}
	return t, nil
}

// BeansOfType 返回已创建的、类型为 T 的单例
func BeansOfType[T any](f *Factory) map[string]T {
	f.mu.RLock()
	defer f.mu.RUnlock()
	result := make(map[string]T)
	for _, name := range f.order {
		if t, ok := f.entries[name].bean.(T); ok {
			result[name] = t
		}
	}
	return result
}

// Dep 从已解析的依赖中取出 T
func Dep[T any](deps Dependencies, name string) (T, error) {
	var zero T
	v, ok := deps[name]
	if !ok {
		return zero, notFound(name)
	}
	t, ok := v.(T)
	if !ok {
		return zero, &TypeMismatchError{Bean: name, Expected: typeOf[T](), Actual: reflect.TypeOf(v)}
	}
	return t, nil
}
