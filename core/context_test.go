package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocrud/spring/beans"
	"github.com/gocrud/spring/config"
)

type Person struct {
	ID   int
	Name string
}

type User struct {
	Person Person
	ID     int
	Name   string
}

func personDef(opts ...beans.Option) *beans.Definition {
	return beans.Define("person", func(beans.Dependencies, *config.Environment) (*Person, error) {
		return &Person{ID: 1, Name: "alice"}, nil
	}, opts...)
}

func userDef() *beans.Definition {
	return beans.Define("user", func(deps beans.Dependencies, _ *config.Environment) (*User, error) {
		p, err := beans.Dep[*Person](deps, "person")
		if err != nil {
			return nil, err
		}
		return &User{Person: *p, ID: 2, Name: "bob"}, nil
	}, beans.WithDependsOn("person"))
}

func newContext(t *testing.T, defs ...*beans.Definition) *ApplicationContext {
	t.Helper()
	c := NewApplicationContext()
	for _, d := range defs {
		require.NoError(t, c.RegisterDefinition(d))
	}
	return c
}

func TestRefreshWiresUserWithPerson(t *testing.T) {
	c := newContext(t, personDef(), userDef())
	require.NoError(t, c.Refresh())

	person, ok := GetBean[*Person](c, "person")
	require.True(t, ok)
	user, ok := GetBean[*User](c, "user")
	require.True(t, ok)
	assert.Equal(t, *person, user.Person)
	assert.True(t, c.IsSingleton("user"))
	assert.True(t, c.ContainsBean("user"))
	assert.False(t, c.ContainsBean("missing"))
}

func TestRefreshSkipsLazyAndPrototype(t *testing.T) {
	proto := beans.Define("counter", func(beans.Dependencies, *config.Environment) (*Person, error) {
		return &Person{}, nil
	}, beans.WithPrototype())
	c := newContext(t, personDef(beans.WithLazy()), proto)
	require.NoError(t, c.Refresh())

	_, ok := c.GetBean("person")
	assert.False(t, ok)
	_, ok = c.GetBean("counter")
	assert.False(t, ok)

	p1, err := DoCreateBean[*Person](c, "person")
	require.NoError(t, err)
	p2, err := DoCreateBean[*Person](c, "person")
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	_, ok = c.GetBean("person")
	assert.True(t, ok)

	c1, err := c.DoCreateBean("counter")
	require.NoError(t, err)
	c2, err := c.DoCreateBean("counter")
	require.NoError(t, err)
	assert.NotSame(t, c1, c2)
	assert.Equal(t, c1, c2)
	assert.False(t, c.IsSingleton("counter"))
}

func TestStateMachine(t *testing.T) {
	c := newContext(t, personDef())
	assert.Equal(t, StateUnrefreshed, c.State())
	assert.False(t, c.IsActive())

	require.NoError(t, c.Refresh())
	assert.Equal(t, StateActive, c.State())
	assert.True(t, c.IsActive())
	assert.ErrorIs(t, c.Refresh(), ErrAlreadyRefreshed)

	require.NoError(t, c.Close())
	assert.Equal(t, StateClosed, c.State())
	assert.False(t, c.IsActive())
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Refresh(), ErrContextClosed)
	_, err := c.DoCreateBean("person")
	assert.ErrorIs(t, err, ErrContextClosed)
	assert.ErrorIs(t, c.RegisterDefinition(personDef()), ErrContextClosed)
	_, ok := c.GetBean("person")
	assert.False(t, ok)
	assert.Equal(t, "Closed", c.State().String())
}

func TestCloseBeforeRefresh(t *testing.T) {
	c := newContext(t, personDef())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Refresh(), ErrContextClosed)
}

func TestRefreshContinuesPastFailures(t *testing.T) {
	boom := errors.New("boom")
	broken := beans.Define("broken", func(beans.Dependencies, *config.Environment) (*Person, error) {
		return nil, boom
	})
	dependent := beans.Define("dependent", func(beans.Dependencies, *config.Environment) (*User, error) {
		return &User{}, nil
	}, beans.WithDependsOn("broken"))

	var refreshed ContextRefreshedEvent
	c := NewApplicationContext(WithListeners(ListenerFunc(func(e Event) {
		if ev, ok := e.(ContextRefreshedEvent); ok {
			refreshed = ev
		}
	})))
	for _, d := range []*beans.Definition{broken, dependent, personDef()} {
		require.NoError(t, c.RegisterDefinition(d))
	}

	err := c.Refresh()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, c.IsActive())

	_, ok := c.GetBean("person")
	assert.True(t, ok)
	_, ok = c.GetBean("dependent")
	assert.False(t, ok)
	assert.Equal(t, []string{"broken", "dependent"}, refreshed.Failed)
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type service struct {
	name      string
	rec       *recorder
	running   bool
	failStart bool
}

func (s *service) Start(context.Context) error {
	if s.failStart {
		return errors.New("cannot start")
	}
	s.running = true
	s.rec.add("start:" + s.name)
	return nil
}

func (s *service) Stop(context.Context) error {
	s.running = false
	s.rec.add("stop:" + s.name)
	return nil
}

func (s *service) IsRunning() bool { return s.running }

func (s *service) Destroy() error {
	s.rec.add("destroy:" + s.name)
	return nil
}

func serviceDef(name string, rec *recorder, failStart bool, opts ...beans.Option) *beans.Definition {
	return beans.Define(name, func(beans.Dependencies, *config.Environment) (*service, error) {
		return &service{name: name, rec: rec, failStart: failStart}, nil
	}, opts...)
}

func TestLifecycleStartStopOrder(t *testing.T) {
	rec := &recorder{}
	c := newContext(t,
		serviceDef("b", rec, false, beans.WithDependsOn("a")),
		serviceDef("a", rec, false),
	)

	assert.ErrorIs(t, c.Start(context.Background()), ErrNotActive)
	require.NoError(t, c.Refresh())
	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.IsRunning())

	require.NoError(t, c.Close())
	assert.False(t, c.IsRunning())
	assert.Equal(t, []string{
		"start:a", "start:b",
		"stop:b", "stop:a",
		"destroy:b", "destroy:a",
	}, rec.list())
}

func TestLifecycleStartFailureRollsBack(t *testing.T) {
	rec := &recorder{}
	c := newContext(t,
		serviceDef("a", rec, false),
		serviceDef("b", rec, true),
	)
	require.NoError(t, c.Refresh())

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")
	assert.False(t, c.IsRunning())
	assert.Equal(t, []string{"start:a", "stop:a"}, rec.list())
}

type eventLog struct {
	rec *recorder
}

func (l *eventLog) OnEvent(e Event) {
	l.rec.add(e.EventName())
}

func TestListenerBeansReceiveEvents(t *testing.T) {
	rec := &recorder{}
	listener := beans.Define("eventLog", func(beans.Dependencies, *config.Environment) (*eventLog, error) {
		return &eventLog{rec: rec}, nil
	})
	c := newContext(t, listener)
	c.AddListener(ListenerFunc(func(Event) { panic("listener bug") }))

	require.NoError(t, c.Refresh())
	require.NoError(t, c.Start(context.Background()))
	c.environmentChanged(config.NewEnvironmentFrom(map[string]string{"a": "1"}))
	require.NoError(t, c.Close())

	assert.Equal(t, []string{
		"ContextRefreshed",
		"ContextStarted",
		"EnvironmentChanged",
		"ContextStopped",
		"ContextClosed",
	}, rec.list())
}

func TestListenerRegisteredOnce(t *testing.T) {
	rec := &recorder{}
	l := &eventLog{rec: rec}
	c := NewApplicationContext(WithListeners(l))
	c.AddListener(l)

	c.Publish(ContextStartedEvent{Context: c})
	assert.Equal(t, []string{"ContextStarted"}, rec.list())
}

type wrapped struct {
	inner any
}

type wrappingProcessor struct{}

func (wrappingProcessor) PostProcessBeforeInitialization(bean any, _ string) (any, error) {
	return bean, nil
}

func (wrappingProcessor) PostProcessAfterInitialization(bean any, name string) (any, error) {
	if name == "person" {
		return &wrapped{inner: bean}, nil
	}
	return bean, nil
}

func TestPostProcessorsFromOptions(t *testing.T) {
	c := NewApplicationContext(WithPostProcessors(wrappingProcessor{}))
	require.NoError(t, c.RegisterDefinition(personDef()))
	require.NoError(t, c.Refresh())

	bean, ok := GetBean[*wrapped](c, "person")
	require.True(t, ok)
	assert.IsType(t, &Person{}, bean.inner)

	_, ok = GetBean[*Person](c, "person")
	assert.False(t, ok)
}

func TestRemoveDefinition(t *testing.T) {
	c := newContext(t, personDef())
	assert.True(t, c.RemoveDefinition("person"))
	assert.False(t, c.RemoveDefinition("person"))
	require.NoError(t, c.Refresh())
	_, err := c.DoCreateBean("person")
	assert.ErrorIs(t, err, beans.ErrBeanNotFound)
}

type serverProperties struct {
	Host string `prop:"host" validate:"required"`
	Port int    `prop:"port" validate:"min=1,max=65535"`
}

func TestConfigurationProperties(t *testing.T) {
	env := config.NewEnvironmentFrom(map[string]string{
		"server.host": "localhost",
		"server.port": "8080",
	})
	c := NewApplicationContext(WithEnvironment(env))
	require.NoError(t, c.RegisterDefinition(ConfigurationProperties[serverProperties]("serverProperties", "server")))
	require.NoError(t, c.Refresh())

	props, ok := GetBean[*serverProperties](c, "serverProperties")
	require.True(t, ok)
	assert.Equal(t, "localhost", props.Host)
	assert.Equal(t, 8080, props.Port)
}

func TestConfigurationPropertiesValidation(t *testing.T) {
	env := config.NewEnvironmentFrom(map[string]string{"server.port": "0"})
	c := NewApplicationContext(WithEnvironment(env))
	require.NoError(t, c.RegisterDefinition(ConfigurationProperties[serverProperties]("serverProperties", "server")))

	err := c.Refresh()
	var creationErr *beans.BeanCreationError
	require.ErrorAs(t, err, &creationErr)
	assert.Equal(t, "serverProperties", creationErr.Bean)
}

func TestContextIdentity(t *testing.T) {
	a, b := NewApplicationContext(), NewApplicationContext()
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.False(t, a.StartupDate().IsZero())
	assert.Contains(t, a.String(), a.ID())
}
