package scheduling

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocrud/spring/aop"
	"github.com/gocrud/spring/beans"
	"github.com/gocrud/spring/config"
	"github.com/gocrud/spring/core"
)

type reportService struct {
	runs atomic.Int32
}

func (r *reportService) Generate() error {
	r.runs.Add(1)
	return nil
}

func generateTask(spec string) Task {
	return Task{
		Spec:   spec,
		Bean:   "reportService",
		Method: "generate",
		Run:    func(bean any) error { return bean.(*reportService).Generate() },
	}
}

func TestScheduleValidatesTasks(t *testing.T) {
	s, err := NewScheduler(nil)
	require.NoError(t, err)

	assert.Error(t, s.Schedule(Task{Bean: "a", Method: "b", Run: func(any) error { return nil }}, nil))
	assert.Error(t, s.Schedule(Task{Spec: "@every 1m", Run: func(any) error { return nil }}, nil))
	assert.Error(t, s.Schedule(Task{Spec: "@every 1m", Bean: "a", Method: "b"}, nil))
	assert.Error(t, s.Schedule(generateTask("not a cron spec"), &reportService{}))

	require.NoError(t, s.Schedule(generateTask("@every 1m"), &reportService{}))
	assert.Error(t, s.Schedule(generateTask("@every 1m"), &reportService{}))
	assert.Equal(t, []string{"reportService::generate"}, s.Tasks())

	assert.True(t, s.Unschedule("reportService::generate"))
	assert.False(t, s.Unschedule("reportService::generate"))
	assert.Empty(t, s.Tasks())
}

func TestInvalidLocation(t *testing.T) {
	_, err := NewScheduler(nil, WithLocation("Mars/Olympus"))
	assert.Error(t, err)
}

func TestRunFiresAdvice(t *testing.T) {
	advice := aop.NewRegistry()
	var seen []string
	require.NoError(t, advice.RegisterBefore("reportService::generate", func(jp aop.JoinPoint) {
		seen = append(seen, "before:"+jp.String())
	}))
	require.NoError(t, advice.RegisterAfter("reportService::generate", func(jp aop.JoinPoint) {
		seen = append(seen, "after:"+jp.String())
	}))

	s, err := NewScheduler(advice, WithSeconds())
	require.NoError(t, err)

	svc := &reportService{}
	require.NoError(t, s.run(generateTask("* * * * * *"), svc))
	assert.Equal(t, int32(1), svc.runs.Load())
	assert.Equal(t, []string{"before:reportService::generate", "after:reportService::generate"}, seen)

	boom := errors.New("boom")
	failing := generateTask("* * * * * *")
	failing.Run = func(any) error { return boom }
	assert.ErrorIs(t, s.run(failing, svc), boom)
	assert.Len(t, seen, 4)
}

func TestStartStop(t *testing.T) {
	s, err := NewScheduler(nil)
	require.NoError(t, err)
	require.NoError(t, s.Schedule(generateTask("@every 1h"), &reportService{}))

	assert.False(t, s.IsRunning())
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	next, ok := s.Next("reportService::generate")
	require.True(t, ok)
	assert.True(t, next.After(time.Now()))
	_, ok = s.Next("missing")
	assert.False(t, ok)

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.IsRunning())
	require.NoError(t, s.Stop(context.Background()))
}

func TestSchedulerAsLifecycleBean(t *testing.T) {
	svc := &reportService{}
	report := beans.Define("reportService", func(beans.Dependencies, *config.Environment) (*reportService, error) {
		return svc, nil
	})

	c := core.NewApplicationContext()
	require.NoError(t, c.RegisterDefinition(report))
	ext := NewExtension(generateTask("@every 1s")).WithOptions(WithLocation("UTC"))
	assert.Equal(t, "scheduling", ext.Name())
	require.NoError(t, ext.ConfigureContext(c))

	require.NoError(t, c.Refresh())
	scheduler, ok := core.GetBean[*Scheduler](c, DefaultBeanName)
	require.True(t, ok)

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, scheduler.IsRunning())
	require.Eventually(t, func() bool { return svc.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	require.NoError(t, c.Close())
	assert.False(t, scheduler.IsRunning())
}

func TestDefinitionDependsOnTaskBeans(t *testing.T) {
	def := Definition("scheduler", nil, []Task{generateTask("@every 1m"), generateTask("@every 2m")})
	assert.Equal(t, []string{"reportService"}, def.DependsOn)
	assert.True(t, def.IsSingleton())
}
