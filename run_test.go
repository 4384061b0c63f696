package spring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocrud/spring/beans"
	"github.com/gocrud/spring/config"
	"github.com/gocrud/spring/core"
)

type greeter struct {
	Greeting string `value:"${greeting:hello}"`
}

func TestRunContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var created *greeter
	err := RunContext(ctx, func(b *core.ApplicationBuilder) {
		b.AddDefinitions(beans.Component[greeter]()).
			AddListener(core.ListenerFunc(func(e core.Event) {
				if ev, ok := e.(core.ContextRefreshedEvent); ok {
					created, _ = core.GetBean[*greeter](ev.Context, "greeter")
				}
			}))
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "hello", created.Greeting)
}

func TestRunContextBuildError(t *testing.T) {
	bad := beans.Define("", func(beans.Dependencies, *config.Environment) (int, error) { return 0, nil })
	err := RunContext(context.Background(), func(b *core.ApplicationBuilder) {
		b.AddDefinitions(bad)
	})
	assert.Error(t, err)
}

func TestNewApplicationContext(t *testing.T) {
	c := NewApplicationContext()
	assert.Equal(t, core.StateUnrefreshed, c.State())
	assert.NotNil(t, NewApplicationBuilder())
}
