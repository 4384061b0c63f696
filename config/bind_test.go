package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serverProps struct {
	Host    string        `prop:"host" validate:"required"`
	Port    int           `prop:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `prop:"timeout"`
	Tags    []string      `prop:"tags"`
	Hosts   []string
	TLS     tlsProps `prop:"tls"`
	Ignored string   `prop:"-"`
}

type tlsProps struct {
	Enabled  bool
	CertFile string
}

func TestBind(t *testing.T) {
	env := NewEnvironmentFrom(map[string]string{
		"server.host":         "localhost",
		"server.port":         "8080",
		"server.timeout":      "3s",
		"server.tags":         "a, b",
		"server.hosts[0]":     "h1",
		"server.hosts[1]":     "h2",
		"server.tls.enabled":  "true",
		"server.tls.certFile": "/etc/cert.pem",
		"server.ignored":      "x",
	})

	props, err := Load[serverProps](env, "server")
	require.NoError(t, err)

	assert.Equal(t, "localhost", props.Host)
	assert.Equal(t, 8080, props.Port)
	assert.Equal(t, 3*time.Second, props.Timeout)
	assert.Equal(t, []string{"a", "b"}, props.Tags)
	assert.Equal(t, []string{"h1", "h2"}, props.Hosts)
	assert.True(t, props.TLS.Enabled)
	assert.Equal(t, "/etc/cert.pem", props.TLS.CertFile)
	assert.Empty(t, props.Ignored)
}

func TestBindValidation(t *testing.T) {
	env := NewEnvironmentFrom(map[string]string{"server.port": "70000"})

	_, err := Load[serverProps](env, "server")
	assert.Error(t, err)
}

func TestBindConversionError(t *testing.T) {
	env := NewEnvironmentFrom(map[string]string{"server.host": "h", "server.port": "eighty"})

	_, err := Load[serverProps](env, "server")
	var injErr *ValueInjectionError
	require.True(t, errors.As(err, &injErr))
	assert.Equal(t, "server.port", injErr.Key)
	assert.Equal(t, "Port", injErr.Field)
}

type injected struct {
	Name    string `value:"${app.name:demo}"`
	Port    int    `value:"${server.port}"`
	Debug   bool   `value:"${debug:false}"`
	Literal string `value:"fixed"`
	Plain   string
}

func TestInjectValues(t *testing.T) {
	env := NewEnvironmentFrom(map[string]string{"server.port": "9090"})

	var target injected
	require.NoError(t, InjectValues(env, &target))

	assert.Equal(t, "demo", target.Name)
	assert.Equal(t, 9090, target.Port)
	assert.False(t, target.Debug)
	assert.Equal(t, "fixed", target.Literal)
	assert.Empty(t, target.Plain)
}

func TestInjectValuesMissingKey(t *testing.T) {
	var target injected
	err := InjectValues(NewEnvironment(), &target)

	var injErr *ValueInjectionError
	require.True(t, errors.As(err, &injErr))
	assert.Equal(t, "server.port", injErr.Key)
	assert.True(t, errors.Is(err, ErrPropertyNotFound))
}

func TestInjectValuesRejectsNonPointer(t *testing.T) {
	assert.Error(t, InjectValues(NewEnvironment(), injected{}))
}

func TestLowerFirst(t *testing.T) {
	assert.Equal(t, "host", lowerFirst("Host"))
	assert.Equal(t, "urlPath", lowerFirst("URLPath"))
	assert.Equal(t, "id", lowerFirst("ID"))
	assert.Equal(t, "already", lowerFirst("already"))
}

func TestWatcherReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.properties")
	require.NoError(t, os.WriteFile(path, []byte("greeting=hello\n"), 0o644))

	builder := NewEnvironmentBuilder().AddPropertiesFile(path)
	env, err := builder.Build()
	require.NoError(t, err)

	w, err := NewWatcher(env, builder, nil, path)
	require.NoError(t, err)
	w.SetDebounce(10 * time.Millisecond)

	changed := make(chan string, 1)
	w.OnChange(func(e *Environment) {
		select {
		case changed <- e.GetProperty("greeting"):
		default:
		}
	})
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("greeting=bonjour\n"), 0o644))

	select {
	case v := <-changed:
		assert.Equal(t, "bonjour", v)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload")
	}
	assert.Equal(t, "bonjour", env.GetProperty("greeting"))
}
