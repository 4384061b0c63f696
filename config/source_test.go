package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseProperties(t *testing.T) {
	props := ParseProperties("# comment\nkey = value \n\nfoo=bar=baz")
	assert.Equal(t, map[string]string{"key": "value", "foo": "bar=baz"}, props)
}

func TestParsePropertiesSkipsInvalidLines(t *testing.T) {
	props := ParseProperties("! bang comment\n  =orphan\nnoequals\r\nempty=\n")
	assert.Equal(t, map[string]string{"empty": ""}, props)
}

func TestLoadPropertiesMissingFile(t *testing.T) {
	_, err := LoadProperties(filepath.Join(t.TempDir(), "nope.properties"))
	assert.Error(t, err)
}

func TestPropertiesFileSourceOptional(t *testing.T) {
	src := &PropertiesFileSource{Path: filepath.Join(t.TempDir(), "missing.properties"), Optional: true}
	props, err := src.Load()
	require.NoError(t, err)
	assert.Empty(t, props)

	src.Optional = false
	_, err = src.Load()
	assert.Error(t, err)
}

func TestYamlFileSourceFlattens(t *testing.T) {
	path := writeFile(t, "application.yaml", `
server:
  host: localhost
  port: 8080
  tls:
    enabled: true
hosts:
  - a
  - b
ratio: 0.5
`)
	props, err := (&YamlFileSource{Path: path}).Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", props["server.host"])
	assert.Equal(t, "8080", props["server.port"])
	assert.Equal(t, "true", props["server.tls.enabled"])
	assert.Equal(t, "a", props["hosts[0]"])
	assert.Equal(t, "b", props["hosts[1]"])
	assert.Equal(t, "0.5", props["ratio"])
}

func TestJsonFileSourceFlattens(t *testing.T) {
	path := writeFile(t, "application.json", `{"server":{"port":8080,"name":"api"},"debug":false}`)
	props, err := (&JsonFileSource{Path: path}).Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", props["server.port"])
	assert.Equal(t, "api", props["server.name"])
	assert.Equal(t, "false", props["debug"])
}

func TestJsonFileSourceInvalid(t *testing.T) {
	path := writeFile(t, "broken.json", `{"server":`)
	_, err := (&JsonFileSource{Path: path}).Load()
	assert.Error(t, err)
}

func TestDotenvFileSource(t *testing.T) {
	path := writeFile(t, ".env", "SERVER_PORT=9090\n# comment\nAPP_NAME=\"demo app\"\n")
	props, err := (&DotenvFileSource{Path: path}).Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", props["server.port"])
	assert.Equal(t, "demo app", props["app.name"])
}

func TestEnvironmentVariableSource(t *testing.T) {
	t.Setenv("SPRINGTEST_SERVER_PORT", "7070")
	t.Setenv("OTHER_VALUE", "ignored")

	props, err := (&EnvironmentVariableSource{Prefix: "SPRINGTEST_"}).Load()
	require.NoError(t, err)

	assert.Equal(t, "7070", props["server.port"])
	_, ok := props["other.value"]
	assert.False(t, ok)
}

func TestEtcdEntries(t *testing.T) {
	kvs := []*mvccpb.KeyValue{
		{Key: []byte("/app/server/port"), Value: []byte("8080")},
		{Key: []byte("/app/"), Value: []byte("root")},
		{Key: []byte("/app/name"), Value: []byte("demo")},
	}
	props := etcdEntries("/app", kvs)
	assert.Equal(t, map[string]string{"server.port": "8080", "name": "demo"}, props)
}

func TestEtcdOptionsValidate(t *testing.T) {
	assert.Error(t, (&EtcdOptions{}).Validate())
	assert.Error(t, (&EtcdOptions{Endpoints: []string{"localhost:2379"}, Timeout: -1}).Validate())

	opts := EtcdOptions{Endpoints: []string{"localhost:2379"}}
	assert.NoError(t, opts.Validate())
	opts.applyDefaults()
	assert.Equal(t, 5*time.Second, opts.Timeout)

	_, err := (&EtcdSource{}).Load()
	assert.Error(t, err)
}

func TestBuilderPriority(t *testing.T) {
	path := writeFile(t, "application.properties", "server.port=8080\napp.name=file\n")
	t.Setenv("SPRINGTEST_APP_NAME", "env")

	env, err := NewEnvironmentBuilder().
		AddInMemory(map[string]string{"server.port": "1234"}).
		AddEnvironmentVariables("SPRINGTEST_").
		AddPropertiesFile(path).
		AddYamlFile(filepath.Join(t.TempDir(), "absent.yaml"), true).
		SetActiveProfiles("test").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "1234", env.GetProperty("server.port"))
	assert.Equal(t, "env", env.GetProperty("app.name"))
	assert.Equal(t, []string{"test"}, env.ActiveProfiles())
	assert.Len(t, env.SourceNames(), 4)
}

func TestBuilderFailsOnMissingRequiredFile(t *testing.T) {
	_, err := NewEnvironmentBuilder().AddJsonFile(filepath.Join(t.TempDir(), "absent.json")).Build()
	assert.Error(t, err)
}
