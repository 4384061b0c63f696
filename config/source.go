package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PropertySource 属性源接口
// Load 返回扁平化后的 key/value，嵌套结构以 '.' 连接
type PropertySource interface {
	Name() string
	Load() (map[string]string, error)
}

// MapPropertySource 内存属性源
type MapPropertySource struct {
	SourceName string
	Data       map[string]string
}

// NewMapPropertySource 创建内存属性源
func NewMapPropertySource(name string, data map[string]string) *MapPropertySource {
	return &MapPropertySource{SourceName: name, Data: data}
}

func (s *MapPropertySource) Name() string {
	if s.SourceName == "" {
		return "InMemory"
	}
	return s.SourceName
}

func (s *MapPropertySource) Load() (map[string]string, error) {
	return maps.Clone(s.Data), nil
}

// PropertiesFileSource .properties 文件属性源
type PropertiesFileSource struct {
	Path     string
	Optional bool
}

func (s *PropertiesFileSource) Name() string {
	return fmt.Sprintf("PropertiesFile(%s)", s.Path)
}

func (s *PropertiesFileSource) Load() (map[string]string, error) {
	data, err := readSourceFile(s.Path, s.Optional)
	if err != nil || data == nil {
		return map[string]string{}, err
	}
	return ParseProperties(string(data)), nil
}

// YamlFileSource YAML 文件属性源
type YamlFileSource struct {
	Path     string
	Optional bool
}

func (s *YamlFileSource) Name() string {
	return fmt.Sprintf("YamlFile(%s)", s.Path)
}

func (s *YamlFileSource) Load() (map[string]string, error) {
	data, err := readSourceFile(s.Path, s.Optional)
	if err != nil || data == nil {
		return map[string]string{}, err
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	result := make(map[string]string)
	flatten(result, "", doc)
	return result, nil
}

// JsonFileSource JSON 文件属性源
type JsonFileSource struct {
	Path     string
	Optional bool
}

func (s *JsonFileSource) Name() string {
	return fmt.Sprintf("JsonFile(%s)", s.Path)
}

func (s *JsonFileSource) Load() (map[string]string, error) {
	data, err := readSourceFile(s.Path, s.Optional)
	if err != nil || data == nil {
		return map[string]string{}, err
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	result := make(map[string]string)
	flatten(result, "", doc)
	return result, nil
}

// DotenvFileSource .env 文件属性源
// key 按环境变量规则转换：小写，'_' 换成 '.'
type DotenvFileSource struct {
	Path     string
	Optional bool
}

func (s *DotenvFileSource) Name() string {
	return fmt.Sprintf("DotenvFile(%s)", s.Path)
}

func (s *DotenvFileSource) Load() (map[string]string, error) {
	data, err := readSourceFile(s.Path, s.Optional)
	if err != nil || data == nil {
		return map[string]string{}, err
	}

	env, err := godotenv.UnmarshalBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dotenv: %w", err)
	}
	result := make(map[string]string, len(env))
	for k, v := range env {
		result[envKey(k)] = v
	}
	return result, nil
}

// EnvironmentVariableSource 环境变量属性源
// 只取带 Prefix 的变量，去掉前缀后转小写并把 '_' 换成 '.'
type EnvironmentVariableSource struct {
	Prefix string
}

func (s *EnvironmentVariableSource) Name() string {
	return fmt.Sprintf("EnvironmentVariables(%s)", s.Prefix)
}

func (s *EnvironmentVariableSource) Load() (map[string]string, error) {
	result := make(map[string]string)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if s.Prefix != "" {
			if !strings.HasPrefix(key, s.Prefix) {
				continue
			}
			key = strings.TrimPrefix(key, s.Prefix)
		}
		if key = envKey(key); key == "" {
			continue
		}
		result[key] = value
	}
	return result, nil
}

func envKey(key string) string {
	key = strings.Trim(key, "_")
	return strings.ReplaceAll(strings.ToLower(key), "_", ".")
}

// readSourceFile 读取文件，可选文件不存在时返回 nil, nil
func readSourceFile(path string, optional bool) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// flatten 把嵌套结构展开为 "a.b.c" 形式，列表元素用 "a[0]"
func flatten(dst map[string]string, prefix string, value any) {
	switch v := value.(type) {
	case map[string]any:
		for k, child := range v {
			flatten(dst, joinKey(prefix, k), child)
		}
	case map[any]any:
		for k, child := range v {
			flatten(dst, joinKey(prefix, fmt.Sprint(k)), child)
		}
	case []any:
		for i, child := range v {
			flatten(dst, prefix+"["+strconv.Itoa(i)+"]", child)
		}
	case nil:
		if prefix != "" {
			dst[prefix] = ""
		}
	case string:
		dst[prefix] = v
	case bool:
		dst[prefix] = strconv.FormatBool(v)
	case float64:
		dst[prefix] = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		dst[prefix] = fmt.Sprint(v)
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
