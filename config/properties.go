package config

import (
	"os"
	"strings"
)

// ParseProperties 解析 .properties 格式文本
//
//   - 每行一个 key=value，只有第一个 '=' 作为分隔符
//   - 空行以及 '#' 或 '!' 开头的行为注释
//   - key 和 value 两端空白会被去掉，空 key 的行被忽略
func ParseProperties(content string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		props[key] = strings.TrimSpace(value)
	}
	return props
}

// LoadProperties 读取并解析 .properties 文件
func LoadProperties(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseProperties(string(data)), nil
}
