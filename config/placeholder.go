package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPropertyNotFound 属性不存在且没有默认值
	ErrPropertyNotFound = errors.New("config: property not found")
	// ErrInvalidPlaceholder 占位符语法错误
	ErrInvalidPlaceholder = errors.New("config: invalid placeholder")
)

const (
	placeholderPrefix = "${"
	placeholderSuffix = "}"
	defaultSeparator  = ":"
)

// Placeholder 解析后的 ${key:default} 表达式
type Placeholder struct {
	Key        string
	Default    string
	HasDefault bool
}

// IsPlaceholder 判断 expr 是否整体为一个 ${...} 占位符
func IsPlaceholder(expr string) bool {
	return strings.HasPrefix(expr, placeholderPrefix) && strings.HasSuffix(expr, placeholderSuffix) &&
		len(expr) >= len(placeholderPrefix)+len(placeholderSuffix)
}

// ParsePlaceholder 解析 "${key}" 或 "${key:default}"
// 只按第一个 ':' 切分，默认值原样保留（不会再次展开）
func ParsePlaceholder(expr string) (Placeholder, error) {
	if !IsPlaceholder(expr) {
		return Placeholder{}, fmt.Errorf("%w: %q", ErrInvalidPlaceholder, expr)
	}
	inner := expr[len(placeholderPrefix) : len(expr)-len(placeholderSuffix)]

	p := Placeholder{Key: inner}
	if idx := strings.Index(inner, defaultSeparator); idx >= 0 {
		p.Key = inner[:idx]
		p.Default = inner[idx+len(defaultSeparator):]
		p.HasDefault = true
	}
	if strings.TrimSpace(p.Key) == "" {
		return Placeholder{}, fmt.Errorf("%w: empty key in %q", ErrInvalidPlaceholder, expr)
	}
	return p, nil
}

// resolve 在给定属性快照上解析占位符
func (p Placeholder) resolve(props map[string]string) (string, error) {
	if v, ok := props[p.Key]; ok {
		return v, nil
	}
	if p.HasDefault {
		return p.Default, nil
	}
	return "", fmt.Errorf("%w: %s", ErrPropertyNotFound, p.Key)
}

// resolveText 替换 text 中出现的每个 ${...}，不支持嵌套
func resolveText(text string, props map[string]string) (string, error) {
	var sb strings.Builder
	rest := text
	for {
		start := strings.Index(rest, placeholderPrefix)
		if start < 0 {
			sb.WriteString(rest)
			return sb.String(), nil
		}
		end := strings.Index(rest[start:], placeholderSuffix)
		if end < 0 {
			return "", fmt.Errorf("%w: unterminated placeholder in %q", ErrInvalidPlaceholder, text)
		}
		end += start

		p, err := ParsePlaceholder(rest[start : end+len(placeholderSuffix)])
		if err != nil {
			return "", err
		}
		v, err := p.resolve(props)
		if err != nil {
			return "", err
		}

		sb.WriteString(rest[:start])
		sb.WriteString(v)
		rest = rest[end+len(placeholderSuffix):]
	}
}
