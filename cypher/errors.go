package cypher

import "fmt"

// MalformedMappingError 映射 token 为空或带有多个冒号
type MalformedMappingError struct {
	Spec  string
	Token string
}

func (e *MalformedMappingError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("malformed mapping %q: empty token", e.Spec)
	}
	return fmt.Sprintf("malformed mapping %q: invalid token %q", e.Spec, e.Token)
}

// MissingColumnError 配置的映射引用了行 schema 中不存在的列
type MissingColumnError struct {
	Column string
	Target string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("mapped column %q (target %q) is not present in the row schema", e.Column, e.Target)
}

// ConfigurationError 写配置非法或缺失，在计划期、
// 发送任何语句之前被检出
type ConfigurationError struct {
	Option string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %q: %s", e.Option, e.Reason)
}

// SchemaMismatchError 请求了 native 关系策略，但 schema 中
// 缺少对应的保留列组
type SchemaMismatchError struct {
	Group string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("native strategy requires the reserved %q column group, none found in the row schema", e.Group)
}
