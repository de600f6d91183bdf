package cypher

import (
	"sort"
	"strings"
)

// Row 表格源产出的一条记录：列名到标量或嵌套 map 值
type Row map[string]any

// RowSchema 输入行的有序列清单，在读到第一行之前即已知
type RowSchema []string

// Has 判断 schema 是否包含指定列
func (s RowSchema) Has(column string) bool {
	for _, c := range s {
		if c == column {
			return true
		}
	}
	return false
}

// KeyPair 一个源列到一个目标 key/属性名的映射
type KeyPair struct {
	Column string
	Target string
}

// KeyMapping 有序的列到目标名映射序列
type KeyMapping []KeyPair

// ParseMapping 解析紧凑映射串，如 "a:b,c" 解析为 [(a,b),(c,c)]。
// 裸 token 表示列映射到自身。多于一个冒号的 token、
// 空 token 与重复列都会被拒绝。
func ParseMapping(spec string) (KeyMapping, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}
	tokens := strings.Split(spec, ",")
	mapping := make(KeyMapping, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, &MalformedMappingError{Spec: spec}
		}
		parts := strings.Split(token, ":")
		if len(parts) > 2 {
			return nil, &MalformedMappingError{Spec: spec, Token: token}
		}
		pair := KeyPair{Column: strings.TrimSpace(parts[0])}
		if pair.Column == "" {
			return nil, &MalformedMappingError{Spec: spec, Token: token}
		}
		if len(parts) == 2 {
			pair.Target = strings.TrimSpace(parts[1])
			if pair.Target == "" {
				return nil, &MalformedMappingError{Spec: spec, Token: token}
			}
		} else {
			pair.Target = pair.Column
		}
		if _, dup := seen[pair.Column]; dup {
			return nil, &MalformedMappingError{Spec: spec, Token: token}
		}
		seen[pair.Column] = struct{}{}
		mapping = append(mapping, pair)
	}
	return mapping, nil
}

// Columns 返回映射的源列，保持顺序
func (m KeyMapping) Columns() []string {
	cols := make([]string, len(m))
	for i, pair := range m {
		cols[i] = pair.Column
	}
	return cols
}

// Targets 返回映射的目标名，保持顺序
func (m KeyMapping) Targets() []string {
	targets := make([]string, len(m))
	for i, pair := range m {
		targets[i] = pair.Target
	}
	return targets
}

// Validate 对照行 schema 校验每个映射列。在计划期使用，
// 坏映射在任何 I/O 之前失败。
func (m KeyMapping) Validate(schema RowSchema) error {
	for _, pair := range m {
		if !schema.Has(pair.Column) {
			return &MissingColumnError{Column: pair.Column, Target: pair.Target}
		}
	}
	return nil
}

// Resolve 把扁平化的行按映射取值，产出目标名到值
func (m KeyMapping) Resolve(row Row) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for _, pair := range m {
		value, ok := row[pair.Column]
		if !ok {
			return nil, &MissingColumnError{Column: pair.Column, Target: pair.Target}
		}
		out[pair.Target] = value
	}
	return out, nil
}

// Flatten 递归地把嵌套 map 列替换为点路径标量列，结果中不再有 map 值。
// 空 map 列保留列本身，值置为 nil，列不会丢失。
// map 深度受 schema 约束，递归必然终止。
func Flatten(row Row) Row {
	flat := make(Row, len(row))
	flattenInto(flat, "", row)
	return flat
}

func flattenInto(flat Row, prefix string, value map[string]any) {
	for key, v := range value {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		if nested, ok := asMap(v); ok {
			if len(nested) == 0 {
				// 空 map 没有可展开的路径，保留列本身，值置为 nil
				flat[name] = nil
				continue
			}
			flattenInto(flat, name, nested)
			continue
		}
		flat[name] = v
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Row:
		return m, true
	case map[string]any:
		return m, true
	default:
		return nil, false
	}
}

// FlattenSchema 按样本行的嵌套布局对 schema 应用扁平化规则：
// map 类型的列展开为点路径列。
func FlattenSchema(schema RowSchema, sample Row) RowSchema {
	if sample == nil {
		return schema
	}
	flat := Flatten(sample)
	out := make(RowSchema, 0, len(schema))
	for _, col := range schema {
		if _, nested := asMap(sample[col]); !nested {
			out = append(out, col)
			continue
		}
		prefix := col + "."
		expanded := make([]string, 0, 4)
		for name := range flat {
			if name == col || strings.HasPrefix(name, prefix) {
				expanded = append(expanded, name)
			}
		}
		sort.Strings(expanded)
		out = append(out, expanded...)
	}
	return out
}
