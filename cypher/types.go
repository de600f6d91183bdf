// Package cypher 把写目标编译为参数化的 Cypher 语句。
//
// WriteTarget 描述一次任务写什么（原生查询、节点集或关系集）；
// Compile 产出单个语句模板，批次绑定到列表参数 $events，
// 每行对应一个元素。
package cypher

import "strings"

// SaveMode 选择实体写入使用的 Cypher 动词
type SaveMode int

const (
	// SaveModeCreate 无条件插入（CREATE）
	SaveModeCreate SaveMode = iota
	// SaveModeOverwrite 按 key 合并（MERGE），幂等 upsert
	SaveModeOverwrite
	// SaveModeMatch 要求实体已存在（MATCH）
	SaveModeMatch
)

// String returns the string representation of SaveMode
func (m SaveMode) String() string {
	switch m {
	case SaveModeCreate:
		return "Create"
	case SaveModeOverwrite:
		return "Overwrite"
	case SaveModeMatch:
		return "Match"
	default:
		return "Unknown"
	}
}

// keyword 保存模式对应的 Cypher 子句关键字
func (m SaveMode) keyword() string {
	switch m {
	case SaveModeCreate:
		return "CREATE"
	case SaveModeOverwrite:
		return "MERGE"
	case SaveModeMatch:
		return "MATCH"
	default:
		return "CREATE"
	}
}

// ParseSaveMode 解析外部保存模式名。ErrorIfExists 映射到 Create 动词；
// Append 与 Overwrite 都映射到 Merge 动词。
func ParseSaveMode(s string) (SaveMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "errorifexists", "create":
		return SaveModeCreate, nil
	case "append", "overwrite":
		return SaveModeOverwrite, nil
	case "match":
		return SaveModeMatch, nil
	default:
		return 0, &ConfigurationError{Option: "save mode", Reason: "unknown value \"" + s + "\""}
	}
}

// Strategy 选择关系目标绑定端点的方式
type Strategy int

const (
	// StrategyNative 从保留的 source.* / target.* / rel.* 列组推导端点与关系属性
	StrategyNative Strategy = iota
	// StrategyKeys 使用配置中显式的 key/属性映射
	StrategyKeys
)

// String returns the string representation of Strategy
func (s Strategy) String() string {
	switch s {
	case StrategyNative:
		return "native"
	case StrategyKeys:
		return "keys"
	default:
		return "unknown"
	}
}

// ParseStrategy 解析关系保存策略名
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "native":
		return StrategyNative, nil
	case "keys":
		return StrategyKeys, nil
	default:
		return 0, &ConfigurationError{Option: "relationship.save.strategy", Reason: "unknown value \"" + s + "\""}
	}
}

// NodeSpec 描述一个节点集。首个 label 是 schema
// 操作（索引、约束）的作用范围。
type NodeSpec struct {
	Labels     []string
	Keys       KeyMapping
	Properties KeyMapping // 空表示全部非 key 列
	SaveMode   SaveMode
}

// RelationshipSpec 描述一个关系集及其源、目标节点集
type RelationshipSpec struct {
	Type       string
	Source     NodeSpec
	Target     NodeSpec
	Properties KeyMapping // 仅 keys 策略
	Strategy   Strategy
	SaveMode   SaveMode // Create 或 Overwrite
}

// TargetKind 标记 WriteTarget 的活动变体
type TargetKind int

const (
	TargetRawQuery TargetKind = iota
	TargetNode
	TargetRelationship
)

// String returns the string representation of TargetKind
func (k TargetKind) String() string {
	switch k {
	case TargetRawQuery:
		return "query"
	case TargetNode:
		return "node"
	case TargetRelationship:
		return "relationship"
	default:
		return "unknown"
	}
}

// WriteTarget 原生查询、节点集或关系集三者择一的写目标。
// 每个写任务恰好有一个活动变体。
type WriteTarget struct {
	kind  TargetKind
	query string
	node  *NodeSpec
	rel   *RelationshipSpec
}

// RawQueryTarget 把调用方提供的语句包装为写目标
func RawQueryTarget(query string) WriteTarget {
	return WriteTarget{kind: TargetRawQuery, query: query}
}

// NodeTarget 把节点 spec 包装为写目标
func NodeTarget(spec NodeSpec) WriteTarget {
	return WriteTarget{kind: TargetNode, node: &spec}
}

// RelationshipTarget 把关系 spec 包装为写目标
func RelationshipTarget(spec RelationshipSpec) WriteTarget {
	return WriteTarget{kind: TargetRelationship, rel: &spec}
}

// Kind 返回活动变体标记
func (t WriteTarget) Kind() TargetKind { return t.kind }

// Query 返回 TargetRawQuery 目标的原生语句
func (t WriteTarget) Query() string { return t.query }

// Node 返回 TargetNode 目标的 spec，否则为 nil
func (t WriteTarget) Node() *NodeSpec { return t.node }

// Relationship 返回 TargetRelationship 目标的 spec，否则为 nil
func (t WriteTarget) Relationship() *RelationshipSpec { return t.rel }

// Name 返回用于指标和日志的短标识：首个节点 label、关系类型或 "query"
func (t WriteTarget) Name() string {
	switch t.kind {
	case TargetNode:
		if len(t.node.Labels) > 0 {
			return t.node.Labels[0]
		}
		return "node"
	case TargetRelationship:
		return t.rel.Type
	default:
		return "query"
	}
}

// ParseLabels 切分冒号连接的 label 列表，如 ":Person:Customer"。
// 前导冒号可省略；空段被丢弃。
func ParseLabels(s string) []string {
	parts := strings.Split(s, ":")
	labels := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			labels = append(labels, p)
		}
	}
	return labels
}
