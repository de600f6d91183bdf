package batchcypher

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rushairer/batchcypher/cypher"
)

// OptimizationType 摄入前的 schema 优化方式
type OptimizationType int

const (
	// OptimizationNone 不做任何优化
	OptimizationNone OptimizationType = iota
	// OptimizationIndex 为每个 NodeSpec 创建索引（首个 label + 全部 key）
	OptimizationIndex
	// OptimizationNodeConstraints 为每个 NodeSpec 创建唯一性约束
	OptimizationNodeConstraints
	// OptimizationQuery 执行调用方提供的原生 DDL（按分号切分，顺序执行）
	OptimizationQuery
)

// String returns the string representation of OptimizationType
func (t OptimizationType) String() string {
	switch t {
	case OptimizationIndex:
		return "INDEX"
	case OptimizationNodeConstraints:
		return "NODE_CONSTRAINTS"
	case OptimizationQuery:
		return "QUERY"
	default:
		return "NONE"
	}
}

// ParseOptimizationType 解析 schema.optimization.type 配置值
func ParseOptimizationType(s string) (OptimizationType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return OptimizationNone, nil
	case "INDEX":
		return OptimizationIndex, nil
	case "NODE_CONSTRAINTS":
		return OptimizationNodeConstraints, nil
	case "QUERY":
		return OptimizationQuery, nil
	default:
		return 0, &cypher.ConfigurationError{Option: "schema.optimization.type", Reason: "unknown value \"" + s + "\""}
	}
}

// Optimizer 在第一个批次之前执行一次 schema 优化语句。
// 任何一条语句失败都会在发送任何数据批次之前中止任务，
// 不会出现部分优化加部分摄入的状态。
type Optimizer struct {
	sink   Sink
	logger *zap.Logger
}

// NewOptimizer 创建 schema 优化器
func NewOptimizer(sink Sink) *Optimizer {
	return &Optimizer{sink: sink, logger: zap.NewNop()}
}

// WithLogger 设置日志器
func (o *Optimizer) WithLogger(logger *zap.Logger) *Optimizer {
	if logger != nil {
		o.logger = logger
	}
	return o
}

// Statements 推导目标对应的优化语句。QUERY 模式直接切分 rawQuery；
// INDEX / NODE_CONSTRAINTS 按目标中每个带 key 的 NodeSpec 生成一条。
func (o *Optimizer) Statements(optimization OptimizationType, target cypher.WriteTarget, rawQuery string) []string {
	switch optimization {
	case OptimizationQuery:
		return splitStatements(rawQuery)
	case OptimizationIndex, OptimizationNodeConstraints:
	default:
		return nil
	}

	var specs []cypher.NodeSpec
	switch target.Kind() {
	case cypher.TargetNode:
		specs = append(specs, *target.Node())
	case cypher.TargetRelationship:
		rel := target.Relationship()
		specs = append(specs, rel.Source, rel.Target)
	}

	var statements []string
	for _, spec := range specs {
		// 索引/约束作用于首个 label；native 端点没有 key 映射，跳过
		if len(spec.Labels) == 0 || len(spec.Keys) == 0 {
			continue
		}
		if optimization == OptimizationIndex {
			statements = append(statements, indexStatement(spec.Labels[0], spec.Keys.Targets()))
		} else {
			statements = append(statements, constraintStatement(spec.Labels[0], spec.Keys.Targets()))
		}
	}
	return statements
}

// Run 顺序执行优化语句；失败立即返回并中止任务
func (o *Optimizer) Run(ctx context.Context, optimization OptimizationType, target cypher.WriteTarget, rawQuery string) error {
	statements := o.Statements(optimization, target, rawQuery)
	for i, statement := range statements {
		o.logger.Debug("schema optimization",
			zap.String("type", optimization.String()),
			zap.String("statement", statement))
		if _, err := o.sink.ExecuteOnce(ctx, statement); err != nil {
			return fmt.Errorf("schema optimization statement %d failed (%s): %w: %w", i+1, statement, ErrJobAborted, err)
		}
	}
	return nil
}

func indexStatement(label string, keys []string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS FOR (n:%s) ON (%s)",
		escapeName(label), propertyList(keys))
}

func constraintStatement(label string, keys []string) string {
	return fmt.Sprintf("CREATE CONSTRAINT IF NOT EXISTS FOR (n:%s) REQUIRE (%s) IS UNIQUE",
		escapeName(label), propertyList(keys))
}

func propertyList(keys []string) string {
	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = "n." + escapeName(key)
	}
	return strings.Join(parts, ", ")
}

// escapeName 反引号转义 label/属性名
func escapeName(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
