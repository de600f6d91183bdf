package cypher

import "strings"

// native 关系策略消费的保留列组。
// "<source.id>" 这类元数据列由配套的读路径产出，不写回。
const (
	sourcePrefix = "source."
	targetPrefix = "target."
	relPrefix    = "rel."
)

// compileRelationship 构建关系目标的语句。端点按各自的保存模式
// 物化，关系本身按顶层保存模式：
//
//	UNWIND $events AS event
//	MATCH (source:`A` {`k`: event.source.keys.`k`})
//	MATCH (target:`B` {`k`: event.target.keys.`k`})
//	MERGE (source)-[rel:`TYPE`]->(target)
//	SET rel += event.rel.properties
//
// MATCH 端点紧跟 UNWIND 之后；Cypher 不允许更新子句之后
// 出现读取子句，除非插入 WITH。
func compileRelationship(target WriteTarget, schema RowSchema) (*Statement, error) {
	spec := target.Relationship()
	if spec.Type == "" {
		return nil, &ConfigurationError{Option: "relationship", Reason: "relationship target requires a type"}
	}
	if spec.SaveMode == SaveModeMatch {
		return nil, &ConfigurationError{Option: "save mode", Reason: "relationship save mode must be Create or Overwrite"}
	}
	if len(spec.Source.Labels) == 0 {
		return nil, &ConfigurationError{Option: "relationship.source.labels", Reason: "required"}
	}
	if len(spec.Target.Labels) == 0 {
		return nil, &ConfigurationError{Option: "relationship.target.labels", Reason: "required"}
	}

	switch spec.Strategy {
	case StrategyNative:
		return compileNativeRelationship(target, *spec, schema)
	default:
		return compileKeysRelationship(target, *spec, schema)
	}
}

// endpoint 端点编译输入的聚合
type endpoint struct {
	variable string
	path     string // 端点绑定来源的 event 子 map
	spec     NodeSpec
}

func compileKeysRelationship(target WriteTarget, spec RelationshipSpec, schema RowSchema) (*Statement, error) {
	source := endpoint{variable: "source", path: EventVar + ".source", spec: spec.Source}
	targetEnd := endpoint{variable: "target", path: EventVar + ".target", spec: spec.Target}
	for _, end := range []endpoint{source, targetEnd} {
		if len(end.spec.Keys) == 0 {
			return nil, &ConfigurationError{
				Option: "relationship." + end.variable + ".node.keys",
				Reason: "keys strategy requires explicit node keys",
			}
		}
		if err := end.spec.Keys.Validate(schema); err != nil {
			return nil, err
		}
		if err := end.spec.Properties.Validate(schema); err != nil {
			return nil, err
		}
	}
	if err := spec.Properties.Validate(schema); err != nil {
		return nil, err
	}

	// 读取端点在前，写入端点在后
	var matches, writes []clause
	for _, end := range []endpoint{source, targetEnd} {
		node := nodeClause{
			mode:      end.spec.SaveMode,
			variable:  end.variable,
			labels:    end.spec.Labels,
			keys:      end.spec.Keys.Targets(),
			keySource: end.path + ".keys",
		}
		if end.spec.SaveMode == SaveModeMatch {
			matches = append(matches, node)
			continue
		}
		writes = append(writes, node)
		if len(end.spec.Properties) > 0 {
			writes = append(writes, setClause{variable: end.variable, source: end.path + ".properties"})
		}
	}

	clauses := []clause{unwindClause{param: BatchParam, alias: EventVar}}
	clauses = append(clauses, matches...)
	clauses = append(clauses, writes...)
	clauses = append(clauses, relClause{
		mode:     spec.SaveMode,
		variable: "rel",
		relType:  spec.Type,
		source:   "source",
		target:   "target",
	})
	if len(spec.Properties) > 0 {
		clauses = append(clauses, setClause{variable: "rel", source: EventVar + ".rel.properties"})
	}

	return newStatement(target, keysRelationshipBinder(spec), clauses...), nil
}

func keysRelationshipBinder(spec RelationshipSpec) binder {
	bindSource := nodeBinder(forceKeys(spec.Source), false)
	bindTarget := nodeBinder(forceKeys(spec.Target), false)
	return func(row Row) (map[string]any, error) {
		sourceEvent, err := bindSource(row)
		if err != nil {
			return nil, err
		}
		targetEvent, err := bindTarget(row)
		if err != nil {
			return nil, err
		}
		relProps, err := spec.Properties.Resolve(row)
		if err != nil {
			return nil, err
		}
		if relProps == nil {
			relProps = map[string]any{}
		}
		return map[string]any{
			"source": sourceEvent,
			"target": targetEvent,
			"rel":    map[string]any{"properties": relProps},
		}, nil
	}
}

// forceKeys 让端点 binder 无论保存模式都解析 key；
// Create 端点的模式在关系语句里仍带 key 约束。
func forceKeys(spec NodeSpec) NodeSpec {
	if spec.SaveMode == SaveModeCreate {
		spec.SaveMode = SaveModeOverwrite
	}
	return spec
}

func compileNativeRelationship(target WriteTarget, spec RelationshipSpec, schema RowSchema) (*Statement, error) {
	sourceCols := reservedGroup(schema, sourcePrefix)
	if len(sourceCols) == 0 {
		return nil, &SchemaMismatchError{Group: sourcePrefix}
	}
	targetCols := reservedGroup(schema, targetPrefix)
	if len(targetCols) == 0 {
		return nil, &SchemaMismatchError{Group: targetPrefix}
	}
	relCols := reservedGroup(schema, relPrefix)

	var matches, writes []clause
	ends := []struct {
		endpoint
		keys []string
	}{
		{endpoint{variable: "source", path: EventVar + ".source", spec: spec.Source}, sourceCols},
		{endpoint{variable: "target", path: EventVar + ".target", spec: spec.Target}, targetCols},
	}
	for _, end := range ends {
		node := nodeClause{
			mode:      end.spec.SaveMode,
			variable:  end.variable,
			labels:    end.spec.Labels,
			keys:      end.keys,
			keySource: end.path + ".keys",
		}
		if end.spec.SaveMode == SaveModeMatch {
			matches = append(matches, node)
		} else {
			writes = append(writes, node)
		}
	}

	clauses := []clause{unwindClause{param: BatchParam, alias: EventVar}}
	clauses = append(clauses, matches...)
	clauses = append(clauses, writes...)
	clauses = append(clauses, relClause{
		mode:     spec.SaveMode,
		variable: "rel",
		relType:  spec.Type,
		source:   "source",
		target:   "target",
	})
	if len(relCols) > 0 {
		clauses = append(clauses, setClause{variable: "rel", source: EventVar + ".rel.properties"})
	}

	return newStatement(target, nativeRelationshipBinder(), clauses...), nil
}

// nativeRelationshipBinder 把扁平化的行按保留列组拆分，
// 去掉各列的组前缀。
func nativeRelationshipBinder() binder {
	return func(row Row) (map[string]any, error) {
		sourceKeys := make(map[string]any)
		targetKeys := make(map[string]any)
		relProps := make(map[string]any)
		for column, value := range row {
			switch {
			case strings.HasPrefix(column, "<"):
				// 读侧元数据，永不写回
			case strings.HasPrefix(column, sourcePrefix):
				sourceKeys[column[len(sourcePrefix):]] = value
			case strings.HasPrefix(column, targetPrefix):
				targetKeys[column[len(targetPrefix):]] = value
			case strings.HasPrefix(column, relPrefix):
				relProps[column[len(relPrefix):]] = value
			}
		}
		return map[string]any{
			"source": map[string]any{"keys": sourceKeys},
			"target": map[string]any{"keys": targetKeys},
			"rel":    map[string]any{"properties": relProps},
		}, nil
	}
}

// reservedGroup 列出 schema 中某个保留组的列，去前缀，保持 schema 顺序
func reservedGroup(schema RowSchema, prefix string) []string {
	var cols []string
	for _, column := range schema {
		if strings.HasPrefix(column, "<") {
			continue
		}
		if strings.HasPrefix(column, prefix) {
			cols = append(cols, column[len(prefix):])
		}
	}
	return cols
}
