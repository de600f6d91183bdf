package cypher

// compileNode 构建节点目标的语句。
//
//	Create:    UNWIND $events AS event CREATE (n:`A`:`B`) SET n += event.properties
//	Overwrite: UNWIND $events AS event MERGE (n:`A`:`B` {`k`: event.keys.`k`}) SET n += event.properties
//	Match:     UNWIND $events AS event MATCH (n:`A`:`B` {`k`: event.keys.`k`}) RETURN count(n)
//
// Overwrite 假定数据库层面对 key 属性有唯一性保证，编译器不强制。
func compileNode(target WriteTarget, schema RowSchema) (*Statement, error) {
	spec := target.Node()
	if len(spec.Labels) == 0 {
		return nil, &ConfigurationError{Option: "labels", Reason: "node target requires at least one label"}
	}
	if spec.SaveMode != SaveModeCreate && len(spec.Keys) == 0 {
		return nil, &ConfigurationError{Option: "node.keys", Reason: spec.SaveMode.String() + " save mode requires non-empty node keys"}
	}
	if err := spec.Keys.Validate(schema); err != nil {
		return nil, err
	}
	if err := spec.Properties.Validate(schema); err != nil {
		return nil, err
	}

	clauses := []clause{unwindClause{param: BatchParam, alias: EventVar}}
	node := nodeClause{
		mode:     spec.SaveMode,
		variable: "n",
		labels:   spec.Labels,
	}
	if spec.SaveMode != SaveModeCreate {
		node.keys = spec.Keys.Targets()
		node.keySource = EventVar + ".keys"
	}
	clauses = append(clauses, node)
	if spec.SaveMode != SaveModeMatch {
		clauses = append(clauses, setClause{variable: "n", source: EventVar + ".properties"})
	} else {
		// Cypher 不允许以读取子句结尾，补一个终结的 RETURN
		clauses = append(clauses, returnClause{expr: "count(n)"})
	}

	return newStatement(target, nodeBinder(*spec, true), clauses...), nil
}

// nodeBinder 把一个扁平化的行整形为节点 event。defaultAllProps
// 置位且未配置显式属性映射时，全部非 key 列作为属性。
func nodeBinder(spec NodeSpec, defaultAllProps bool) binder {
	keyColumns := make(map[string]struct{}, len(spec.Keys))
	for _, pair := range spec.Keys {
		keyColumns[pair.Column] = struct{}{}
	}
	return func(row Row) (map[string]any, error) {
		event := make(map[string]any, 2)
		if spec.SaveMode != SaveModeCreate {
			keys, err := spec.Keys.Resolve(row)
			if err != nil {
				return nil, err
			}
			event["keys"] = keys
		}
		if spec.SaveMode == SaveModeMatch {
			return event, nil
		}
		switch {
		case len(spec.Properties) > 0:
			props, err := spec.Properties.Resolve(row)
			if err != nil {
				return nil, err
			}
			event["properties"] = props
		case defaultAllProps:
			props := make(map[string]any, len(row))
			for column, value := range row {
				if _, isKey := keyColumns[column]; !isKey {
					props[column] = value
				}
			}
			event["properties"] = props
		default:
			event["properties"] = map[string]any{}
		}
		return event, nil
	}
}
