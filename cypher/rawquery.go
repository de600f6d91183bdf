package cypher

// compileRawQuery 包装调用方提供的语句，使每个批次以可迭代的
// $events 暴露，每行一个迭代元素，脚本结果同时可见：
//
//	WITH $scriptResult AS scriptResult UNWIND $events AS event <query>
func compileRawQuery(target WriteTarget) (*Statement, error) {
	query := target.Query()
	if query == "" {
		return nil, &ConfigurationError{Option: "query", Reason: "raw query target requires a statement"}
	}
	return newStatement(
		target,
		rawQueryBinder,
		withClause{expr: "$" + ScriptResultParam, alias: ScriptResultParam},
		unwindClause{param: BatchParam, alias: EventVar},
		rawClause{text: query},
	), nil
}

// rawQueryBinder 把扁平化的行各列作为迭代元素的命名字段暴露
func rawQueryBinder(row Row) (map[string]any, error) {
	event := make(map[string]any, len(row))
	for column, value := range row {
		event[column] = value
	}
	return event, nil
}
