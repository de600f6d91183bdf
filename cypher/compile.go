package cypher

// Compile 对照行 schema 校验写目标并产出任务的语句模板。
// 所有配置与 schema 错误都在这里、在发送任何语句之前暴露。
func Compile(target WriteTarget, schema RowSchema) (*Statement, error) {
	switch target.Kind() {
	case TargetRawQuery:
		return compileRawQuery(target)
	case TargetNode:
		return compileNode(target, schema)
	case TargetRelationship:
		return compileRelationship(target, schema)
	default:
		return nil, &ConfigurationError{Option: "target", Reason: "no write target configured"}
	}
}
