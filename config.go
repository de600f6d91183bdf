package batchcypher

import (
	"strconv"
	"strings"

	"github.com/rushairer/batchcypher/cypher"
)

// Options 外部传入的字符串配置表。
// 在计划期一次性解析为 WriterConfig，任何非法取值都在
// 处理第一行数据之前被拒绝。
type Options map[string]string

// 配置键
const (
	OptionQuery        = "query"
	OptionLabels       = "labels"
	OptionNodeKeys     = "node.keys"
	OptionNodeProps    = "node.properties"
	OptionSaveMode     = "save.mode"
	OptionBatchSize    = "batch.size"
	OptionRetries      = "transaction.retries"
	OptionFailCodes    = "transaction.codes.fail"
	OptionScript       = "script"
	OptionSchemaType   = "schema.optimization.type"
	OptionSchemaQuery  = "schema.optimization"
	OptionRelType      = "relationship"
	OptionRelStrategy  = "relationship.save.strategy"
	OptionSourceLabels = "relationship.source.labels"
	OptionTargetLabels = "relationship.target.labels"
	OptionSourceMode   = "relationship.source.save.mode"
	OptionTargetMode   = "relationship.target.save.mode"
	OptionSourceKeys   = "relationship.source.node.keys"
	OptionTargetKeys   = "relationship.target.node.keys"
	OptionSourceProps  = "relationship.source.node.properties"
	OptionTargetProps  = "relationship.target.node.properties"
	OptionRelProps     = "relationship.properties"
)

// WriterConfig 经过校验的写任务配置
type WriterConfig struct {
	Target            cypher.WriteTarget
	BatchSize         int
	Retry             RetryPolicy
	Script            string
	Optimization      OptimizationType
	OptimizationQuery string
}

// ParseOptions 把字符串配置表解析为 WriterConfig。
// 写目标按 query > relationship > labels 的优先级选择。
func ParseOptions(opts Options) (*WriterConfig, error) {
	cfg := &WriterConfig{
		BatchSize: DefaultBatchSize,
		Retry:     DefaultRetryPolicy(),
		Script:    opts[OptionScript],
	}

	if raw, ok := opts[OptionBatchSize]; ok {
		size, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || size <= 0 {
			return nil, &cypher.ConfigurationError{Option: OptionBatchSize, Reason: "must be a positive integer, got \"" + raw + "\""}
		}
		cfg.BatchSize = size
	}
	if raw, ok := opts[OptionRetries]; ok {
		retries, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || retries < 0 {
			return nil, &cypher.ConfigurationError{Option: OptionRetries, Reason: "must be a non-negative integer, got \"" + raw + "\""}
		}
		cfg.Retry.MaxRetries = retries
	}
	if raw, ok := opts[OptionFailCodes]; ok {
		for _, code := range strings.Split(raw, ",") {
			code = strings.TrimSpace(code)
			if code != "" {
				cfg.Retry.FatalCodes = append(cfg.Retry.FatalCodes, code)
			}
		}
	}

	optimization, err := ParseOptimizationType(opts[OptionSchemaType])
	if err != nil {
		return nil, err
	}
	cfg.Optimization = optimization
	cfg.OptimizationQuery = opts[OptionSchemaQuery]
	if optimization == OptimizationQuery && strings.TrimSpace(cfg.OptimizationQuery) == "" {
		return nil, &cypher.ConfigurationError{Option: OptionSchemaQuery, Reason: "QUERY optimization requires statements"}
	}

	target, err := parseTarget(opts)
	if err != nil {
		return nil, err
	}
	cfg.Target = target
	return cfg, nil
}

func parseTarget(opts Options) (cypher.WriteTarget, error) {
	if query := strings.TrimSpace(opts[OptionQuery]); query != "" {
		return cypher.RawQueryTarget(query), nil
	}
	if relType := strings.TrimSpace(opts[OptionRelType]); relType != "" {
		return parseRelationshipTarget(relType, opts)
	}
	if labels := opts[OptionLabels]; strings.TrimSpace(labels) != "" {
		return parseNodeTarget(opts)
	}
	return cypher.WriteTarget{}, &cypher.ConfigurationError{
		Option: "target",
		Reason: "one of \"query\", \"relationship\" or \"labels\" is required",
	}
}

// saveMode 顶层保存模式：缺省 ErrorIfExists（Create 动词）
func saveMode(opts Options) (cypher.SaveMode, error) {
	raw := opts[OptionSaveMode]
	if strings.TrimSpace(raw) == "" {
		raw = "ErrorIfExists"
	}
	return cypher.ParseSaveMode(raw)
}

func parseNodeTarget(opts Options) (cypher.WriteTarget, error) {
	mode, err := saveMode(opts)
	if err != nil {
		return cypher.WriteTarget{}, err
	}
	keys, err := cypher.ParseMapping(opts[OptionNodeKeys])
	if err != nil {
		return cypher.WriteTarget{}, err
	}
	props, err := cypher.ParseMapping(opts[OptionNodeProps])
	if err != nil {
		return cypher.WriteTarget{}, err
	}
	return cypher.NodeTarget(cypher.NodeSpec{
		Labels:     cypher.ParseLabels(opts[OptionLabels]),
		Keys:       keys,
		Properties: props,
		SaveMode:   mode,
	}), nil
}

func parseRelationshipTarget(relType string, opts Options) (cypher.WriteTarget, error) {
	mode, err := saveMode(opts)
	if err != nil {
		return cypher.WriteTarget{}, err
	}
	strategy, err := cypher.ParseStrategy(opts[OptionRelStrategy])
	if err != nil {
		return cypher.WriteTarget{}, err
	}
	source, err := parseEndpoint(opts, OptionSourceLabels, OptionSourceMode, OptionSourceKeys, OptionSourceProps)
	if err != nil {
		return cypher.WriteTarget{}, err
	}
	target, err := parseEndpoint(opts, OptionTargetLabels, OptionTargetMode, OptionTargetKeys, OptionTargetProps)
	if err != nil {
		return cypher.WriteTarget{}, err
	}
	relProps, err := cypher.ParseMapping(opts[OptionRelProps])
	if err != nil {
		return cypher.WriteTarget{}, err
	}
	return cypher.RelationshipTarget(cypher.RelationshipSpec{
		Type:       relType,
		Source:     source,
		Target:     target,
		Properties: relProps,
		Strategy:   strategy,
		SaveMode:   mode,
	}), nil
}

// parseEndpoint 解析关系端点；保存模式缺省 Match
func parseEndpoint(opts Options, labelsKey, modeKey, keysKey, propsKey string) (cypher.NodeSpec, error) {
	rawMode := opts[modeKey]
	if strings.TrimSpace(rawMode) == "" {
		rawMode = "Match"
	}
	mode, err := cypher.ParseSaveMode(rawMode)
	if err != nil {
		return cypher.NodeSpec{}, err
	}
	keys, err := cypher.ParseMapping(opts[keysKey])
	if err != nil {
		return cypher.NodeSpec{}, err
	}
	props, err := cypher.ParseMapping(opts[propsKey])
	if err != nil {
		return cypher.NodeSpec{}, err
	}
	return cypher.NodeSpec{
		Labels:     cypher.ParseLabels(opts[labelsKey]),
		Keys:       keys,
		Properties: props,
		SaveMode:   mode,
	}, nil
}
