// Package batchcypher provides a batch graph write framework: it turns
// streams of tabular rows into parameterized Cypher statements and
// commits them in fixed-size transactional batches.
package batchcypher

import "github.com/rushairer/batchcypher/cypher"

// 重新导出cypher包的常用类型，调用方通常只需要导入根包
type Row = cypher.Row
type RowSchema = cypher.RowSchema
type KeyMapping = cypher.KeyMapping
type KeyPair = cypher.KeyPair
type NodeSpec = cypher.NodeSpec
type RelationshipSpec = cypher.RelationshipSpec
type WriteTarget = cypher.WriteTarget
type SaveMode = cypher.SaveMode
type Strategy = cypher.Strategy
type MalformedMappingError = cypher.MalformedMappingError
type MissingColumnError = cypher.MissingColumnError
type ConfigurationError = cypher.ConfigurationError
type SchemaMismatchError = cypher.SchemaMismatchError

// 重新导出常量
const (
	SaveModeCreate    = cypher.SaveModeCreate
	SaveModeOverwrite = cypher.SaveModeOverwrite
	SaveModeMatch     = cypher.SaveModeMatch

	StrategyNative = cypher.StrategyNative
	StrategyKeys   = cypher.StrategyKeys
)
