package batchcypher

import (
	"context"
	"errors"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jConfig Neo4j 连接配置
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string

	MaxConnectionPoolSize   int
	ConnectionTimeout       time.Duration
	MaxTransactionRetryTime time.Duration
}

// DefaultNeo4jConfig 默认连接配置
func DefaultNeo4jConfig() Neo4jConfig {
	return Neo4jConfig{
		URI:                     "bolt://localhost:7687",
		Username:                "neo4j",
		MaxConnectionPoolSize:   50,
		ConnectionTimeout:       30 * time.Second,
		MaxTransactionRetryTime: 30 * time.Second,
	}
}

// Neo4jSink 基于官方驱动的 Sink 实现。
// 每个批次在一个托管写事务中提交；脚本和 DDL 语句以自动提交方式执行。
// 驱动返回的错误统一包装为 SinkError，携带错误码与可重试标记。
type Neo4jSink struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jSink 创建并校验 Neo4j 连接
func NewNeo4jSink(ctx context.Context, cfg Neo4jConfig) (*Neo4jSink, error) {
	auth := neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		if cfg.MaxConnectionPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
		}
		if cfg.ConnectionTimeout > 0 {
			c.ConnectionAcquisitionTimeout = cfg.ConnectionTimeout
		}
		if cfg.MaxTransactionRetryTime > 0 {
			c.MaxTransactionRetryTime = cfg.MaxTransactionRetryTime
		}
	})
	if err != nil {
		return nil, wrapSinkError(err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, wrapSinkError(err)
	}
	return &Neo4jSink{driver: driver, database: cfg.Database}, nil
}

// Execute 在一个写事务中提交带参数的语句
func (s *Neo4jSink) Execute(ctx context.Context, statement string, params map[string]any) (Result, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		neoResult, err := tx.Run(ctx, statement, params)
		if err != nil {
			return nil, err
		}
		summary, err := neoResult.Consume(ctx)
		if err != nil {
			return nil, err
		}
		counters := summary.Counters()
		return Result{
			NodesCreated:         counters.NodesCreated(),
			RelationshipsCreated: counters.RelationshipsCreated(),
			PropertiesSet:        counters.PropertiesSet(),
		}, nil
	})
	if err != nil {
		return Result{}, wrapSinkError(err)
	}
	return result.(Result), nil
}

// ExecuteOnce 以自动提交方式执行单条语句并收集结果行
func (s *Neo4jSink) ExecuteOnce(ctx context.Context, statement string) ([]map[string]any, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, statement, nil)
	if err != nil {
		return nil, wrapSinkError(err)
	}
	var rows []map[string]any
	for result.Next(ctx) {
		record := result.Record()
		row := make(map[string]any, len(record.Keys))
		for i, key := range record.Keys {
			row[key] = record.Values[i]
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, wrapSinkError(err)
	}
	return rows, nil
}

// Close 释放驱动资源
func (s *Neo4jSink) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// wrapSinkError 把驱动错误包装为 SinkError。
// Neo4jError 携带服务端错误码与可重试标记；其他错误不分类，
// 交给执行器的默认分类器处理。
func wrapSinkError(err error) error {
	if err == nil {
		return nil
	}
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		return &SinkError{
			Code:      neoErr.Code,
			Retryable: neoErr.IsRetriable(),
			Err:       err,
		}
	}
	return err
}
