package batchcypher

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// splitStatements 按分号切分语句序列，忽略空白项
func splitStatements(script string) []string {
	parts := strings.Split(script, ";")
	statements := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			statements = append(statements, part)
		}
	}
	return statements
}

// ScriptRunner 在任务开始前执行一次准备脚本。
// 只保留最后一条语句的结果行，作为只读的 scriptResult
// 注入到主语句的执行上下文中；任何一条语句失败都会中止任务。
type ScriptRunner struct {
	sink   Sink
	logger *zap.Logger
}

// NewScriptRunner 创建脚本执行器
func NewScriptRunner(sink Sink) *ScriptRunner {
	return &ScriptRunner{sink: sink, logger: zap.NewNop()}
}

// WithLogger 设置日志器
func (r *ScriptRunner) WithLogger(logger *zap.Logger) *ScriptRunner {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Run 顺序执行脚本语句，返回最后一条语句的结果行。
// 脚本为空时返回 nil。
func (r *ScriptRunner) Run(ctx context.Context, script string) ([]map[string]any, error) {
	statements := splitStatements(script)
	if len(statements) == 0 {
		return nil, nil
	}

	var lastRows []map[string]any
	for i, statement := range statements {
		rows, err := r.sink.ExecuteOnce(ctx, statement)
		if err != nil {
			return nil, fmt.Errorf("script statement %d failed (%s): %w: %w", i+1, statement, ErrJobAborted, err)
		}
		lastRows = rows
	}

	r.logger.Debug("script completed",
		zap.Int("statements", len(statements)),
		zap.Int("result_rows", len(lastRows)))
	return lastRows, nil
}
