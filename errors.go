package batchcypher

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBatch 空批次错误
	ErrEmptyBatch = errors.New("empty batch")

	// ErrJobAborted 任务因前置语句失败而中止
	ErrJobAborted = errors.New("job aborted before ingestion")
)

// SinkError 由 Sink 返回的执行错误，携带数据库错误码。
// Retryable 为 false 时执行器不做任何重试。
type SinkError struct {
	Code      string
	Retryable bool
	Err       error
}

func (e *SinkError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("sink error: %v", e.Err)
	}
	return fmt.Sprintf("sink error [%s]: %v", e.Code, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// ErrorCode 提取错误链中的数据库错误码；没有则返回空串。
func ErrorCode(err error) string {
	var sinkErr *SinkError
	if errors.As(err, &sinkErr) {
		return sinkErr.Code
	}
	return ""
}

// IsRetryable 判断错误链是否标记为可重试。未分类的错误按不可重试处理。
func IsRetryable(err error) bool {
	var sinkErr *SinkError
	if errors.As(err, &sinkErr) {
		return sinkErr.Retryable
	}
	return false
}

// BatchError 一个批次最终失败时的错误，携带定位回放所需的全部上下文：
// 语句文本、批次序号、错误码与已尝试次数。
type BatchError struct {
	Statement  string
	BatchIndex int
	Code       string
	Attempts   int
	Err        error
}

func (e *BatchError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("batch %d failed after %d attempt(s) [%s]: %v (statement: %s)",
			e.BatchIndex, e.Attempts, e.Code, e.Err, e.Statement)
	}
	return fmt.Sprintf("batch %d failed after %d attempt(s): %v (statement: %s)",
		e.BatchIndex, e.Attempts, e.Err, e.Statement)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
