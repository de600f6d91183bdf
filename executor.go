package batchcypher

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rushairer/batchcypher/cypher"
)

// RetryPolicy 批次提交的重试策略。
// FatalCodes 中的错误码立即中止，不做任何重试；
// 其余可重试错误最多重试 MaxRetries 次（总尝试 MaxRetries+1 次）。
type RetryPolicy struct {
	MaxRetries  int
	FatalCodes  []string
	BackoffBase time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy 默认重试策略
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  3,
		BackoffBase: 20 * time.Millisecond,
		MaxBackoff:  2 * time.Second,
	}
}

// Executor 事务执行器：把每个批次作为一个原子单元提交到 Sink，
// 并按 RetryPolicy 处理失败。单个执行器实例内批次严格串行提交，
// 重试计数与致命中止的判定都以此为前提。
type Executor struct {
	sink            Sink
	policy          RetryPolicy
	fatalCodes      map[string]struct{}
	classifier      func(error) (retryable bool, reason string)
	metricsReporter MetricsReporter
	logger          *zap.Logger
}

// NewExecutor 创建事务执行器
func NewExecutor(sink Sink, policy RetryPolicy) *Executor {
	if policy.BackoffBase <= 0 {
		policy.BackoffBase = 20 * time.Millisecond
	}
	if policy.MaxBackoff <= 0 {
		policy.MaxBackoff = 2 * time.Second
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	fatal := make(map[string]struct{}, len(policy.FatalCodes))
	for _, code := range policy.FatalCodes {
		code = strings.TrimSpace(code)
		if code != "" {
			fatal[code] = struct{}{}
		}
	}
	return &Executor{
		sink:       sink,
		policy:     policy,
		fatalCodes: fatal,
		classifier: defaultRetryClassifier,
		logger:     zap.NewNop(),
	}
}

// WithMetricsReporter 设置指标报告器
func (e *Executor) WithMetricsReporter(metricsReporter MetricsReporter) *Executor {
	e.metricsReporter = metricsReporter
	return e
}

// WithLogger 设置日志器
func (e *Executor) WithLogger(logger *zap.Logger) *Executor {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// WithClassifier 自定义错误分类（可选）；返回是否可重试与原因标签
func (e *Executor) WithClassifier(classifier func(error) (bool, string)) *Executor {
	if classifier != nil {
		e.classifier = classifier
	}
	return e
}

// defaultRetryClassifier 默认错误分类。SinkError 按其标记判定；
// 上下文取消/超时不重试；其余按常见瞬态错误的朴素字符串分类。
func defaultRetryClassifier(err error) (bool, string) {
	if err == nil {
		return false, ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, "context"
	}
	var sinkErr *SinkError
	if errors.As(err, &sinkErr) {
		if sinkErr.Retryable {
			return true, "transient"
		}
		return false, "non_retryable"
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "deadlock"):
		return true, "deadlock"
	case strings.Contains(s, "timeout"):
		return true, "timeout"
	case strings.Contains(s, "connection") && (strings.Contains(s, "refused") || strings.Contains(s, "reset") || strings.Contains(s, "closed")):
		return true, "connection"
	case strings.Contains(s, "broken pipe") || strings.Contains(s, "eof"):
		return true, "io"
	default:
		return false, "non_retryable"
	}
}

// ExecuteBatch 提交一个批次。返回 nil 错误表示 Committed；
// 返回 *BatchError 表示 FailedFatal，调用方应中止本分区的后续批次。
func (e *Executor) ExecuteBatch(ctx context.Context, stmt *cypher.Statement, batchIndex int, rows []cypher.Row, scriptResult []map[string]any) (Result, error) {
	if len(rows) == 0 {
		return Result{}, ErrEmptyBatch
	}

	params, err := stmt.BindBatch(rows, scriptResult)
	if err != nil {
		return Result{}, e.fatal(stmt, batchIndex, 1, err)
	}

	target := stmt.Target().Name()
	startTime := time.Now()
	status := "success"
	if e.metricsReporter != nil {
		e.metricsReporter.IncInflight()
		e.metricsReporter.ObserveBatchSize(len(rows))
		defer e.metricsReporter.DecInflight()
	}

	attempts := e.policy.MaxRetries + 1
	var result Result
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = e.sink.Execute(ctx, stmt.Text(), params)
		if err == nil {
			status = "success"
			break
		}

		code := ErrorCode(err)
		if _, isFatal := e.fatalCodes[code]; isFatal {
			// 致命错误码：零重试，直接中止
			status = "fail"
			if e.metricsReporter != nil {
				e.metricsReporter.IncError(target, "final:fatal_code")
			}
			e.logger.Error("batch aborted on fatal code",
				zap.String("target", target),
				zap.Int("batch", batchIndex),
				zap.String("code", code),
				zap.Error(err))
			err = e.fatal(stmt, batchIndex, attempt, err)
			break
		}

		retryable, reason := e.classifier(err)
		if !retryable || attempt == attempts {
			status = "fail"
			if e.metricsReporter != nil {
				e.metricsReporter.IncError(target, "final:"+reason)
			}
			e.logger.Error("batch failed",
				zap.String("target", target),
				zap.Int("batch", batchIndex),
				zap.Int("attempts", attempt),
				zap.String("reason", reason),
				zap.Error(err))
			err = e.fatal(stmt, batchIndex, attempt, err)
			break
		}

		if e.metricsReporter != nil {
			e.metricsReporter.IncError(target, "retry:"+reason)
		}
		e.logger.Warn("batch retrying",
			zap.String("target", target),
			zap.Int("batch", batchIndex),
			zap.Int("attempt", attempt),
			zap.String("reason", reason),
			zap.Error(err))

		if sleepErr := e.backoff(ctx, attempt); sleepErr != nil {
			status = "fail"
			err = e.fatal(stmt, batchIndex, attempt, sleepErr)
			break
		}
	}

	if e.metricsReporter != nil {
		e.metricsReporter.ObserveExecuteDuration(target, len(rows), time.Since(startTime), status)
	}
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// backoff 指数退避 + 抖动；上下文取消时立即返回
func (e *Executor) backoff(ctx context.Context, attempt int) error {
	backoff := e.policy.BackoffBase
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > e.policy.MaxBackoff {
			backoff = e.policy.MaxBackoff
			break
		}
	}
	// 抖动 ±20%
	jitter := time.Duration(int64(float64(backoff) * 0.2))
	sleep := backoff - jitter + time.Duration(randInt63n(int64(2*jitter+1)))
	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Executor) fatal(stmt *cypher.Statement, batchIndex, attempts int, err error) *BatchError {
	return &BatchError{
		Statement:  stmt.Text(),
		BatchIndex: batchIndex,
		Code:       ErrorCode(err),
		Attempts:   attempts,
		Err:        err,
	}
}

// randInt63n 返回 [0,n) 的随机数；仅用于退避抖动，不要求强随机
func randInt63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	seed := time.Now().UnixNano()
	seed = (seed*6364136223846793005 + 1) & 0x7fffffffffffffff
	return seed % n
}
