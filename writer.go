package batchcypher

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rushairer/batchcypher/cypher"
)

// RowStream 一个分区的有序行流。ok 为 false 表示流结束。
type RowStream interface {
	Next(ctx context.Context) (row cypher.Row, ok bool, err error)
}

type sliceStream struct {
	rows []cypher.Row
	pos  int
}

// NewSliceStream 把行切片包装为 RowStream（便捷方法，常用于测试）
func NewSliceStream(rows ...cypher.Row) RowStream {
	return &sliceStream{rows: rows}
}

func (s *sliceStream) Next(ctx context.Context) (cypher.Row, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if s.pos >= len(s.rows) {
		return nil, false, nil
	}
	row := s.rows[s.pos]
	s.pos++
	return row, true, nil
}

// PartitionReport 单个分区的执行结果
type PartitionReport struct {
	Partition        int
	BatchesCommitted int
	RowsWritten      int64
	NodesCreated     int
	RelsCreated      int
}

// JobReport 一次写任务的汇总结果
type JobReport struct {
	JobID            string
	ScriptStatements int
	Partitions       []PartitionReport
	BatchesCommitted int
	RowsWritten      int64
}

// Writer 批量图写入器，对应一次完整的写任务：
// 计划期编译与校验 → 脚本 → schema 优化 → 各分区并发摄入。
//
// 分区之间相互独立并发执行；任一分区出现致命错误时整个任务
// 快速失败：取消兄弟分区，在途批次允许完成，不再开始新批次。
// 已提交的批次不会回滚。
type Writer struct {
	cfg             *WriterConfig
	sink            Sink
	logger          *zap.Logger
	metricsReporter MetricsReporter
	concurrency     int
}

// NewWriter 从字符串配置表创建写入器
func NewWriter(opts Options, sink Sink) (*Writer, error) {
	cfg, err := ParseOptions(opts)
	if err != nil {
		return nil, err
	}
	return NewWriterFromConfig(cfg, sink), nil
}

// NewWriterFromConfig 从已校验配置创建写入器
func NewWriterFromConfig(cfg *WriterConfig, sink Sink) *Writer {
	return &Writer{
		cfg:    cfg,
		sink:   sink,
		logger: zap.NewNop(),
	}
}

// WithLogger 设置日志器
func (w *Writer) WithLogger(logger *zap.Logger) *Writer {
	if logger != nil {
		w.logger = logger
	}
	return w
}

// WithMetricsReporter 设置指标报告器
func (w *Writer) WithMetricsReporter(metricsReporter MetricsReporter) *Writer {
	w.metricsReporter = metricsReporter
	return w
}

// WithConcurrencyLimit 设置分区并发上限（limit <= 0 表示不限制）
func (w *Writer) WithConcurrencyLimit(limit int) *Writer {
	w.concurrency = limit
	return w
}

// Config 返回写入器的配置
func (w *Writer) Config() *WriterConfig {
	return w.cfg
}

// Plan 编译主语句并完成全部计划期校验，不做任何 I/O
func (w *Writer) Plan(schema cypher.RowSchema) (*cypher.Statement, error) {
	return cypher.Compile(w.cfg.Target, schema)
}

// mergeCapable 判断目标是否包含按 key 合并的写入
func mergeCapable(target cypher.WriteTarget) bool {
	switch target.Kind() {
	case cypher.TargetNode:
		return target.Node().SaveMode == cypher.SaveModeOverwrite
	case cypher.TargetRelationship:
		rel := target.Relationship()
		return rel.SaveMode == cypher.SaveModeOverwrite ||
			rel.Source.SaveMode == cypher.SaveModeOverwrite ||
			rel.Target.SaveMode == cypher.SaveModeOverwrite
	default:
		return false
	}
}

// Write 执行整个写任务。schema 是（已扁平化的）行列清单，
// partitions 是各分区的行流。返回汇总报告；任一阶段失败时
// 返回错误，报告中保留已完成分区的统计。
func (w *Writer) Write(ctx context.Context, schema cypher.RowSchema, partitions ...RowStream) (*JobReport, error) {
	jobID := uuid.NewString()
	logger := w.logger.With(zap.String("job", jobID), zap.String("target", w.cfg.Target.Name()))
	report := &JobReport{JobID: jobID}

	// 计划期：编译与校验，任何配置/映射/schema 错误在任何 I/O 之前返回
	stmt, err := w.Plan(schema)
	if err != nil {
		return report, err
	}
	logger.Info("write job planned",
		zap.String("kind", w.cfg.Target.Kind().String()),
		zap.Int("batch_size", w.cfg.BatchSize),
		zap.Int("partitions", len(partitions)))

	// 脚本：一次执行，只保留最后一条语句的结果
	scriptResult, err := NewScriptRunner(w.sink).WithLogger(logger).Run(ctx, w.cfg.Script)
	if err != nil {
		return report, err
	}
	report.ScriptStatements = len(splitStatements(w.cfg.Script))

	// schema 优化：仅对按 key 合并的节点/关系目标执行
	if mergeCapable(w.cfg.Target) {
		optimizer := NewOptimizer(w.sink).WithLogger(logger)
		if err := optimizer.Run(ctx, w.cfg.Optimization, w.cfg.Target, w.cfg.OptimizationQuery); err != nil {
			return report, err
		}
	}

	if w.metricsReporter != nil {
		w.metricsReporter.SetConcurrency(w.concurrency)
	}

	// 各分区并发摄入；快速失败，已提交批次不回滚
	group, gctx := errgroup.WithContext(ctx)
	if w.concurrency > 0 {
		group.SetLimit(w.concurrency)
	}
	var mu sync.Mutex
	reports := make([]PartitionReport, len(partitions))
	for i, partition := range partitions {
		i, partition := i, partition
		group.Go(func() error {
			partReport, err := w.writePartition(gctx, stmt, i, partition, scriptResult, logger)
			mu.Lock()
			reports[i] = partReport
			mu.Unlock()
			return err
		})
	}
	err = group.Wait()

	for _, partReport := range reports {
		report.Partitions = append(report.Partitions, partReport)
		report.BatchesCommitted += partReport.BatchesCommitted
		report.RowsWritten += partReport.RowsWritten
	}
	if err != nil {
		logger.Error("write job failed",
			zap.Int64("rows_written", report.RowsWritten),
			zap.Error(err))
		return report, err
	}
	logger.Info("write job committed",
		zap.Int64("rows_written", report.RowsWritten),
		zap.Int("batches", report.BatchesCommitted))
	return report, nil
}

// writePartition 串行处理一个分区：扁平化 → 分批 → 逐批提交。
// 批次之间响应取消；单个批次的发送不会被打断。
func (w *Writer) writePartition(ctx context.Context, stmt *cypher.Statement, index int, partition RowStream, scriptResult []map[string]any, logger *zap.Logger) (PartitionReport, error) {
	report := PartitionReport{Partition: index}
	executor := NewExecutor(w.sink, w.cfg.Retry).
		WithLogger(logger.With(zap.Int("partition", index))).
		WithMetricsReporter(w.metricsReporter)
	batcher := NewBatcher(w.cfg.BatchSize)

	submit := func(batch []cypher.Row) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := executor.ExecuteBatch(ctx, stmt, report.BatchesCommitted, batch, scriptResult)
		if err != nil {
			return err
		}
		report.BatchesCommitted++
		report.RowsWritten += int64(len(batch))
		report.NodesCreated += result.NodesCreated
		report.RelsCreated += result.RelationshipsCreated
		return nil
	}

	for {
		row, ok, err := partition.Next(ctx)
		if err != nil {
			return report, err
		}
		if !ok {
			break
		}
		batch, full := batcher.Add(cypher.Flatten(row))
		if !full {
			continue
		}
		if err := submit(batch); err != nil {
			return report, err
		}
	}
	if batch := batcher.Drain(); batch != nil {
		if err := submit(batch); err != nil {
			return report, err
		}
	}
	return report, nil
}
