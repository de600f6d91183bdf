package batchcypher_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rushairer/batchcypher"
	"github.com/rushairer/batchcypher/cypher"
)

func personRows(n int) []cypher.Row {
	rows := make([]cypher.Row, n)
	for i := range rows {
		rows[i] = cypher.Row{"name": "p", "surname": i, "age": 30}
	}
	return rows
}

func TestWriterWritesAllPartitions(t *testing.T) {
	sink := batchcypher.NewMockSink()
	writer, err := batchcypher.NewWriter(batchcypher.Options{
		"labels":     ":Person",
		"node.keys":  "name,surname",
		"save.mode":  "Overwrite",
		"batch.size": "4",
	}, sink)
	if err != nil {
		t.Fatalf("new writer failed: %v", err)
	}

	report, err := writer.Write(context.Background(),
		cypher.RowSchema{"name", "surname", "age"},
		batchcypher.NewSliceStream(personRows(10)...),
		batchcypher.NewSliceStream(personRows(3)...))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if report.RowsWritten != 13 {
		t.Fatalf("expected 13 rows, got %d", report.RowsWritten)
	}
	// 分区 0：4+4+2，分区 1：3
	if report.BatchesCommitted != 4 {
		t.Fatalf("expected 4 batches, got %d", report.BatchesCommitted)
	}
	if len(report.Partitions) != 2 {
		t.Fatalf("expected 2 partition reports, got %d", len(report.Partitions))
	}

	_, _, rows := sink.Stats()
	if rows != 13 {
		t.Fatalf("expected sink to receive 13 rows, got %d", rows)
	}
	for _, executed := range sink.SnapshotExecuted() {
		if !strings.HasPrefix(executed.Statement, "UNWIND $events AS event MERGE") {
			t.Fatalf("unexpected statement: %s", executed.Statement)
		}
	}
}

func TestWriterRunsScriptBeforeBatches(t *testing.T) {
	sink := batchcypher.NewMockSink()
	sink.StubOnce("RETURN 36 AS answer", []map[string]any{{"answer": int64(36)}})

	writer, err := batchcypher.NewWriter(batchcypher.Options{
		"labels":    ":Person",
		"node.keys": "name",
		"save.mode": "Overwrite",
		"script":    "RETURN 36 AS answer",
	}, sink)
	if err != nil {
		t.Fatalf("new writer failed: %v", err)
	}

	report, err := writer.Write(context.Background(),
		cypher.RowSchema{"name", "age"},
		batchcypher.NewSliceStream(personRows(2)...))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if report.ScriptStatements != 1 {
		t.Fatalf("expected 1 script statement, got %d", report.ScriptStatements)
	}

	// 脚本结果作为只读参数注入每个批次
	executed := sink.SnapshotExecuted()
	if len(executed) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(executed))
	}
	scriptResult, ok := executed[0].Params["scriptResult"].([]map[string]any)
	if !ok || len(scriptResult) != 1 || scriptResult[0]["answer"] != int64(36) {
		t.Fatalf("expected script result in batch params, got %v", executed[0].Params["scriptResult"])
	}
}

func TestWriterRunsSchemaOptimizationOnce(t *testing.T) {
	sink := batchcypher.NewMockSink()
	writer, err := batchcypher.NewWriter(batchcypher.Options{
		"labels":                   ":Person",
		"node.keys":                "surname",
		"save.mode":                "Overwrite",
		"schema.optimization.type": "INDEX",
		"batch.size":               "2",
	}, sink)
	if err != nil {
		t.Fatalf("new writer failed: %v", err)
	}

	if _, err := writer.Write(context.Background(),
		cypher.RowSchema{"name", "surname"},
		batchcypher.NewSliceStream(personRows(5)...),
		batchcypher.NewSliceStream(personRows(5)...)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	// 优化语句在任何分区开始之前恰好执行一次
	once := sink.SnapshotOnceStatements()
	if len(once) != 1 {
		t.Fatalf("expected 1 optimization statement, got %v", once)
	}
	if once[0] != "CREATE INDEX IF NOT EXISTS FOR (n:`Person`) ON (n.`surname`)" {
		t.Fatalf("unexpected optimization statement: %s", once[0])
	}
}

func TestWriterSkipsOptimizationForCreateMode(t *testing.T) {
	// ErrorIfExists（CREATE）目标不执行 schema 优化
	sink := batchcypher.NewMockSink()
	writer, err := batchcypher.NewWriter(batchcypher.Options{
		"labels":                   ":Person",
		"schema.optimization.type": "INDEX",
	}, sink)
	if err != nil {
		t.Fatalf("new writer failed: %v", err)
	}

	if _, err := writer.Write(context.Background(),
		cypher.RowSchema{"name"},
		batchcypher.NewSliceStream(personRows(1)...)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if once := sink.SnapshotOnceStatements(); len(once) != 0 {
		t.Fatalf("expected no optimization statements, got %v", once)
	}
}

func TestWriterPlanErrorBeforeIO(t *testing.T) {
	sink := batchcypher.NewMockSink()
	writer, err := batchcypher.NewWriter(batchcypher.Options{
		"labels":    ":Person",
		"node.keys": "missing_column",
		"save.mode": "Overwrite",
	}, sink)
	if err != nil {
		t.Fatalf("new writer failed: %v", err)
	}

	_, err = writer.Write(context.Background(),
		cypher.RowSchema{"name"},
		batchcypher.NewSliceStream(personRows(1)...))
	var missingErr *cypher.MissingColumnError
	if !errors.As(err, &missingErr) {
		t.Fatalf("expected MissingColumnError, got %v", err)
	}

	execCalls, onceCalls, _ := sink.Stats()
	if execCalls != 0 || onceCalls != 0 {
		t.Fatalf("expected no I/O on plan failure, got %d/%d calls", execCalls, onceCalls)
	}
}

func TestWriterFatalErrorAbortsPartition(t *testing.T) {
	fatalCode := "Neo.ClientError.Schema.ConstraintValidationFailed"
	sink := batchcypher.NewMockSink()
	// 第二个批次命中致命错误码
	sink.FailNext(nil, &batchcypher.SinkError{
		Code:      fatalCode,
		Retryable: false,
		Err:       errors.New("constraint violated"),
	})

	writer, err := batchcypher.NewWriter(batchcypher.Options{
		"labels":                 ":Person",
		"node.keys":              "surname",
		"save.mode":              "Overwrite",
		"batch.size":             "2",
		"transaction.codes.fail": fatalCode,
	}, sink)
	if err != nil {
		t.Fatalf("new writer failed: %v", err)
	}

	report, err := writer.Write(context.Background(),
		cypher.RowSchema{"name", "surname"},
		batchcypher.NewSliceStream(personRows(6)...))
	if err == nil {
		t.Fatalf("expected fatal abort")
	}
	var batchErr *batchcypher.BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("expected *BatchError, got %v", err)
	}
	if batchErr.Code != fatalCode {
		t.Fatalf("expected code %s, got %s", fatalCode, batchErr.Code)
	}

	// 第一个批次已提交且不回滚，失败批次之后不再提交
	if report.BatchesCommitted != 1 || report.RowsWritten != 2 {
		t.Fatalf("expected 1 committed batch of 2 rows, got %d/%d",
			report.BatchesCommitted, report.RowsWritten)
	}
	execCalls, _, _ := sink.Stats()
	if execCalls != 2 {
		t.Fatalf("expected 2 execute calls, got %d", execCalls)
	}
}

// stallingStream 先给出一行，之后一直阻塞直到上下文被取消
type stallingStream struct {
	served int
}

func (s *stallingStream) Next(ctx context.Context) (cypher.Row, bool, error) {
	if s.served == 0 {
		s.served++
		return cypher.Row{"name": "p", "surname": 0}, true, nil
	}
	<-ctx.Done()
	return nil, false, ctx.Err()
}

func TestWriterFatalErrorCancelsSiblingPartitions(t *testing.T) {
	// 一个分区命中致命错误时，整个任务快速失败：
	// 兄弟分区在下一次取行时被取消，不再开始新批次
	fatalCode := "Neo.ClientError.Schema.ConstraintValidationFailed"
	sink := batchcypher.NewMockSink()
	sink.FailNext(&batchcypher.SinkError{
		Code:      fatalCode,
		Retryable: false,
		Err:       errors.New("constraint violated"),
	})

	writer, err := batchcypher.NewWriter(batchcypher.Options{
		"labels":                 ":Person",
		"node.keys":              "surname",
		"save.mode":              "Overwrite",
		"batch.size":             "2",
		"transaction.codes.fail": fatalCode,
	}, sink)
	if err != nil {
		t.Fatalf("new writer failed: %v", err)
	}

	stalled := &stallingStream{}
	report, err := writer.Write(context.Background(),
		cypher.RowSchema{"name", "surname"},
		batchcypher.NewSliceStream(personRows(2)...),
		stalled)
	if err == nil {
		t.Fatalf("expected fatal abort")
	}
	var batchErr *batchcypher.BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("expected *BatchError from the failing partition, got %v", err)
	}
	if batchErr.Code != fatalCode {
		t.Fatalf("expected code %s, got %s", fatalCode, batchErr.Code)
	}

	// 阻塞分区只消费了取消前的那一行，没有提交任何批次
	if stalled.served != 1 {
		t.Fatalf("expected sibling partition to stop after 1 row, served %d", stalled.served)
	}
	if report.RowsWritten != 0 {
		t.Fatalf("expected no committed rows, got %d", report.RowsWritten)
	}
	execCalls, _, _ := sink.Stats()
	if execCalls != 1 {
		t.Fatalf("expected only the failing batch to reach the sink, got %d calls", execCalls)
	}
}

func TestWriterScriptFailureAbortsBeforeBatches(t *testing.T) {
	sink := batchcypher.NewMockSink()
	sink.FailOnce("RETURN broken", errors.New("boom"))

	writer, err := batchcypher.NewWriter(batchcypher.Options{
		"labels": ":Person",
		"script": "RETURN broken",
	}, sink)
	if err != nil {
		t.Fatalf("new writer failed: %v", err)
	}

	_, err = writer.Write(context.Background(),
		cypher.RowSchema{"name"},
		batchcypher.NewSliceStream(personRows(4)...))
	if !errors.Is(err, batchcypher.ErrJobAborted) {
		t.Fatalf("expected ErrJobAborted, got %v", err)
	}
	execCalls, _, _ := sink.Stats()
	if execCalls != 0 {
		t.Fatalf("expected no data batches after script failure, got %d", execCalls)
	}
}

func TestWriterFlattensNestedRows(t *testing.T) {
	sink := batchcypher.NewMockSink()
	writer, err := batchcypher.NewWriter(batchcypher.Options{
		"labels":    ":Person",
		"node.keys": "id",
		"save.mode": "Overwrite",
	}, sink)
	if err != nil {
		t.Fatalf("new writer failed: %v", err)
	}

	rows := []cypher.Row{{
		"id":      1,
		"address": cypher.Row{"city": "Malmö", "zip": "21146"},
	}}
	if _, err := writer.Write(context.Background(),
		cypher.RowSchema{"id", "address.city", "address.zip"},
		batchcypher.NewSliceStream(rows...)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	executed := sink.SnapshotExecuted()
	if len(executed) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(executed))
	}
	events := executed[0].Params["events"].([]map[string]any)
	props := events[0]["properties"].(map[string]any)
	if props["address.city"] != "Malmö" {
		t.Fatalf("expected flattened property, got %v", props)
	}
}

func TestWriterCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	writer, err := batchcypher.NewWriter(batchcypher.Options{
		"labels":    ":Person",
		"node.keys": "name",
		"save.mode": "Overwrite",
	}, batchcypher.NewMockSink())
	if err != nil {
		t.Fatalf("new writer failed: %v", err)
	}

	_, err = writer.Write(ctx,
		cypher.RowSchema{"name"},
		batchcypher.NewSliceStream(personRows(3)...))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
