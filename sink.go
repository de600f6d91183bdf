package batchcypher

import (
	"context"
	"sync"
)

// Result 一次批量执行的统计信息
type Result struct {
	NodesCreated         int
	RelationshipsCreated int
	PropertiesSet        int
}

// Sink 图数据库写入端的统一接口。
// Execute 以单个事务提交一条带参数的语句（数据批次走这里）；
// ExecuteOnce 以自动提交方式执行脚本/DDL 语句并返回结果行。
type Sink interface {
	Execute(ctx context.Context, statement string, params map[string]any) (Result, error)
	ExecuteOnce(ctx context.Context, statement string) ([]map[string]any, error)
}

// ExecutedStatement 记录 MockSink 收到的一次调用
type ExecutedStatement struct {
	Statement string
	Params    map[string]any
}

// MockSink 模拟写入端（用于测试）。
// Fail 队列按调用顺序消费：非 nil 项使对应的 Execute 调用失败。
type MockSink struct {
	mu         sync.Mutex
	executed   []ExecutedStatement
	onceRows   map[string][]map[string]any
	onceErr    map[string]error
	onceOrder  []string
	failQueue  []error
	totalRows  int64
	execCalls  int64
	onceCalls  int64
	execResult Result
}

// NewMockSink 创建模拟写入端
func NewMockSink() *MockSink {
	return &MockSink{
		onceRows: make(map[string][]map[string]any),
		onceErr:  make(map[string]error),
	}
}

// FailNext 追加一次预设失败；传 nil 表示该次调用成功。
func (s *MockSink) FailNext(errs ...error) *MockSink {
	s.mu.Lock()
	s.failQueue = append(s.failQueue, errs...)
	s.mu.Unlock()
	return s
}

// StubOnce 预设某条 ExecuteOnce 语句的结果行
func (s *MockSink) StubOnce(statement string, rows []map[string]any) *MockSink {
	s.mu.Lock()
	s.onceRows[statement] = rows
	s.mu.Unlock()
	return s
}

// FailOnce 预设某条 ExecuteOnce 语句返回错误
func (s *MockSink) FailOnce(statement string, err error) *MockSink {
	s.mu.Lock()
	s.onceErr[statement] = err
	s.mu.Unlock()
	return s
}

// Execute 记录调用并按失败队列决定结果
func (s *MockSink) Execute(ctx context.Context, statement string, params map[string]any) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if len(s.failQueue) > 0 {
		err = s.failQueue[0]
		s.failQueue = s.failQueue[1:]
	}
	s.execCalls++
	if err != nil {
		return Result{}, err
	}

	s.executed = append(s.executed, ExecutedStatement{Statement: statement, Params: params})
	if events, ok := params["events"].([]map[string]any); ok {
		s.totalRows += int64(len(events))
	}
	return s.execResult, nil
}

// ExecuteOnce 记录调用并返回预设结果
func (s *MockSink) ExecuteOnce(ctx context.Context, statement string) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onceCalls++
	s.onceOrder = append(s.onceOrder, statement)
	if err, ok := s.onceErr[statement]; ok {
		return nil, err
	}
	return s.onceRows[statement], nil
}

// SnapshotExecuted 返回一次性快照，避免并发读写竞态
func (s *MockSink) SnapshotExecuted() []ExecutedStatement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ExecutedStatement, len(s.executed))
	copy(out, s.executed)
	return out
}

// SnapshotOnceStatements 返回 ExecuteOnce 收到的语句顺序快照
func (s *MockSink) SnapshotOnceStatements() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.onceOrder))
	copy(out, s.onceOrder)
	return out
}

// Stats 返回累计调用统计
func (s *MockSink) Stats() (execCalls, onceCalls, rows int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.execCalls, s.onceCalls, s.totalRows
}
