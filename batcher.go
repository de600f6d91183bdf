package batchcypher

import "github.com/rushairer/batchcypher/cypher"

// DefaultBatchSize 默认批次大小
const DefaultBatchSize = 5000

// Batcher 按固定大小切分行流。不重排、不丢行，
// 批次顺序与输入顺序一致，最后一个批次允许不满。
type Batcher struct {
	size int
	buf  []cypher.Row
}

// NewBatcher 创建 Batcher；size <= 0 时使用默认批次大小
func NewBatcher(size int) *Batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batcher{
		size: size,
		buf:  make([]cypher.Row, 0, size),
	}
}

// Size 返回批次大小
func (b *Batcher) Size() int {
	return b.size
}

// Add 缓冲一行；凑满一个批次时返回该批次
func (b *Batcher) Add(row cypher.Row) ([]cypher.Row, bool) {
	b.buf = append(b.buf, row)
	if len(b.buf) < b.size {
		return nil, false
	}
	batch := b.buf
	b.buf = make([]cypher.Row, 0, b.size)
	return batch, true
}

// Drain 返回剩余的不满批次；没有剩余时返回 nil
func (b *Batcher) Drain() []cypher.Row {
	if len(b.buf) == 0 {
		return nil
	}
	batch := b.buf
	b.buf = make([]cypher.Row, 0, b.size)
	return batch
}

// Split 一次性切分整个行切片（便捷方法，语义与流式一致）
func (b *Batcher) Split(rows []cypher.Row) [][]cypher.Row {
	if len(rows) == 0 {
		return nil
	}
	batches := make([][]cypher.Row, 0, (len(rows)+b.size-1)/b.size)
	for start := 0; start < len(rows); start += b.size {
		end := start + b.size
		if end > len(rows) {
			end = len(rows)
		}
		batches = append(batches, rows[start:end])
	}
	return batches
}
