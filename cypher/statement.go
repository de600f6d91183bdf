package cypher

import "strings"

// 所有编译出的语句共享的参数名
const (
	// BatchParam 承载整个批次的列表参数
	BatchParam = "events"
	// EventVar 迭代变量，绑定批次中的一个元素
	EventVar = "event"
	// ScriptResultParam 暴露任务脚本的结果行
	ScriptResultParam = "scriptResult"
)

// binder 把一个扁平化的行整形为它的 $events 元素
type binder func(row Row) (map[string]any, error)

// clause 编译语句中一个已渲染的片段
type clause interface {
	render(b *strings.Builder)
}

// withClause 渲染 `WITH expr AS alias`
type withClause struct {
	expr  string
	alias string
}

func (c withClause) render(b *strings.Builder) {
	b.WriteString("WITH ")
	b.WriteString(c.expr)
	b.WriteString(" AS ")
	b.WriteString(c.alias)
}

// unwindClause 渲染 `UNWIND $param AS alias`
type unwindClause struct {
	param string
	alias string
}

func (c unwindClause) render(b *strings.Builder) {
	b.WriteString("UNWIND $")
	b.WriteString(c.param)
	b.WriteString(" AS ")
	b.WriteString(c.alias)
}

// nodeClause 渲染 `VERB (var:`A`:`B` {`k`: source.`k`, ...})`。
// keySource 是 key 值的 event 读取路径，如 "event.keys"
// 或 "event.source.keys"。
type nodeClause struct {
	mode      SaveMode
	variable  string
	labels    []string
	keys      []string
	keySource string
}

func (c nodeClause) render(b *strings.Builder) {
	b.WriteString(c.mode.keyword())
	b.WriteString(" (")
	b.WriteString(c.variable)
	for _, label := range c.labels {
		b.WriteByte(':')
		b.WriteString(escapeName(label))
	}
	if len(c.keys) > 0 {
		b.WriteString(" {")
		for i, key := range c.keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(escapeName(key))
			b.WriteString(": ")
			b.WriteString(c.keySource)
			b.WriteByte('.')
			b.WriteString(escapeName(key))
		}
		b.WriteByte('}')
	}
	b.WriteByte(')')
}

// relClause 渲染 `VERB (src)-[var:`TYPE`]->(dst)`
type relClause struct {
	mode     SaveMode
	variable string
	relType  string
	source   string
	target   string
}

func (c relClause) render(b *strings.Builder) {
	b.WriteString(c.mode.keyword())
	b.WriteString(" (")
	b.WriteString(c.source)
	b.WriteString(")-[")
	b.WriteString(c.variable)
	b.WriteByte(':')
	b.WriteString(escapeName(c.relType))
	b.WriteString("]->(")
	b.WriteString(c.target)
	b.WriteByte(')')
}

// setClause 渲染 `SET var += source`
type setClause struct {
	variable string
	source   string
}

func (c setClause) render(b *strings.Builder) {
	b.WriteString("SET ")
	b.WriteString(c.variable)
	b.WriteString(" += ")
	b.WriteString(c.source)
}

// returnClause 渲染 `RETURN expr`
type returnClause struct {
	expr string
}

func (c returnClause) render(b *strings.Builder) {
	b.WriteString("RETURN ")
	b.WriteString(c.expr)
}

// rawClause 原样拼接调用方提供的语句文本
type rawClause struct {
	text string
}

func (c rawClause) render(b *strings.Builder) {
	b.WriteString(c.text)
}

// Statement 编译好的参数化语句模板，附带批次元素的逐行参数整形。
// 它是写目标与行 schema 的纯函数，每个任务只构建一次，之后只读。
type Statement struct {
	target  WriteTarget
	clauses []clause
	text    string
	bind    binder
}

func newStatement(target WriteTarget, bind binder, clauses ...clause) *Statement {
	var b strings.Builder
	for i, c := range clauses {
		if i > 0 {
			b.WriteByte(' ')
		}
		c.render(&b)
	}
	return &Statement{
		target:  target,
		clauses: clauses,
		text:    b.String(),
		bind:    bind,
	}
}

// Text 返回渲染后的语句文本
func (s *Statement) Text() string { return s.text }

// Target 返回语句编译自的写目标
func (s *Statement) Target() WriteTarget { return s.target }

// BindRow 把一个扁平化的行整形为它的 $events 元素
func (s *Statement) BindRow(row Row) (map[string]any, error) {
	return s.bind(row)
}

// BindBatch 把一个批次整形为一次执行的完整参数表，包含任务的脚本结果
func (s *Statement) BindBatch(rows []Row, scriptResult []map[string]any) (map[string]any, error) {
	events := make([]map[string]any, len(rows))
	for i, row := range rows {
		event, err := s.bind(row)
		if err != nil {
			return nil, err
		}
		events[i] = event
	}
	if scriptResult == nil {
		scriptResult = []map[string]any{}
	}
	return map[string]any{
		BatchParam:        events,
		ScriptResultParam: scriptResult,
	}, nil
}

// escapeName 反引号转义 label、类型或属性名。
// 名字在 Cypher 中是结构性的，不能作为参数绑定。
func escapeName(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
