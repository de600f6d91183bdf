package batchcypher_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rushairer/batchcypher"
	"github.com/rushairer/batchcypher/cypher"
)

func nodeTargetWithKeys(t *testing.T, labels string, keys string) cypher.WriteTarget {
	t.Helper()
	mapping, err := cypher.ParseMapping(keys)
	if err != nil {
		t.Fatalf("parse mapping failed: %v", err)
	}
	return cypher.NodeTarget(cypher.NodeSpec{
		Labels:   cypher.ParseLabels(labels),
		Keys:     mapping,
		SaveMode: cypher.SaveModeOverwrite,
	})
}

func TestOptimizerIndexStatement(t *testing.T) {
	// 多 label 的目标只为首个 label 建索引
	target := nodeTargetWithKeys(t, ":Person:Customer", "surname")
	optimizer := batchcypher.NewOptimizer(batchcypher.NewMockSink())

	statements := optimizer.Statements(batchcypher.OptimizationIndex, target, "")
	if len(statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(statements))
	}
	want := "CREATE INDEX IF NOT EXISTS FOR (n:`Person`) ON (n.`surname`)"
	if statements[0] != want {
		t.Fatalf("unexpected statement:\n got %s\nwant %s", statements[0], want)
	}
}

func TestOptimizerConstraintStatement(t *testing.T) {
	target := nodeTargetWithKeys(t, ":Person", "name,surname")
	optimizer := batchcypher.NewOptimizer(batchcypher.NewMockSink())

	statements := optimizer.Statements(batchcypher.OptimizationNodeConstraints, target, "")
	if len(statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(statements))
	}
	want := "CREATE CONSTRAINT IF NOT EXISTS FOR (n:`Person`) REQUIRE (n.`name`, n.`surname`) IS UNIQUE"
	if statements[0] != want {
		t.Fatalf("unexpected statement:\n got %s\nwant %s", statements[0], want)
	}
}

func TestOptimizerRelationshipEndpoints(t *testing.T) {
	sourceKeys, err := cypher.ParseMapping("name")
	if err != nil {
		t.Fatalf("parse mapping failed: %v", err)
	}
	targetKeys, err := cypher.ParseMapping("sku")
	if err != nil {
		t.Fatalf("parse mapping failed: %v", err)
	}
	target := cypher.RelationshipTarget(cypher.RelationshipSpec{
		Type:     "BOUGHT",
		Strategy: cypher.StrategyKeys,
		SaveMode: cypher.SaveModeOverwrite,
		Source:   cypher.NodeSpec{Labels: []string{"Person"}, Keys: sourceKeys, SaveMode: cypher.SaveModeMatch},
		Target:   cypher.NodeSpec{Labels: []string{"Product"}, Keys: targetKeys, SaveMode: cypher.SaveModeMatch},
	})

	optimizer := batchcypher.NewOptimizer(batchcypher.NewMockSink())
	statements := optimizer.Statements(batchcypher.OptimizationIndex, target, "")
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements (one per endpoint), got %d", len(statements))
	}
}

func TestOptimizerSkipsKeylessSpecs(t *testing.T) {
	// native 端点没有 key 映射，不生成索引语句
	target := cypher.RelationshipTarget(cypher.RelationshipSpec{
		Type:     "BOUGHT",
		Strategy: cypher.StrategyNative,
		SaveMode: cypher.SaveModeOverwrite,
		Source:   cypher.NodeSpec{Labels: []string{"Person"}, SaveMode: cypher.SaveModeMatch},
		Target:   cypher.NodeSpec{Labels: []string{"Product"}, SaveMode: cypher.SaveModeMatch},
	})

	optimizer := batchcypher.NewOptimizer(batchcypher.NewMockSink())
	if statements := optimizer.Statements(batchcypher.OptimizationIndex, target, ""); len(statements) != 0 {
		t.Fatalf("expected no statements, got %v", statements)
	}
}

func TestOptimizerQueryModeSplits(t *testing.T) {
	target := nodeTargetWithKeys(t, ":Person", "name")
	optimizer := batchcypher.NewOptimizer(batchcypher.NewMockSink())

	statements := optimizer.Statements(batchcypher.OptimizationQuery, target,
		"CREATE INDEX a IF NOT EXISTS FOR (n:Person) ON (n.name); CREATE INDEX b IF NOT EXISTS FOR (n:Person) ON (n.age)")
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(statements))
	}
}

func TestOptimizerRunAbortsOnFailure(t *testing.T) {
	target := nodeTargetWithKeys(t, ":Person", "surname")
	sink := batchcypher.NewMockSink()
	sink.FailOnce("CREATE INDEX IF NOT EXISTS FOR (n:`Person`) ON (n.`surname`)", errors.New("no permission"))

	optimizer := batchcypher.NewOptimizer(sink)
	err := optimizer.Run(context.Background(), batchcypher.OptimizationIndex, target, "")
	if !errors.Is(err, batchcypher.ErrJobAborted) {
		t.Fatalf("expected ErrJobAborted, got %v", err)
	}
}

func TestParseOptimizationType(t *testing.T) {
	cases := map[string]batchcypher.OptimizationType{
		"":                 batchcypher.OptimizationNone,
		"INDEX":            batchcypher.OptimizationIndex,
		"index":            batchcypher.OptimizationIndex,
		"NODE_CONSTRAINTS": batchcypher.OptimizationNodeConstraints,
		"QUERY":            batchcypher.OptimizationQuery,
	}
	for input, want := range cases {
		got, err := batchcypher.ParseOptimizationType(input)
		if err != nil {
			t.Fatalf("parse %q failed: %v", input, err)
		}
		if got != want {
			t.Fatalf("parse %q: got %v, want %v", input, got, want)
		}
	}

	if _, err := batchcypher.ParseOptimizationType("BOGUS"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
