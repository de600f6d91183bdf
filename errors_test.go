package batchcypher_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rushairer/batchcypher"
)

func TestErrorCodeUnwrapsChain(t *testing.T) {
	sinkErr := &batchcypher.SinkError{
		Code:      "Neo.TransientError.Transaction.DeadlockDetected",
		Retryable: true,
		Err:       errors.New("deadlock"),
	}
	wrapped := fmt.Errorf("commit failed: %w", sinkErr)

	if got := batchcypher.ErrorCode(wrapped); got != sinkErr.Code {
		t.Fatalf("expected code %s, got %s", sinkErr.Code, got)
	}
	if !batchcypher.IsRetryable(wrapped) {
		t.Fatalf("expected retryable")
	}
	if batchcypher.ErrorCode(errors.New("plain")) != "" {
		t.Fatalf("expected empty code for plain error")
	}
	if batchcypher.IsRetryable(errors.New("plain")) {
		t.Fatalf("unclassified errors must not be retryable")
	}
}

func TestBatchErrorCarriesContext(t *testing.T) {
	cause := &batchcypher.SinkError{Code: "Neo.ClientError.X", Err: errors.New("boom")}
	batchErr := &batchcypher.BatchError{
		Statement:  "UNWIND $events AS event CREATE (n:`Person`)",
		BatchIndex: 3,
		Code:       "Neo.ClientError.X",
		Attempts:   4,
		Err:        cause,
	}

	var sinkErr *batchcypher.SinkError
	if !errors.As(error(batchErr), &sinkErr) {
		t.Fatalf("expected SinkError cause in chain")
	}
	msg := batchErr.Error()
	for _, want := range []string{"batch 3", "4 attempt(s)", "Neo.ClientError.X"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in message %q", want, msg)
		}
	}
}
