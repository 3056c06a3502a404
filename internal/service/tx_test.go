package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"
)

func TestClassifyTxError(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"lock timeout", errors.New("ERROR: canceling statement due to lock timeout (SQLSTATE 55P03)"), true},
		{"statement timeout", errors.New("ERROR: canceling statement due to statement timeout (SQLSTATE 57014)"), true},
		{"serialization", errors.New("ERROR: could not serialize access (SQLSTATE 40001)"), true},
		{"deadlock", errors.New("ERROR: deadlock detected (SQLSTATE 40P01)"), true},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{"other", errors.New("syntax error"), false},
	}
	for _, tc := range cases {
		got := classifyTxError(ctx, tc.err)
		if errors.Is(got, ErrTryAgain) != tc.retryable {
			t.Fatalf("%s: expected retryable=%v, got %v", tc.name, tc.retryable, got)
		}
	}

	business := invalid("weight", "must be greater than 0")
	if got := classifyTxError(ctx, business); got != business {
		t.Fatalf("business errors pass through unchanged, got %v", got)
	}
}

func TestRunWithRetryExhaustsBudget(t *testing.T) {
	setupBookingTest(t)
	runner := newTxRunner(TxOptions{Timeout: 5 * time.Second, MaxAttempts: 3})

	attempts := []int{}
	err := runner.runWithRetry(context.Background(), "probe", func(tx *gorm.DB, attempt int) error {
		attempts = append(attempts, attempt)
		return ErrAllocationConflict
	})
	if !errors.Is(err, ErrTryAgain) {
		t.Fatalf("expected try again after exhausting retries, got %v", err)
	}
	if len(attempts) != 3 || attempts[2] != 2 {
		t.Fatalf("unexpected attempts: %v", attempts)
	}

	calls := 0
	err = runner.runWithRetry(context.Background(), "probe", func(tx *gorm.DB, attempt int) error {
		calls++
		if attempt == 0 {
			return ErrAllocationConflict
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected success on second attempt, got %v after %d calls", err, calls)
	}
}
