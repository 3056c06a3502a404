package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/consign-next/internal/constants"
	"github.com/consign-next/internal/models"
	"github.com/consign-next/internal/repository"

	"gorm.io/gorm"
)

func newTestAssigner(f *bookingFixture, at time.Time) *BatchAssigner {
	assigner := NewBatchAssigner(
		repository.NewBatchRepository(f.db),
		repository.NewCnRepository(f.db),
		time.UTC,
		newTxRunner(TxOptions{MaxAttempts: 1}),
	)
	assigner.now = func() time.Time { return at }
	return assigner
}

func TestBatchScopeFor(t *testing.T) {
	f := setupBookingTest(t)
	assigner := newTestAssigner(f, time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC))

	customer := assigner.ScopeFor(customerActor)
	if customer.Key != "user:alice:20261016" || customer.OwnerUsername != "alice" {
		t.Fatalf("unexpected customer scope: %+v", customer)
	}
	staff := assigner.ScopeFor(Actor{ID: 1, Role: constants.RoleOperator, StationCode: "lhe"})
	if staff.Key != "station:LHE" || staff.StationCode != "LHE" {
		t.Fatalf("unexpected staff scope: %+v", staff)
	}
	hq := assigner.ScopeFor(Actor{ID: 1, Role: constants.RoleAdmin})
	if hq.Key != "station:HQ" {
		t.Fatalf("expected default station, got %+v", hq)
	}
}

func TestEnsureActiveBatchReusesAndRotates(t *testing.T) {
	f := setupBookingTest(t)
	assigner := newTestAssigner(f, time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC))
	scope := assigner.ScopeFor(customerActor)

	ensure := func() *models.Batch {
		var batch *models.Batch
		err := f.db.Transaction(func(tx *gorm.DB) error {
			var err error
			batch, err = assigner.EnsureActiveBatch(tx, scope, customerActor.ID)
			return err
		})
		if err != nil {
			t.Fatalf("ensure batch failed: %v", err)
		}
		return batch
	}

	first := ensure()
	if first.BatchCode != "alice-20261016-1" || first.Status != constants.BatchStatusActive {
		t.Fatalf("unexpected first batch: %+v", first)
	}
	if again := ensure(); again.ID != first.ID {
		t.Fatalf("expected the active batch reused")
	}

	if _, err := assigner.CloseBatch(context.Background(), first.ID, customerActor); !errors.Is(err, ErrForbidden) {
		t.Fatalf("customers cannot close batches, got %v", err)
	}
	closed, err := assigner.CloseBatch(context.Background(), first.ID, staffActor)
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if closed.Status != constants.BatchStatusClosed || closed.ActiveScope != nil || closed.ClosedAt == nil {
		t.Fatalf("unexpected closed batch: %+v", closed)
	}
	if _, err := assigner.CloseBatch(context.Background(), first.ID, staffActor); !errors.Is(err, ErrBatchNotActive) {
		t.Fatalf("closing twice must fail, got %v", err)
	}

	second := ensure()
	if second.ID == first.ID || second.BatchCode != "alice-20261016-2" {
		t.Fatalf("expected a new batch after close, got %+v", second)
	}

	if _, err := assigner.CloseBatch(context.Background(), 9999, staffActor); !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStationBatchCodesUseCounter(t *testing.T) {
	f := setupBookingTest(t)
	assigner := newTestAssigner(f, time.Now())
	scope := assigner.ScopeFor(staffActor)

	var codes []string
	for i := 0; i < 2; i++ {
		err := f.db.Transaction(func(tx *gorm.DB) error {
			batch, err := assigner.EnsureActiveBatch(tx, scope, staffActor.ID)
			if err != nil {
				return err
			}
			codes = append(codes, batch.BatchCode)
			_, err = repository.NewBatchRepository(tx).Close(batch.ID, staffActor.ID, time.Now())
			return err
		})
		if err != nil {
			t.Fatalf("ensure batch failed: %v", err)
		}
	}
	if codes[0] != "KHI-00001" || codes[1] != "KHI-00002" {
		t.Fatalf("unexpected station batch codes: %v", codes)
	}
}
