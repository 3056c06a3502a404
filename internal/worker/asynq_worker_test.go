package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/consign-next/internal/config"
	"github.com/consign-next/internal/constants"
	"github.com/consign-next/internal/models"
	"github.com/consign-next/internal/provider"
	"github.com/consign-next/internal/queue"
	"github.com/consign-next/internal/repository"
	"github.com/consign-next/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

func setupWorkerTest(t *testing.T) (*Consumer, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:worker_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{DisableForeignKeyConstraintWhenMigrating: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	bookingService := service.NewBookingService(
		repository.NewBookingRepository(db),
		repository.NewBookingHistoryRepository(db),
		repository.NewReferenceRepository(db),
		repository.NewPricingRuleRepository(db),
		repository.NewCustomerRepository(db),
		repository.NewCnRepository(db),
		repository.NewBatchRepository(db),
		nil,
		nil,
		service.BookingServiceOptions{
			Tx: service.TxOptions{Timeout: time.Minute, MaxAttempts: 3},
			CN: service.CNAllocatorOptions{Location: time.UTC, ReservationTTL: 30 * time.Minute},
		},
	)
	consumer := NewConsumer(&provider.Container{BookingService: bookingService})
	return consumer, db
}

func seedReservation(t *testing.T, db *gorm.DB, cn string, expiresAt time.Time) {
	t.Helper()
	row := models.CnReservation{
		CnNumber:   cn,
		Scheme:     constants.CNSchemeDateCoded,
		ReservedBy: 7,
		ReservedAt: expiresAt.Add(-30 * time.Minute),
		ExpiresAt:  expiresAt,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed reservation failed: %v", err)
	}
}

func countReservations(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.CnReservation{}).Count(&count).Error; err != nil {
		t.Fatalf("count reservations failed: %v", err)
	}
	return count
}

func TestHandleCnReservationExpireDeletesDueReservation(t *testing.T) {
	consumer, db := setupWorkerTest(t)
	seedReservation(t, db, "2026101601", time.Now().UTC().Add(-time.Minute))
	seedReservation(t, db, "2026101602", time.Now().UTC().Add(time.Hour))

	for _, cn := range []string{"2026101601", "2026101602"} {
		task, err := queue.NewCnReservationExpireTask(queue.CnReservationExpirePayload{CN: cn})
		if err != nil {
			t.Fatalf("build task failed: %v", err)
		}
		if err := consumer.handleCnReservationExpire(context.Background(), task); err != nil {
			t.Fatalf("handle task failed: %v", err)
		}
	}

	if got := countReservations(t, db); got != 1 {
		t.Fatalf("expected only the future reservation to remain, got %d rows", got)
	}
	var remaining models.CnReservation
	if err := db.First(&remaining).Error; err != nil {
		t.Fatalf("load remaining reservation failed: %v", err)
	}
	if remaining.CnNumber != "2026101602" {
		t.Fatalf("unexpected remaining reservation: %s", remaining.CnNumber)
	}
}

func TestHandleCnReservationExpireSkipsInvalidPayload(t *testing.T) {
	consumer, _ := setupWorkerTest(t)
	if err := consumer.handleCnReservationExpire(context.Background(), asynq.NewTask(queue.TaskCnReservationExpire, []byte(`{"cn":"  "}`))); err != nil {
		t.Fatalf("blank cn should be skipped, got %v", err)
	}
	if err := consumer.handleCnReservationExpire(context.Background(), asynq.NewTask(queue.TaskCnReservationExpire, []byte(`not-json`))); err == nil {
		t.Fatalf("malformed payload should return an error")
	}
}

func TestServiceSweepWithoutQueue(t *testing.T) {
	consumer, db := setupWorkerTest(t)
	seedReservation(t, db, "2026101603", time.Now().UTC().Add(-time.Hour))
	seedReservation(t, db, "2026101604", time.Now().UTC().Add(-time.Minute))
	seedReservation(t, db, "2026101605", time.Now().UTC().Add(time.Hour))

	svc, err := NewService(&config.QueueConfig{Enabled: false}, time.Hour, consumer)
	if err != nil {
		t.Fatalf("new service failed: %v", err)
	}
	if svc.server != nil {
		t.Fatalf("disabled queue should not create an asynq server")
	}
	svc.sweepReservationsOnce(context.Background())

	if got := countReservations(t, db); got != 1 {
		t.Fatalf("expected 1 live reservation after sweep, got %d", got)
	}
}

func TestServiceStartReturnsWhenContextDone(t *testing.T) {
	consumer, _ := setupWorkerTest(t)
	svc, err := NewService(nil, time.Hour, consumer)
	if err != nil {
		t.Fatalf("new service failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start should return nil after cancel, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("sweep loop did not stop after cancel")
	}
}
