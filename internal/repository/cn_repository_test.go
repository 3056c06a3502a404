package repository

import (
	"bytes"
	"log"
	"testing"
	"time"

	"github.com/consign-next/internal/constants"
	"github.com/consign-next/internal/models"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestCnRepositoryNextSequenceIncrements(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewCnRepository(db)

	for want := int64(1); want <= 3; want++ {
		got, err := repo.NextSequence("cash:2026-10-16")
		if err != nil {
			t.Fatalf("next sequence failed: %v", err)
		}
		if got != want {
			t.Fatalf("next sequence want %d got %d", want, got)
		}
	}
	got, err := repo.NextSequence("cod")
	if err != nil || got != 1 {
		t.Fatalf("separate key should start at 1, got %d err=%v", got, err)
	}
	if _, err := repo.NextSequence("  "); err == nil {
		t.Fatalf("blank key should fail")
	}
}

func TestCnRepositoryReservations(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewCnRepository(db)
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	reservations := []models.CnReservation{
		{CnNumber: "101000001", Scheme: "cash", ReservedBy: 1, ReservedAt: now, ExpiresAt: now.Add(-time.Minute)},
		{CnNumber: "101000002", Scheme: "cash", ReservedBy: 1, ReservedAt: now, ExpiresAt: now.Add(time.Hour)},
		{CnNumber: "5%0000001", Scheme: "cod", ReservedBy: 1, ReservedAt: now, ExpiresAt: now.Add(time.Hour)},
	}
	for i := range reservations {
		if err := repo.CreateReservation(&reservations[i]); err != nil {
			t.Fatalf("create reservation failed: %v", err)
		}
	}
	dup := models.CnReservation{CnNumber: "101000002", Scheme: "cash", ReservedBy: 2, ReservedAt: now, ExpiresAt: now}
	if err := repo.CreateReservation(&dup); err == nil || !IsUniqueViolation(err) {
		t.Fatalf("duplicate reservation should be a unique violation, got %v", err)
	}

	count, err := repo.CountReservationsWithPrefix("101")
	if err != nil || count != 2 {
		t.Fatalf("prefix count want 2 got %d err=%v", count, err)
	}
	count, err = repo.CountReservationsWithPrefix("5%")
	if err != nil || count != 1 {
		t.Fatalf("wildcard prefix should be literal, got %d err=%v", count, err)
	}

	affected, err := repo.DeleteExpiredReservation("101000002", now)
	if err != nil || affected != 0 {
		t.Fatalf("future reservation should stay, affected=%d err=%v", affected, err)
	}
	affected, err = repo.DeleteExpiredReservations(now)
	if err != nil || affected != 1 {
		t.Fatalf("expired sweep want 1 got %d err=%v", affected, err)
	}
	left, err := repo.GetReservation("101000001")
	if err != nil || left != nil {
		t.Fatalf("expired reservation should be gone, got %+v err=%v", left, err)
	}
	if err := repo.DeleteReservation("101000002"); err != nil {
		t.Fatalf("delete reservation failed: %v", err)
	}
	left, err = repo.GetReservation("101000002")
	if err != nil || left != nil {
		t.Fatalf("consumed reservation should be gone, got %+v err=%v", left, err)
	}
}

func TestCnRepositoryBookingCNExists(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewCnRepository(db)
	bookings := NewBookingRepository(db)
	createTestBooking(t, bookings, "101000009", constants.BookingStatusBooked, 1, "Receiver")

	exists, err := repo.BookingCNExists("101000009")
	if err != nil || !exists {
		t.Fatalf("cn should exist, got %v err=%v", exists, err)
	}
	exists, err = repo.BookingCNExists("101000010")
	if err != nil || exists {
		t.Fatalf("cn should not exist, got %v err=%v", exists, err)
	}
	count, err := repo.CountBookingsWithPrefix("1010000")
	if err != nil || count != 1 {
		t.Fatalf("booking prefix count want 1 got %d err=%v", count, err)
	}
}

func TestLookupMissesAreNotLoggedAsErrors(t *testing.T) {
	db := setupRepositoryTestDB(t)
	var buf bytes.Buffer
	quiet := db.Session(&gorm.Session{Logger: gormlogger.New(log.New(&buf, "", 0), gormlogger.Config{
		LogLevel: gormlogger.Error,
	})})

	reservation, err := NewCnRepository(quiet).GetReservation("404000000")
	if err != nil || reservation != nil {
		t.Fatalf("missing reservation should be nil, got %+v err=%v", reservation, err)
	}
	city, err := NewReferenceRepository(quiet).FindByCode(constants.ReferenceKindCity, "NOPE")
	if err != nil || city != nil {
		t.Fatalf("missing city should be nil, got %+v err=%v", city, err)
	}
	if buf.Len() != 0 {
		t.Fatalf("lookup misses should not be logged, got %q", buf.String())
	}
}
