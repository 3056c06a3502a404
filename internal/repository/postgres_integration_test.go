//go:build integration
// +build integration

package repository

import (
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/consign-next/internal/constants"
	"github.com/consign-next/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	all := models.AllModels()
	if err := db.Migrator().DropTable(all...); err != nil {
		t.Fatalf("drop tables failed: %v", err)
	}
	if err := db.AutoMigrate(all...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(all...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func TestPostgresBookingSearchIsCaseInsensitive(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	if !IsPostgres(db) {
		t.Fatalf("expected postgres dialect")
	}
	repo := NewBookingRepository(db)
	createTestBooking(t, repo, "101000001", constants.BookingStatusBooked, 1, "Ayesha Siddiqui")

	rows, total, err := repo.ListAdmin(BookingListFilter{Page: 1, PageSize: 10, Search: "ayesha"})
	if err != nil {
		t.Fatalf("search booking failed: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("search want 1 got total=%d len=%d", total, len(rows))
	}
}

func TestPostgresNextSequenceSerializesConcurrentCallers(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	const callers = 8

	var wg sync.WaitGroup
	results := make(chan int64, callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.Transaction(func(tx *gorm.DB) error {
				repo := NewCnRepository(db).WithTx(tx)
				if err := repo.LockScope("cash"); err != nil {
					return err
				}
				value, err := repo.NextSequence("cash")
				if err != nil {
					return err
				}
				results <- value
				return nil
			})
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(results)
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent sequence failed: %v", err)
	}

	seen := map[int64]bool{}
	for value := range results {
		if seen[value] {
			t.Fatalf("sequence value %d issued twice", value)
		}
		seen[value] = true
	}
	if len(seen) != callers {
		t.Fatalf("want %d distinct values got %d", callers, len(seen))
	}
}

func TestPostgresReservationUniqueViolation(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewCnRepository(db)
	now := time.Now().UTC()
	first := models.CnReservation{CnNumber: "501000001", Scheme: "cod", ReservedBy: 1, ReservedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := repo.CreateReservation(&first); err != nil {
		t.Fatalf("create reservation failed: %v", err)
	}
	second := first
	second.ID = 0
	if err := repo.CreateReservation(&second); !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
}
