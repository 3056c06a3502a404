package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/consign-next/internal/constants"
	"github.com/consign-next/internal/models"
	"github.com/consign-next/internal/queue"
	"github.com/consign-next/internal/repository"
	"github.com/consign-next/internal/storage"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	customerActor = Actor{ID: 100, Username: "alice", Role: constants.RoleCustomer}
	otherCustomer = Actor{ID: 101, Username: "bob", Role: constants.RoleCustomer}
	staffActor    = Actor{ID: 7, Username: "op1", Role: constants.RoleOperator, StationCode: "KHI"}
)

type fakeUploader struct {
	mu      sync.Mutex
	err     error
	seq     int
	deleted []string
}

func (f *fakeUploader) UploadMany(_ context.Context, files []storage.UploadFile) ([]storage.UploadedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]storage.UploadedFile, 0, len(files))
	for range files {
		f.seq++
		key := fmt.Sprintf("doc-%d", f.seq)
		out = append(out, storage.UploadedFile{Key: key, SecureURL: "https://files.test/" + key})
	}
	return out, nil
}

func (f *fakeUploader) DeleteMany(_ context.Context, files []storage.UploadedFile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, file := range files {
		f.deleted = append(f.deleted, file.Key)
	}
}

type fakeNotifier struct {
	mu       sync.Mutex
	payloads []queue.CnReservationExpirePayload
}

func (f *fakeNotifier) EnqueueCnReservationExpire(payload queue.CnReservationExpirePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return nil
}

type bookingFixture struct {
	svc      *BookingService
	catalog  *CatalogService
	db       *gorm.DB
	uploader *fakeUploader
	notifier *fakeNotifier
}

func setupBookingTest(t *testing.T) *bookingFixture {
	t.Helper()
	return setupBookingTestWithPool(t, 1)
}

// setupBookingTestWithPool maxOpen 大于 1 时事务可真正并发交错
func setupBookingTestWithPool(t *testing.T, maxOpen int) *bookingFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:booking_service_test_%d?mode=memory&cache=shared&_pragma=busy_timeout(5000)", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return newBookingFixture(db)
}

func newBookingFixture(db *gorm.DB) *bookingFixture {
	models.DB = db
	uploader := &fakeUploader{}
	notifier := &fakeNotifier{}
	svc := NewBookingService(
		repository.NewBookingRepository(db),
		repository.NewBookingHistoryRepository(db),
		repository.NewReferenceRepository(db),
		repository.NewPricingRuleRepository(db),
		repository.NewCustomerRepository(db),
		repository.NewCnRepository(db),
		repository.NewBatchRepository(db),
		uploader,
		notifier,
		BookingServiceOptions{
			Tx: TxOptions{Timeout: time.Minute, MaxAttempts: 5},
			CN: CNAllocatorOptions{Location: time.UTC, ReservationTTL: 30 * time.Minute},
		},
	)
	catalog := NewCatalogService(repository.NewPricingRuleRepository(db), repository.NewReferenceRepository(db))
	return &bookingFixture{svc: svc, catalog: catalog, db: db, uploader: uploader, notifier: notifier}
}

func (f *bookingFixture) seedReference(t *testing.T, kind, code, name, mode string) uint {
	t.Helper()
	repo := repository.NewReferenceRepository(f.db)
	if _, err := repo.CreateIfAbsent(kind, models.Reference{Code: code, Name: name, PricingMode: mode}); err != nil {
		t.Fatalf("seed %s failed: %v", kind, err)
	}
	ref, err := repo.FindByCode(kind, code)
	if err != nil || ref == nil {
		t.Fatalf("reload %s failed: %v", kind, err)
	}
	return ref.ID
}

func (f *bookingFixture) seedRule(t *testing.T, origin, destination, serviceID uint, from, to, rate string) uint {
	t.Helper()
	rule := &models.PricingRule{
		ServiceID:  serviceID,
		WeightFrom: models.NewWeight(decimal.RequireFromString(from)),
		WeightTo:   models.NewWeight(decimal.RequireFromString(to)),
		BaseRate:   models.NewMoneyFromDecimal(decimal.RequireFromString(rate)),
		Status:     constants.PricingRuleStatusActive,
	}
	if origin != 0 {
		rule.OriginCityID = &origin
	}
	if destination != 0 {
		rule.DestinationCityID = &destination
	}
	if err := f.db.Create(rule).Error; err != nil {
		t.Fatalf("seed rule failed: %v", err)
	}
	return rule.ID
}

// seedRoute General / Over Night / CityA -> CityB，阶梯 [2,5)=825
type routeIDs struct {
	cityA, cityB, overNight, general uint
}

func (f *bookingFixture) seedRoute(t *testing.T) routeIDs {
	t.Helper()
	ids := routeIDs{
		cityA:     f.seedReference(t, constants.ReferenceKindCity, "CITYA", "CityA", ""),
		cityB:     f.seedReference(t, constants.ReferenceKindCity, "CITYB", "CityB", ""),
		overNight: f.seedReference(t, constants.ReferenceKindService, "OVER_NIGHT", "Over Night", constants.PricingModeWeight),
		general:   f.seedReference(t, constants.ReferenceKindProduct, "GENERAL", "General", ""),
	}
	f.seedRule(t, ids.cityA, ids.cityB, ids.overNight, "0", "2", "500")
	f.seedRule(t, ids.cityA, ids.cityB, ids.overNight, "2", "5", "825")
	return ids
}

func baseInput() CreateBookingInput {
	return CreateBookingInput{
		Service:         "Over Night",
		Product:         "General",
		OriginCity:      "CityA",
		DestinationCity: "CityB",
		Shipper:         models.ContactBlock{Name: "Sender", Phone: "03000000001", Address: "1 Main Street"},
		Consignee:       models.ContactBlock{Name: "Receiver", Phone: "03000000002", Address: "2 Side Street"},
		Weight:          decimal.NewFromInt(3),
		Pieces:          1,
		PaymentMode:     constants.PaymentModeCash,
	}
}

func (f *bookingFixture) countHistory(t *testing.T, bookingID uint, action string) int64 {
	t.Helper()
	count, err := repository.NewBookingHistoryRepository(f.db).CountByAction(bookingID, action)
	if err != nil {
		t.Fatalf("count history failed: %v", err)
	}
	return count
}

func (f *bookingFixture) countRows(t *testing.T, model interface{}) int64 {
	t.Helper()
	var count int64
	if err := f.db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("count rows failed: %v", err)
	}
	return count
}

func expectErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
