package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/consign-next/internal/constants"
	"github.com/consign-next/internal/models"
	"github.com/consign-next/internal/repository"
	"github.com/consign-next/internal/storage"

	"github.com/shopspring/decimal"
)

func TestCreateBookingEndToEnd(t *testing.T) {
	f := setupBookingTest(t)
	ids := f.seedRoute(t)

	in := baseInput()
	in.Pieces = 2
	in.OtherAmount = decimal.NewFromInt(50)
	booking, err := f.svc.CreateBooking(context.Background(), customerActor, in)
	if err != nil {
		t.Fatalf("create booking failed: %v", err)
	}

	if booking.Status != constants.BookingStatusBooked {
		t.Fatalf("expected BOOKED, got %s", booking.Status)
	}
	if booking.CNValue() != "CN000000001" {
		t.Fatalf("unexpected cn: %q", booking.CNValue())
	}
	if !booking.Rate.Equal(decimal.NewFromInt(825)) {
		t.Fatalf("expected rate 825, got %s", booking.Rate)
	}
	if !booking.TotalAmount.Equal(decimal.NewFromInt(825*2 + 50)) {
		t.Fatalf("unexpected total: %s", booking.TotalAmount)
	}
	if booking.PricingPending {
		t.Fatalf("expected matched pricing")
	}
	if booking.OriginCityID != ids.cityA || booking.DestinationCityID != ids.cityB || booking.ServiceID != ids.overNight {
		t.Fatalf("unexpected route: %+v", booking)
	}
	if booking.BatchID == nil || booking.Batch == nil || !strings.HasPrefix(booking.Batch.BatchCode, "alice-") {
		t.Fatalf("expected customer batch, got %+v", booking.Batch)
	}
	if booking.CustomerID == 0 {
		t.Fatalf("expected shipper customer row")
	}
	if got := f.countHistory(t, booking.ID, constants.HistoryActionCreated); got != 1 {
		t.Fatalf("expected one CREATED row, got %d", got)
	}
	if got := f.countRows(t, &models.BookingHistory{}); got != 1 {
		t.Fatalf("expected exactly one history row, got %d", got)
	}
}

func TestCreateBookingChargeableWeightIsMax(t *testing.T) {
	f := setupBookingTest(t)
	f.seedRoute(t)

	cases := []struct {
		weight, volumetric, want string
	}{
		{"3", "4.5", "4.5"},
		{"3", "1", "3"},
		{"1.25", "0", "1.25"},
	}
	for _, tc := range cases {
		in := baseInput()
		in.Weight = decimal.RequireFromString(tc.weight)
		in.VolumetricWeight = decimal.RequireFromString(tc.volumetric)
		booking, err := f.svc.CreateBooking(context.Background(), customerActor, in)
		if err != nil {
			t.Fatalf("create booking failed: %v", err)
		}
		if !booking.ChargeableWeight.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("weight %s volumetric %s: expected chargeable %s, got %s", tc.weight, tc.volumetric, tc.want, booking.ChargeableWeight.String())
		}
	}
}

func TestCreateBookingFixedWeightService(t *testing.T) {
	f := setupBookingTest(t)
	ids := f.seedRoute(t)
	family := f.seedReference(t, constants.ReferenceKindService, "BLUE_BOX", "Blue Box", constants.PricingModeWeight)
	f.seedReference(t, constants.ReferenceKindService, "BLUE_BOX_5KG", "Blue Box 5kg", constants.PricingModeWeight)
	f.seedRule(t, ids.cityA, ids.cityB, family, "0", "5", "300")
	f.seedRule(t, ids.cityA, ids.cityB, family, "5", "10", "450")

	in := baseInput()
	in.Service = "Blue Box 5kg"
	in.Weight = decimal.NewFromInt(1)
	booking, err := f.svc.CreateBooking(context.Background(), customerActor, in)
	if err != nil {
		t.Fatalf("create booking failed: %v", err)
	}
	if !booking.Rate.Equal(decimal.NewFromInt(450)) {
		t.Fatalf("expected box weight tier 450, got %s", booking.Rate)
	}
	if !booking.ChargeableWeight.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("chargeable weight should keep caller input, got %s", booking.ChargeableWeight.String())
	}
}

func TestCreateBookingWithoutRulesIsPricingPending(t *testing.T) {
	f := setupBookingTest(t)

	booking, err := f.svc.CreateBooking(context.Background(), customerActor, baseInput())
	if err != nil {
		t.Fatalf("create booking failed: %v", err)
	}
	if !booking.PricingPending || !booking.Rate.IsZero() {
		t.Fatalf("expected pending pricing with zero rate, got %+v", booking)
	}
	// 基础资料按需创建
	if got := f.countRows(t, &models.City{}); got != 2 {
		t.Fatalf("expected 2 cities created, got %d", got)
	}
}

func TestCreateBookingConcurrentDistinctCNs(t *testing.T) {
	for _, mode := range []string{constants.PaymentModeCash, constants.PaymentModeCOD} {
		t.Run(mode, func(t *testing.T) {
			// 多连接池：事务真正交错；基础资料均未预置，需并发创建并收敛
			f := setupBookingTestWithPool(t, 8)

			const n = 50
			var wg sync.WaitGroup
			start := make(chan struct{})
			cns := make([]string, n)
			errs := make([]error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					in := baseInput()
					in.PaymentMode = mode
					in.OriginCity = "Quetta"
					in.DestinationCity = "Gwadar Port"
					in.Service = "Blue Box 5kg"
					booking, err := f.svc.CreateBooking(context.Background(), customerActor, in)
					if err != nil {
						errs[i] = err
						return
					}
					cns[i] = booking.CNValue()
				}(i)
			}
			close(start)
			wg.Wait()

			seen := make(map[string]struct{}, n)
			for i := 0; i < n; i++ {
				if errs[i] != nil {
					t.Fatalf("booking %d failed: %v", i, errs[i])
				}
				if cns[i] == "" {
					t.Fatalf("booking %d has no cn", i)
				}
				if _, dup := seen[cns[i]]; dup {
					t.Fatalf("duplicate cn %s", cns[i])
				}
				seen[cns[i]] = struct{}{}
			}
			if got := f.countRows(t, &models.Booking{}); got != n {
				t.Fatalf("expected %d bookings, got %d", n, got)
			}
			if got := f.countRows(t, &models.CnReservation{}); got != 0 {
				t.Fatalf("expected reservations consumed, got %d", got)
			}
			if got := f.countRows(t, &models.Batch{}); got != 1 {
				t.Fatalf("expected one shared batch, got %d", got)
			}
			if got := f.countRows(t, &models.City{}); got != 2 {
				t.Fatalf("expected concurrent city creation to converge on 2 rows, got %d", got)
			}
			if got := f.countRows(t, &models.Service{}); got != 1 {
				t.Fatalf("expected concurrent service creation to converge on 1 row, got %d", got)
			}
			if got := f.countRows(t, &models.Product{}); got != 1 {
				t.Fatalf("expected concurrent product creation to converge on 1 row, got %d", got)
			}
		})
	}
}

func TestCreateBookingStaffPendingWithoutCN(t *testing.T) {
	f := setupBookingTest(t)
	f.seedRoute(t)

	booking, err := f.svc.CreateBooking(context.Background(), staffActor, baseInput())
	if err != nil {
		t.Fatalf("create booking failed: %v", err)
	}
	if booking.Status != constants.BookingStatusPending || booking.CN != nil {
		t.Fatalf("expected PENDING without cn, got %s %q", booking.Status, booking.CNValue())
	}
	if booking.Batch == nil || booking.Batch.BatchCode != "KHI-00001" {
		t.Fatalf("expected station batch KHI-00001, got %+v", booking.Batch)
	}
}

func TestCreateBookingStaffApproveNowWithRate(t *testing.T) {
	f := setupBookingTest(t)
	f.seedRoute(t)

	in := baseInput()
	in.ApproveNow = true
	rate := decimal.NewFromInt(999)
	in.Rate = &rate
	booking, err := f.svc.CreateBooking(context.Background(), staffActor, in)
	if err != nil {
		t.Fatalf("create booking failed: %v", err)
	}
	if booking.Status != constants.BookingStatusBooked || booking.CNValue() == "" {
		t.Fatalf("expected BOOKED with cn, got %s %q", booking.Status, booking.CNValue())
	}
	if !booking.Rate.Equal(rate) || booking.ApprovedBy == nil {
		t.Fatalf("expected staff rate and approver, got %+v", booking)
	}
}

func TestCreateBookingSuppliedDuplicateCN(t *testing.T) {
	f := setupBookingTest(t)
	f.seedRoute(t)

	first := baseInput()
	first.CN = "MANUAL-001"
	first.ApproveNow = true
	if _, err := f.svc.CreateBooking(context.Background(), staffActor, first); err != nil {
		t.Fatalf("create first booking failed: %v", err)
	}

	second := baseInput()
	second.CN = "MANUAL-001"
	second.Documents = []DocumentInput{{Name: "invoice", Price: models.NewMoneyFromInt(10)}}
	second.Files = []storage.UploadFile{{Bytes: []byte("pdf"), Filename: "invoice.pdf"}}
	_, err := f.svc.CreateBooking(context.Background(), staffActor, second)
	expectErr(t, err, ErrDuplicateCN)
	var dup *DuplicateCnError
	if !errors.As(err, &dup) || dup.CN != "MANUAL-001" {
		t.Fatalf("expected duplicate cn detail, got %v", err)
	}
	if len(f.uploader.deleted) != 1 {
		t.Fatalf("expected uploaded document cleaned up, got %v", f.uploader.deleted)
	}
}

func TestCreateBookingUploadFailureWritesNothing(t *testing.T) {
	f := setupBookingTest(t)
	f.uploader.err = errors.New("bucket unavailable")

	in := baseInput()
	in.Files = []storage.UploadFile{{Bytes: []byte("x"), Filename: "id.png"}}
	_, err := f.svc.CreateBooking(context.Background(), customerActor, in)
	expectErr(t, err, ErrUpload)
	if !IsRetryable(err) {
		t.Fatalf("upload errors should be retryable")
	}
	for _, model := range []interface{}{&models.Booking{}, &models.City{}, &models.Customer{}, &models.Batch{}} {
		if got := f.countRows(t, model); got != 0 {
			t.Fatalf("expected nothing written for %T, got %d", model, got)
		}
	}
}

func TestCreateBookingDocumentsAndSubservicesInTotal(t *testing.T) {
	f := setupBookingTest(t)
	f.seedRoute(t)

	in := baseInput()
	in.Documents = []DocumentInput{{Name: "Degree", Price: models.NewMoneyFromInt(200)}}
	in.Files = []storage.UploadFile{{Bytes: []byte("scan"), Filename: "degree.pdf"}}
	in.Subservices = models.BookingSubservices{{Name: "Insurance", Charge: models.NewMoneyFromInt(75)}}
	booking, err := f.svc.CreateBooking(context.Background(), customerActor, in)
	if err != nil {
		t.Fatalf("create booking failed: %v", err)
	}
	if len(booking.Documents) != 1 || booking.Documents[0].URL == "" || booking.Documents[0].Name != "Degree" {
		t.Fatalf("unexpected documents: %+v", booking.Documents)
	}
	if !booking.TotalAmount.Equal(decimal.NewFromInt(825 + 200 + 75)) {
		t.Fatalf("unexpected total: %s", booking.TotalAmount)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	f := setupBookingTest(t)

	cases := map[string]func(in *CreateBookingInput){
		"missing service":  func(in *CreateBookingInput) { in.Service = " " },
		"zero weight":      func(in *CreateBookingInput) { in.Weight = decimal.Zero },
		"bad payment mode": func(in *CreateBookingInput) { in.PaymentMode = "BARTER" },
		"customer rate": func(in *CreateBookingInput) {
			rate := decimal.NewFromInt(1)
			in.Rate = &rate
		},
		"customer cn":     func(in *CreateBookingInput) { in.CN = "CN123456" },
		"missing address": func(in *CreateBookingInput) { in.Consignee.Address = "" },
	}
	for name, mutate := range cases {
		in := baseInput()
		mutate(&in)
		_, err := f.svc.CreateBooking(context.Background(), customerActor, in)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	if got := f.countRows(t, &models.Booking{}); got != 0 {
		t.Fatalf("validation failures must not write, got %d bookings", got)
	}
}

func TestGetNextCnForCodReservesAndIsConsumed(t *testing.T) {
	f := setupBookingTest(t)
	f.seedRoute(t)

	reservation, err := f.svc.GetNextCnForCod(context.Background(), staffActor)
	if err != nil {
		t.Fatalf("reserve cn failed: %v", err)
	}
	if len(reservation.CN) != 10 || !strings.HasSuffix(reservation.CN, "01") {
		t.Fatalf("unexpected date coded cn: %q", reservation.CN)
	}
	if len(f.notifier.payloads) != 1 || f.notifier.payloads[0].CN != reservation.CN {
		t.Fatalf("expected expiry task enqueued, got %+v", f.notifier.payloads)
	}

	next, err := f.svc.GetNextCnForCod(context.Background(), staffActor)
	if err != nil {
		t.Fatalf("reserve second cn failed: %v", err)
	}
	if next.CN == reservation.CN {
		t.Fatalf("reservations must be distinct")
	}

	in := baseInput()
	in.PaymentMode = constants.PaymentModeCOD
	in.CN = reservation.CN
	in.ApproveNow = true
	booking, err := f.svc.CreateBooking(context.Background(), staffActor, in)
	if err != nil {
		t.Fatalf("create booking with reserved cn failed: %v", err)
	}
	if booking.CNValue() != reservation.CN {
		t.Fatalf("expected reserved cn, got %q", booking.CNValue())
	}
	if got := f.countRows(t, &models.CnReservation{}); got != 1 {
		t.Fatalf("expected only the unused reservation left, got %d", got)
	}

	// 其他人不能使用仍有效的预留
	other := Actor{ID: 8, Username: "op2", Role: constants.RoleOperator, StationCode: "LHE"}
	in.CN = next.CN
	_, err = f.svc.CreateBooking(context.Background(), other, in)
	expectErr(t, err, ErrDuplicateCN)

	if _, err := f.svc.GetNextCnForCod(context.Background(), customerActor); !errors.Is(err, ErrForbidden) {
		t.Fatalf("customers cannot reserve cn, got %v", err)
	}
}

func TestExpireReservations(t *testing.T) {
	f := setupBookingTest(t)

	reservation, err := f.svc.GetNextCnForCod(context.Background(), staffActor)
	if err != nil {
		t.Fatalf("reserve cn failed: %v", err)
	}
	expired, err := f.svc.ExpireReservation(context.Background(), reservation.CN)
	if err != nil || expired {
		t.Fatalf("fresh reservation must not expire: %v %v", expired, err)
	}

	f.svc.now = func() time.Time { return reservation.ExpiresAt.Add(time.Second) }
	count, err := f.svc.ExpireReservations(context.Background())
	if err != nil || count != 1 {
		t.Fatalf("expected one reservation swept, got %d %v", count, err)
	}
}

func TestTrackReturnsOrderedHistory(t *testing.T) {
	f := setupBookingTest(t)
	f.seedRoute(t)

	booking, err := f.svc.CreateBooking(context.Background(), customerActor, baseInput())
	if err != nil {
		t.Fatalf("create booking failed: %v", err)
	}
	if _, err := f.svc.ChangeStatus(context.Background(), booking.ID, constants.BookingStatusPickupRequested, "rider assigned", staffActor); err != nil {
		t.Fatalf("change status failed: %v", err)
	}

	tracked, err := f.svc.Track(context.Background(), booking.CNValue())
	if err != nil {
		t.Fatalf("track failed: %v", err)
	}
	if len(tracked.History) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(tracked.History))
	}
	if tracked.History[0].Action != constants.HistoryActionCreated || tracked.History[1].Action != constants.HistoryActionStatusChanged {
		t.Fatalf("unexpected history order: %+v", tracked.History)
	}
	if tracked.OriginCity == nil || tracked.OriginCity.Name != "CityA" {
		t.Fatalf("expected references loaded, got %+v", tracked.OriginCity)
	}

	_, err = f.svc.Track(context.Background(), "CN999999999")
	expectErr(t, err, ErrBookingNotFound)
}

func TestListMyBookingsOnlyOwn(t *testing.T) {
	f := setupBookingTest(t)
	f.seedRoute(t)

	for _, actor := range []Actor{customerActor, customerActor, otherCustomer} {
		if _, err := f.svc.CreateBooking(context.Background(), actor, baseInput()); err != nil {
			t.Fatalf("create booking failed: %v", err)
		}
	}
	rows, total, err := f.svc.ListMyBookings(context.Background(), customerActor, repository.BookingListFilter{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 2 || len(rows) != 2 {
		t.Fatalf("expected 2 own bookings, got %d/%d", len(rows), total)
	}
	if _, _, err := f.svc.ListBookings(context.Background(), customerActor, repository.BookingListFilter{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("customers cannot list all bookings, got %v", err)
	}
	_, total, err = f.svc.ListBookings(context.Background(), staffActor, repository.BookingListFilter{Page: 1, PageSize: 10})
	if err != nil || total != 3 {
		t.Fatalf("expected staff to see 3 bookings, got %d %v", total, err)
	}
}
