package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/consign-next/internal/constants"
	"github.com/consign-next/internal/models"
)

// memoryReferenceStore 内存版基础资料存储
type memoryReferenceStore struct {
	rows   []models.Reference
	nextID uint
}

func newMemoryReferenceStore(rows ...models.Reference) *memoryReferenceStore {
	store := &memoryReferenceStore{}
	for _, row := range rows {
		store.nextID++
		if row.ID == 0 {
			row.ID = store.nextID
		}
		if row.Status == "" {
			row.Status = constants.ReferenceStatusActive
		}
		store.rows = append(store.rows, row)
	}
	return store
}

func (s *memoryReferenceStore) find(match func(models.Reference) bool) (*models.Reference, error) {
	for i := range s.rows {
		if match(s.rows[i]) {
			row := s.rows[i]
			return &row, nil
		}
	}
	return nil, nil
}

func (s *memoryReferenceStore) GetByID(_ string, id uint) (*models.Reference, error) {
	return s.find(func(r models.Reference) bool { return r.ID == id })
}

func (s *memoryReferenceStore) FindActiveByName(_ string, name string) (*models.Reference, error) {
	return s.find(func(r models.Reference) bool {
		return r.Status == constants.ReferenceStatusActive && strings.EqualFold(r.Name, strings.TrimSpace(name))
	})
}

func (s *memoryReferenceStore) FindActiveByCode(_ string, code string) (*models.Reference, error) {
	return s.find(func(r models.Reference) bool {
		return r.Status == constants.ReferenceStatusActive && strings.EqualFold(r.Code, strings.TrimSpace(code))
	})
}

func (s *memoryReferenceStore) FindByCode(_ string, code string) (*models.Reference, error) {
	return s.find(func(r models.Reference) bool { return strings.EqualFold(r.Code, strings.TrimSpace(code)) })
}

func (s *memoryReferenceStore) CreateIfAbsent(_ string, ref models.Reference) (bool, error) {
	if existing, _ := s.FindByCode("", ref.Code); existing != nil {
		return false, nil
	}
	s.nextID++
	ref.ID = s.nextID
	s.rows = append(s.rows, ref)
	return true, nil
}

func TestResolveReferenceLookupOrder(t *testing.T) {
	store := newMemoryReferenceStore(
		models.Reference{Code: "KHI", Name: "Karachi"},
		models.Reference{Code: "LHE", Name: "Lahore"},
		models.Reference{Code: "OLD", Name: "Old Town", Status: constants.ReferenceStatusInactive},
	)
	cases := []struct {
		identifier string
		wantCode   string
	}{
		{"1", "KHI"},
		{"lahore", "LHE"},
		{"khi", "KHI"},
		{"KHI - Karachi", "KHI"},
		{"  Karachi  ", "KHI"},
		{"old", "OLD"},
	}
	for _, tc := range cases {
		res, err := ResolveReference(store, constants.ReferenceKindCity, tc.identifier)
		if err != nil {
			t.Fatalf("resolve %q failed: %v", tc.identifier, err)
		}
		if res.Entity.Code != tc.wantCode || res.Created {
			t.Fatalf("resolve %q: expected existing %s, got %+v", tc.identifier, tc.wantCode, res)
		}
	}
}

func TestResolveReferenceCreatesAndIsIdempotent(t *testing.T) {
	store := newMemoryReferenceStore()

	first, err := ResolveReference(store, constants.ReferenceKindService, "Over Night")
	if err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	if !first.Created || first.Entity.Code != "OVER_NIGHT" || first.Entity.Name != "Over Night" {
		t.Fatalf("unexpected created entity: %+v", first)
	}
	if first.Entity.PricingMode != constants.PricingModeWeight {
		t.Fatalf("services default to weight pricing")
	}

	second, err := ResolveReference(store, constants.ReferenceKindService, "Over Night")
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if second.Created || second.Entity.ID != first.Entity.ID {
		t.Fatalf("expected same entity, got %+v", second)
	}
	if len(store.rows) != 1 {
		t.Fatalf("expected a single row, got %d", len(store.rows))
	}
}

func TestResolveReferenceCodeNameSplit(t *testing.T) {
	store := newMemoryReferenceStore(models.Reference{Code: "KHI", Name: "Karachi"})

	res, err := ResolveReference(store, constants.ReferenceKindCity, "ISB - Islamabad")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !res.Created || res.Entity.Code != "ISB" || res.Entity.Name != "Islamabad" {
		t.Fatalf("expected ISB created from split, got %+v", res)
	}

	// 编码被不同名称占用时以完整标识派生编码
	res, err = ResolveReference(store, constants.ReferenceKindCity, "KHI - Khairpur")
	if err != nil {
		t.Fatalf("resolve collision failed: %v", err)
	}
	if res.Entity.Code != "KHI_KHAIRPUR" || res.Entity.Name != "KHI - Khairpur" {
		t.Fatalf("expected derived entity, got %+v", res)
	}
}

func TestResolveReferenceUnresolvableCollision(t *testing.T) {
	long := "ABCDEFGHIJKLMNOPQRST"
	store := newMemoryReferenceStore(models.Reference{Code: long, Name: "Alpha"})

	_, err := ResolveReference(store, constants.ReferenceKindProduct, long+"UV - Beta")
	if !errors.Is(err, ErrResolution) {
		t.Fatalf("expected resolution error, got %v", err)
	}
	var resErr *ResolutionError
	if !errors.As(err, &resErr) || resErr.Code != long {
		t.Fatalf("expected colliding code in error, got %v", err)
	}
}

func TestResolveReferenceRejectsEmpty(t *testing.T) {
	store := newMemoryReferenceStore()
	for _, identifier := range []string{"", "   ", "---"} {
		if _, err := ResolveReference(store, constants.ReferenceKindCity, identifier); !errors.Is(err, ErrValidation) {
			t.Fatalf("identifier %q: expected validation error, got %v", identifier, err)
		}
	}
}

func TestNormalizeReferenceCode(t *testing.T) {
	cases := map[string]string{
		"Over Night":                   "OVER_NIGHT",
		"  a--b  ":                     "A_B",
		"Blue Box 5kg":                 "BLUE_BOX_5KG",
		"Documents (Attested)":         "DOCUMENTS_ATTESTED",
		"a very long name that is cut": "A_VERY_LONG_NAME_THA",
		"ends with space _":            "ENDS_WITH_SPACE",
	}
	for in, want := range cases {
		if got := normalizeReferenceCode(in); got != want {
			t.Fatalf("normalize %q: expected %q, got %q", in, want, got)
		}
	}
}

func TestResolveReferenceAgainstDatabase(t *testing.T) {
	f := setupBookingTest(t)

	first, err := f.catalog.ResolveReference(context.Background(), constants.ReferenceKindCity, "Multan")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	second, err := f.catalog.ResolveReference(context.Background(), constants.ReferenceKindCity, "MULTAN")
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if !first.Created || second.Created || first.Entity.ID != second.Entity.ID {
		t.Fatalf("expected idempotent resolution, got %+v / %+v", first, second)
	}
}
