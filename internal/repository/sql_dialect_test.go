package repository

import (
	"errors"
	"testing"
)

func TestLikeOperatorByDialect(t *testing.T) {
	if got := likeOperatorByDialect("postgres"); got != "ILIKE" {
		t.Fatalf("postgres like operator want ILIKE got %s", got)
	}
	if got := likeOperatorByDialect("sqlite"); got != "LIKE" {
		t.Fatalf("sqlite like operator want LIKE got %s", got)
	}
}

func TestDialectNameDefaultsToSQLite(t *testing.T) {
	if got := dbDialectName(nil); got != "sqlite" {
		t.Fatalf("nil db dialect want sqlite got %s", got)
	}
	if IsPostgres(nil) {
		t.Fatalf("nil db should not be treated as postgres")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("UNIQUE constraint failed: bookings.cn"), true},
		{errors.New(`ERROR: duplicate key value violates unique constraint "idx_bookings_cn" (SQLSTATE 23505)`), true},
		{errors.New("record not found"), false},
	}
	for _, tc := range cases {
		if got := IsUniqueViolation(tc.err); got != tc.want {
			t.Fatalf("IsUniqueViolation(%v) want %v got %v", tc.err, tc.want, got)
		}
	}
}

func TestPrefixLikePatternEscapesWildcards(t *testing.T) {
	if got := prefixLikePattern("20261016"); got != "20261016%" {
		t.Fatalf("plain prefix mismatch: %s", got)
	}
	if got := prefixLikePattern("a_b%"); got != `a\_b\%%` {
		t.Fatalf("escaped prefix mismatch: %s", got)
	}
}
