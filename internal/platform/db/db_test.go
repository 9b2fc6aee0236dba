package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestTxFromContext_Nil(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Errorf("expected nil tx, got %v", tx)
	}
}

func TestTxFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), txKey, "not-a-tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Errorf("expected nil tx for wrong type, got %v", tx)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"sentinel", ErrUniqueViolation, true},
		{"wrapped sentinel", fmt.Errorf("insert: %w", ErrUniqueViolation), true},
		{"pg 23505", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped pg 23505", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"pg other", &pgconn.PgError{Code: "23503"}, false},
		{"plain", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsUniqueViolation(tc.err); got != tc.want {
				t.Errorf("IsUniqueViolation(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestMigrations_OrderedAndUnique(t *testing.T) {
	seen := map[int]bool{}
	last := 0
	for _, m := range Migrations {
		if seen[m.Version] {
			t.Errorf("duplicate migration version %d", m.Version)
		}
		seen[m.Version] = true
		if m.Version <= last {
			t.Errorf("migration versions out of order at %d", m.Version)
		}
		last = m.Version
		if m.SQL == "" || m.Name == "" {
			t.Errorf("migration %d incomplete", m.Version)
		}
	}
}

func TestMigrations_IdempotencyConstraints(t *testing.T) {
	// The cascade relies on these uniqueness constraints existing in the
	// schema, not just on application-level checks.
	all := ""
	for _, m := range Migrations {
		all += m.SQL
	}
	for _, want := range []string{
		"UNIQUE (child_id, section_id)",
		"UNIQUE (response_id, question_id)",
		"UNIQUE (child_id, pool_id)",
		"UNIQUE REFERENCES children(id)",
	} {
		if !strings.Contains(all, want) {
			t.Errorf("schema missing constraint %q", want)
		}
	}
}
