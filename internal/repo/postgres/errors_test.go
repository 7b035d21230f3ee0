package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/geocoder89/authhub/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind apperr.StoreKind
		wantMsg  string
	}{
		{
			name:     "unique email",
			err:      &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"},
			wantKind: apperr.StoreUniqueConstraint,
			wantMsg:  "email must be unique",
		},
		{
			name:     "foreign key",
			err:      &pgconn.PgError{Code: "23503", ConstraintName: "otps_user_id_fkey"},
			wantKind: apperr.StoreForeignKeyConstraint,
			wantMsg:  "user does not exist",
		},
		{
			name:     "not null column",
			err:      &pgconn.PgError{Code: "23502", ColumnName: "email"},
			wantKind: apperr.StoreValidation,
			wantMsg:  "email is invalid",
		},
		{
			name:     "check constraint",
			err:      fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23514", ConstraintName: "users_full_name_check"}),
			wantKind: apperr.StoreValidation,
			wantMsg:  "Full name must be at least 3 characters",
		},
		{
			name:     "other pg error",
			err:      &pgconn.PgError{Code: "42P01", Message: "relation does not exist"},
			wantKind: apperr.StoreDatabase,
		},
		{
			name:     "deadline",
			err:      fmt.Errorf("query: %w", context.DeadlineExceeded),
			wantKind: apperr.StoreTimeout,
		},
		{
			name:     "no rows",
			err:      pgx.ErrNoRows,
			wantKind: apperr.StoreEmptyResult,
		},
		{
			name:     "unknown",
			err:      errors.New("boom"),
			wantKind: apperr.StoreDatabase,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := translate(tc.err)

			var se *apperr.StoreError
			if !errors.As(got, &se) {
				t.Fatalf("expected *apperr.StoreError, got %T", got)
			}

			if se.Kind != tc.wantKind {
				t.Fatalf("kind: got %s want %s", se.Kind, tc.wantKind)
			}

			if tc.wantMsg != "" && (len(se.Messages) != 1 || se.Messages[0] != tc.wantMsg) {
				t.Fatalf("messages: got %v want [%s]", se.Messages, tc.wantMsg)
			}

			if !errors.Is(got, tc.err) {
				t.Fatalf("translated error should keep the cause")
			}
		})
	}
}

func TestTranslate_Nil(t *testing.T) {
	if translate(nil) != nil {
		t.Fatalf("expected nil")
	}
}
