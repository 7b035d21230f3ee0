package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/authhub/internal/apperr"
	"github.com/geocoder89/authhub/internal/db"
	"github.com/geocoder89/authhub/internal/domain/user"
	"github.com/geocoder89/authhub/internal/otp"
	"github.com/geocoder89/authhub/internal/repo/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")

	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, dsn, 4)

	if err != nil {
		t.Fatalf("Failed to create pgx pool: %v", err)
	}

	t.Cleanup(pool.Close)

	if err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	_, err = pool.Exec(ctx, `TRUNCATE otps, users CASCADE`)

	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}

	return pool
}

func TestUsersRepo_Lifecycle(t *testing.T) {
	pool := setupPool(t)
	repo := postgres.NewUsersRepo(pool, nil)
	ctx := context.Background()

	created, err := repo.Create(ctx, user.User{
		FullName:     "Ada Lovelace",
		Email:        "ada@x.com",
		PasswordHash: "salt:hash",
		ProfileImage: "a.png",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByEmail(ctx, "ada@x.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.ID != created.ID || got.Verified() {
		t.Fatalf("unexpected user: %+v", got)
	}

	_, err = repo.Create(ctx, user.User{FullName: "Ada Again", Email: "ada@x.com", PasswordHash: "x:y"})
	var se *apperr.StoreError
	if !errors.As(err, &se) || se.Kind != apperr.StoreUniqueConstraint {
		t.Fatalf("expected unique constraint error, got %v", err)
	}

	at := time.Now().UTC().Truncate(time.Microsecond)
	if err := repo.MarkEmailVerified(ctx, created.ID, at); err != nil {
		t.Fatalf("MarkEmailVerified: %v", err)
	}
	if err := repo.UpdatePassword(ctx, created.ID, "new:hash"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}

	got, err = repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.Verified() || !got.EmailVerifiedAt.Equal(at) || got.PasswordHash != "new:hash" {
		t.Fatalf("update not applied: %+v", got)
	}

	if _, err := repo.GetByID(ctx, "not-a-uuid"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.UpdatePassword(ctx, uuid.NewString(), "x:y"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOtpsRepo_WindowQueries(t *testing.T) {
	pool := setupPool(t)
	users := postgres.NewUsersRepo(pool, nil)
	repo := postgres.NewOtpsRepo(pool, nil)
	ctx := context.Background()

	u, err := users.Create(ctx, user.User{FullName: "Ada Lovelace", Email: "ada@x.com", PasswordHash: "s:h"})
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Microsecond)

	for i, age := range []time.Duration{90 * time.Minute, 30 * time.Minute, time.Minute} {
		at := base.Add(-age)
		_, err := repo.Create(ctx, otp.Record{
			ID:        uuid.NewString(),
			Email:     u.Email,
			UserID:    u.ID,
			OtpHash:   "salt:" + string(rune('a'+i)),
			CreatedAt: at,
			UpdatedAt: at,
		})
		if err != nil {
			t.Fatalf("Create otp: %v", err)
		}
	}

	n, err := repo.CountSince(ctx, u.ID, base.Add(-time.Hour))
	if err != nil || n != 2 {
		t.Fatalf("CountSince: n=%d err=%v", n, err)
	}

	latest, err := repo.LatestForEmailSince(ctx, u.Email, base.Add(-10*time.Minute))
	if err != nil || latest.OtpHash != "salt:c" {
		t.Fatalf("LatestForEmailSince: %+v err=%v", latest, err)
	}

	_, err = repo.LatestForEmailSince(ctx, "nobody@x.com", base.Add(-time.Hour))
	if !errors.Is(err, otp.ErrNotFound) {
		t.Fatalf("expected otp.ErrNotFound, got %v", err)
	}

	deleted, err := repo.DeleteForUser(ctx, u.ID)
	if err != nil || deleted != 3 {
		t.Fatalf("DeleteForUser: n=%d err=%v", deleted, err)
	}

	_, err = repo.Create(ctx, otp.Record{ID: uuid.NewString(), Email: "x@x.com", UserID: uuid.NewString(), OtpHash: "s:h", CreatedAt: base, UpdatedAt: base})
	var se *apperr.StoreError
	if !errors.As(err, &se) || se.Kind != apperr.StoreForeignKeyConstraint {
		t.Fatalf("expected foreign key error, got %v", err)
	}
}
