package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/authhub/internal/domain/user"
	"github.com/geocoder89/authhub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

// observe times fn and hands back its error already translated.
func (r *UsersRepo) observe(op string, fn func() error) error {
	return r.prom.ObserveDB(op, func() error { return translate(fn()) })
}

const userColumns = `id, full_name, email, password_hash, profile_image, email_verified_at, created_at, updated_at`

func scanUser(row pgx.Row, u *user.User) error {
	return row.Scan(
		&u.ID,
		&u.FullName,
		&u.Email,
		&u.PasswordHash,
		&u.ProfileImage,
		&u.EmailVerifiedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	now := time.Now().UTC()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = u.CreatedAt

	err := r.observe("users.create", func() error {
		_, e := r.pool.Exec(ctx, `
			INSERT INTO users (id, full_name, email, password_hash, profile_image, email_verified_at, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, u.ID, u.FullName, u.Email, u.PasswordHash, u.ProfileImage, u.EmailVerifiedAt, u.CreatedAt, u.UpdatedAt)
		return e
	})

	if err != nil {
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email), &u)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	// ids are uuids; anything else can never match
	if uuid.Validate(id) != nil {
		return user.User{}, user.ErrNotFound
	}

	var u user.User

	err := r.observe("users.get_by_id", func() error {
		return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id), &u)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, "users.mark_email_verified", `
		UPDATE users SET email_verified_at = $2, updated_at = $2 WHERE id = $1
	`, id, at.UTC())
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.update(ctx, "users.update_password", `
		UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1
	`, id, passwordHash, time.Now().UTC())
}

func (r *UsersRepo) update(ctx context.Context, op, sql string, args ...any) error {
	var affected int64

	err := r.observe(op, func() error {
		tag, e := r.pool.Exec(ctx, sql, args...)
		affected = tag.RowsAffected()
		return e
	})

	if err != nil {
		return err
	}

	if affected == 0 {
		return user.ErrNotFound
	}

	return nil
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
