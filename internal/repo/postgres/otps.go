package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/authhub/internal/observability"
	"github.com/geocoder89/authhub/internal/otp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OtpsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewOtpsRepo(pool *pgxpool.Pool, prom *observability.Prom) *OtpsRepo {
	return &OtpsRepo{pool: pool, prom: prom}
}

func (r *OtpsRepo) observe(op string, fn func() error) error {
	return r.prom.ObserveDB(op, func() error { return translate(fn()) })
}

func (r *OtpsRepo) Create(ctx context.Context, rec otp.Record) (otp.Record, error) {
	err := r.observe("otps.create", func() error {
		_, e := r.pool.Exec(ctx, `
			INSERT INTO otps (id, email, user_id, otp_hash, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, rec.ID, rec.Email, rec.UserID, rec.OtpHash, rec.CreatedAt, rec.UpdatedAt)
		return e
	})

	if err != nil {
		return otp.Record{}, err
	}

	return rec, nil
}

// CountSince counts codes issued to the user strictly after since.
func (r *OtpsRepo) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int

	err := r.observe("otps.count_since", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT COUNT(*) FROM otps WHERE user_id = $1 AND created_at > $2
		`, userID, since).Scan(&n)
	})

	if err != nil {
		return 0, err
	}

	return n, nil
}

func (r *OtpsRepo) LatestForEmailSince(ctx context.Context, email string, since time.Time) (otp.Record, error) {
	var rec otp.Record

	err := r.observe("otps.latest_for_email", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT id, email, user_id, otp_hash, created_at, updated_at
			FROM otps
			WHERE email = $1 AND created_at > $2
			ORDER BY created_at DESC
			LIMIT 1
		`, email, since).Scan(&rec.ID, &rec.Email, &rec.UserID, &rec.OtpHash, &rec.CreatedAt, &rec.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return otp.Record{}, otp.ErrNotFound
		}
		return otp.Record{}, err
	}

	return rec, nil
}

func (r *OtpsRepo) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	var n int64

	err := r.observe("otps.delete_for_user", func() error {
		tag, e := r.pool.Exec(ctx, `DELETE FROM otps WHERE user_id = $1`, userID)
		n = tag.RowsAffected()
		return e
	})

	if err != nil {
		return 0, err
	}

	return n, nil
}
