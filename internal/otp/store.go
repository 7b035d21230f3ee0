package otp

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("otp not found")

// Record is one issued passcode. OtpHash is a "salt:hash" value; the plaintext
// code is never stored.
type Record struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	UserID    string    `json:"userId"`
	OtpHash   string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store interface {
	// CountSince counts records for userID with created_at strictly after since.
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
	Create(ctx context.Context, rec Record) (Record, error)
	// LatestForEmailSince returns the newest record for email with created_at
	// strictly after since, or ErrNotFound.
	LatestForEmailSince(ctx context.Context, email string, since time.Time) (Record, error)
	DeleteForUser(ctx context.Context, userID string) (int64, error)
}
