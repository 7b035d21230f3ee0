package account

import (
	"context"
	"time"

	"github.com/geocoder89/authhub/internal/domain/user"
)

// UserStore is the persistence the service needs. Missing rows come back as
// user.ErrNotFound.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// Notifier delivers OTP codes and reset links. A nil Notifier disables email.
type Notifier interface {
	SendOtpEmail(ctx context.Context, to, code string) error
	SendResetLink(ctx context.Context, to, url string) error
}
