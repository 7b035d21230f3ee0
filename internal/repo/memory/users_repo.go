package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/authhub/internal/apperr"
	"github.com/geocoder89/authhub/internal/domain/user"
	"github.com/google/uuid"
)

type UsersRepo struct {
	mu      sync.RWMutex
	items   map[string]user.User // id -> user
	byEmail map[string]string    // email -> id
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items:   make(map[string]user.User),
		byEmail: make(map[string]string),
	}
}

func (r *UsersRepo) Create(_ context.Context, u user.User) (user.User, error) {
	now := time.Now().UTC()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = u.CreatedAt

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[u.Email]; taken {
		return user.User{}, apperr.NewStoreError(apperr.StoreUniqueConstraint, nil, "email must be unique")
	}

	r.items[u.ID] = u
	r.byEmail[u.Email] = u.ID

	return u, nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return r.items[id], nil
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return u, nil
}

func (r *UsersRepo) MarkEmailVerified(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.ErrNotFound
	}

	at = at.UTC()
	u.EmailVerifiedAt = &at
	u.UpdatedAt = at
	r.items[id] = u

	return nil
}

func (r *UsersRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.ErrNotFound
	}

	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	r.items[id] = u

	return nil
}

// Ping lets the in-memory driver satisfy readiness checks.
func (r *UsersRepo) Ping(context.Context) error {
	return nil
}
