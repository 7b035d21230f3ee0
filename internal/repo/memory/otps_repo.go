package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/authhub/internal/otp"
	"github.com/google/uuid"
)

type OtpsRepo struct {
	mu    sync.RWMutex
	items []otp.Record // insertion order
}

func NewOtpsRepo() *OtpsRepo {
	return &OtpsRepo{}
}

func (r *OtpsRepo) Create(_ context.Context, rec otp.Record) (otp.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	r.mu.Lock()
	r.items = append(r.items, rec)
	r.mu.Unlock()

	return rec, nil
}

func (r *OtpsRepo) CountSince(_ context.Context, userID string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, rec := range r.items {
		if rec.UserID == userID && rec.CreatedAt.After(since) {
			n++
		}
	}

	return n, nil
}

func (r *OtpsRepo) LatestForEmailSince(_ context.Context, email string, since time.Time) (otp.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		latest otp.Record
		found  bool
	)

	for _, rec := range r.items {
		if rec.Email != email || !rec.CreatedAt.After(since) {
			continue
		}
		// ties keep the later insert
		if !found || !rec.CreatedAt.Before(latest.CreatedAt) {
			latest = rec
			found = true
		}
	}

	if !found {
		return otp.Record{}, otp.ErrNotFound
	}

	return latest, nil
}

func (r *OtpsRepo) DeleteForUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.items[:0]
	var removed int64

	for _, rec := range r.items {
		if rec.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	r.items = kept

	return removed, nil
}

// ForUser returns a copy of every record held for userID, oldest first.
func (r *OtpsRepo) ForUser(userID string) []otp.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]otp.Record, 0)
	for _, rec := range r.items {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}

	return out
}
