package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/geocoder89/authhub/internal/apperr"
	"github.com/geocoder89/authhub/internal/observability"
	"github.com/geocoder89/authhub/internal/security"
	"github.com/google/uuid"
)

const (
	DefaultExpiry       = 10 * time.Minute
	DefaultRateWindow   = 60 * time.Minute
	DefaultMaxPerWindow = 3

	minCode = 1000
	maxCode = 9999
)

const (
	msgRateLimited = "Rate limit exceeded"
	msgInvalid     = "Invalid OTP"
)

type Config struct {
	Expiry       time.Duration
	RateWindow   time.Duration
	MaxPerWindow int
}

func (c Config) withDefaults() Config {
	if c.Expiry <= 0 {
		c.Expiry = DefaultExpiry
	}
	if c.RateWindow <= 0 {
		c.RateWindow = DefaultRateWindow
	}
	if c.MaxPerWindow <= 0 {
		c.MaxPerWindow = DefaultMaxPerWindow
	}
	return c
}

// Issued is a freshly created record together with its plaintext code. The
// code exists only here and is never written to the store.
type Issued struct {
	Record
	Code string `json:"otp"`
}

type Engine struct {
	store Store
	cfg   Config
	prom  *observability.Prom
	now   func() time.Time
}

func NewEngine(store Store, cfg Config, prom *observability.Prom) *Engine {
	return &Engine{
		store: store,
		cfg:   cfg.withDefaults(),
		prom:  prom,
		now:   time.Now,
	}
}

// WithClock returns a copy of the engine that reads windows and timestamps
// from now.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	cp := *e
	cp.now = now
	return &cp
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Create issues a new passcode for the user unless MaxPerWindow codes were
// already issued inside the trailing RateWindow. Two concurrent calls may both
// pass the count check; the store decides nothing here.
func (e *Engine) Create(ctx context.Context, userID, email string) (Issued, error) {
	now := e.now().UTC()

	count, err := e.store.CountSince(ctx, userID, now.Add(-e.cfg.RateWindow))

	if err != nil {
		return Issued{}, fmt.Errorf("count otps: %w", err)
	}

	if count >= e.cfg.MaxPerWindow {
		e.prom.IncOtpRateLimited()
		return Issued{}, apperr.RateLimited(msgRateLimited)
	}

	code, err := GenerateCode()

	if err != nil {
		return Issued{}, err
	}

	hash, err := security.HashOTP(code)

	if err != nil {
		return Issued{}, fmt.Errorf("hash otp: %w", err)
	}

	rec, err := e.store.Create(ctx, Record{
		ID:        uuid.NewString(),
		Email:     email,
		UserID:    userID,
		OtpHash:   hash,
		CreatedAt: now,
		UpdatedAt: now,
	})

	if err != nil {
		return Issued{}, fmt.Errorf("create otp: %w", err)
	}

	e.prom.IncOtpIssued()

	return Issued{Record: rec, Code: code}, nil
}

// Verify checks candidate against the newest unexpired record for email. A
// missing record and a wrong code produce the same error.
func (e *Engine) Verify(ctx context.Context, email, candidate string) (Record, error) {
	since := e.now().UTC().Add(-e.cfg.Expiry)

	rec, err := e.store.LatestForEmailSince(ctx, email, since)

	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.prom.ObserveOtpVerification("invalid")
			return Record{}, apperr.OtpInvalid(msgInvalid)
		}

		e.prom.ObserveOtpVerification("error")
		return Record{}, fmt.Errorf("find otp: %w", err)
	}

	if !security.CheckOTP(rec.OtpHash, candidate) {
		e.prom.ObserveOtpVerification("invalid")
		return Record{}, apperr.OtpInvalid(msgInvalid)
	}

	e.prom.ObserveOtpVerification("ok")

	return rec, nil
}

// Purge removes every record for the user, matched or not.
func (e *Engine) Purge(ctx context.Context, userID string) error {
	_, err := e.store.DeleteForUser(ctx, userID)

	if err != nil {
		return fmt.Errorf("purge otps: %w", err)
	}

	return nil
}

// GenerateCode returns a uniformly random code in [1000, 9999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxCode-minCode+1))

	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	return strconv.FormatInt(n.Int64()+minCode, 10), nil
}
