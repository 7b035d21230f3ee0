package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenType string

const (
	TokenAccess  TokenType = "Access"
	TokenRefresh TokenType = "Refresh"
)

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

type Claims struct {
	TokenType TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// UserID is the subject the token was minted for.
func (c *Claims) UserID() string {
	return c.Subject
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type IssuerConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
}

// Issuer signs and verifies HS256 access and refresh tokens. Each token type has
// its own secret and lifetime; nothing is stored server side.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	audience      string
	now           func() time.Time
}

func NewIssuer(cfg IssuerConfig) *Issuer {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 10 * time.Minute
	}

	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 20 * time.Minute
	}

	return &Issuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		now:           time.Now,
	}
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

func (i *Issuer) IssueAccess(userID string) (string, error) {
	return i.sign(TokenAccess, userID, i.accessSecret, i.accessTTL)
}

func (i *Issuer) IssueRefresh(userID string) (string, error) {
	return i.sign(TokenRefresh, userID, i.refreshSecret, i.refreshTTL)
}

func (i *Issuer) IssuePair(userID string) (TokenPair, error) {
	access, err := i.IssueAccess(userID)

	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := i.IssueRefresh(userID)

	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (i *Issuer) sign(typ TokenType, userID string, secret []byte, ttl time.Duration) (string, error) {
	now := i.now().UTC()

	claims := Claims{
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(secret)

	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}

	return signed, nil
}

// VerifyAccess validates a token against the access secret. It is the check the
// HTTP auth gate runs on every protected request.
func (i *Issuer) VerifyAccess(tokenStr string) (*Claims, error) {
	return i.verify(tokenStr, TokenAccess, i.accessSecret)
}

// VerifyRefresh validates a refresh token and returns its subject.
func (i *Issuer) VerifyRefresh(tokenStr string) (string, error) {
	claims, err := i.verify(tokenStr, TokenRefresh, i.refreshSecret)

	if err != nil {
		return "", err
	}

	return claims.UserID(), nil
}

func (i *Issuer) verify(tokenStr string, want TokenType, secret []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		// Enforce HMAC
		_, ok := t.Method.(*jwt.SigningMethodHMAC)

		if !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if !token.Valid || claims.TokenType != want || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
