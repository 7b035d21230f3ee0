package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify_StoreKinds(t *testing.T) {
	cause := errors.New("pq: boom")

	tests := []struct {
		name       string
		err        error
		production bool
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "validation joins messages",
			err:        NewStoreError(StoreValidation, cause, "email is required", "fullName is too short"),
			wantStatus: http.StatusBadRequest,
			wantMsg:    "email is required, fullName is too short",
		},
		{
			name:       "unique constraint",
			err:        NewStoreError(StoreUniqueConstraint, cause, "email must be unique"),
			wantStatus: http.StatusConflict,
			wantMsg:    "email must be unique",
		},
		{
			name:       "foreign key in dev keeps message",
			err:        NewStoreError(StoreForeignKeyConstraint, cause, "user_id is not present"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "user_id is not present",
		},
		{
			name:       "connection without messages uses cause",
			err:        NewStoreError(StoreConnection, cause),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "pq: boom",
		},
		{
			name:       "timeout in production is masked",
			err:        NewStoreError(StoreTimeout, cause, "statement timeout"),
			production: true,
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Internal Server Error",
		},
		{
			name:       "validation is never masked",
			err:        NewStoreError(StoreValidation, cause, "bad value"),
			production: true,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "bad value",
		},
		{
			name:       "wrapped store error",
			err:        fmt.Errorf("create user: %w", NewStoreError(StoreUniqueConstraint, cause, "dup")),
			wantStatus: http.StatusConflict,
			wantMsg:    "dup",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err, tc.production)
			require.NotNil(t, got)
			require.Equal(t, tc.wantStatus, got.Status())
			require.Equal(t, tc.wantMsg, got.Message)
		})
	}
}

func TestClassify_DomainErrorsPassThrough(t *testing.T) {
	for _, e := range []*Error{
		NotFound("User not found"),
		Unauthorized("Invalid credentials"),
		Conflict("User already exists"),
		BadRequest("Email already verified"),
		RateLimited("Rate limit exceeded"),
		OtpInvalid("Invalid OTP"),
	} {
		got := Classify(fmt.Errorf("ctx: %w", e), true)
		require.Same(t, e, got)
	}
}

func TestClassify_UnknownErrors(t *testing.T) {
	err := errors.New("nil pointer somewhere")

	dev := Classify(err, false)
	require.Equal(t, KindInternal, dev.Kind)
	require.Equal(t, "nil pointer somewhere", dev.Message)
	require.ErrorIs(t, dev, err)

	prod := Classify(err, true)
	require.Equal(t, http.StatusInternalServerError, prod.Status())
	require.Equal(t, "Internal Server Error", prod.Message)

	require.Nil(t, Classify(nil, true))
}

func TestClassify_InternalDomainErrorMaskedInProduction(t *testing.T) {
	got := Classify(Internal(errors.New("disk full")), true)
	require.Equal(t, "Internal Server Error", got.Message)

	got = Classify(Internal(errors.New("disk full")), false)
	require.Equal(t, "disk full", got.Message)
}

func TestStatusMapping(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, Validation("a", "b").Status())
	require.Equal(t, "a, b", Validation("a", "b").Message)
	require.Equal(t, http.StatusUnauthorized, OtpInvalid("x").Status())
	require.Equal(t, http.StatusTooManyRequests, RateLimited("x").Status())
	require.True(t, IsKind(fmt.Errorf("w: %w", NotFound("x")), KindNotFound))
	require.False(t, IsKind(errors.New("x"), KindNotFound))
}
