package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/geocoder89/authhub/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// constraint name -> client message
var constraintMessages = map[string]string{
	"users_email_key":       "email must be unique",
	"users_full_name_check": "Full name must be at least 3 characters",
	"otps_user_id_fkey":     "user does not exist",
}

// translate maps driver failures onto store error kinds. It is the only place
// that looks at pg error codes.
func translate(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NewStoreError(apperr.StoreEmptyResult, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.NewStoreError(apperr.StoreTimeout, err)
	}

	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) {
		msg := constraintMessage(pgErr)

		switch pgErr.Code {
		case "23505":
			return apperr.NewStoreError(apperr.StoreUniqueConstraint, err, msg)
		case "23503":
			return apperr.NewStoreError(apperr.StoreForeignKeyConstraint, err, msg)
		case "23502", "23514", "22001", "22P02":
			return apperr.NewStoreError(apperr.StoreValidation, err, msg)
		case "57014":
			return apperr.NewStoreError(apperr.StoreTimeout, err)
		default:
			return apperr.NewStoreError(apperr.StoreDatabase, err)
		}
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error

	if errors.As(err, &connErr) || errors.As(err, &netErr) {
		return apperr.NewStoreError(apperr.StoreConnection, err)
	}

	return apperr.NewStoreError(apperr.StoreDatabase, err)
}

func constraintMessage(pgErr *pgconn.PgError) string {
	if msg, ok := constraintMessages[pgErr.ConstraintName]; ok {
		return msg
	}

	if pgErr.ColumnName != "" {
		return fmt.Sprintf("%s is invalid", pgErr.ColumnName)
	}

	return pgErr.Message
}
