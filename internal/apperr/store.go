package apperr

import (
	"errors"
	"strings"
)

type StoreKind string

const (
	StoreValidation           StoreKind = "validation"
	StoreUniqueConstraint     StoreKind = "unique_constraint"
	StoreForeignKeyConstraint StoreKind = "foreign_key_constraint"
	StoreDatabase             StoreKind = "database"
	StoreConnection           StoreKind = "connection"
	StoreTimeout              StoreKind = "timeout"
	StoreEmptyResult          StoreKind = "empty_result"
)

// StoreError is what storage adapters return once a driver error has been
// translated. Messages holds one entry per offending field or constraint.
type StoreError struct {
	Kind     StoreKind
	Messages []string
	Err      error
}

func (e *StoreError) Error() string {
	msg := strings.Join(e.Messages, ", ")

	if msg == "" && e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}

	return string(e.Kind) + ": " + msg
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewStoreError(kind StoreKind, err error, messages ...string) *StoreError {
	return &StoreError{Kind: kind, Messages: messages, Err: err}
}

// message is what the client sees for a store failure before the production
// mask is applied.
func (e *StoreError) message() string {
	if len(e.Messages) > 0 {
		return strings.Join(e.Messages, ", ")
	}

	if e.Err != nil {
		return e.Err.Error()
	}

	return string(e.Kind)
}

const genericInternal = "Internal Server Error"

// Classify turns any error into a domain error ready for the response envelope.
// Outside production the raw cause of internal failures is kept as the message.
func Classify(err error, production bool) *Error {
	if err == nil {
		return nil
	}

	var domainErr *Error

	if errors.As(err, &domainErr) {
		if domainErr.Kind == KindInternal && production {
			return Wrap(KindInternal, genericInternal, domainErr.Err)
		}
		return domainErr
	}

	var storeErr *StoreError

	if errors.As(err, &storeErr) {
		switch storeErr.Kind {
		case StoreValidation:
			return Wrap(KindValidation, storeErr.message(), storeErr)
		case StoreUniqueConstraint:
			return Wrap(KindConflict, storeErr.message(), storeErr)
		default:
			return internal(storeErr.message(), storeErr, production)
		}
	}

	return internal(err.Error(), err, production)
}

func internal(message string, cause error, production bool) *Error {
	if production {
		message = genericInternal
	}
	return Wrap(KindInternal, message, cause)
}
