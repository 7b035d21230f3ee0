package observability

import (
	"errors"
	"time"

	"github.com/geocoder89/authhub/internal/apperr"
	"github.com/geocoder89/authhub/internal/domain/user"
)

// ObserveDB times fn under the logical op name. A nil receiver just runs fn.
// Storage adapters return translated store errors, so the error class label
// is the store kind.
func (p *Prom) ObserveDB(op string, fn func() error) error {
	if p == nil {
		return fn()
	}

	start := time.Now()
	err := fn()

	status := "ok"

	if class, failed := dbErrorClass(err); failed {
		status = "error"
		p.DbErrorsTotal.WithLabelValues(op, class).Inc()
	}

	p.DbQueryDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return err
}

// dbErrorClass reports whether err counts as a failed query and its label.
// A lookup that finds nothing is an answer, not a failure.
func dbErrorClass(err error) (string, bool) {
	if err == nil || errors.Is(err, user.ErrNotFound) {
		return "", false
	}

	var storeErr *apperr.StoreError

	if errors.As(err, &storeErr) {
		if storeErr.Kind == apperr.StoreEmptyResult {
			return "", false
		}
		return string(storeErr.Kind), true
	}

	return "unknown", true
}
