// Package service implements the note, plan, and session operations on top of
// a [store.Store].
//
// Services take the caller's verified [auth.Claims] and return classified
// errors from [errs]; they never touch HTTP. Every note operation is scoped to
// claims.TenantID, and a note in another tenant is indistinguishable from a
// missing one.
package service

import (
	"errors"

	"github.com/surrealdb/tenantnote/pkg/errs"
	"github.com/surrealdb/tenantnote/pkg/store"
)

// Observer receives domain events. [github.com/surrealdb/tenantnote/pkg/metrics.Metrics]
// implements it.
type Observer interface {
	NoteCreated(tenantSlug string)
	NoteLimitRejected(tenantSlug string)
	TenantUpgraded(tenantSlug string)
	LoginAttempt(result string)
}

// Login results reported to the Observer.
const (
	LoginSuccess     = "success"
	LoginInvalid     = "invalid_credentials"
	LoginBadRequest  = "bad_request"
	LoginServerError = "error"
)

type nopObserver struct{}

func (nopObserver) NoteCreated(string)       {}
func (nopObserver) NoteLimitRejected(string) {}
func (nopObserver) TenantUpgraded(string)    {}
func (nopObserver) LoginAttempt(string)      {}

// Option configures a service.
type Option func(*options)

type options struct {
	observer Observer
}

// WithObserver reports domain events to o.
func WithObserver(o Observer) Option {
	return func(opts *options) {
		if o != nil {
			opts.observer = o
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{observer: nopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// storeError classifies a store failure. Read-only mode becomes Unavailable;
// everything else is Internal.
func storeError(op string, err error) error {
	if errors.Is(err, store.ErrReadOnly) {
		return errs.Wrap(op, errs.Unavailable, "Service is in read-only mode", err)
	}
	return errs.Internalf(op, err)
}
