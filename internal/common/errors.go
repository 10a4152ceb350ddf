// Package common defines shared constants, sentinel errors and small helpers
// used across the client and server layers of gophsocial. Callers should use
// errors.Is to match the sentinel kinds.
package common

import (
	"errors"
	"fmt"
)

var (
	// Failure kinds surfaced by the consistency core.
	ErrorNotFound         = errors.New("not found")
	ErrorForbidden        = errors.New("forbidden")
	ErrorInvalidOperation = errors.New("invalid operation")
	ErrorStoreFailure     = errors.New("store failure")

	// Service-level errors.
	ErrorInternal      = errors.New("internal error")
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrorAlreadyExists = errors.New("already exists")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired      = errors.New("token expired")
	ErrResetTokenInvalid = errors.New("reset token is invalid or expired")
)

// Error is a structured failure: a sentinel Kind plus machine-readable
// context about which entity was involved. It matches its Kind via errors.Is
// and unwraps to the underlying cause, if any.
type Error struct {
	Kind   error
	Entity string
	ID     string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Entity != "" {
		msg = e.Entity + " " + msg
	}
	if e.ID != "" {
		msg = fmt.Sprintf("%s (id=%s)", msg, e.ID)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports that the referenced entity is absent.
func NotFound(entity, id string) error {
	return &Error{Kind: ErrorNotFound, Entity: entity, ID: id}
}

// Forbidden reports that the actor failed an authorization predicate on entity.
func Forbidden(entity, id string) error {
	return &Error{Kind: ErrorForbidden, Entity: entity, ID: id}
}

// InvalidOperation reports a request that can never succeed, e.g. self-follow.
func InvalidOperation(entity, id string, cause error) error {
	return &Error{Kind: ErrorInvalidOperation, Entity: entity, ID: id, Err: cause}
}

// StoreFailure wraps a persistence error. A NotFound cause keeps its kind so
// callers can still tell a vanished record from a broken store.
func StoreFailure(entity, id string, cause error) error {
	if errors.Is(cause, ErrorNotFound) {
		return &Error{Kind: ErrorNotFound, Entity: entity, ID: id}
	}
	return &Error{Kind: ErrorStoreFailure, Entity: entity, ID: id, Err: cause}
}

// EntityOf returns the entity and id carried by a structured error.
func EntityOf(err error) (entity, id string, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Entity, e.ID, true
	}
	return "", "", false
}
