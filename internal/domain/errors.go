package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// ErrInvalidState marks an OAuth state payload that could not be decoded or validated.
	ErrInvalidState = errors.New("invalid state")
	// ErrExchange marks a failed claims exchange with the identity provider.
	ErrExchange = errors.New("claims exchange failed")
	// ErrPersistence marks a verification that succeeded at the provider but could not be stored.
	ErrPersistence = errors.New("verification persistence failed")
)
