package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Credential failures. Terminal for the request; callers translate these to
// 401/403 and never retry them automatically.
var (
	ErrMalformedToken        = errors.New("malformed token")
	ErrUnknownSigningKey     = errors.New("token signed with unknown key id")
	ErrInvalidSignature      = errors.New("token signature verification failed")
	ErrUnacceptableAlgorithm = errors.New("token uses an unacceptable signing algorithm")
	ErrIssuerMismatch        = errors.New("token issuer mismatch")
	ErrAudienceMismatch      = errors.New("token audience mismatch")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenNotYetValid      = errors.New("token not yet valid")
	ErrClaimRejected         = errors.New("token claims rejected")
)

// ErrKeyNotFound is returned by key-set lookups when the cached set has no
// entry for the requested key id.
var ErrKeyNotFound = errors.New("signing key not found")

// KeySourceUnavailableError indicates the JWKS endpoint could not be reached
// or did not answer within the fetch timeout, and no cached key satisfied the
// request. Transient: callers surface it as a 503, never as "token invalid".
type KeySourceUnavailableError struct {
	URL string
	Err error
}

func (e *KeySourceUnavailableError) Error() string {
	return fmt.Sprintf("key source %s unavailable: %v", e.URL, e.Err)
}

func (e *KeySourceUnavailableError) Unwrap() error { return e.Err }

// DeniedError is a terminal authorization denial: the credential is valid but
// lacks required scopes. Carries the missing scopes for observability.
type DeniedError struct {
	Missing []string
}

func (e *DeniedError) Error() string {
	return "insufficient scope: missing " + strings.Join(e.Missing, ", ")
}

// InvalidInputError reports malformed audit inputs (e.g. a role binding with
// an empty role name). The audit engine fails on these instead of silently
// skipping them.
type InvalidInputError struct {
	Detail string
}

func (e *InvalidInputError) Error() string { return "invalid input: " + e.Detail }

// FailureClass groups failures by how callers should react.
type FailureClass int

const (
	ClassUnknown    FailureClass = iota
	ClassTransient               // infrastructure failure, retryable, 503
	ClassCredential              // bad credential, terminal, 401
	ClassDenied                  // valid credential, insufficient scope, 403
)

// ClassOf classifies an error from the validation/authorization pipeline.
// Timeouts and key-source outages are transient so callers retry instead of
// rejecting the credential.
func ClassOf(err error) FailureClass {
	var unavailable *KeySourceUnavailableError
	var denied *DeniedError
	switch {
	case err == nil:
		return ClassUnknown
	case errors.As(err, &unavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return ClassTransient
	case errors.As(err, &denied):
		return ClassDenied
	case errors.Is(err, ErrMalformedToken),
		errors.Is(err, ErrUnknownSigningKey),
		errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrUnacceptableAlgorithm),
		errors.Is(err, ErrIssuerMismatch),
		errors.Is(err, ErrAudienceMismatch),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenNotYetValid),
		errors.Is(err, ErrClaimRejected):
		return ClassCredential
	default:
		return ClassUnknown
	}
}
