package domain

import (
	"errors"
	"fmt"
)

// Decode failure kinds. A decode failure is recorded on the audit record and
// returned to the caller; it never crashes the ingestion path.
type DecodeErrorKind string

const (
	EmptyPayload         DecodeErrorKind = "EMPTY_PAYLOAD"
	StaleTimestamp       DecodeErrorKind = "STALE_TIMESTAMP"
	InvalidKeyMaterial   DecodeErrorKind = "INVALID_KEY_MATERIAL"
	IncompleteExtraction DecodeErrorKind = "INCOMPLETE_EXTRACTION"
)

type DecodeError struct {
	Kind DecodeErrorKind
	// Field names the missing fact for INCOMPLETE_EXTRACTION.
	Field string
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decode failed: %s (%s)", e.Kind, e.Field)
	}
	return fmt.Sprintf("decode failed: %s", e.Kind)
}

func NewDecodeError(kind DecodeErrorKind) *DecodeError {
	return &DecodeError{Kind: kind}
}

// ConflictError is the routine outcome of losing a claim/reject race. It is
// not a failure: callers surface "already handled" and must not retry.
type ConflictError struct {
	PaymentID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("payment %s already resolved", e.PaymentID)
}

type NotFoundKind string

const (
	UnknownPayment NotFoundKind = "UNKNOWN_PAYMENT"
	UnknownSeller  NotFoundKind = "UNKNOWN_SELLER"
)

type NotFoundError struct {
	Kind NotFoundKind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.ID)
}

// PersistenceError wraps storage failures so callers can tell a genuine
// failure apart from an expected race loss.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}
