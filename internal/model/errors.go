// Package model holds the data types shared across the extraction pipeline:
// canonical URLs, fingerprints, fetched responses and the error taxonomy
// every component reports through.
package model

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error discriminant, per the error taxonomy.
type Kind string

const (
	// Validation
	KindInvalidArgument Kind = "InvalidArgument"
	KindUnknownField    Kind = "UnknownField"
	KindOutOfRange      Kind = "OutOfRange"

	// Policy
	KindBlockedByGuard   Kind = "BlockedByGuard"
	KindRobotsDisallowed Kind = "RobotsDisallowed"
	KindCreditExhausted  Kind = "CreditExhausted"

	// Transport
	KindTimeout          Kind = "Timeout"
	KindDNSError         Kind = "DNSError"
	KindConnectError     Kind = "ConnectError"
	KindTLSError         Kind = "TLSError"
	KindHTTPStatus       Kind = "HTTPStatus"
	KindResponseTooLarge Kind = "ResponseTooLarge"
	KindInvalidRedirect  Kind = "InvalidRedirect"

	// State
	KindCircuitOpen      Kind = "CircuitOpen"
	KindJobNotFound      Kind = "JobNotFound"
	KindJobCancelled     Kind = "JobCancelled"
	KindJobExpired       Kind = "JobExpired"
	KindSnapshotNotFound Kind = "SnapshotNotFound"

	// Internal
	KindWorkerCrashed  Kind = "WorkerCrashed"
	KindQueueOverflow  Kind = "QueueOverflow"
	KindCorruptArtifact Kind = "CorruptArtifact"
	KindInternal       Kind = "InternalError"
)

// GuardReason further classifies a KindBlockedByGuard error.
type GuardReason string

const (
	ReasonPrivateAddress GuardReason = "PrivateAddress"
	ReasonMetadataHost   GuardReason = "MetadataHost"
	ReasonBlockedPort    GuardReason = "BlockedPort"
	ReasonScheme         GuardReason = "Scheme"
	ReasonBlockedHost    GuardReason = "BlockedHost"
	ReasonResolveFailed  GuardReason = "ResolutionFailed"
)

// Error is the envelope every pipeline failure is returned as. It never
// carries an absolute filesystem path or a stack trace in Message.
type Error struct {
	Kind       Kind
	Message    string
	Reason     GuardReason // set for KindBlockedByGuard
	StatusCode int         // set for KindHTTPStatus
	Attempts   int         // set when returned after retry exhaustion
	Cause      error
	Correlation string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around a lower-level cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Guard builds a KindBlockedByGuard error with the given reason.
func Guard(reason GuardReason, format string, args ...any) *Error {
	return &Error{Kind: KindBlockedByGuard, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from an error, defaulting to KindInternal for
// errors that did not originate in this package.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
