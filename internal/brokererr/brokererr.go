// Package brokererr classifies errors into a closed taxonomy
// (validation, session-not-ready, upstream-refused, upstream-transient,
// no-action, bus-unreachable, timed-out) rather than substring matching
// on upstream error text.
package brokererr

import "errors"

var (
	ErrValidation       = errors.New("validation: malformed command")
	ErrSessionNotReady  = errors.New("session not ready")
	ErrUpstreamRefused  = errors.New("upstream refused")
	ErrUpstreamTransient = errors.New("upstream transient failure")
	ErrBusUnreachable   = errors.New("bus unreachable")
	ErrTimedOut         = errors.New("timed out waiting for reply")
	ErrNoAction         = errors.New("no action required")
)

// wrapped pairs a sentinel with a human-readable detail, the way
// github.com/yanun0323/errors wraps a base error with context.
type wrapped struct {
	sentinel error
	detail   string
}

func (w *wrapped) Error() string {
	if w.detail == "" {
		return w.sentinel.Error()
	}
	return w.sentinel.Error() + ": " + w.detail
}

func (w *wrapped) Unwrap() error { return w.sentinel }

// Validation wraps ErrValidation with a caller-facing detail.
func Validation(detail string) error { return &wrapped{sentinel: ErrValidation, detail: detail} }

// SessionNotReady wraps ErrSessionNotReady with a caller-facing detail.
func SessionNotReady(detail string) error {
	return &wrapped{sentinel: ErrSessionNotReady, detail: detail}
}

// UpstreamRefused wraps ErrUpstreamRefused with the upstream's own message.
func UpstreamRefused(detail string) error {
	return &wrapped{sentinel: ErrUpstreamRefused, detail: detail}
}

// UpstreamTransient wraps ErrUpstreamTransient with the upstream's own message.
func UpstreamTransient(detail string) error {
	return &wrapped{sentinel: ErrUpstreamTransient, detail: detail}
}

// NoAction wraps ErrNoAction: the command was refused because there is
// nothing left to do (e.g. canceling an already-filled order), distinct
// from an upstream-level refusal.
func NoAction(detail string) error { return &wrapped{sentinel: ErrNoAction, detail: detail} }

// IsRetryable reports whether err should be surfaced to the caller with
// a retryable marker (session-not-ready, upstream-transient, bus-unreachable).
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrSessionNotReady):
		return true
	case errors.Is(err, ErrUpstreamTransient):
		return true
	case errors.Is(err, ErrBusUnreachable):
		return true
	default:
		return false
	}
}
