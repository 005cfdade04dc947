package brokererr

import (
	"context"
	"errors"
	"net"

	yerrors "github.com/yanun0323/errors"
)

// Upstream-side sentinels naming specific upstream failure causes, with
// IsTransient/IsBusinessRefusal as an explicit classification table that
// avoids substring matching on upstream error text. The clients in
// internal/upstream do not return these: they wrap failures with
// UpstreamTransient, UpstreamRefused, NoAction or SessionNotReady, and
// the Worker Session heals on ErrUpstreamTransient.
var (
	ErrTokenExpired      = yerrors.New("upstream token expired")
	ErrSignatureSkew     = yerrors.New("upstream signature timestamp skew")
	ErrSocketDropped     = yerrors.New("upstream socket dropped")
	ErrMarketClosed      = yerrors.New("upstream market closed")
	ErrInsufficientMargin = yerrors.New("upstream insufficient margin")
	ErrPriceOutOfRange   = yerrors.New("upstream price out of range")
)

// IsTransient reports whether err should drive the worker session state
// machine into reconnecting (token expiry, socket drop, signature skew,
// or a context/network-level timeout), as opposed to a business refusal
// that must simply be returned to the caller.
func IsTransient(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrTokenExpired), errors.Is(err, ErrSignatureSkew), errors.Is(err, ErrSocketDropped):
		return true
	case errors.Is(err, context.DeadlineExceeded):
		return true
	default:
		var netErr net.Error
		return errors.As(err, &netErr)
	}
}

// IsBusinessRefusal reports whether err is an upstream business decision
// (insufficient margin, market closed, price out of range) that must be
// surfaced verbatim, never retried and never driving a reconnect.
func IsBusinessRefusal(err error) bool {
	switch {
	case errors.Is(err, ErrMarketClosed):
		return true
	case errors.Is(err, ErrInsufficientMargin):
		return true
	case errors.Is(err, ErrPriceOutOfRange):
		return true
	default:
		return false
	}
}
