package brokererr

import (
	"context"
	"errors"
	"net"
	"testing"
)

func TestWrappedErrorsUnwrapToTheirSentinel(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"validation", Validation("bad symbol"), ErrValidation},
		{"session not ready", SessionNotReady("still starting"), ErrSessionNotReady},
		{"upstream refused", UpstreamRefused("margin"), ErrUpstreamRefused},
		{"upstream transient", UpstreamTransient("socket drop"), ErrUpstreamTransient},
		{"no action", NoAction("already filled"), ErrNoAction},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if !errors.Is(c.err, c.want) {
				t.Fatalf("expected %v to be %v", c.err, c.want)
			}
		})
	}
}

func TestWrappedErrorMessageIncludesDetail(t *testing.T) {
	err := UpstreamRefused("insufficient margin")
	if err.Error() != "upstream refused: insufficient margin" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestWrappedErrorWithoutDetailOmitsColon(t *testing.T) {
	err := Validation("")
	if err.Error() != ErrValidation.Error() {
		t.Fatalf("expected a bare sentinel message, got %s", err.Error())
	}
}

func TestIsRetryableClassifiesOnlyTransientSentinels(t *testing.T) {
	retryable := []error{SessionNotReady("x"), UpstreamTransient("x"), ErrBusUnreachable}
	for _, err := range retryable {
		if !IsRetryable(err) {
			t.Fatalf("expected %v to be retryable", err)
		}
	}

	nonRetryable := []error{UpstreamRefused("x"), NoAction("x"), Validation("x"), errors.New("plain")}
	for _, err := range nonRetryable {
		if IsRetryable(err) {
			t.Fatalf("expected %v to not be retryable", err)
		}
	}
}

func TestIsTransientClassifiesUpstreamSentinels(t *testing.T) {
	transient := []error{ErrTokenExpired, ErrSignatureSkew, ErrSocketDropped, context.DeadlineExceeded}
	for _, err := range transient {
		if !IsTransient(err) {
			t.Fatalf("expected %v to be transient", err)
		}
	}
	if IsTransient(nil) {
		t.Fatalf("expected nil to not be transient")
	}
	if IsTransient(ErrMarketClosed) {
		t.Fatalf("expected a business refusal to not be transient")
	}
}

func TestIsTransientClassifiesNetworkErrors(t *testing.T) {
	var netErr net.Error = &net.DNSError{IsTimeout: true}
	if !IsTransient(netErr) {
		t.Fatalf("expected a net.Error to be classified as transient")
	}
}

func TestIsBusinessRefusalClassifiesUpstreamDecisions(t *testing.T) {
	refusals := []error{ErrMarketClosed, ErrInsufficientMargin, ErrPriceOutOfRange}
	for _, err := range refusals {
		if !IsBusinessRefusal(err) {
			t.Fatalf("expected %v to be a business refusal", err)
		}
	}
	if IsBusinessRefusal(ErrTokenExpired) {
		t.Fatalf("expected a transient sentinel to not be a business refusal")
	}
}
