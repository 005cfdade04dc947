package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"brokerd/internal/brokererr"
	"brokerd/internal/proto"
)

func TestSignIsOrderIndependentAndDeterministic(t *testing.T) {
	a := sign(map[string]string{"access_id": "x", "tm": "1"}, "secret")
	b := sign(map[string]string{"tm": "1", "access_id": "x"}, "secret")
	if a != b {
		t.Fatalf("expected the signature to be independent of map iteration order, got %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("expected a 32-hex-char md5 digest, got %q", a)
	}
}

func TestSignChangesWithSecret(t *testing.T) {
	body := map[string]string{"access_id": "x", "tm": "1"}
	if sign(body, "one") == sign(body, "two") {
		t.Fatalf("expected different secrets to produce different signatures")
	}
}

func TestLoginSendsSignedRequestAndParsesEnvelope(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("authorization")
		if r.URL.Path != "/session/login" {
			t.Errorf("expected /session/login, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"code": 0, "message": "ok", "data": map[string]any{}})
	}))
	defer server.Close()

	client := NewRESTClient(server.Client(), server.URL, Credentials{APIKey: "key", Secret: "secret"})
	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}
	if gotAuth == "" {
		t.Fatalf("expected a signed authorization header")
	}
}

func TestCallIntoClassifiesTransportFailureAsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewRESTClient(server.Client(), server.URL, Credentials{APIKey: "key", Secret: "secret"})
	err := client.Login(context.Background())
	if err == nil {
		t.Fatalf("expected a decode failure to surface as an error")
	}
	if !brokererr.IsRetryable(err) {
		t.Fatalf("expected the transport/decode failure to classify as retryable, got %v", err)
	}
}

func TestPlaceOrderReturnsOrderIDFromEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": 0, "message": "ok", "data": map[string]any{"order_id": "srv-1"}})
	}))
	defer server.Close()

	client := NewRESTClient(server.Client(), server.URL, Credentials{APIKey: "key", Secret: "secret"})
	result, err := client.PlaceOrder(context.Background(), proto.PlaceOrderPayload{
		Direction: proto.DirectionLongEntry,
		Symbol:    "TMF2512",
		Quantity:  1,
		PriceType: proto.PriceTypeMarket,
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if result.OrderID != "srv-1" {
		t.Fatalf("expected order id srv-1, got %s", result.OrderID)
	}
}
