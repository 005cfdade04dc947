// Package facade is the HTTP Facade: each handler validates the
// request, builds a Request envelope, calls Bus.Submit, then
// Bus.AwaitResponse, and translates the reply into an HTTP response. It
// holds no state beyond the shared bus and the auth secret.
package facade

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"brokerd/internal/bus"
	"brokerd/internal/proto"
)

// DefaultRequestTimeout bounds how long a facade handler waits for
// AwaitResponse before answering 504 with a retryable hint.
const DefaultRequestTimeout = 10 * time.Second

// Facade wires the command/response bus to net/http handlers.
type Facade struct {
	bus            *bus.Bus
	authKey        string
	requestTimeout time.Duration
}

// New builds a Facade. authKey, when non-empty, must match the
// X-Auth-Key header on every request.
func New(b *bus.Bus, authKey string) *Facade {
	return &Facade{bus: b, authKey: authKey, requestTimeout: DefaultRequestTimeout}
}

// Routes registers every HTTP command handler on mux.
func (f *Facade) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /order", f.authorize(f.handlePlaceOrder))
	mux.HandleFunc("DELETE /orders/{id}", f.authorize(f.handleCancelOrder))
	mux.HandleFunc("POST /orders/{id}/recheck", f.authorize(f.handleRecheckOrder))
	mux.HandleFunc("GET /positions", f.authorize(f.handleListPositions))
	mux.HandleFunc("GET /margin", f.authorize(f.handleQueryMargin))
	mux.HandleFunc("GET /profit-loss", f.authorize(f.handleQueryProfitLoss))
	mux.HandleFunc("GET /trades", f.authorize(f.handleListTrades))
	mux.HandleFunc("GET /settlements", f.authorize(f.handleListSettlements))
	mux.HandleFunc("GET /symbols", f.authorize(f.handleListSymbols))
	mux.HandleFunc("GET /symbols/{id}", f.authorize(f.handleSymbolInfo))
	mux.HandleFunc("GET /symbols/{id}/snapshot", f.authorize(f.handleSymbolSnapshot))
	mux.HandleFunc("GET /usage", f.authorize(f.handleQueryUsage))
}

func (f *Facade) authorize(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f.authKey != "" && r.Header.Get("X-Auth-Key") != f.authKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func isSimulation(r *http.Request) bool {
	v := r.URL.Query().Get("simulation")
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return b
}

// submitAndAwait is the translation step every handler shares: submit
// the command, wait for the correlated reply, and write the matching
// HTTP status. A retryable failure (session-not-ready, upstream-
// transient, bus-unreachable) surfaces as 503.
func (f *Facade) submitAndAwait(w http.ResponseWriter, r *http.Request, req proto.Request) {
	req.Simulation = isSimulation(r)
	id, err := f.bus.Submit(req)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, proto.Response{Status: proto.StatusFailed, Message: err.Error(), Retryable: true})
		return
	}
	resp, err := f.bus.AwaitResponse(r.Context(), id, f.requestTimeout)
	if err != nil {
		writeJSON(w, http.StatusGatewayTimeout, proto.Response{RequestID: id, Status: proto.StatusFailed, Message: err.Error(), Retryable: true})
		return
	}
	writeJSON(w, statusCodeFor(resp), resp)
}

func statusCodeFor(resp proto.Response) int {
	switch {
	case resp.Status == proto.StatusOK:
		return http.StatusOK
	case resp.Status == proto.StatusNoAction:
		return http.StatusOK
	case resp.Retryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.ConfigFastest.Marshal(v)
	if err != nil {
		http.Error(w, "marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func decodeBody[T any](r *http.Request) (T, error) {
	var v T
	err := sonic.ConfigFastest.NewDecoder(r.Body).Decode(&v)
	return v, err
}
