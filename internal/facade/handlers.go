package facade

import (
	"net/http"

	"brokerd/internal/proto"
)

func (f *Facade) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeBody[proto.PlaceOrderPayload](r)
	if err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	f.submitAndAwait(w, r, proto.Request{Command: proto.CommandPlaceOrder, Payload: payload})
}

func (f *Facade) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.submitAndAwait(w, r, proto.Request{Command: proto.CommandCancelOrder, Payload: proto.CancelOrderPayload{OrderID: id}})
}

func (f *Facade) handleRecheckOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.submitAndAwait(w, r, proto.Request{Command: proto.CommandRecheckOrder, Payload: proto.RecheckOrderPayload{OrderID: id}})
}

func (f *Facade) handleListPositions(w http.ResponseWriter, r *http.Request) {
	f.submitAndAwait(w, r, proto.Request{Command: proto.CommandListPositions})
}

func (f *Facade) handleQueryMargin(w http.ResponseWriter, r *http.Request) {
	f.submitAndAwait(w, r, proto.Request{Command: proto.CommandQueryMargin})
}

func (f *Facade) handleQueryProfitLoss(w http.ResponseWriter, r *http.Request) {
	f.submitAndAwait(w, r, proto.Request{Command: proto.CommandQueryProfitLoss})
}

func (f *Facade) handleListTrades(w http.ResponseWriter, r *http.Request) {
	f.submitAndAwait(w, r, proto.Request{Command: proto.CommandListTrades})
}

func (f *Facade) handleListSettlements(w http.ResponseWriter, r *http.Request) {
	f.submitAndAwait(w, r, proto.Request{Command: proto.CommandListSettlements})
}

func (f *Facade) handleListSymbols(w http.ResponseWriter, r *http.Request) {
	f.submitAndAwait(w, r, proto.Request{Command: proto.CommandListSymbols})
}

func (f *Facade) handleSymbolInfo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.submitAndAwait(w, r, proto.Request{Command: proto.CommandSymbolInfo, Payload: proto.SymbolPayload{Symbol: id}})
}

func (f *Facade) handleSymbolSnapshot(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.submitAndAwait(w, r, proto.Request{Command: proto.CommandSymbolSnapshot, Payload: proto.SymbolPayload{Symbol: id}})
}

func (f *Facade) handleQueryUsage(w http.ResponseWriter, r *http.Request) {
	f.submitAndAwait(w, r, proto.Request{Command: proto.CommandQueryUsage})
}
