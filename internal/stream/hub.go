// Package stream implements the Streaming Hub: the browser-facing
// WebSocket accept loop that bridges the Correlation Bus's
// quote.<alias> publish/subscribe channels to per-client subscription
// sets, driving the Quote Manager's refcount purely through
// subscribe_quote/unsubscribe_quote bus commands — the hub never talks
// to the upstream session directly. Fan-out is a topic-keyed consumer
// map generalized from upstream topics to client-facing aliases.
package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"

	"brokerd/internal/bus"
	"brokerd/internal/obs"
	"brokerd/internal/proto"
)

const (
	// DefaultIdleTimeout closes a socket that has sent no frame (subscribe,
	// unsubscribe, or ping) within this interval.
	DefaultIdleTimeout = 60 * time.Second
	// DefaultCommandTimeout bounds how long a subscribe/unsubscribe command
	// may wait for the dispatcher's reply before the socket is told it failed.
	DefaultCommandTimeout = 5 * time.Second
	sendQueueDepth        = 64
)

// Hub is the Streaming Hub: the single process-wide pattern listener
// over quote.<alias> channels, realized as one bus.Subscriber instance
// that dynamically tracks which channels any connected client
// currently cares about.
type Hub struct {
	bus            *bus.Bus
	metrics        *obs.Metrics
	authKey        string
	idleTimeout    time.Duration
	commandTimeout time.Duration
	upgrader       websocket.Upgrader

	mu       sync.Mutex
	clients  map[*clientSession]struct{}
	interest map[string]map[*clientSession]struct{} // alias -> subscribed clients
}

// New builds a Hub. authKey, when non-empty, must match the
// X-Auth-Key header on every upgrade request.
func New(b *bus.Bus, metrics *obs.Metrics, authKey string) *Hub {
	return &Hub{
		bus:            b,
		metrics:        metrics,
		authKey:        authKey,
		idleTimeout:    DefaultIdleTimeout,
		commandTimeout: DefaultCommandTimeout,
		upgrader:       websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		clients:        make(map[*clientSession]struct{}),
		interest:       make(map[string]map[*clientSession]struct{}),
	}
}

// ServeHTTP upgrades the request to a streaming socket and runs its
// lifecycle until the socket closes. Mount under /ws/quotes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.authKey != "" && r.Header.Get("X-Auth-Key") != h.authKey {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logs.Errorf("stream: upgrade, err: %+v", err)
		return
	}
	client := &clientSession{
		id:            uuid.NewString(),
		conn:          conn,
		hub:           h,
		send:          make(chan []byte, sendQueueDepth),
		subscriptions: make(map[string]struct{}),
	}
	h.register(client)
	client.writeJSON(outbound{Type: outboundConnected, ClientID: client.id})

	go client.writePump()
	client.readPump()
}

func (h *Hub) register(c *clientSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// disconnect tears down a client: every alias it held is unsubscribed,
// sending one unsubscribe_quote per alias so each contributes -1 to the
// Quote Manager's refcount.
func (h *Hub) disconnect(c *clientSession) {
	h.mu.Lock()
	delete(h.clients, c)
	aliases := make([]string, 0, len(c.subscriptions))
	for alias := range c.subscriptions {
		aliases = append(aliases, alias)
	}
	h.mu.Unlock()

	for _, alias := range aliases {
		h.unsubscribe(context.Background(), c, alias, false)
	}
	close(c.send)
	c.conn.Close()
}

// subscribe adds alias to c's set and sends a subscribe_quote command
// for it; the Quote Manager's refcount decides whether the upstream is
// called. The first client interested in alias also registers the hub
// as the bus listener for the alias's channel.
func (h *Hub) subscribe(ctx context.Context, c *clientSession, alias string, simulation bool) {
	h.mu.Lock()
	if _, ok := c.subscriptions[alias]; ok {
		h.mu.Unlock()
		c.writeJSON(outbound{Type: outboundSubscribed, Symbol: alias})
		return
	}
	set, ok := h.interest[alias]
	isFirst := !ok || len(set) == 0
	if !ok {
		set = make(map[*clientSession]struct{})
		h.interest[alias] = set
	}
	set[c] = struct{}{}
	c.subscriptions[alias] = struct{}{}
	h.mu.Unlock()

	if isFirst {
		h.bus.Subscribe(bus.QuoteChannel(alias), h)
	}

	if err := h.submitQuoteCommand(ctx, proto.CommandSubscribeQuote, alias, simulation); err != nil {
		h.rollbackSubscribe(c, alias)
		c.writeJSON(outbound{Type: outboundError, Symbol: alias, Message: err.Error()})
		return
	}
	c.writeJSON(outbound{Type: outboundSubscribed, Symbol: alias})
}

func (h *Hub) rollbackSubscribe(c *clientSession, alias string) {
	h.mu.Lock()
	delete(c.subscriptions, alias)
	set := h.interest[alias]
	delete(set, c)
	last := len(set) == 0
	if last {
		delete(h.interest, alias)
	}
	h.mu.Unlock()
	if last {
		h.bus.Unsubscribe(bus.QuoteChannel(alias), h)
	}
}

// unsubscribe removes alias from c's set. reply controls whether an
// "unsubscribed" frame is sent back (false for disconnect teardown,
// where there is no socket left to write to).
func (h *Hub) unsubscribe(ctx context.Context, c *clientSession, alias string, reply bool) {
	h.mu.Lock()
	if _, ok := c.subscriptions[alias]; !ok {
		h.mu.Unlock()
		return
	}
	delete(c.subscriptions, alias)
	set := h.interest[alias]
	delete(set, c)
	wasLast := len(set) == 0
	if wasLast {
		delete(h.interest, alias)
	}
	h.mu.Unlock()

	if wasLast {
		h.bus.Unsubscribe(bus.QuoteChannel(alias), h)
	}
	if err := h.submitQuoteCommand(ctx, proto.CommandUnsubscribeQuote, alias, false); err != nil {
		logs.Errorf("stream: unsubscribe_quote %s, err: %+v", alias, err)
	}
	if reply {
		c.writeJSON(outbound{Type: outboundUnsubscribed, Symbol: alias})
	}
}

func (h *Hub) submitQuoteCommand(ctx context.Context, cmd proto.Command, alias string, simulation bool) error {
	id, err := h.bus.Submit(proto.Request{
		Command:    cmd,
		Payload:    proto.SymbolPayload{Symbol: alias},
		Simulation: simulation,
	})
	if err != nil {
		return err
	}
	resp, err := h.bus.AwaitResponse(ctx, id, h.commandTimeout)
	if err != nil {
		return err
	}
	if resp.Status == proto.StatusFailed {
		return errorFromResponse(resp)
	}
	return nil
}

// Deliver implements bus.Subscriber: it is the single pattern-listener
// entry point quote.<alias> publishes arrive through, fanning the frame
// out only to sockets whose subscription set contains alias.
func (h *Hub) Deliver(channel string, payload []byte) {
	alias, ok := bus.QuoteAlias(channel)
	if !ok {
		return
	}
	h.mu.Lock()
	set := h.interest[alias]
	targets := make([]*clientSession, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	frame := outbound{Type: outboundQuote, Symbol: alias, Data: payload}
	for _, c := range targets {
		c.writeJSON(frame)
	}
}
