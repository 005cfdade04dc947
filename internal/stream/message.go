package stream

import "encoding/json"

// inboundType is the closed set of message kinds a streaming socket may
// send.
type inboundType string

const (
	inboundSubscribe   inboundType = "subscribe"
	inboundUnsubscribe inboundType = "unsubscribe"
	inboundPing        inboundType = "ping"
)

// inbound is the JSON shape a client frame decodes into.
type inbound struct {
	Type       inboundType `json:"type"`
	Symbol     string      `json:"symbol"`
	Simulation bool        `json:"simulation,omitempty"`
}

// outboundType is the closed set of message kinds the hub emits.
type outboundType string

const (
	outboundConnected    outboundType = "connected"
	outboundSubscribed   outboundType = "subscribed"
	outboundUnsubscribed outboundType = "unsubscribed"
	outboundQuote        outboundType = "quote"
	outboundPong         outboundType = "pong"
	outboundError        outboundType = "error"
)

// outbound is the JSON shape every hub-to-client frame shares. Only the
// fields relevant to Type are populated.
type outbound struct {
	Type    outboundType    `json:"type"`
	ClientID string         `json:"client_id,omitempty"`
	Symbol  string          `json:"symbol,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}
