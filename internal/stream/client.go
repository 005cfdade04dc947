package stream

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"

	"brokerd/internal/proto"
)

// clientSession is one connected streaming socket: a client ID, its
// subscribed-alias set, and an idle deadline enforced by readPump.
type clientSession struct {
	id            string
	conn          *websocket.Conn
	hub           *Hub
	send          chan []byte
	subscriptions map[string]struct{} // guarded by hub.mu, not its own
}

// readPump is the socket's sole reader; it owns the idle-timeout clock
// and unconditionally tears the client down (subscription teardown is
// mandatory) on any read error or clean close.
func (c *clientSession) readPump() {
	defer c.hub.disconnect(c)
	c.conn.SetReadLimit(64 * 1024)
	c.extendDeadline()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.extendDeadline()

		var msg inbound
		if err := sonic.ConfigFastest.Unmarshal(data, &msg); err != nil {
			c.writeJSON(outbound{Type: outboundError, Message: "malformed frame"})
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.hub.commandTimeout+time.Second)
		switch msg.Type {
		case inboundSubscribe:
			if msg.Symbol == "" {
				c.writeJSON(outbound{Type: outboundError, Message: "subscribe requires symbol"})
			} else {
				c.hub.subscribe(ctx, c, msg.Symbol, msg.Simulation)
			}
		case inboundUnsubscribe:
			if msg.Symbol == "" {
				c.writeJSON(outbound{Type: outboundError, Message: "unsubscribe requires symbol"})
			} else {
				c.hub.unsubscribe(ctx, c, msg.Symbol, true)
			}
		case inboundPing:
			c.writeJSON(outbound{Type: outboundPong})
		default:
			c.writeJSON(outbound{Type: outboundError, Message: "unknown message type"})
		}
		cancel()
	}
}

func (c *clientSession) extendDeadline() {
	c.conn.SetReadDeadline(time.Now().Add(c.hub.idleTimeout))
}

// writePump is the socket's sole writer, draining send until the hub
// closes the channel on disconnect.
func (c *clientSession) writePump() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// writeJSON marshals frame and enqueues it without blocking; a client
// too slow to drain its queue has frames dropped for it rather than
// stalling the shared pattern listener.
func (c *clientSession) writeJSON(frame outbound) {
	data, err := sonic.ConfigFastest.Marshal(frame)
	if err != nil {
		logs.Errorf("stream: marshal outbound frame, err: %+v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		if c.hub.metrics != nil {
			c.hub.metrics.IncQuoteDrop()
		}
		logs.Infof("stream: client %s send queue full, dropping frame type %s", c.id, frame.Type)
	}
}

func errorFromResponse(resp proto.Response) error {
	if resp.Message == "" {
		return errors.New("command failed")
	}
	return errors.New(resp.Message)
}
