package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"brokerd/internal/proto"
)

const (
	// DefaultResponseTTL is used when a request does not set one.
	DefaultResponseTTL = 30 * time.Second
	replySweepInterval = 5 * time.Second
)

// ErrTimedOut is returned by AwaitResponse when no reply arrives before
// the deadline. The outcome of the original request is then unknown —
// callers should use recheck_order rather than resubmitting.
var ErrTimedOut = errors.New("bus: timed out waiting for reply")

// Bus is the Correlation Bus: a single queue (trading:requests), a
// TTL'd reply-key namespace (trading:response:<id>), and a
// quote.<alias> publish/subscribe channel namespace.
type Bus struct {
	queue   *Queue
	replies *replyStore
	pubsub  *pubsub
}

// New allocates a Bus whose work queue holds up to queueDepth pending
// requests before Submit starts returning ErrQueueFull.
func New(queueDepth int) *Bus {
	return &Bus{
		queue:   NewQueue(queueDepth),
		replies: newReplyStore(),
		pubsub:  newPubSub(),
	}
}

// RunReplyJanitor periodically discards reply keys that were never read
// within their TTL. Run this once per process in a background goroutine.
func (b *Bus) RunReplyJanitor(ctx context.Context) {
	ticker := time.NewTicker(replySweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.replies.sweep(now)
		}
	}
}

// Submit assigns a request ID, enqueues the request, and returns
// immediately — it never blocks on the worker's liveness. The caller is
// expected to call AwaitResponse afterward.
func (b *Bus) Submit(req proto.Request) (string, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.ResponseTTL <= 0 {
		req.ResponseTTL = DefaultResponseTTL
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now().UTC()
	}
	// Reserve the reply slot before enqueueing so a worker that answers
	// before AwaitResponse is called can never race past an unreserved slot.
	b.replies.reserve(req.RequestID, req.ResponseTTL)
	if err := b.queue.TryEnqueue(req); err != nil {
		return "", fmt.Errorf("bus submit %s: %w", req.RequestID, err)
	}
	return req.RequestID, nil
}

// AwaitResponse blocks on the per-request reply key until a reply
// arrives or timeout elapses. On timeout the caller must treat the
// outcome as unknown — recheck_order is the recovery tool, not a retry
// of the original submission.
func (b *Bus) AwaitResponse(ctx context.Context, requestID string, timeout time.Duration) (proto.Response, error) {
	entry := b.replies.reserve(requestID, timeout)
	type result struct {
		resp proto.Response
		ok   bool
	}
	done := make(chan result, 1)
	go func() {
		resp, ok := b.replies.take(requestID, entry, timeout)
		done <- result{resp, ok}
	}()
	select {
	case r := <-done:
		if !r.ok {
			return proto.Response{}, ErrTimedOut
		}
		return r.resp, nil
	case <-ctx.Done():
		return proto.Response{}, ctx.Err()
	}
}

// Reply deposits the response under its request's reply key. Writes are
// idempotent: once a reply exists for a request ID, later writes for
// the same ID are dropped ("at-most-once reply").
func (b *Bus) Reply(resp proto.Response, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultResponseTTL
	}
	b.replies.put(resp, ttl)
}

// Dequeue is the dispatcher's sole entry point for consuming requests;
// exactly one goroutine in the process should call this.
func (b *Bus) Dequeue(ctx context.Context, handler func(proto.Request)) {
	b.queue.Run(ctx, handler)
}

// QueueDepth reports current backlog, for back-pressure decisions in
// the HTTP facade.
func (b *Bus) QueueDepth() int { return b.queue.Depth() }

// QueueCapacity reports the configured queue capacity.
func (b *Bus) QueueCapacity() int { return b.queue.Capacity() }

// Close stops the request queue from accepting new work.
func (b *Bus) Close() { b.queue.Close() }

// Publish sends payload to every subscriber of channel ("quote.<alias>").
func (b *Bus) Publish(channel string, payload []byte) {
	b.pubsub.Publish(channel, payload)
}

// Subscribe registers sub against channel.
func (b *Bus) Subscribe(channel string, sub Subscriber) {
	b.pubsub.Subscribe(channel, sub)
}

// Unsubscribe removes sub from channel.
func (b *Bus) Unsubscribe(channel string, sub Subscriber) {
	b.pubsub.Unsubscribe(channel, sub)
}

const quoteChannelPrefix = "quote."

// QuoteChannel builds the channel name for a client-facing alias.
func QuoteChannel(alias string) string { return quoteChannelPrefix + alias }

// QuoteAlias recovers the alias from a channel name built by
// QuoteChannel, the inverse the Streaming Hub's pattern listener needs
// to resolve an incoming publish back to client subscription sets.
func QuoteAlias(channel string) (alias string, ok bool) {
	if !strings.HasPrefix(channel, quoteChannelPrefix) {
		return "", false
	}
	return channel[len(quoteChannelPrefix):], true
}
