package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"brokerd/internal/proto"
)

func TestSubmitAwaitRoundTrip(t *testing.T) {
	b := New(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Dequeue(ctx, func(req proto.Request) {
		b.Reply(proto.OK(req.RequestID, "done"), 0)
	})

	id, err := b.Submit(proto.Request{Command: proto.CommandListPositions})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	resp, err := b.AwaitResponse(context.Background(), id, time.Second)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if resp.Status != proto.StatusOK || resp.Data != "done" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAwaitResponseTimesOut(t *testing.T) {
	b := New(8)
	id, err := b.Submit(proto.Request{Command: proto.CommandListPositions})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err = b.AwaitResponse(context.Background(), id, 10*time.Millisecond)
	if err != ErrTimedOut {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
}

func TestReplyIsAtMostOnce(t *testing.T) {
	b := New(8)
	id, _ := b.Submit(proto.Request{Command: proto.CommandListPositions})
	b.Reply(proto.OK(id, "first"), time.Second)
	b.Reply(proto.OK(id, "second"), time.Second)

	resp, err := b.AwaitResponse(context.Background(), id, time.Second)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if resp.Data != "first" {
		t.Fatalf("expected first write to win, got %v", resp.Data)
	}
}

func TestQuoteChannelRoundTrip(t *testing.T) {
	channel := QuoteChannel("TMFR1")
	if channel != "quote.TMFR1" {
		t.Fatalf("unexpected channel name: %s", channel)
	}
	alias, ok := QuoteAlias(channel)
	if !ok || alias != "TMFR1" {
		t.Fatalf("QuoteAlias(%s) = %q, %v", channel, alias, ok)
	}
	if _, ok := QuoteAlias("not-a-quote-channel"); ok {
		t.Fatalf("expected QuoteAlias to reject a non-quote channel")
	}
}

type recordingSubscriber struct {
	mu       sync.Mutex
	received []string
}

func (r *recordingSubscriber) Deliver(channel string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, channel+":"+string(payload))
}

func TestPubSubPublishOnlyReachesSubscribedChannel(t *testing.T) {
	b := New(8)
	sub := &recordingSubscriber{}
	b.Subscribe(QuoteChannel("TMFR1"), sub)

	b.Publish(QuoteChannel("TMFR1"), []byte("tick-a"))
	b.Publish(QuoteChannel("MXFR1"), []byte("tick-b"))

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if len(sub.received) != 1 || sub.received[0] != "quote.TMFR1:tick-a" {
		t.Fatalf("unexpected deliveries: %+v", sub.received)
	}
}

func TestPubSubUnsubscribeStopsDelivery(t *testing.T) {
	b := New(8)
	sub := &recordingSubscriber{}
	b.Subscribe(QuoteChannel("TMFR1"), sub)
	b.Unsubscribe(QuoteChannel("TMFR1"), sub)
	b.Publish(QuoteChannel("TMFR1"), []byte("tick"))

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if len(sub.received) != 0 {
		t.Fatalf("expected no deliveries after unsubscribe, got %+v", sub.received)
	}
}

func TestReplyStoreSweepDropsExpiredEntries(t *testing.T) {
	s := newReplyStore()
	s.reserve("expired", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	s.sweep(time.Now())
	if _, ok := s.entries["expired"]; ok {
		t.Fatalf("expected sweep to remove the expired entry")
	}
}
