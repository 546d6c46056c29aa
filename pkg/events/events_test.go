package events

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newPubSub() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
}

func TestReplyDraftedRoundTrip(t *testing.T) {
	ps := newPubSub()
	t.Cleanup(func() { _ = ps.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, err := ps.Subscribe(ctx, "replies")
	require.NoError(t, err)

	p := NewPublisher(ps, "replies")
	at := time.Date(2025, 10, 27, 10, 57, 0, 0, time.UTC)
	require.NoError(t, p.ReplyDrafted(ctx, ReplyDrafted{
		RunID:      "run-1",
		ClientName: "Ana",
		Reply:      "Olá Ana!",
		Close:      true,
		Provider:   "api",
		At:         at,
	}))

	select {
	case msg := <-msgs:
		msg.Ack()
		require.Equal(t, TypeReplyDrafted, msg.Metadata.Get("event_type"))
		require.JSONEq(t, `{"run_id":"run-1","client_name":"Ana","reply":"Olá Ana!","close":true,"provider":"api","at":"2025-10-27T10:57:00Z"}`, string(msg.Payload))
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

func TestNilPublisherDropsEvents(t *testing.T) {
	p := NewPublisher(nil, "replies")
	require.Nil(t, p)
	require.NoError(t, p.ReplyDrafted(context.Background(), ReplyDrafted{}))
	require.NoError(t, p.Close())
}

func TestTailDeliversReplyEvents(t *testing.T) {
	ps := newPubSub()
	t.Cleanup(func() { _ = ps.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan ReplyDrafted, 1)
	done := make(chan error, 1)
	stop := errors.New("stop")
	go func() {
		done <- Tail(ctx, ps, "replies", func(ev ReplyDrafted) error {
			got <- ev
			return stop
		})
	}()

	// gochannel only delivers to subscribers that exist at publish time.
	p := NewPublisher(ps, "replies")
	require.Eventually(t, func() bool {
		other := message.NewMessage(watermill.NewUUID(), []byte("{}"))
		other.Metadata.Set("event_type", "something_else")
		require.NoError(t, ps.Publish("replies", other))
		require.NoError(t, p.ReplyDrafted(ctx, ReplyDrafted{ClientName: "Ana"}))
		select {
		case ev := <-got:
			require.Equal(t, "Ana", ev.ClientName)
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 100*time.Millisecond)

	require.True(t, errors.Is(<-done, stop))
}
