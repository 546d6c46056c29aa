// Package events publishes a message for every drafted reply so other tools
// can follow what deskhand wrote.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	TypeReplyDrafted = "reply_drafted"
	metadataType     = "event_type"
)

// ReplyDrafted is published after a reply was written to the composer.
type ReplyDrafted struct {
	RunID          string    `json:"run_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	ClientName     string    `json:"client_name"`
	Reply          string    `json:"reply"`
	Close          bool      `json:"close"`
	Provider       string    `json:"provider"`
	At             time.Time `json:"at"`
}

// Publisher sends events to one topic. A nil *Publisher drops everything.
type Publisher struct {
	pub   message.Publisher
	topic string
}

func NewPublisher(pub message.Publisher, topic string) *Publisher {
	if pub == nil {
		return nil
	}
	return &Publisher{pub: pub, topic: topic}
}

func (p *Publisher) ReplyDrafted(ctx context.Context, ev ReplyDrafted) error {
	if p == nil {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal reply event")
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metadataType, TypeReplyDrafted)
	msg.SetContext(ctx)
	if err := p.pub.Publish(p.topic, msg); err != nil {
		return errors.Wrapf(err, "publish to %s", p.topic)
	}
	log.Debug().Str("topic", p.topic).Str("message_id", msg.UUID).Msg("reply event published")
	return nil
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.pub.Close()
}

// Tail calls fn for every reply event on topic until ctx is done. Messages that
// do not decode are acked and skipped.
func Tail(ctx context.Context, sub message.Subscriber, topic string, fn func(ReplyDrafted) error) error {
	msgs, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return errors.Wrapf(err, "subscribe to %s", topic)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if t := msg.Metadata.Get(metadataType); t != "" && t != TypeReplyDrafted {
				msg.Ack()
				continue
			}
			var ev ReplyDrafted
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				log.Warn().Err(err).Str("message_id", msg.UUID).Msg("skipping undecodable event")
				msg.Ack()
				continue
			}
			if err := fn(ev); err != nil {
				msg.Nack()
				return err
			}
			msg.Ack()
		}
	}
}
