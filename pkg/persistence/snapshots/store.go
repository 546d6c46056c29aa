package snapshots

import (
	"context"

	"github.com/go-go-golems/deskhand/pkg/conversation"
)

// Snapshot is one processing pass: the scraped conversation and what was
// drafted for it.
type Snapshot struct {
	ID             string                     `json:"id" yaml:"id"`
	RunID          string                     `json:"run_id" yaml:"run_id"`
	ConversationID string                     `json:"conversation_id,omitempty" yaml:"conversation_id,omitempty"`
	ClientName     string                     `json:"client_name" yaml:"client_name"`
	ClientDetails  conversation.ClientDetails `json:"client_details" yaml:"client_details"`
	Messages       []conversation.Message     `json:"messages" yaml:"messages"`
	Reply          string                     `json:"reply" yaml:"reply"`
	CloseSuggested bool                       `json:"close_suggested" yaml:"close_suggested"`
	Provider       string                     `json:"provider" yaml:"provider"`
	Model          string                     `json:"model,omitempty" yaml:"model,omitempty"`
	CreatedAtMs    int64                      `json:"created_at_ms" yaml:"created_at_ms"`
}

// Query filters stored snapshots. Zero fields do not filter.
type Query struct {
	ConversationID string
	ClientName     string
	RunID          string
	SinceMs        int64
	Limit          int
}

// Store keeps snapshots for later inspection. Nothing in the processing flow
// reads them back.
type Store interface {
	Save(ctx context.Context, s Snapshot) error
	List(ctx context.Context, q Query) ([]Snapshot, error)
	Close() error
}
