// Package conversation holds the normalized view of a helpdesk chat: who said
// what and when, plus the client's CRM details.
package conversation

import (
	"sort"
	"strings"
	"time"
)

// AuthorType says which side of the chat wrote a message.
type AuthorType string

const (
	AuthorClient AuthorType = "client"
	AuthorAgent  AuthorType = "agent"
	AuthorSystem AuthorType = "system"
)

// Valid reports whether a is one of the three known author types.
func (a AuthorType) Valid() bool {
	switch a {
	case AuthorClient, AuthorAgent, AuthorSystem:
		return true
	default:
		return false
	}
}

// Message is one chat bubble. Timestamp is the vendor string, never parsed.
type Message struct {
	AuthorType AuthorType `json:"author_type" yaml:"author_type"`
	AuthorName string     `json:"author_name" yaml:"author_name"`
	Text       string     `json:"text" yaml:"text"`
	Timestamp  string     `json:"timestamp" yaml:"timestamp"`
}

// ClientDetails are read from the CRM side panel. Missing fields stay empty.
type ClientDetails struct {
	Email string `json:"email" yaml:"email,omitempty"`
	Phone string `json:"phone" yaml:"phone,omitempty"`
	Owner string `json:"owner" yaml:"owner,omitempty"`
}

// IsZero reports whether no detail was found.
func (d ClientDetails) IsZero() bool {
	return d.Email == "" && d.Phone == "" && d.Owner == ""
}

// Conversation is built fresh for every scrape and is immutable afterwards.
type Conversation struct {
	ID                string        `json:"id,omitempty"`
	ClientName        string        `json:"client_name"`
	ClientDetails     ClientDetails `json:"client_details"`
	Messages          []Message     `json:"messages"`
	LastClientMessage string        `json:"last_client_message"`
	LastAgentMessage  string        `json:"last_agent_message"`
	ScrapedAt         time.Time     `json:"scraped_at"`
}

// Stats summarize a conversation for console output.
type Stats struct {
	Messages   int
	Characters int
	ByAuthor   map[AuthorType]int
}

// Assemble orders msgs and derives the last client and agent messages.
// The input slice is not modified.
func Assemble(id, clientName string, details ClientDetails, msgs []Message) *Conversation {
	sorted := append([]Message(nil), msgs...)
	SortMessages(sorted)

	return &Conversation{
		ID:                id,
		ClientName:        strings.TrimSpace(clientName),
		ClientDetails:     details,
		Messages:          sorted,
		LastClientMessage: LastText(sorted, AuthorClient),
		LastAgentMessage:  LastText(sorted, AuthorAgent),
		ScrapedAt:         time.Now(),
	}
}

// SortMessages sorts in place by (Timestamp, Text), ascending and stable.
//
// The comparison is lexical. Vendor timestamps come in more than one format
// (locale "27/10/2025 10:54" and ISO), so mixed formats do not sort
// chronologically.
func SortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Timestamp != msgs[j].Timestamp {
			return msgs[i].Timestamp < msgs[j].Timestamp
		}
		return msgs[i].Text < msgs[j].Text
	})
}

// LastText returns the text of the last message by author with non-empty text.
func LastText(msgs []Message, author AuthorType) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].AuthorType == author && strings.TrimSpace(msgs[i].Text) != "" {
			return msgs[i].Text
		}
	}
	return ""
}

// NonSystem returns the messages written by the client or an agent.
func (c *Conversation) NonSystem() []Message {
	if c == nil {
		return nil
	}
	out := make([]Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if m.AuthorType != AuthorSystem {
			out = append(out, m)
		}
	}
	return out
}

func (c *Conversation) Stats() Stats {
	s := Stats{ByAuthor: map[AuthorType]int{}}
	if c == nil {
		return s
	}
	for _, m := range c.Messages {
		s.Messages++
		s.Characters += len([]rune(m.Text))
		s.ByAuthor[m.AuthorType]++
	}
	return s
}
