package pilot

import (
	"context"
	"fmt"
	"time"

	"github.com/go-go-golems/deskhand/pkg/conversation"
	"github.com/go-go-golems/deskhand/pkg/helpdesk"
	"github.com/go-go-golems/deskhand/pkg/llm"
	"github.com/go-go-golems/deskhand/pkg/operator"
	"github.com/pkg/errors"
)

type fakeDesk struct {
	calls     []string
	items     [][]helpdesk.Item
	readyErr  error
	changeErr error
	handles   int
}

var _ Desk = &fakeDesk{}

func (d *fakeDesk) Login(context.Context) error {
	d.calls = append(d.calls, "login")
	return nil
}

func (d *fakeDesk) NavigateSection(_ context.Context, name string) error {
	d.calls = append(d.calls, "navigate:"+name)
	return nil
}

// ConversationItems returns the queued lists in turn, repeating the last one.
func (d *fakeDesk) ConversationItems(context.Context) ([]helpdesk.Item, error) {
	d.calls = append(d.calls, "items")
	if len(d.items) == 0 {
		return nil, nil
	}
	items := d.items[0]
	if len(d.items) > 1 {
		d.items = d.items[1:]
	}
	return items, nil
}

func (d *fakeDesk) OpenConversation(_ context.Context, id string) error {
	d.calls = append(d.calls, "open:"+id)
	return nil
}

func (d *fakeDesk) Refresh(context.Context) error {
	d.calls = append(d.calls, "refresh")
	return nil
}

func (d *fakeDesk) CloseCurrentChat(context.Context) error {
	d.calls = append(d.calls, "close")
	return nil
}

func (d *fakeDesk) WaitConversationReady(context.Context, time.Duration) (helpdesk.ListHandle, error) {
	d.calls = append(d.calls, "ready")
	if d.readyErr != nil {
		return helpdesk.ListHandle{}, d.readyErr
	}
	d.handles++
	return helpdesk.ListHandle{Token: fmt.Sprintf("list-%d", d.handles)}, nil
}

func (d *fakeDesk) WaitConversationChange(_ context.Context, old helpdesk.ListHandle, _ time.Duration) (helpdesk.ListHandle, error) {
	d.calls = append(d.calls, "change:"+old.Token)
	if d.changeErr != nil {
		return helpdesk.ListHandle{}, d.changeErr
	}
	d.handles++
	return helpdesk.ListHandle{Token: fmt.Sprintf("list-%d", d.handles)}, nil
}

// fakeScraper serves conversations by id; the empty id (manual mode) serves
// them in order.
type fakeScraper struct {
	byID   map[string]*conversation.Conversation
	queue  []*conversation.Conversation
	failID string
	calls  int
}

func (s *fakeScraper) ScrapeID(_ context.Context, id string) (*conversation.Conversation, error) {
	s.calls++
	if id != "" && id == s.failID {
		return nil, errors.New("message list container not found")
	}
	if c, ok := s.byID[id]; ok {
		return c, nil
	}
	if len(s.queue) == 0 {
		return nil, errors.New("nothing on screen")
	}
	c := s.queue[0]
	s.queue = s.queue[1:]
	return c, nil
}

type fakeGenerator struct {
	reply   llm.Reply
	err     error
	clients []string
}

func (g *fakeGenerator) GenerateReply(_ context.Context, conv *conversation.Conversation) (llm.Reply, error) {
	g.clients = append(g.clients, conv.ClientName)
	if g.err != nil {
		return llm.Reply{}, g.err
	}
	return g.reply, nil
}

func (g *fakeGenerator) Close() error { return nil }

type fakeComposer struct {
	written []string
	err     error
}

func (c *fakeComposer) Write(_ context.Context, text string) error {
	if c.err != nil {
		return c.err
	}
	c.written = append(c.written, text)
	return nil
}

// fakeConsole answers confirmations from a queue; an exhausted queue says no.
type fakeConsole struct {
	answers   []bool
	questions []string
	enters    int
	replies   []string
	summaries []operator.Summary
}

func (c *fakeConsole) Confirm(q string) (bool, error) {
	c.questions = append(c.questions, q)
	if len(c.answers) == 0 {
		return false, nil
	}
	a := c.answers[0]
	c.answers = c.answers[1:]
	return a, nil
}

func (c *fakeConsole) WaitForEnter(string) error {
	c.enters++
	return nil
}

func (c *fakeConsole) Section(string)             {}
func (c *fakeConsole) ShowReply(text string)      { c.replies = append(c.replies, text) }
func (c *fakeConsole) Summary(s operator.Summary) { c.summaries = append(c.summaries, s) }

func sampleConv(id, client string) *conversation.Conversation {
	return conversation.Assemble(id, client, conversation.ClientDetails{Email: "cliente@example.com"}, []conversation.Message{
		{AuthorType: conversation.AuthorClient, AuthorName: client, Text: "Oi", Timestamp: "27/10/2025 10:54"},
		{AuthorType: conversation.AuthorAgent, AuthorName: "Caroline", Text: "Olá, como posso ajudar?", Timestamp: "27/10/2025 10:55"},
		{AuthorType: conversation.AuthorClient, AuthorName: client, Text: "Quero atualizar meu contrato", Timestamp: "27/10/2025 10:56"},
	})
}
