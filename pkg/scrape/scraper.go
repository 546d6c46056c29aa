// Package scrape reads the currently open helpdesk conversation out of the DOM.
//
// The message list is virtualized: only the bubbles near the viewport exist in
// the DOM. The scraper scrolls the list to the top and then to the bottom,
// collecting every bubble it sees along the way, until scrolling stops
// surfacing new ones.
package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/go-go-golems/deskhand/pkg/browser"
	"github.com/go-go-golems/deskhand/pkg/conversation"
	"github.com/go-go-golems/deskhand/pkg/selectors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrContainerNotFound is returned when the message list never shows up.
var ErrContainerNotFound = errors.New("message list container not found")

// Config for a Scraper.
type Config struct {
	Stability    StabilityConfig
	ReadyTimeout time.Duration
}

type Scraper struct {
	page browser.Page
	sel  selectors.Table
	cfg  Config
}

func New(page browser.Page, sel selectors.Table, cfg Config) *Scraper {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 20 * time.Second
	}
	return &Scraper{page: page, sel: sel, cfg: cfg}
}

// Scrape reads the open conversation. Only scroll commands touch the page.
func (s *Scraper) Scrape(ctx context.Context) (*conversation.Conversation, error) {
	return s.ScrapeID(ctx, "")
}

// ScrapeID is Scrape with a known conversation identifier attached to the result.
func (s *Scraper) ScrapeID(ctx context.Context, id string) (*conversation.Conversation, error) {
	start := time.Now()
	view := &domView{page: s.page, sel: s.sel}

	err := browser.Poll(ctx, s.cfg.ReadyTimeout, 500*time.Millisecond, view.Ready)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(ErrContainerNotFound, err.Error())
	}

	clientName, err := view.ClientName(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not read client name from header")
	}
	clientName = strings.TrimSpace(clientName)

	panel, err := view.Panel(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not read client details panel")
	}
	details := ParseDetails(panel)

	h := newHarvest()
	phases, err := stabilize(ctx, view, h, s.cfg.Stability)
	if err != nil {
		return nil, errors.Wrap(err, "scroll message list")
	}
	for _, p := range phases {
		if p.Capped {
			log.Warn().Str("direction", string(p.Direction)).Int("iterations", p.Iterations).
				Msg("message list did not stabilize, history may be incomplete")
		}
	}

	msgs, guessed := classifyAll(h.bubbles(), clientName)
	if clientName == "" {
		clientName = guessed
	}

	conv := conversation.Assemble(id, clientName, details, msgs)
	log.Info().
		Str("client", conv.ClientName).
		Int("bubbles", h.len()).
		Int("messages", len(conv.Messages)).
		Dur("took", time.Since(start)).
		Msg("conversation scraped")
	return conv, nil
}

// classifyAll turns bubbles into messages in document order. The client name
// learned from the first named client bubble is used for the following ones
// and returned.
func classifyAll(bubbles []Bubble, clientName string) ([]conversation.Message, string) {
	known := clientName
	firstClient := ""
	msgs := make([]conversation.Message, 0, len(bubbles))
	for _, b := range bubbles {
		text := b.Text()
		if text == "" {
			continue
		}
		author, rule := Classify(b, known)
		if author.Type == conversation.AuthorClient && author.Name != "" {
			if known == "" {
				known = author.Name
			}
			if firstClient == "" {
				firstClient = author.Name
			}
		}
		log.Trace().Str("id", b.ID).Str("rule", rule).Str("author", string(author.Type)).Msg("classified bubble")
		msgs = append(msgs, conversation.Message{
			AuthorType: author.Type,
			AuthorName: author.Name,
			Text:       text,
			Timestamp:  b.Timestamp(),
		})
	}
	return msgs, firstClient
}
