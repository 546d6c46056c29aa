// Package helpdesk drives the Zoho Desk IM view: login, navigation between
// sections and conversations, and waiting for a conversation to be on screen.
package helpdesk

import (
	"context"
	"fmt"
	"time"

	"github.com/go-go-golems/deskhand/pkg/browser"
	"github.com/go-go-golems/deskhand/pkg/selectors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrLoginFailed = errors.New("login failed")
	ErrNotFound    = errors.New("not found")
)

type Config struct {
	URL          string        `mapstructure:"url"`
	Email        string        `mapstructure:"email"`
	Password     string        `mapstructure:"password"`
	LoginTimeout time.Duration `mapstructure:"login_timeout"`
	// SessionCheck is how long Login looks for the dashboard before assuming
	// it has to sign in.
	SessionCheck time.Duration `mapstructure:"session_check"`
}

func (c Config) withDefaults() Config {
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = 15 * time.Minute
	}
	if c.SessionCheck <= 0 {
		c.SessionCheck = 3 * time.Second
	}
	return c
}

// Desk performs helpdesk page operations on the main tab.
type Desk struct {
	page browser.Page
	sel  selectors.Table
	cfg  Config

	loginPoll time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
}

func New(page browser.Page, sel selectors.Table, cfg Config) *Desk {
	return &Desk{
		page:      page,
		sel:       sel,
		cfg:       cfg.withDefaults(),
		loginPoll: 3 * time.Second,
		sleep:     browser.Sleep,
	}
}

func (d *Desk) Page() browser.Page { return d.page }

// NavigateSection clicks a side menu entry such as "my_conversations".
func (d *Desk) NavigateSection(ctx context.Context, name string) error {
	key := selectors.SectionKey(name)
	if !d.sel.Has(key) {
		return errors.Wrapf(ErrNotFound, "section %q", name)
	}
	if err := browser.ClickFirst(ctx, d.page, d.sel.Get(key), 10*time.Second); err != nil {
		return errors.Wrapf(err, "navigate to %s", name)
	}
	log.Info().Str("section", name).Msg("navigated")
	return d.sleep(ctx, 2*time.Second)
}

// Item is one entry of the conversation list.
type Item struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

const itemsBody = `
return many(args.items)
  .filter((el) => !!el.id)
  .map((el) => ({id: el.id, label: text(el).split('\n')[0]}));
`

const ScriptItems = "helpdesk.items"

// ConversationItems lists the conversations of the current section, in screen
// order. Items without an id are skipped.
func (d *Desk) ConversationItems(ctx context.Context) ([]Item, error) {
	items := []Item{}
	err := d.page.Evaluate(ctx, browser.Script(ScriptItems, itemsBody, map[string]any{
		"items": d.sel.Get(selectors.ListItems),
	}), &items)
	if err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}
	return items, nil
}

// OpenConversation clicks the list item with the given id.
func (d *Desk) OpenConversation(ctx context.Context, id string) error {
	if id == "" {
		return errors.Wrap(ErrNotFound, "empty conversation id")
	}
	sel := fmt.Sprintf("[id=%q]", id)
	if err := browser.ClickFirst(ctx, d.page, []string{sel}, 10*time.Second); err != nil {
		return errors.Wrapf(err, "open conversation %s", id)
	}
	log.Info().Str("conversation", id).Msg("conversation opened")
	return nil
}

func (d *Desk) Refresh(ctx context.Context) error {
	return d.page.Reload(ctx)
}

// CloseCurrentChat clicks the close button of the open chat. A confirmation
// dialog, if the vendor shows one, is left to the operator.
func (d *Desk) CloseCurrentChat(ctx context.Context) error {
	if err := browser.ClickFirst(ctx, d.page, d.sel.Get(selectors.ChatCloseButton), 5*time.Second); err != nil {
		return errors.Wrap(err, "close chat")
	}
	log.Info().Msg("chat closed")
	return nil
}
