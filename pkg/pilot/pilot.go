// Package pilot runs the helpdesk session end to end: login, picking a
// conversation, scraping it, drafting a reply and leaving it in the composer.
package pilot

import (
	"context"
	"time"

	"github.com/go-go-golems/deskhand/pkg/browser"
	"github.com/go-go-golems/deskhand/pkg/conversation"
	"github.com/go-go-golems/deskhand/pkg/events"
	"github.com/go-go-golems/deskhand/pkg/export"
	"github.com/go-go-golems/deskhand/pkg/helpdesk"
	"github.com/go-go-golems/deskhand/pkg/llm"
	"github.com/go-go-golems/deskhand/pkg/operator"
	"github.com/go-go-golems/deskhand/pkg/persistence/snapshots"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type State string

const (
	StateLoggedOut         State = "logged_out"
	StateLoggingIn         State = "logging_in"
	StateIdle              State = "idle"
	StateAwaitingSelection State = "awaiting_selection"
	StateExtracting        State = "extracting"
	StateConfirming        State = "confirming"
	StateGenerating        State = "generating"
	StateWriting           State = "writing"
	StateClosed            State = "closed"
)

// Desk is the part of the helpdesk UI the pilot drives.
type Desk interface {
	Login(ctx context.Context) error
	NavigateSection(ctx context.Context, name string) error
	ConversationItems(ctx context.Context) ([]helpdesk.Item, error)
	OpenConversation(ctx context.Context, id string) error
	Refresh(ctx context.Context) error
	CloseCurrentChat(ctx context.Context) error
	WaitConversationReady(ctx context.Context, timeout time.Duration) (helpdesk.ListHandle, error)
	WaitConversationChange(ctx context.Context, old helpdesk.ListHandle, timeout time.Duration) (helpdesk.ListHandle, error)
}

type Scraper interface {
	ScrapeID(ctx context.Context, id string) (*conversation.Conversation, error)
}

type Composer interface {
	Write(ctx context.Context, text string) error
}

type Exporter interface {
	ExportAll(conv *conversation.Conversation) export.Result
	WriteReply(conv *conversation.Conversation, reply string, meta export.ReplyMeta) (string, error)
}

// Operator is the console.
type Operator interface {
	Confirm(question string) (bool, error)
	WaitForEnter(instructions string) error
	Section(title string)
	ShowReply(text string)
	Summary(s operator.Summary)
}

type AutopilotConfig struct {
	Section      string        `mapstructure:"section"`
	IdleInterval time.Duration `mapstructure:"idle_interval"`
	PauseAfter   time.Duration `mapstructure:"pause_after"`
}

type Config struct {
	Autopilot AutopilotConfig
	// AutoClose closes the chat when the model asks for it. Otherwise the
	// suggestion is only logged.
	AutoClose     bool
	ReadyTimeout  time.Duration
	ChangeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Autopilot.Section == "" {
		c.Autopilot.Section = "my_conversations"
	}
	if c.Autopilot.IdleInterval <= 0 {
		c.Autopilot.IdleInterval = 30 * time.Second
	}
	if c.Autopilot.PauseAfter <= 0 {
		c.Autopilot.PauseAfter = 5 * time.Second
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 40 * time.Second
	}
	if c.ChangeTimeout <= 0 {
		c.ChangeTimeout = 40 * time.Second
	}
	return c
}

// Deps are the collaborators of a Pilot. Archive and Events may be nil.
type Deps struct {
	Desk      Desk
	Scraper   Scraper
	Generator llm.Generator
	Composer  Composer
	Exporter  Exporter
	Console   Operator
	Archive   snapshots.Store
	Events    *events.Publisher
}

type Pilot struct {
	Deps
	cfg   Config
	runID string
	state State

	processed map[string]struct{}
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

func New(deps Deps, cfg Config) *Pilot {
	return &Pilot{
		Deps:      deps,
		cfg:       cfg.withDefaults(),
		runID:     uuid.NewString(),
		state:     StateLoggedOut,
		processed: map[string]struct{}{},
		sleep:     browser.Sleep,
		now:       time.Now,
	}
}

func (p *Pilot) RunID() string { return p.runID }
func (p *Pilot) State() State  { return p.state }

func (p *Pilot) setState(s State) {
	if s == p.state {
		return
	}
	log.Debug().Str("from", string(p.state)).Str("to", string(s)).Msg("state")
	p.state = s
}

// Login signs in and leaves the pilot idle. A failure is fatal for the run.
func (p *Pilot) Login(ctx context.Context) error {
	p.setState(StateLoggingIn)
	if err := p.Desk.Login(ctx); err != nil {
		p.setState(StateLoggedOut)
		return err
	}
	p.setState(StateIdle)
	return nil
}

// Shutdown marks the run as finished.
func (p *Pilot) Shutdown() {
	p.setState(StateClosed)
	log.Info().Str("run", p.runID).Msg("session closed")
}
