package pilot

import (
	"context"

	"github.com/go-go-golems/deskhand/pkg/helpdesk"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const selectInstructions = `
INSTRUÇÕES:
1. No Zoho Desk, selecione uma conversa na lista
2. Clique na conversa que deseja processar
3. Aguarde a conversa carregar completamente
4. Pressione ENTER quando estiver pronto...`

// RunManual lets the operator pick conversations one at a time until they
// decline to continue.
func (p *Pilot) RunManual(ctx context.Context) error {
	var (
		list  helpdesk.ListHandle
		bound bool
	)
	for {
		p.setState(StateAwaitingSelection)
		if err := p.Console.WaitForEnter(selectInstructions); err != nil {
			return err
		}

		var (
			next helpdesk.ListHandle
			err  error
		)
		if !bound {
			next, err = p.Desk.WaitConversationReady(ctx, p.cfg.ReadyTimeout)
		} else {
			next, err = p.Desk.WaitConversationChange(ctx, list, p.cfg.ChangeTimeout)
		}
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil && !bound:
			return errors.Wrap(err, "first conversation did not load")
		case err != nil:
			log.Error().Err(err).Msg("could not detect the new conversation")
		default:
			list, bound = next, true
			if _, err := p.Process(ctx, ProcessOptions{Confirm: true}); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Error().Err(err).Msg("processing failed")
			}
		}

		p.setState(StateIdle)
		again, err := p.Console.Confirm("Processar outra conversa?")
		if err != nil {
			return err
		}
		if !again {
			log.Info().Msg("operator ended the session")
			return nil
		}
	}
}

// RunAutopilot processes every conversation of the configured section without
// asking, polling for new ones, until ctx is done. Each conversation is tried
// once per run whether it succeeds or not.
func (p *Pilot) RunAutopilot(ctx context.Context) error {
	section := p.cfg.Autopilot.Section
	log.Info().Str("section", section).Msg("starting autopilot")
	if err := p.Desk.NavigateSection(ctx, section); err != nil {
		return errors.Wrapf(err, "open section %s", section)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.setState(StateAwaitingSelection)
		items, err := p.Desk.ConversationItems(ctx)
		if err != nil {
			log.Error().Err(err).Msg("could not list conversations")
			if err := p.backOff(ctx); err != nil {
				return err
			}
			continue
		}
		pending := p.pending(items)
		log.Info().Int("found", len(items)).Int("new", len(pending)).Msg("conversation list read")

		if len(pending) == 0 {
			p.setState(StateIdle)
			log.Info().Dur("wait", p.cfg.Autopilot.IdleInterval).Msg("no new conversations")
			if err := p.sleep(ctx, p.cfg.Autopilot.IdleInterval); err != nil {
				return err
			}
			if err := p.Desk.Refresh(ctx); err != nil {
				log.Warn().Err(err).Msg("refresh failed")
			}
			p.navigate(ctx, section)
			continue
		}

		if err := p.autopilotPass(ctx, pending[0]); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Str("conversation", pending[0].ID).Msg("autopilot pass failed")
			if err := p.backOff(ctx); err != nil {
				return err
			}
			continue
		}
		p.navigate(ctx, section)
	}
}

func (p *Pilot) autopilotPass(ctx context.Context, item helpdesk.Item) error {
	defer p.markProcessed(item.ID)

	log.Info().Str("conversation", item.ID).Str("label", item.Label).Msg("opening conversation")
	if err := p.Desk.OpenConversation(ctx, item.ID); err != nil {
		return err
	}
	if _, err := p.Desk.WaitConversationReady(ctx, p.cfg.ReadyTimeout); err != nil {
		return err
	}
	if _, err := p.Process(ctx, ProcessOptions{ConversationID: item.ID}); err != nil {
		return err
	}
	log.Info().Str("conversation", item.ID).Msg("conversation processed")
	return p.sleep(ctx, p.cfg.Autopilot.PauseAfter)
}

// backOff pauses and goes back to the section after a failed step.
func (p *Pilot) backOff(ctx context.Context) error {
	if err := p.sleep(ctx, p.cfg.Autopilot.PauseAfter); err != nil {
		return err
	}
	p.navigate(ctx, p.cfg.Autopilot.Section)
	return nil
}

func (p *Pilot) navigate(ctx context.Context, section string) {
	if err := p.Desk.NavigateSection(ctx, section); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Str("section", section).Msg("could not return to section")
	}
}

func (p *Pilot) pending(items []helpdesk.Item) []helpdesk.Item {
	out := []helpdesk.Item{}
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		if _, done := p.processed[it.ID]; !done {
			out = append(out, it)
		}
	}
	return out
}

func (p *Pilot) markProcessed(id string) {
	if id != "" {
		p.processed[id] = struct{}{}
	}
}
