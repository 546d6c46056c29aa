package pilot

import (
	"context"
	"fmt"
	"time"

	"github.com/go-go-golems/deskhand/pkg/conversation"
	"github.com/go-go-golems/deskhand/pkg/events"
	"github.com/go-go-golems/deskhand/pkg/export"
	"github.com/go-go-golems/deskhand/pkg/llm"
	"github.com/go-go-golems/deskhand/pkg/operator"
	"github.com/go-go-golems/deskhand/pkg/persistence/snapshots"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type ProcessOptions struct {
	// ConversationID is attached to the scraped conversation when known.
	ConversationID string
	// Confirm asks the operator before acting on the conversation.
	Confirm bool
}

// Outcome of one processing pass.
type Outcome struct {
	Conversation *conversation.Conversation
	Reply        llm.Reply
	ReplyFile    string
	Exports      map[string]string
	// Declined is set when the operator said no at the confirmation.
	Declined bool
	// Written is false when the composer could not be filled; the reply is
	// still in ReplyFile.
	Written  bool
	Closed   bool
	Duration time.Duration
}

// Process works on the conversation currently on screen. The reply is written
// to the composer and never sent.
func (p *Pilot) Process(ctx context.Context, opts ProcessOptions) (Outcome, error) {
	start := p.now()
	out := Outcome{}
	defer p.setState(StateIdle)

	p.setState(StateExtracting)
	conv, err := p.Scraper.ScrapeID(ctx, opts.ConversationID)
	if err != nil {
		return out, errors.Wrap(err, "extract conversation")
	}
	out.Conversation = conv
	if conv.ClientName == "" {
		log.Warn().Msg("client name not identified")
	}

	if opts.Confirm {
		p.setState(StateConfirming)
		ok, err := p.Console.Confirm(fmt.Sprintf("ATUAR na conversa de %s?", displayName(conv)))
		if err != nil {
			return out, err
		}
		if !ok {
			log.Info().Str("client", conv.ClientName).Msg("operator skipped conversation")
			out.Declined = true
			return out, nil
		}
		log.Info().Str("client", conv.ClientName).Msg("operator confirmed conversation")
	}

	out.Exports = p.exportAll(conv)

	p.setState(StateGenerating)
	reply, err := p.Generator.GenerateReply(ctx, conv)
	if err != nil {
		out.Duration = p.now().Sub(start)
		p.summary(out, err)
		return out, errors.Wrap(err, "generate reply")
	}
	out.Reply = reply
	log.Info().
		Str("client", conv.ClientName).
		Str("provider", reply.Provider).
		Bool("close", reply.Close).
		Bool("truncated", reply.Truncated).
		Msg("reply generated")

	out.ReplyFile, err = p.Exporter.WriteReply(conv, reply.Text, export.ReplyMeta{
		Provider: reply.Provider,
		Model:    reply.Model,
		Close:    reply.Close,
	})
	if err != nil {
		log.Warn().Err(err).Msg("could not save reply file")
	} else {
		log.Info().Str("path", out.ReplyFile).Msg("reply saved")
	}
	p.Console.ShowReply(reply.Text)

	p.setState(StateWriting)
	if err := p.Composer.Write(ctx, reply.Text); err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		log.Error().Err(err).Msg("could not fill the composer, copy the reply from the saved file")
	} else {
		out.Written = true
	}

	if reply.Close {
		if p.cfg.AutoClose {
			if err := p.Desk.CloseCurrentChat(ctx); err != nil {
				log.Warn().Err(err).Msg("could not close the chat")
			} else {
				out.Closed = true
			}
		} else {
			log.Info().Str("client", conv.ClientName).Msg("model suggests closing this conversation")
		}
	}

	p.record(ctx, conv, reply)

	out.Duration = p.now().Sub(start)
	p.summary(out, nil)
	return out, nil
}

func displayName(conv *conversation.Conversation) string {
	if conv.ClientName == "" {
		return "Cliente Não Identificado"
	}
	return conv.ClientName
}

func (p *Pilot) exportAll(conv *conversation.Conversation) map[string]string {
	res := p.Exporter.ExportAll(conv)
	for format, err := range res.Errors {
		log.Warn().Err(err).Str("format", format).Msg("export failed")
	}
	if len(res.Paths) > 0 {
		log.Info().Interface("files", res.Paths).Msg("conversation exported")
	}
	return res.Paths
}

// record archives the pass and publishes it. Neither may stop the run.
func (p *Pilot) record(ctx context.Context, conv *conversation.Conversation, reply llm.Reply) {
	now := p.now()
	if p.Archive != nil {
		err := p.Archive.Save(ctx, snapshots.Snapshot{
			RunID:          p.runID,
			ConversationID: conv.ID,
			ClientName:     conv.ClientName,
			ClientDetails:  conv.ClientDetails,
			Messages:       conv.Messages,
			Reply:          reply.Text,
			CloseSuggested: reply.Close,
			Provider:       reply.Provider,
			Model:          reply.Model,
			CreatedAtMs:    now.UnixMilli(),
		})
		if err != nil {
			log.Warn().Err(err).Msg("could not archive snapshot")
		}
	}
	err := p.Events.ReplyDrafted(ctx, events.ReplyDrafted{
		RunID:          p.runID,
		ConversationID: conv.ID,
		ClientName:     conv.ClientName,
		Reply:          reply.Text,
		Close:          reply.Close,
		Provider:       reply.Provider,
		At:             now,
	})
	if err != nil {
		log.Warn().Err(err).Msg("could not publish reply event")
	}
}

func (p *Pilot) summary(out Outcome, err error) {
	s := operator.Summary{
		ReplyFile: out.ReplyFile,
		Exports:   out.Exports,
		Provider:  out.Reply.Provider,
		Model:     out.Reply.Model,
		Close:     out.Reply.Close,
		Duration:  out.Duration,
		Err:       err,
		At:        p.now(),
	}
	if out.Conversation != nil {
		stats := out.Conversation.Stats()
		s.ClientName = displayName(out.Conversation)
		s.Messages = stats.Messages
		s.Characters = stats.Characters
	}
	p.Console.Summary(s)
}
