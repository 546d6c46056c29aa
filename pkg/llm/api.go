package llm

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-go-golems/deskhand/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type FinishReason string

const (
	FinishUnknown   FinishReason = ""
	FinishStop      FinishReason = "stop"
	FinishMaxTokens FinishReason = "max_tokens"
	FinishSafety    FinishReason = "safety"
	FinishOther     FinishReason = "other"
)

// Completion is the accumulated output of one model call.
type Completion struct {
	Text   string
	Finish FinishReason
}

// Backend is a text completion service.
type Backend interface {
	// Stream calls onDelta for every chunk as it arrives.
	Stream(ctx context.Context, prompt string, onDelta func(string)) (Completion, error)
	Complete(ctx context.Context, prompt string) (Completion, error)
	Model() string
	Close() error
}

// APIClient drafts replies with a streamed completion and falls back to a
// short non-streamed prompt when the stream fails or comes back empty.
type APIClient struct {
	backend Backend
	prompts *Prompts
	echo    io.Writer
}

var _ Generator = &APIClient{}

// NewAPIClient builds a client. Streamed chunks are copied to echo when it is
// not nil.
func NewAPIClient(backend Backend, prompts *Prompts, echo io.Writer) *APIClient {
	return &APIClient{backend: backend, prompts: prompts, echo: echo}
}

func (c *APIClient) GenerateReply(ctx context.Context, conv *conversation.Conversation) (Reply, error) {
	prompt, err := c.prompts.API(conv)
	if err != nil {
		return Reply{}, err
	}
	logPrompt("api", prompt)

	log.Info().Str("model", c.backend.Model()).Msg("requesting streamed reply")
	start := time.Now()
	comp, streamErr := c.backend.Stream(ctx, prompt, c.echoDelta)
	c.endEcho()

	if streamErr == nil && strings.TrimSpace(comp.Text) != "" {
		raw := comp.Text
		truncated := comp.Finish == FinishMaxTokens
		if truncated {
			log.Warn().Msg("reply truncated by the output token limit")
			raw += TruncationNotice
		}
		log.Info().
			Dur("elapsed", time.Since(start)).
			Int("chars", len([]rune(raw))).
			Msg("reply generated")
		return c.reply(raw, truncated), nil
	}
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	if streamErr != nil {
		log.Error().Err(streamErr).Msg("streamed generation failed, trying fallback prompt")
	} else {
		log.Error().Str("finish", string(comp.Finish)).Msg("empty streamed reply, trying fallback prompt")
	}

	fallback, err := c.prompts.Fallback(conv)
	if err != nil {
		return Reply{}, err
	}
	logPrompt("fallback", fallback)
	fb, err := c.backend.Complete(ctx, fallback)
	if err != nil {
		return Reply{}, errors.Wrapf(ErrGenerationFailed, "fallback: %v", err)
	}
	if fb.Finish == FinishMaxTokens {
		log.Warn().Msg("fallback reply truncated by the output token limit")
	}
	if strings.TrimSpace(fb.Text) == "" {
		return Reply{}, errors.Wrap(ErrGenerationFailed, "fallback reply is empty")
	}
	log.Info().Msg("reply generated with fallback prompt")
	if c.echo != nil {
		_, _ = fmt.Fprintln(c.echo, fb.Text)
	}
	return c.reply(fb.Text, false), nil
}

func (c *APIClient) reply(raw string, truncated bool) Reply {
	r := ParseReply(raw)
	r.Truncated = truncated
	r.Provider = ProviderAPI
	r.Model = c.backend.Model()
	return r
}

func (c *APIClient) echoDelta(s string) {
	if c.echo != nil {
		_, _ = io.WriteString(c.echo, s)
	}
}

func (c *APIClient) endEcho() {
	if c.echo != nil {
		_, _ = io.WriteString(c.echo, "\n")
	}
}

func (c *APIClient) Close() error {
	return c.backend.Close()
}
