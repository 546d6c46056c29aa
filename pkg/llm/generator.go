// Package llm drafts replies for a scraped conversation, either through the
// Gemini API or by driving the Gemini web chat in a second browser tab.
package llm

import (
	"context"
	"regexp"
	"strings"

	"github.com/go-go-golems/deskhand/pkg/conversation"
	"github.com/pkg/errors"
)

// ErrGenerationFailed means no usable text came back from the model.
var ErrGenerationFailed = errors.New("reply generation failed")

const (
	// CloseMarker is what the model appends when the client is wrapping up.
	CloseMarker = "[ACTION: CLOSE]"

	TruncationNotice = "\n\n[Resposta truncada - considere aumentar o limite de tokens]"

	ProviderAPI = "api"
	ProviderWeb = "web"
)

var citationRE = regexp.MustCompile(`\[cite.*?\]`)

// Reply is a drafted answer. Text is what goes into the composer.
type Reply struct {
	Text      string
	Raw       string
	Close     bool
	Truncated bool
	Provider  string
	Model     string
}

// Generator drafts a reply for a conversation.
type Generator interface {
	GenerateReply(ctx context.Context, conv *conversation.Conversation) (Reply, error)
	Close() error
}

// ParseReply strips citation markers and the close marker from raw model
// output.
func ParseReply(raw string) Reply {
	text := citationRE.ReplaceAllString(raw, "")
	closeChat := strings.Contains(text, CloseMarker)
	if closeChat {
		text = strings.ReplaceAll(text, CloseMarker, "")
	}
	return Reply{
		Text:  strings.TrimSpace(text),
		Raw:   raw,
		Close: closeChat,
	}
}
