package scrape

import (
	"strings"

	"github.com/go-go-golems/deskhand/pkg/conversation"
)

// SystemAuthorName is the author name given to system notices.
const SystemAuthorName = "Sistema"

const (
	clientAvatarMarker = "contactAvatar"
	agentAvatarMarker  = "defaultAvatar"
)

// Author is the result of classifying a bubble.
type Author struct {
	Type conversation.AuthorType
	Name string
}

// Rule is one step of the classification cascade. Match must be pure.
type Rule struct {
	Name  string
	Match func(b Bubble, knownClient string) (Author, bool)
}

// cascade is evaluated in order; the first matching rule decides. The last rule
// always matches.
var cascade = []Rule{
	{Name: "avatar", Match: matchAvatar},
	{Name: "system-markup", Match: matchSystemMarkup},
	{Name: "double-tick", Match: matchDoubleTick},
	{Name: "name-label", Match: matchNameLabel},
	{Name: "fallback", Match: matchFallback},
}

// Cascade returns a copy of the classification rules, in evaluation order.
func Cascade() []Rule {
	return append([]Rule(nil), cascade...)
}

// Classify assigns an author to b. knownClient is the client name known so far,
// possibly empty. It returns the name of the rule that decided.
func Classify(b Bubble, knownClient string) (Author, string) {
	for _, r := range cascade {
		if a, ok := r.Match(b, knownClient); ok {
			return a, r.Name
		}
	}
	a, _ := matchFallback(b, knownClient)
	return a, "fallback"
}

func matchAvatar(b Bubble, knownClient string) (Author, bool) {
	switch {
	case strings.Contains(b.AvatarSrc, clientAvatarMarker):
		name := strings.TrimSpace(b.AvatarTitle)
		if name == "" {
			name = knownClient
		}
		return Author{Type: conversation.AuthorClient, Name: name}, true
	case strings.Contains(b.AvatarSrc, agentAvatarMarker):
		return Author{Type: conversation.AuthorAgent, Name: strings.TrimSpace(b.AvatarTitle)}, true
	}
	return Author{}, false
}

func matchSystemMarkup(b Bubble, _ string) (Author, bool) {
	if !b.SystemMarkup {
		return Author{}, false
	}
	return Author{Type: conversation.AuthorSystem, Name: SystemAuthorName}, true
}

func matchDoubleTick(b Bubble, _ string) (Author, bool) {
	if !b.DoubleTick {
		return Author{}, false
	}
	return Author{Type: conversation.AuthorAgent, Name: strings.TrimSpace(b.AvatarTitle)}, true
}

func matchNameLabel(b Bubble, knownClient string) (Author, bool) {
	title := strings.TrimSpace(b.AvatarTitle)
	if title == "" {
		return Author{}, false
	}
	if known := strings.TrimSpace(knownClient); known != "" && strings.EqualFold(title, known) {
		return Author{Type: conversation.AuthorClient, Name: title}, true
	}
	return Author{Type: conversation.AuthorAgent, Name: title}, true
}

func matchFallback(_ Bubble, knownClient string) (Author, bool) {
	return Author{Type: conversation.AuthorClient, Name: knownClient}, true
}
