package scrape

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-go-golems/deskhand/pkg/browser/browsertest"
	"github.com/go-go-golems/deskhand/pkg/conversation"
	"github.com/go-go-golems/deskhand/pkg/selectors"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func fakeChat(t *testing.T, bubbles []Bubble, window int) *browsertest.Page {
	offset := len(bubbles) - window
	if offset < 0 {
		offset = 0
	}
	visible := func() []Bubble {
		end := offset + window
		if end > len(bubbles) {
			end = len(bubbles)
		}
		return bubbles[offset:end]
	}
	return browsertest.New("main").
		Returns(ScriptReady, true).
		Returns(ScriptClientName, "").
		Returns(ScriptPanel, PanelText{Email: "E-mail ana@example.com"}).
		Handle(ScriptScroll, func(raw json.RawMessage) (any, error) {
			var args struct {
				Dir string `json:"dir"`
			}
			require.NoError(t, json.Unmarshal(raw, &args))
			if args.Dir == string(ScrollTop) {
				offset = 0
			} else {
				offset = len(bubbles) - window
				if offset < 0 {
					offset = 0
				}
			}
			return true, nil
		}).
		Handle(ScriptSnapshot, func(json.RawMessage) (any, error) {
			return visible(), nil
		})
}

func TestScrapeThreeMessageConversation(t *testing.T) {
	bubbles := []Bubble{
		{ID: "msgBubble_1", AvatarSrc: "contactAvatar", AvatarTitle: "Ana", TimeTitle: "27/10/2025 10:54", Fragments: [][]string{{"Oi"}}},
		{ID: "msgBubble_2", DoubleTick: true, AvatarTitle: "Caroline", TimeTitle: "27/10/2025 10:55", Fragments: [][]string{{"Olá, posso ajudar?"}}},
		{SystemMarkup: true, TimeTitle: "27/10/2025 10:55", Fragments: [][]string{nil, {"Caroline entrou no chat"}}},
		{ID: "msgBubble_3", AvatarSrc: "contactAvatar", TimeTitle: "27/10/2025 10:56", Fragments: [][]string{{"Quero atualizar o contrato"}}},
		{ID: "msgBubble_4", TimeTitle: "27/10/2025 10:57"},
	}
	page := fakeChat(t, bubbles, 3)

	s := New(page, selectors.Default(), Config{
		Stability:    StabilityConfig{Threshold: 2, MaxIterations: 10},
		ReadyTimeout: time.Second,
	})
	conv, err := s.ScrapeID(context.Background(), "7077001")
	require.NoError(t, err)

	require.Equal(t, "7077001", conv.ID)
	require.Equal(t, "Ana", conv.ClientName)
	require.Equal(t, "ana@example.com", conv.ClientDetails.Email)
	require.Len(t, conv.Messages, 4)
	require.Equal(t, "Quero atualizar o contrato", conv.LastClientMessage)
	require.Equal(t, "Olá, posso ajudar?", conv.LastAgentMessage)

	types := map[conversation.AuthorType]int{}
	for _, m := range conv.Messages {
		types[m.AuthorType]++
	}
	require.Equal(t, 2, types[conversation.AuthorClient])
	require.Equal(t, 1, types[conversation.AuthorAgent])
	require.Equal(t, 1, types[conversation.AuthorSystem])
	require.Zero(t, page.Count("first-match"))
}

func TestScrapeSameBubbleTwiceCountsOnce(t *testing.T) {
	b := Bubble{ID: "msgBubble_1", AvatarSrc: "contactAvatar", AvatarTitle: "Ana", Fragments: [][]string{{"Oi"}}}
	page := browsertest.New("main").
		Returns(ScriptReady, true).
		Returns(ScriptClientName, "Ana").
		Returns(ScriptPanel, PanelText{}).
		Returns(ScriptScroll, true).
		Returns(ScriptSnapshot, []Bubble{b, b})

	conv, err := New(page, selectors.Default(), Config{ReadyTimeout: time.Second}).Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
}

func TestScrapeWithoutContainer(t *testing.T) {
	page := browsertest.New("main").Returns(ScriptReady, false)

	_, err := New(page, selectors.Default(), Config{ReadyTimeout: 10 * time.Millisecond}).Scrape(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrContainerNotFound))
}

func TestScrapeContainerDisappearsMidScroll(t *testing.T) {
	page := browsertest.New("main").
		Returns(ScriptReady, true).
		Returns(ScriptClientName, "Ana").
		Returns(ScriptPanel, PanelText{}).
		Returns(ScriptScroll, false).
		Returns(ScriptSnapshot, []Bubble{})

	_, err := New(page, selectors.Default(), Config{ReadyTimeout: time.Second}).Scrape(context.Background())
	require.True(t, errors.Is(err, ErrContainerNotFound))
}
