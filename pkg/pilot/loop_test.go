package pilot

import (
	"context"
	"testing"
	"time"

	"github.com/go-go-golems/deskhand/pkg/conversation"
	"github.com/go-go-golems/deskhand/pkg/helpdesk"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestRunManualFollowsConversationChanges(t *testing.T) {
	h := newHarness(t, Config{})
	h.scraper.queue = []*conversation.Conversation{sampleConv("", "Ana"), sampleConv("", "Bruno")}
	// act on Ana, continue, act on Bruno, stop
	h.console.answers = []bool{true, true, true, false}

	require.NoError(t, h.pilot.RunManual(context.Background()))

	require.Equal(t, 2, h.console.enters)
	require.Equal(t, []string{"ready", "change:list-1"}, h.desk.calls)
	require.Equal(t, []string{"Ana", "Bruno"}, h.gen.clients)
	require.Equal(t, []string{
		"ATUAR na conversa de Ana?",
		"Processar outra conversa?",
		"ATUAR na conversa de Bruno?",
		"Processar outra conversa?",
	}, h.console.questions)
}

func TestRunManualStopsWhenFirstConversationNeverLoads(t *testing.T) {
	h := newHarness(t, Config{})
	h.desk.readyErr = errors.New("timed out")

	err := h.pilot.RunManual(context.Background())
	require.Error(t, err)
	require.Empty(t, h.gen.clients)
}

func TestRunManualContinuesAfterFailedChange(t *testing.T) {
	h := newHarness(t, Config{})
	h.scraper.queue = []*conversation.Conversation{sampleConv("", "Ana")}
	h.console.answers = []bool{true, true, false}

	calls := 0
	h.pilot.Console = &enterHook{fakeConsole: h.console, onEnter: func() {
		calls++
		if calls == 2 {
			h.desk.changeErr = errors.New("timed out")
		}
	}}

	require.NoError(t, h.pilot.RunManual(context.Background()))
	require.Equal(t, []string{"Ana"}, h.gen.clients)
	require.Equal(t, []string{"ready", "change:list-1"}, h.desk.calls)
}

type enterHook struct {
	*fakeConsole
	onEnter func()
}

func (e *enterHook) WaitForEnter(s string) error {
	e.onEnter()
	return e.fakeConsole.WaitForEnter(s)
}

func TestRunAutopilotMarksEveryConversationProcessed(t *testing.T) {
	h := newHarness(t, Config{})
	h.scraper.byID["7077001"] = sampleConv("7077001", "Ana")
	h.scraper.failID = "7077002"
	h.desk.items = [][]helpdesk.Item{
		{{ID: "7077001", Label: "Ana"}, {ID: "7077002", Label: "Bruno"}, {Label: "sem id"}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.pilot.sleep = func(ctx context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		if d == 30*time.Second {
			cancel()
		}
		return ctx.Err()
	}

	err := h.pilot.RunAutopilot(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, []string{
		"navigate:my_conversations",
		"items",
		"open:7077001",
		"ready",
		"navigate:my_conversations",
		"items",
		"open:7077002",
		"ready",
		"navigate:my_conversations",
		"items",
	}, h.desk.calls)
	require.Equal(t, []string{"Ana"}, h.gen.clients)
	require.Empty(t, h.console.questions, "autopilot never asks")
	require.Contains(t, h.pilot.processed, "7077001")
	require.Contains(t, h.pilot.processed, "7077002")
	require.Len(t, h.pilot.processed, 2)
	// pause after success, back-off after failure, then idle
	require.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second, 30 * time.Second}, h.sleeps)
}

func TestRunAutopilotRefreshesWhenIdle(t *testing.T) {
	h := newHarness(t, Config{Autopilot: AutopilotConfig{Section: "unassigned", IdleInterval: time.Minute}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	idles := 0
	h.pilot.sleep = func(ctx context.Context, d time.Duration) error {
		idles++
		if idles == 2 {
			cancel()
		}
		return ctx.Err()
	}

	err := h.pilot.RunAutopilot(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{
		"navigate:unassigned",
		"items",
		"refresh",
		"navigate:unassigned",
		"items",
	}, h.desk.calls)
}
