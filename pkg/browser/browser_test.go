package browser

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var errNoChrome = errors.New("no chrome in tests")

// recordingAllocator keeps the context chromedp allocates the browser with and
// fails the allocation.
type recordingAllocator struct {
	mu  sync.Mutex
	got []context.Context
}

func (a *recordingAllocator) Allocate(ctx context.Context, _ ...chromedp.BrowserOption) (*chromedp.Browser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.got = append(a.got, ctx)
	return nil, errNoChrome
}

func (a *recordingAllocator) Wait() {}

func (a *recordingAllocator) last(t *testing.T) context.Context {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	require.NotEmpty(t, a.got, "browser was never allocated")
	return a.got[len(a.got)-1]
}

func recordingAllocatorContext(alloc *recordingAllocator) func(context.Context) (context.Context, context.CancelFunc) {
	return func(base context.Context) (context.Context, context.CancelFunc) {
		ctx, cancel := chromedp.NewExecAllocator(base)
		chromedp.FromContext(ctx).Allocator = alloc
		return ctx, cancel
	}
}

func TestTabFirstRunKeepsBrowserContextAlive(t *testing.T) {
	alloc := &recordingAllocator{}
	allocCtx, allocCancel := recordingAllocatorContext(alloc)(context.Background())
	defer allocCancel()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()

	tab := &Tab{name: "main", ctx: tabCtx, timeout: 50 * time.Millisecond}
	err := tab.run(context.Background())
	require.ErrorIs(t, err, errNoChrome)

	got := alloc.last(t)
	_, hasDeadline := got.Deadline()
	require.False(t, hasDeadline, "browser allocated under an action timeout")
	require.NoError(t, got.Err(), "allocation context cancelled when the first run returned")
	require.False(t, tab.attached.Load())
}

func TestTabFirstRunReturnsWhenCallerGivesUp(t *testing.T) {
	tabCtx, tabCancel := context.WithCancel(context.Background())
	defer tabCancel()
	tab := &Tab{name: "main", ctx: tabCtx, timeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// a plain context is not a chromedp context, so Run fails right away;
	// either outcome must come back without blocking
	err := tab.run(ctx)
	require.Error(t, err)
}

func TestStartAllocatesWithoutTimeout(t *testing.T) {
	alloc := &recordingAllocator{}
	b := New(Config{ActionTimeout: 50 * time.Millisecond})
	b.allocate = recordingAllocatorContext(alloc)

	_, err := b.Start(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, errNoChrome)
	require.Contains(t, err.Error(), "start browser")
	require.Nil(t, b.Main())

	_, hasDeadline := alloc.last(t).Deadline()
	require.False(t, hasDeadline)
}

func TestOpenTabAttachesWithoutTimeout(t *testing.T) {
	alloc := &recordingAllocator{}
	b := New(Config{ActionTimeout: 50 * time.Millisecond})
	b.allocCtx, b.allocCancel = recordingAllocatorContext(alloc)(context.Background())
	b.browserCtx, b.browserCancel = chromedp.NewContext(b.allocCtx)
	defer b.Close()

	_, err := b.OpenTab(context.Background(), "llm", "https://gemini.google.com/app")
	require.ErrorIs(t, err, errNoChrome)

	_, hasDeadline := alloc.last(t).Deadline()
	require.False(t, hasDeadline)
}

func TestOpenTabBeforeStart(t *testing.T) {
	b := New(Config{})
	_, err := b.OpenTab(context.Background(), "llm", "https://example.com")
	require.Error(t, err)
	_, _, err = b.FindTab(context.Background(), "llm", "example.com")
	require.Error(t, err)
}

func TestFocusReleaseRestoresPreviousTab(t *testing.T) {
	b := New(Config{})
	mainTab := &Tab{name: "main"}
	llm := &Tab{name: "llm"}
	b.main, b.focused, b.tabs = mainTab, mainTab, []*Tab{mainTab, llm}

	var fronts []string
	b.front = func(_ context.Context, t *Tab) error {
		fronts = append(fronts, t.name)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	release, err := b.Focus(ctx, llm)
	require.NoError(t, err)
	require.Same(t, llm, b.focused)

	// release must not depend on the caller's context
	cancel()
	release()
	release()
	require.Same(t, mainTab, b.focused)
	require.Equal(t, []string{"llm", "main"}, fronts)
}

func TestFocusFailureKeepsCurrentTab(t *testing.T) {
	b := New(Config{})
	mainTab := &Tab{name: "main"}
	llm := &Tab{name: "llm"}
	b.main, b.focused = mainTab, mainTab
	b.front = func(context.Context, *Tab) error { return errors.New("target closed") }

	release, err := b.Focus(context.Background(), llm)
	require.Error(t, err)
	release()
	require.Same(t, mainTab, b.focused)
}

func TestFocusRejectsForeignPage(t *testing.T) {
	b := New(Config{})
	_, err := b.Focus(context.Background(), nil)
	require.Error(t, err)
}
