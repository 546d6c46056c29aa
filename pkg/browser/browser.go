// Package browser owns the single Chrome instance deskhand drives: its tabs,
// which of them is in front, and small polling helpers on top of chromedp.
package browser

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Browser is the shared browser session. Tabs are created or adopted through
// it and focus moves between them through Focus.
type Browser struct {
	cfg Config

	mu            sync.Mutex
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	main          *Tab
	tabs          []*Tab
	focused       *Tab

	allocate func(base context.Context) (context.Context, context.CancelFunc)
	front    func(ctx context.Context, t *Tab) error
}

func New(cfg Config) *Browser {
	b := &Browser{cfg: cfg}
	b.allocate = b.newAllocator
	b.front = func(ctx context.Context, t *Tab) error { return t.bringToFront(ctx) }
	return b
}

func (b *Browser) newAllocator(base context.Context) (context.Context, context.CancelFunc) {
	if b.cfg.remote() {
		return chromedp.NewRemoteAllocator(base, strings.TrimSpace(b.cfg.CDPURL))
	}
	return chromedp.NewExecAllocator(base, b.allocatorOptions()...)
}

func (b *Browser) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.cfg.Headless),
		chromedp.Flag("disable-gpu", b.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("start-maximized", true),
	)
	if w, h := b.cfg.WindowWidth, b.cfg.WindowHeight; w > 0 && h > 0 {
		opts = append(opts, chromedp.WindowSize(w, h))
	}
	if path := strings.TrimSpace(b.cfg.ChromePath); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	if dir := strings.TrimSpace(b.cfg.UserDataDir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			opts = append(opts, chromedp.UserDataDir(dir))
		} else {
			log.Warn().Err(err).Str("dir", dir).Msg("could not create chrome user data dir, using a temporary profile")
		}
	}
	if profile := strings.TrimSpace(b.cfg.ProfileDirectory); profile != "" {
		opts = append(opts, chromedp.Flag("profile-directory", profile))
	}
	return opts
}

// Start launches (or attaches to) Chrome and returns the main tab.
func (b *Browser) Start(ctx context.Context) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.main != nil {
		return b.main, nil
	}

	b.allocCtx, b.allocCancel = b.allocate(context.Background())
	b.browserCtx, b.browserCancel = chromedp.NewContext(b.allocCtx)

	main := &Tab{name: "main", ctx: b.browserCtx, timeout: b.cfg.actionTimeout()}
	if err := main.run(ctx); err != nil {
		b.shutdownLocked()
		return nil, errors.Wrap(err, "start browser")
	}
	b.main = main
	b.focused = main
	b.tabs = append(b.tabs, main)

	log.Info().Bool("remote", b.cfg.remote()).Bool("headless", b.cfg.Headless).Msg("browser started")
	return main, nil
}

// Main returns the first tab, nil before Start.
func (b *Browser) Main() Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.main == nil {
		return nil
	}
	return b.main
}

// OpenTab opens a new tab on url. Focus goes back to the previously focused
// tab afterwards.
func (b *Browser) OpenTab(ctx context.Context, name, url string) (Page, error) {
	b.mu.Lock()
	if b.browserCtx == nil {
		b.mu.Unlock()
		return nil, errors.New("browser not started")
	}
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	tab := &Tab{name: name, ctx: tabCtx, cancel: cancel, timeout: b.cfg.actionTimeout()}
	prev := b.focused
	b.mu.Unlock()

	if err := tab.Navigate(ctx, url); err != nil {
		cancel()
		return nil, err
	}

	b.mu.Lock()
	b.tabs = append(b.tabs, tab)
	b.mu.Unlock()

	if prev != nil {
		if err := b.front(ctx, prev); err != nil {
			log.Warn().Err(err).Str("tab", prev.name).Msg("could not refocus tab after opening a new one")
		}
	}
	log.Info().Str("tab", name).Str("url", url).Msg("opened tab")
	return tab, nil
}

// FindTab adopts an already open page whose URL contains urlContains.
func (b *Browser) FindTab(ctx context.Context, name, urlContains string) (Page, bool, error) {
	b.mu.Lock()
	browserCtx := b.browserCtx
	known := map[string]bool{}
	for _, t := range b.tabs {
		if t.name == name {
			b.mu.Unlock()
			return t, true, nil
		}
		known[string(t.TargetID())] = true
	}
	b.mu.Unlock()
	if browserCtx == nil {
		return nil, false, errors.New("browser not started")
	}

	// chromedp.Targets needs a context carrying the browser, not the caller's.
	lookupCtx, cancel := context.WithTimeout(browserCtx, b.cfg.actionTimeout())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	infos, err := chromedp.Targets(lookupCtx)
	if err != nil {
		return nil, false, errors.Wrap(err, "list targets")
	}
	for _, info := range infos {
		if info.Type != "page" || known[string(info.TargetID)] {
			continue
		}
		if !strings.Contains(info.URL, urlContains) {
			continue
		}
		tabCtx, tabCancel := chromedp.NewContext(browserCtx, chromedp.WithTargetID(info.TargetID))
		tab := &Tab{name: name, ctx: tabCtx, cancel: tabCancel, timeout: b.cfg.actionTimeout()}
		if err := tab.run(ctx); err != nil {
			tabCancel()
			return nil, false, errors.Wrapf(err, "attach to %s", info.URL)
		}
		b.mu.Lock()
		b.tabs = append(b.tabs, tab)
		b.mu.Unlock()
		log.Info().Str("tab", name).Str("url", info.URL).Msg("reusing open tab")
		return tab, true, nil
	}
	return nil, false, nil
}

// Focus brings p to the front and returns a release func that gives focus back
// to the tab that held it before. Release is idempotent and does not depend on
// ctx still being alive, so it can be deferred on every exit path.
func (b *Browser) Focus(ctx context.Context, p Page) (func(), error) {
	tab, ok := p.(*Tab)
	if !ok || tab == nil {
		return func() {}, errors.Errorf("page %q does not belong to this browser", pageName(p))
	}

	b.mu.Lock()
	prev := b.focused
	b.mu.Unlock()

	if err := b.front(ctx, tab); err != nil {
		return func() {}, errors.Wrapf(err, "focus %s", tab.name)
	}
	b.mu.Lock()
	b.focused = tab
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.focused = prev
			b.mu.Unlock()
			if prev == nil || prev == tab {
				return
			}
			restoreCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := b.front(restoreCtx, prev); err != nil {
				log.Warn().Err(err).Str("tab", prev.name).Msg("could not restore tab focus")
			}
		})
	}, nil
}

// Close shuts down every tab and the browser (or detaches from a remote one).
func (b *Browser) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdownLocked()
	log.Info().Msg("browser closed")
}

func (b *Browser) shutdownLocked() {
	for _, t := range b.tabs {
		t.close()
	}
	b.tabs = nil
	b.main = nil
	b.focused = nil
	if b.browserCancel != nil {
		b.browserCancel()
		b.browserCancel = nil
	}
	if b.allocCancel != nil {
		b.allocCancel()
		b.allocCancel = nil
	}
	b.browserCtx = nil
	b.allocCtx = nil
}

func pageName(p Page) string {
	if p == nil {
		return "<nil>"
	}
	return p.Name()
}
