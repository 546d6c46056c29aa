package browser

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/go-go-golems/deskhand/pkg/selectors"
	"github.com/pkg/errors"
)

// Tab is a chromedp-backed Page.
type Tab struct {
	name    string
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration

	attached atomic.Bool
}

var _ Page = &Tab{}

func (t *Tab) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// TargetID returns the DevTools target of the tab, empty before the first action.
func (t *Tab) TargetID() target.ID {
	if t == nil {
		return ""
	}
	c := chromedp.FromContext(t.ctx)
	if c == nil || c.Target == nil {
		return ""
	}
	return c.Target.TargetID
}

// run executes actions against the tab, bounded by the action timeout and
// cancelled together with ctx. The first run allocates the browser or attaches
// the tab, and chromedp ties the Chrome process and the tab's event loop to
// the context of that call, so it goes through attach instead.
func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	if t == nil || t.ctx == nil {
		return errors.New("browser tab is not initialized")
	}
	if !t.attached.Load() {
		return t.attach(ctx, actions...)
	}
	runCtx, cancel := context.WithTimeout(t.ctx, t.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// attach runs actions on the tab's own context, with no timeout. If ctx ends
// first the call returns, but the run keeps going in the background and the
// tab stays usable once it completes.
func (t *Tab) attach(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		err := chromedp.Run(t.ctx, actions...)
		if err == nil {
			t.attached.Store(true)
		}
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func queryOption(sel string) chromedp.QueryOption {
	if selectors.IsXPath(sel) {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func (t *Tab) Navigate(ctx context.Context, url string) error {
	return errors.Wrapf(t.run(ctx, chromedp.Navigate(url)), "%s: navigate %s", t.name, url)
}

func (t *Tab) Reload(ctx context.Context) error {
	return errors.Wrapf(t.run(ctx, chromedp.Reload()), "%s: reload", t.name)
}

func (t *Tab) Location(ctx context.Context) (string, error) {
	var url string
	if err := t.run(ctx, chromedp.Location(&url)); err != nil {
		return "", errors.Wrapf(err, "%s: location", t.name)
	}
	return url, nil
}

func (t *Tab) Evaluate(ctx context.Context, script string, out any) error {
	if err := t.run(ctx, chromedp.Evaluate(script, out)); err != nil {
		return errors.Wrapf(err, "%s: evaluate %s", t.name, ScriptName(script))
	}
	return nil
}

func (t *Tab) Click(ctx context.Context, sel string) error {
	if err := t.run(ctx, chromedp.Click(sel, queryOption(sel))); err != nil {
		return errors.Wrapf(err, "%s: click %s", t.name, sel)
	}
	return nil
}

func (t *Tab) SendKeys(ctx context.Context, sel, text string) error {
	if err := t.run(ctx, chromedp.SendKeys(sel, text, queryOption(sel))); err != nil {
		return errors.Wrapf(err, "%s: send keys to %s", t.name, sel)
	}
	return nil
}

func (t *Tab) TypeKeys(ctx context.Context, keys string) error {
	if err := t.run(ctx, chromedp.KeyEvent(keys)); err != nil {
		return errors.Wrapf(err, "%s: type keys", t.name)
	}
	return nil
}

// Paste dispatches Ctrl+V with the native paste command attached. Plain key
// events with modifiers do not reach the clipboard.
func (t *Tab) Paste(ctx context.Context) error {
	down := input.DispatchKeyEvent(input.KeyRawDown).
		WithKey("v").
		WithCode("KeyV").
		WithWindowsVirtualKeyCode(86).
		WithModifiers(input.ModifierCtrl).
		WithCommands([]string{"paste"})
	up := input.DispatchKeyEvent(input.KeyUp).
		WithKey("v").
		WithCode("KeyV").
		WithWindowsVirtualKeyCode(86).
		WithModifiers(input.ModifierCtrl)
	if err := t.run(ctx, down, up); err != nil {
		return errors.Wrapf(err, "%s: paste", t.name)
	}
	return nil
}

func (t *Tab) bringToFront(ctx context.Context) error {
	return t.run(ctx, page.BringToFront())
}

func (t *Tab) close() {
	if t != nil && t.cancel != nil {
		t.cancel()
	}
}
