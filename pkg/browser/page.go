package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrTimeout is returned by Poll when the condition never held.
var ErrTimeout = errors.New("timed out")

// Page is one browser tab as seen by the rest of deskhand.
//
// Selectors passed to Click and SendKeys may be CSS or XPath.
type Page interface {
	Name() string
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	Location(ctx context.Context) (string, error)
	// Evaluate runs a script built with Script and decodes its JSON result into out.
	// out may be nil.
	Evaluate(ctx context.Context, script string, out any) error
	Click(ctx context.Context, selector string) error
	SendKeys(ctx context.Context, selector, text string) error
	// TypeKeys sends key events to the focused element.
	TypeKeys(ctx context.Context, keys string) error
	// Paste triggers the browser's paste command on the focused element.
	Paste(ctx context.Context) error
}

// Poll calls cond every interval until it returns true, the timeout elapses or
// ctx is done. Errors from cond count as "not yet"; the last one is attached to
// the timeout error.
func Poll(ctx context.Context, timeout, interval time.Duration, cond func(ctx context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		ok, err := cond(ctx)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
		}
		if !time.Now().Before(deadline) {
			if lastErr != nil {
				return errors.Wrapf(ErrTimeout, "after %s (last error: %v)", timeout, lastErr)
			}
			return errors.Wrapf(ErrTimeout, "after %s", timeout)
		}
		if err := Sleep(ctx, interval); err != nil {
			return err
		}
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const scriptTag = "/*deskhand:"

// Script builds a self-contained expression that runs body with the shared
// helper prelude and the JSON-encoded args bound to `args`. The name is kept as
// a leading comment; it shows up in logs and lets test doubles dispatch on it.
func Script(name, body string, args any) string {
	encoded := []byte("null")
	if args != nil {
		b, err := json.Marshal(args)
		if err == nil {
			encoded = b
		}
	}
	return fmt.Sprintf("%s%s*/(function(args){\n%s\n%s\n})(%s)", scriptTag, name, prelude, body, encoded)
}

// ScriptName returns the name a script was built with, "" if it has none.
func ScriptName(script string) string {
	if !strings.HasPrefix(script, scriptTag) {
		return ""
	}
	rest := script[len(scriptTag):]
	end := strings.Index(rest, "*/")
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// ScriptArgs decodes the args a script was built with into out.
func ScriptArgs(script string, out any) error {
	i := strings.LastIndex(script, "})(")
	if i < 0 || !strings.HasSuffix(script, ")") {
		return errors.New("script has no argument list")
	}
	return json.Unmarshal([]byte(script[i+3:len(script)-1]), out)
}

// prelude is shared by every script. CSS and XPath selectors are both accepted.
const prelude = `
const isXPath = (s) => s.startsWith('/') || s.startsWith('(');
const all = (sel, root) => {
  root = root || document;
  if (isXPath(sel)) {
    const r = document.evaluate(sel, root, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
    const out = [];
    for (let i = 0; i < r.snapshotLength; i++) out.push(r.snapshotItem(i));
    return out;
  }
  try { return Array.from(root.querySelectorAll(sel)); } catch (e) { return []; }
};
const many = (sels, root) => {
  for (const s of [].concat(sels || [])) {
    const found = all(s, root);
    if (found.length) return found;
  }
  return [];
};
const one = (sels, root) => many(sels, root)[0] || null;
const matchesAny = (el, sels) => [].concat(sels || []).some((s) => {
  if (isXPath(s)) return false;
  try { return el.matches(s); } catch (e) { return false; }
});
const visible = (el) => !!el && !!(el.offsetWidth || el.offsetHeight || el.getClientRects().length);
const text = (el) => ((el && (el.innerText || el.textContent)) || '').trim();
`

const firstMatchBody = `
for (const s of args.sels) {
  const found = all(s);
  if (found.length && (!args.visible || found.some(visible))) return s;
}
return '';
`

// FirstMatch returns the first selector of sels that matches an element on the
// page, "" when none does.
func FirstMatch(ctx context.Context, p Page, sels []string, mustBeVisible bool) (string, error) {
	var sel string
	err := p.Evaluate(ctx, Script("first-match", firstMatchBody, map[string]any{
		"sels":    sels,
		"visible": mustBeVisible,
	}), &sel)
	if err != nil {
		return "", err
	}
	return sel, nil
}

// WaitFirstMatch polls FirstMatch until something matches.
func WaitFirstMatch(ctx context.Context, p Page, sels []string, mustBeVisible bool, timeout time.Duration) (string, error) {
	var sel string
	err := Poll(ctx, timeout, 500*time.Millisecond, func(ctx context.Context) (bool, error) {
		s, err := FirstMatch(ctx, p, sels, mustBeVisible)
		if err != nil {
			return false, err
		}
		sel = s
		return s != "", nil
	})
	if err != nil {
		return "", errors.Wrapf(err, "wait for %s", strings.Join(sels, " | "))
	}
	return sel, nil
}

// ClickFirst clicks the first selector of sels that matches.
func ClickFirst(ctx context.Context, p Page, sels []string, timeout time.Duration) error {
	sel, err := WaitFirstMatch(ctx, p, sels, true, timeout)
	if err != nil {
		return err
	}
	return p.Click(ctx, sel)
}
