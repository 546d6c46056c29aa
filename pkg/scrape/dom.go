package scrape

import (
	"context"

	"github.com/go-go-golems/deskhand/pkg/browser"
	"github.com/go-go-golems/deskhand/pkg/selectors"
)

// Script names, shared with tests.
const (
	ScriptReady      = "scrape.ready"
	ScriptScroll     = "scrape.scroll"
	ScriptSnapshot   = "scrape.snapshot"
	ScriptClientName = "scrape.client-name"
	ScriptPanel      = "scrape.panel"
)

const readyBody = `
const root = one(args.container);
return !!root && !!one(args.ready, root);
`

const scrollBody = `
const root = one(args.container);
if (!root) return false;
root.scrollTop = args.dir === 'top' ? 0 : root.scrollHeight;
return true;
`

// The snapshot keeps only outermost matches so a notice nested in a bubble is
// not reported twice.
const snapshotBody = `
const root = one(args.container);
if (!root) return null;
const sel = [].concat(args.bubble, args.notice).filter((s) => !isXPath(s)).join(',');
let nodes = [];
try { nodes = Array.from(root.querySelectorAll(sel)); } catch (e) { return []; }
nodes = nodes.filter((n) => !nodes.some((o) => o !== n && o.contains(n)));
const attr = (el, name) => (el ? el.getAttribute(name) || '' : '');
return nodes.map((el) => ({
  id: attr(el, 'data-id'),
  avatarSrc: attr(one(args.avatarImage, el), 'src'),
  avatarTitle: attr(one(args.avatarBox, el), 'data-title'),
  systemMarkup: matchesAny(el, args.systemMarkup) || !!one(args.systemMarkup, el),
  doubleTick: !!one(args.doubleTick, el),
  fragments: args.text.map((s) => (matchesAny(el, [s]) ? [text(el)] : []).concat(all(s, el).map(text))),
  timeTitle: attr(one(args.time, el), 'data-title'),
  msgTime: attr(one(args.msgTime, el), 'data-msgtime'),
}));
`

const clientNameBody = `
for (const s of args.sels) {
  const el = all(s)[0];
  if (!el) continue;
  const v = (el.getAttribute('data-title') || text(el)).trim();
  if (v) return v;
}
return '';
`

const panelBody = `
const parentText = (sels) => {
  const el = one(sels);
  return el && el.parentElement ? text(el.parentElement) : '';
};
return { email: parentText(args.email), phone: parentText(args.phone), owner: parentText(args.owner) };
`

// domView reads the helpdesk message list through a browser page.
type domView struct {
	page browser.Page
	sel  selectors.Table
}

var _ ListView = &domView{}

func (d *domView) Ready(ctx context.Context) (bool, error) {
	var ok bool
	err := d.page.Evaluate(ctx, browser.Script(ScriptReady, readyBody, map[string]any{
		"container": d.sel.Get(selectors.ChatContainer),
		"ready":     d.sel.Get(selectors.ChatReady),
	}), &ok)
	return ok, err
}

func (d *domView) Scroll(ctx context.Context, dir Direction) error {
	var ok bool
	err := d.page.Evaluate(ctx, browser.Script(ScriptScroll, scrollBody, map[string]any{
		"container": d.sel.Get(selectors.ChatContainer),
		"dir":       string(dir),
	}), &ok)
	if err != nil {
		return err
	}
	if !ok {
		return ErrContainerNotFound
	}
	return nil
}

func (d *domView) Snapshot(ctx context.Context) ([]Bubble, error) {
	var out *[]Bubble
	err := d.page.Evaluate(ctx, browser.Script(ScriptSnapshot, snapshotBody, map[string]any{
		"container":    d.sel.Get(selectors.ChatContainer),
		"bubble":       d.sel.Get(selectors.ChatBubble),
		"notice":       d.sel.Get(selectors.ChatSystemNotice),
		"avatarImage":  d.sel.Get(selectors.ChatAvatarImage),
		"avatarBox":    d.sel.Get(selectors.ChatAvatarBox),
		"systemMarkup": d.sel.Get(selectors.ChatSystemMarkup),
		"doubleTick":   d.sel.Get(selectors.ChatDoubleTick),
		"text":         d.sel.Get(selectors.ChatText),
		"time":         d.sel.Get(selectors.ChatTime),
		"msgTime":      d.sel.Get(selectors.ChatMsgTime),
	}), &out)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrContainerNotFound
	}
	return *out, nil
}

func (d *domView) ClientName(ctx context.Context) (string, error) {
	var name string
	err := d.page.Evaluate(ctx, browser.Script(ScriptClientName, clientNameBody, map[string]any{
		"sels": d.sel.Get(selectors.ChatClientName),
	}), &name)
	return name, err
}

func (d *domView) Panel(ctx context.Context) (PanelText, error) {
	var p PanelText
	err := d.page.Evaluate(ctx, browser.Script(ScriptPanel, panelBody, map[string]any{
		"email": d.sel.Get(selectors.PanelEmailLabel),
		"phone": d.sel.Get(selectors.PanelPhoneLabel),
		"owner": d.sel.Get(selectors.PanelOwnerLabel),
	}), &p)
	return p, err
}
