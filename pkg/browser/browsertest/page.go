// Package browsertest provides a scripted browser.Page for tests that should
// not need a real Chrome.
package browsertest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-go-golems/deskhand/pkg/browser"
	"github.com/pkg/errors"
)

// Handler answers one named script. args are the JSON arguments the script was
// built with; the returned value is JSON round-tripped into the caller's out.
type Handler func(args json.RawMessage) (any, error)

// Call records a non-script interaction with the page.
type Call struct {
	Op       string
	Selector string
	Text     string
}

// Page is a browser.Page whose scripts are answered by handlers keyed on
// script name. Unknown scripts fail.
type Page struct {
	mu       sync.Mutex
	name     string
	url      string
	handlers map[string]Handler
	calls    []Call
	scripts  []string

	// OnCall, when set, runs for every recorded call and may fail it.
	OnCall func(Call) error
}

var _ browser.Page = &Page{}

func New(name string) *Page {
	return &Page{name: name, handlers: map[string]Handler{}}
}

// Handle registers h for scripts named name and returns p for chaining.
func (p *Page) Handle(name string, h Handler) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[name] = h
	return p
}

// Returns registers a handler that always answers v.
func (p *Page) Returns(name string, v any) *Page {
	return p.Handle(name, func(json.RawMessage) (any, error) { return v, nil })
}

// Calls returns the recorded calls for op, all calls when op is empty.
func (p *Page) Calls(op string) []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []Call{}
	for _, c := range p.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Scripts returns the names of evaluated scripts, in order.
func (p *Page) Scripts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.scripts...)
}

// Count returns how often a script ran.
func (p *Page) Count(name string) int {
	n := 0
	for _, s := range p.Scripts() {
		if s == name {
			n++
		}
	}
	return n
}

func (p *Page) record(c Call) error {
	p.mu.Lock()
	p.calls = append(p.calls, c)
	hook := p.OnCall
	p.mu.Unlock()
	if hook != nil {
		return hook(c)
	}
	return nil
}

func (p *Page) Name() string { return p.name }

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return p.record(Call{Op: "navigate", Text: url})
}

func (p *Page) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.record(Call{Op: "reload"})
}

func (p *Page) Location(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, ctx.Err()
}

func (p *Page) Evaluate(ctx context.Context, script string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := browser.ScriptName(script)
	p.mu.Lock()
	h, ok := p.handlers[name]
	p.scripts = append(p.scripts, name)
	p.mu.Unlock()
	if !ok {
		return errors.Errorf("browsertest: no handler for script %q", name)
	}

	var args json.RawMessage
	if err := browser.ScriptArgs(script, &args); err != nil {
		return errors.Wrapf(err, "browsertest: args of %q", name)
	}
	v, err := h(args)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (p *Page) Click(ctx context.Context, sel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.record(Call{Op: "click", Selector: sel})
}

func (p *Page) SendKeys(ctx context.Context, sel, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.record(Call{Op: "send_keys", Selector: sel, Text: text})
}

func (p *Page) TypeKeys(ctx context.Context, keys string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.record(Call{Op: "type_keys", Text: keys})
}

func (p *Page) Paste(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.record(Call{Op: "paste"})
}
