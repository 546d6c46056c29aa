package llm

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/go-go-golems/deskhand/pkg/browser"
	"github.com/go-go-golems/deskhand/pkg/conversation"
	"github.com/go-go-golems/deskhand/pkg/selectors"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultWebURL = "https://gemini.google.com/app"

	ScriptSendReady    = "llm.send-ready"
	ScriptMarkLastCopy = "llm.mark-last-copy"
	ScriptLastResponse = "llm.last-response"

	webTabName = "llm"
	copyAttr   = "data-deskhand-copy"
)

// TabHost opens, finds and focuses browser tabs. *browser.Browser implements it.
type TabHost interface {
	FindTab(ctx context.Context, name, urlContains string) (browser.Page, bool, error)
	OpenTab(ctx context.Context, name, url string) (browser.Page, error)
	Focus(ctx context.Context, p browser.Page) (func(), error)
}

type Clipboard interface {
	WriteAll(text string) error
	ReadAll() (string, error)
}

// SystemClipboard is the OS clipboard.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }
func (SystemClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }

type WebConfig struct {
	URL             string        `mapstructure:"url"`
	LoadTimeout     time.Duration `mapstructure:"load_timeout"`
	ResponseTimeout time.Duration `mapstructure:"response_timeout"`
	Settle          time.Duration `mapstructure:"settle"`
}

func (c WebConfig) withDefaults() WebConfig {
	if c.URL == "" {
		c.URL = DefaultWebURL
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = 20 * time.Second
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = 60 * time.Second
	}
	if c.Settle <= 0 {
		c.Settle = 3 * time.Second
	}
	return c
}

// WebClient drafts replies by pasting the prompt into the Gemini web chat open
// in its own tab and copying the answer back.
type WebClient struct {
	tabs    TabHost
	clip    Clipboard
	sel     selectors.Table
	prompts *Prompts
	cfg     WebConfig
	tab     browser.Page

	sleep func(ctx context.Context, d time.Duration) error
}

var _ Generator = &WebClient{}

func NewWebClient(tabs TabHost, clip Clipboard, sel selectors.Table, prompts *Prompts, cfg WebConfig) *WebClient {
	if clip == nil {
		clip = SystemClipboard{}
	}
	return &WebClient{
		tabs:    tabs,
		clip:    clip,
		sel:     sel,
		prompts: prompts,
		cfg:     cfg.withDefaults(),
		sleep:   browser.Sleep,
	}
}

// Open reuses a tab already showing the chat or opens a new one, then waits
// for the prompt input.
func (c *WebClient) Open(ctx context.Context) error {
	host := c.cfg.URL
	if u, err := url.Parse(c.cfg.URL); err == nil && u.Host != "" {
		host = u.Host
	}
	tab, found, err := c.tabs.FindTab(ctx, webTabName, host)
	if err != nil {
		return err
	}
	if !found {
		log.Info().Str("url", c.cfg.URL).Msg("opening chat tab")
		tab, err = c.tabs.OpenTab(ctx, webTabName, c.cfg.URL)
		if err != nil {
			return errors.Wrap(err, "open chat tab")
		}
	}
	if _, err := browser.WaitFirstMatch(ctx, tab, c.sel.Get(selectors.WebInput), false, c.cfg.LoadTimeout); err != nil {
		return errors.Wrap(err, "chat input never appeared")
	}
	c.tab = tab
	log.Info().Bool("reused", found).Msg("chat tab ready")
	return nil
}

func (c *WebClient) GenerateReply(ctx context.Context, conv *conversation.Conversation) (Reply, error) {
	if c.tab == nil {
		if err := c.Open(ctx); err != nil {
			return Reply{}, err
		}
	}
	prompt, err := c.prompts.Web(conv)
	if err != nil {
		return Reply{}, err
	}
	logPrompt("web", prompt)

	release, err := c.tabs.Focus(ctx, c.tab)
	defer release()
	if err != nil {
		return Reply{}, err
	}

	if err := c.send(ctx, prompt); err != nil {
		return Reply{}, errors.Wrap(err, "send prompt")
	}
	raw, err := c.awaitResponse(ctx, prompt)
	if err != nil {
		return Reply{}, err
	}

	r := ParseReply(raw)
	if r.Text == "" {
		return Reply{}, errors.Wrap(ErrGenerationFailed, "chat reply is empty")
	}
	r.Provider = ProviderWeb
	r.Model = c.cfg.URL
	log.Info().Int("chars", len([]rune(r.Text))).Msg("reply captured from chat tab")
	return r, nil
}

func (c *WebClient) send(ctx context.Context, prompt string) error {
	input, err := browser.WaitFirstMatch(ctx, c.tab, c.sel.Get(selectors.WebInput), true, 10*time.Second)
	if err != nil {
		return err
	}
	if err := c.tab.Click(ctx, input); err != nil {
		return err
	}
	if err := c.clip.WriteAll(prompt); err != nil {
		return errors.Wrap(err, "write prompt to clipboard")
	}
	if err := c.tab.Paste(ctx); err != nil {
		return err
	}
	if err := c.sleep(ctx, 500*time.Millisecond); err != nil {
		return err
	}
	return browser.ClickFirst(ctx, c.tab, c.sel.Get(selectors.WebSend), 10*time.Second)
}

const sendReadyBody = `
const el = one(args.send);
return !!el && visible(el) && !el.disabled && el.getAttribute('aria-disabled') !== 'true';
`

const markLastCopyBody = `
const buttons = many(args.copy).filter(visible);
if (!buttons.length) return false;
const last = buttons[buttons.length - 1];
last.setAttribute(args.attr, args.token);
last.scrollIntoView({block: 'center'});
return true;
`

const lastResponseBody = `
const history = one(args.history);
if (!history) return '';
const children = Array.from(history.children);
if (!children.length) return '';
let last = children[children.length - 1];
if (last.querySelector('textarea') && children.length > 1) last = children[children.length - 2];
return text(last);
`

// awaitResponse waits for generation to end and reads the last answer, first
// through its copy button and the clipboard, then from the DOM.
func (c *WebClient) awaitResponse(ctx context.Context, prompt string) (string, error) {
	if err := c.sleep(ctx, c.cfg.Settle); err != nil {
		return "", err
	}
	err := browser.Poll(ctx, c.cfg.ResponseTimeout, time.Second, func(ctx context.Context) (bool, error) {
		var ready bool
		err := c.tab.Evaluate(ctx, browser.Script(ScriptSendReady, sendReadyBody, map[string]any{
			"send": c.sel.Get(selectors.WebSend),
		}), &ready)
		return ready, err
	})
	if err != nil {
		return "", errors.Wrapf(ErrGenerationFailed, "chat still generating: %v", err)
	}

	text, err := c.copyLast(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("copy button failed, reading reply from the page")
	}
	if strings.TrimSpace(text) != "" && text != prompt {
		return text, nil
	}

	var fromDOM string
	err = c.tab.Evaluate(ctx, browser.Script(ScriptLastResponse, lastResponseBody, map[string]any{
		"history": c.sel.Get(selectors.WebHistory),
	}), &fromDOM)
	if err != nil {
		return "", errors.Wrapf(ErrGenerationFailed, "read reply from page: %v", err)
	}
	return fromDOM, nil
}

func (c *WebClient) copyLast(ctx context.Context) (string, error) {
	token := uuid.NewString()
	var marked bool
	err := c.tab.Evaluate(ctx, browser.Script(ScriptMarkLastCopy, markLastCopyBody, map[string]any{
		"copy":  c.sel.Get(selectors.WebCopy),
		"attr":  copyAttr,
		"token": token,
	}), &marked)
	if err != nil {
		return "", err
	}
	if !marked {
		return "", errors.New("no copy button")
	}
	if err := c.clip.WriteAll(""); err != nil {
		return "", errors.Wrap(err, "clear clipboard")
	}
	if err := c.sleep(ctx, 500*time.Millisecond); err != nil {
		return "", err
	}
	if err := c.tab.Click(ctx, "["+copyAttr+"='"+token+"']"); err != nil {
		return "", err
	}
	if err := c.sleep(ctx, 500*time.Millisecond); err != nil {
		return "", err
	}
	return c.clip.ReadAll()
}

func (c *WebClient) Close() error { return nil }
