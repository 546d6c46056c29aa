// Package composer fills the helpdesk reply editor with a drafted text. It
// never sends: the operator reviews and sends by hand.
package composer

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/chromedp/chromedp/kb"
	"github.com/go-go-golems/deskhand/pkg/browser"
	"github.com/go-go-golems/deskhand/pkg/selectors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	ScriptFill = "composer.fill"

	emptyParagraph = "<p><br></p>"
)

// BuildHTML turns plain text into editor paragraphs: one <p> per line, blank
// lines as <p><br></p>. Line content is HTML-escaped.
func BuildHTML(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			b.WriteString(emptyParagraph)
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>")
	}
	return b.String()
}

// The editor is a ProseMirror instance: it only picks up the new content after
// the input events fire, and the caret has to sit at the end for the trailing
// keystrokes to land after the text.
const fillBody = `
const el = one(args.editor);
if (!el || !visible(el)) return false;
el.scrollIntoView({block: 'center'});
el.focus();
el.innerHTML = args.empty;
el.innerHTML = args.html;
const range = document.createRange();
range.selectNodeContents(el);
range.collapse(false);
const sel = window.getSelection();
sel.removeAllRanges();
sel.addRange(range);
for (const type of ['input', 'change']) {
  el.dispatchEvent(new Event(type, {bubbles: true}));
}
el.dispatchEvent(new KeyboardEvent('keyup', {bubbles: true, key: ' '}));
return true;
`

// Writer writes into the composer of the helpdesk page.
type Writer struct {
	page    browser.Page
	editor  []string
	timeout time.Duration
}

func NewWriter(page browser.Page, sel selectors.Table, timeout time.Duration) *Writer {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Writer{page: page, editor: sel.Get(selectors.ComposerEditor), timeout: timeout}
}

// Write replaces the composer content with text and leaves it unsent.
func (w *Writer) Write(ctx context.Context, text string) error {
	body := BuildHTML(text)
	err := browser.Poll(ctx, w.timeout, 500*time.Millisecond, func(ctx context.Context) (bool, error) {
		var ok bool
		err := w.page.Evaluate(ctx, browser.Script(ScriptFill, fillBody, map[string]any{
			"editor": w.editor,
			"empty":  emptyParagraph,
			"html":   body,
		}), &ok)
		return ok, err
	})
	if err != nil {
		return errors.Wrap(err, "composer not available")
	}

	// A real keystroke marks the editor dirty so the send button enables.
	if err := w.page.TypeKeys(ctx, " "+kb.Backspace); err != nil {
		log.Warn().Err(err).Msg("could not nudge composer after filling it")
	}
	log.Info().Int("chars", len([]rune(text))).Msg("reply written to composer, not sent")
	return nil
}
