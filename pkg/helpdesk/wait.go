package helpdesk

import (
	"context"
	"time"

	"github.com/go-go-golems/deskhand/pkg/browser"
	"github.com/go-go-golems/deskhand/pkg/selectors"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	ScriptMarkList     = "helpdesk.mark-list"
	ScriptListAttached = "helpdesk.list-attached"

	listAttr = "data-deskhand-list"
)

// ListHandle identifies one rendering of the message list. The container is
// tagged with Token, so when the vendor re-renders the list for another
// conversation the tag goes away with the old element.
type ListHandle struct {
	Token string
}

const markListBody = `
const root = one(args.container);
if (!root || !one(args.ready, root)) return '';
const existing = root.getAttribute(args.attr);
if (existing) return existing;
root.setAttribute(args.attr, args.token);
return args.token;
`

const listAttachedBody = `
return !!document.querySelector('[' + args.attr + '="' + args.token + '"]');
`

// WaitConversationReady waits for a message list that holds at least one
// message or notice and returns its handle.
func (d *Desk) WaitConversationReady(ctx context.Context, timeout time.Duration) (ListHandle, error) {
	token := uuid.NewString()
	var got string
	err := browser.Poll(ctx, timeout, 500*time.Millisecond, func(ctx context.Context) (bool, error) {
		err := d.page.Evaluate(ctx, browser.Script(ScriptMarkList, markListBody, map[string]any{
			"container": d.sel.Get(selectors.ChatContainer),
			"ready":     d.sel.Get(selectors.ChatReady),
			"attr":      listAttr,
			"token":     token,
		}), &got)
		return got != "", err
	})
	if err != nil {
		return ListHandle{}, errors.Wrap(err, "conversation not ready")
	}
	return ListHandle{Token: got}, nil
}

// WaitConversationChange waits for the list behind old to leave the page, then
// for the new one to be ready. If the old list never goes away (same
// conversation selected again, or an in-place update) it logs and waits for a
// ready list anyway.
func (d *Desk) WaitConversationChange(ctx context.Context, old ListHandle, timeout time.Duration) (ListHandle, error) {
	if old.Token != "" {
		log.Info().Str("list", old.Token).Msg("waiting for the current conversation to go away")
		err := browser.Poll(ctx, timeout, 500*time.Millisecond, func(ctx context.Context) (bool, error) {
			var attached bool
			err := d.page.Evaluate(ctx, browser.Script(ScriptListAttached, listAttachedBody, map[string]any{
				"attr":  listAttr,
				"token": old.Token,
			}), &attached)
			return !attached, err
		})
		switch {
		case err == nil:
			log.Info().Msg("previous conversation detached")
		case ctx.Err() != nil:
			return ListHandle{}, ctx.Err()
		default:
			log.Warn().Err(err).Msg("previous conversation still on screen, looking for a ready list anyway")
		}
	}
	return d.WaitConversationReady(ctx, timeout)
}
