package scrape

import (
	"strings"
)

// Bubble is the raw view of one message element, read from the DOM in a
// single pass. Everything deskhand decides about a message is derived from it
// in Go.
type Bubble struct {
	// ID is the vendor data-id ("msgBubble_..."). System notices have none.
	ID           string `json:"id"`
	AvatarSrc    string `json:"avatarSrc"`
	AvatarTitle  string `json:"avatarTitle"`
	SystemMarkup bool   `json:"systemMarkup"`
	DoubleTick   bool   `json:"doubleTick"`
	// Fragments holds the texts found for each content selector, in selector order.
	Fragments [][]string `json:"fragments"`
	TimeTitle string     `json:"timeTitle"`
	MsgTime   string     `json:"msgTime"`
}

// Timestamp prefers the human-readable title over the machine data-msgtime.
func (b Bubble) Timestamp() string {
	if t := strings.TrimSpace(b.TimeTitle); t != "" {
		return t
	}
	return strings.TrimSpace(b.MsgTime)
}

// Text joins the non-empty fragments in selector order, each distinct text
// once, separated by " | ".
func (b Bubble) Text() string {
	seen := map[string]struct{}{}
	parts := []string{}
	for _, group := range b.Fragments {
		for _, f := range group {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " | ")
}

// Key identifies the bubble within one scrape. Elements without a vendor id
// are keyed by content.
func (b Bubble) Key() string {
	if id := strings.TrimSpace(b.ID); id != "" {
		return id
	}
	return "notice|" + b.Timestamp() + "|" + b.Text()
}

// harvest accumulates bubbles across scroll positions, first sighting wins.
// Each snapshot is in document order, so new bubbles are placed next to the
// already known neighbours they were seen with.
type harvest struct {
	order []string
	byKey map[string]Bubble
}

func newHarvest() *harvest {
	return &harvest{byKey: map[string]Bubble{}}
}

func (h *harvest) position(key string) int {
	for i, k := range h.order {
		if k == key {
			return i
		}
	}
	return -1
}

// add stores unseen bubbles and returns how many were new.
func (h *harvest) add(bs []Bubble) int {
	added := 0
	anchor := -1
	for i, b := range bs {
		k := b.Key()
		if _, ok := h.byKey[k]; ok {
			anchor = h.position(k)
			continue
		}
		at := len(h.order)
		if anchor >= 0 {
			at = anchor + 1
		} else {
			for _, next := range bs[i+1:] {
				if pos := h.position(next.Key()); pos >= 0 {
					at = pos
					break
				}
			}
		}
		h.byKey[k] = b
		h.order = append(h.order, "")
		copy(h.order[at+1:], h.order[at:])
		h.order[at] = k
		anchor = at
		added++
	}
	return added
}

func (h *harvest) len() int {
	return len(h.order)
}

func (h *harvest) bubbles() []Bubble {
	out := make([]Bubble, 0, len(h.order))
	for _, k := range h.order {
		out = append(out, h.byKey[k])
	}
	return out
}
