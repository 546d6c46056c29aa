// Package selectors holds the table of DOM selectors deskhand uses to find things
// in the helpdesk and in the LLM web chat.
//
// Every logical name maps to an ordered list of fallbacks. Callers try them in
// order and use the first one that matches. A table never changes after it has
// been built; overrides produce a new table.
package selectors

import (
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Key is the logical name of a selector entry.
type Key string

const (
	LoginEmail          Key = "login.email"
	LoginPassword       Key = "login.password"
	LoginSubmit         Key = "login.submit"
	LoginProblemLink    Key = "login.problem_link"
	LoginAuthenticator  Key = "login.authenticator_option"
	LoginOTP            Key = "login.otp"
	LoginDashboardCheck Key = "login.dashboard_check"

	ListItems Key = "list.items"

	ChatContainer    Key = "chat.container"
	ChatReady        Key = "chat.ready"
	ChatBubble       Key = "chat.bubble"
	ChatSystemNotice Key = "chat.system_notice"
	ChatAvatarImage  Key = "chat.avatar_image"
	ChatAvatarBox    Key = "chat.avatar_box"
	ChatSystemMarkup Key = "chat.system_markup"
	ChatDoubleTick   Key = "chat.double_tick"
	ChatTime         Key = "chat.time"
	ChatMsgTime      Key = "chat.msg_time"
	ChatText         Key = "chat.text"
	ChatClientName   Key = "chat.client_name"
	ChatCloseButton  Key = "chat.close_button"

	PanelEmailLabel Key = "panel.email_label"
	PanelPhoneLabel Key = "panel.phone_label"
	PanelOwnerLabel Key = "panel.owner_label"

	ComposerEditor Key = "composer.editor"

	WebInput   Key = "llmweb.input"
	WebSend    Key = "llmweb.send"
	WebCopy    Key = "llmweb.copy"
	WebHistory Key = "llmweb.history"
)

// SectionKey returns the key of a left-menu section, e.g. SectionKey("my_conversations").
func SectionKey(name string) Key {
	return Key("nav." + strings.TrimSpace(name))
}

// Table is an immutable set of selector fallback lists.
type Table struct {
	entries map[Key][]string
}

// New builds a table from the given entries. Empty selectors are dropped.
func New(entries map[Key][]string) Table {
	t := Table{entries: make(map[Key][]string, len(entries))}
	for k, v := range entries {
		if list := clean(v); len(list) > 0 {
			t.entries[k] = list
		}
	}
	return t
}

// Get returns a copy of the fallback list for k, nil if the key is unknown.
func (t Table) Get(k Key) []string {
	v, ok := t.entries[k]
	if !ok {
		return nil
	}
	return append([]string(nil), v...)
}

// First returns the primary selector for k.
func (t Table) First(k Key) string {
	if v := t.entries[k]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Has reports whether k has at least one selector.
func (t Table) Has(k Key) bool {
	return len(t.entries[k]) > 0
}

// Keys returns all keys in lexical order.
func (t Table) Keys() []Key {
	keys := make([]Key, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// With returns a new table where the given keys replace the current lists.
func (t Table) With(overrides map[Key][]string) Table {
	merged := make(map[Key][]string, len(t.entries)+len(overrides))
	for k, v := range t.entries {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return New(merged)
}

// MarshalYAML writes the table as a plain mapping, keys sorted.
func (t Table) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range t.Keys() {
		var value yaml.Node
		if err := value.Encode(t.entries[k]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: string(k)}, &value)
	}
	return node, nil
}

// IsXPath reports whether a selector string is an XPath expression.
func IsXPath(sel string) bool {
	sel = strings.TrimSpace(sel)
	return strings.HasPrefix(sel, "/") || strings.HasPrefix(sel, "(")
}

// Load reads a YAML file of overrides and merges it onto Default.
// An empty path returns Default.
//
//	chat.container:
//	  - "[data-test-id='msgsList']"
func Load(path string) (Table, error) {
	base := Default()
	if strings.TrimSpace(path) == "" {
		return base, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Table{}, errors.Wrap(err, "read selector overrides")
	}
	raw := map[string][]string{}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return Table{}, errors.Wrapf(err, "parse selector overrides %s", path)
	}
	overrides := make(map[Key][]string, len(raw))
	for k, v := range raw {
		if len(clean(v)) == 0 {
			return Table{}, errors.Errorf("selector overrides %s: %q has no selectors", path, k)
		}
		overrides[Key(strings.TrimSpace(k))] = v
	}
	return base.With(overrides), nil
}

func clean(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
