package llm

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/template"

	"github.com/go-go-golems/deskhand/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/weaviate/tiktoken-go"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

const (
	DefaultPersonaName  = "Stefan"
	DefaultCompany      = "Era Verde Energia"
	DefaultHistoryLimit = 20

	clientLabel   = "Cliente"
	noHistory     = "Histórico não disponível."
	emptyHistory  = "Histórico vazio."
	unknownClient = "Cliente"
	tokenEncoding = "cl100k_base"
)

// PromptConfig controls the persona and how much history goes into a prompt.
type PromptConfig struct {
	PersonaName string
	Company     string
	// Persona replaces the embedded persona template when set. It is parsed as
	// a template too, so it may use {{.PersonaName}} and {{.Company}}.
	Persona      string
	HistoryLimit int
}

// Prompts renders the three prompt shapes deskhand sends to a model.
type Prompts struct {
	cfg     PromptConfig
	persona string
	tmpl    *template.Template
}

func NewPrompts(cfg PromptConfig) (*Prompts, error) {
	if cfg.PersonaName == "" {
		cfg.PersonaName = DefaultPersonaName
	}
	if cfg.Company == "" {
		cfg.Company = DefaultCompany
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}

	tmpl, err := template.ParseFS(promptFS, "prompts/*.tmpl")
	if err != nil {
		return nil, errors.Wrap(err, "parse prompt templates")
	}
	if cfg.Persona != "" {
		if _, err := tmpl.New("persona.tmpl").Parse(cfg.Persona); err != nil {
			return nil, errors.Wrap(err, "parse persona")
		}
	}

	p := &Prompts{cfg: cfg, tmpl: tmpl}
	var b bytes.Buffer
	if err := tmpl.ExecuteTemplate(&b, "persona.tmpl", cfg); err != nil {
		return nil, errors.Wrap(err, "render persona")
	}
	p.persona = strings.TrimSpace(b.String())
	return p, nil
}

// LoadPersona reads a persona override file.
func LoadPersona(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "read persona file %s", path)
	}
	return string(b), nil
}

func (p *Prompts) PersonaName() string { return p.cfg.PersonaName }

// History lists the non-system messages as "<n>. <sender>: <text>", n being
// the message position in the whole conversation. Only the last HistoryLimit
// lines are kept.
func (p *Prompts) History(conv *conversation.Conversation) string {
	if len(conv.Messages) == 0 {
		return noHistory
	}
	lines := []string{}
	for i, m := range conv.Messages {
		if m.AuthorType == conversation.AuthorSystem {
			continue
		}
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		sender := p.cfg.PersonaName
		if m.AuthorType == conversation.AuthorClient {
			sender = clientLabel
		}
		lines = append(lines, fmt.Sprintf("%d. %s: %s", i+1, sender, text))
	}
	if len(lines) == 0 {
		return emptyHistory
	}
	if len(lines) > p.cfg.HistoryLimit {
		log.Info().Int("from", len(lines)).Int("to", p.cfg.HistoryLimit).Msg("history truncated for prompt")
		lines = lines[len(lines)-p.cfg.HistoryLimit:]
	}
	return strings.Join(lines, "\n")
}

type promptData struct {
	Persona           string
	PersonaName       string
	Company           string
	History           string
	HistoryLimit      int
	ClientName        string
	Details           conversation.ClientDetails
	HasDetails        bool
	LastClientMessage string
	CloseMarker       string
}

func (p *Prompts) data(conv *conversation.Conversation, withHistory bool) promptData {
	name := strings.TrimSpace(conv.ClientName)
	if name == "" {
		name = unknownClient
	}
	d := promptData{
		Persona:           p.persona,
		PersonaName:       p.cfg.PersonaName,
		Company:           p.cfg.Company,
		HistoryLimit:      p.cfg.HistoryLimit,
		ClientName:        name,
		Details:           conv.ClientDetails,
		HasDetails:        !conv.ClientDetails.IsZero(),
		LastClientMessage: conv.LastClientMessage,
		CloseMarker:       CloseMarker,
	}
	if withHistory {
		d.History = p.History(conv)
	}
	return d
}

func (p *Prompts) render(name string, d promptData) (string, error) {
	var b bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&b, name, d); err != nil {
		return "", errors.Wrapf(err, "render %s", name)
	}
	return strings.TrimSpace(b.String()), nil
}

// API is the full prompt: persona, history, CRM details, last client message
// and the close instruction.
func (p *Prompts) API(conv *conversation.Conversation) (string, error) {
	return p.render("api.tmpl", p.data(conv, true))
}

// Fallback is the short prompt used when the full one produced nothing.
func (p *Prompts) Fallback(conv *conversation.Conversation) (string, error) {
	return p.render("fallback.tmpl", p.data(conv, false))
}

// Web is the compact prompt for a chat UI that already holds the persona.
func (p *Prompts) Web(conv *conversation.Conversation) (string, error) {
	return p.render("web.tmpl", p.data(conv, true))
}

// EstimateTokens counts prompt tokens with cl100k_base. ok is false when the
// encoding is unavailable.
func EstimateTokens(text string) (n int, ok bool) {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(tokenEncoding)
		if err != nil {
			log.Debug().Err(err).Msg("token encoding unavailable")
			return
		}
		encoding = enc
	})
	if encoding == nil {
		return 0, false
	}
	return len(encoding.Encode(text, nil, nil)), true
}

func logPrompt(kind, prompt string) {
	ev := log.Debug()
	if !ev.Enabled() {
		return
	}
	ev = ev.Str("prompt", kind).Int("chars", len([]rune(prompt)))
	if n, ok := EstimateTokens(prompt); ok {
		ev = ev.Int("tokens", n)
	}
	ev.Msg("prompt built")
}
