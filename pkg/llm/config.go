package llm

import (
	"context"
	"io"

	"github.com/go-go-golems/deskhand/pkg/selectors"
	"github.com/pkg/errors"
)

type Config struct {
	Provider        string    `mapstructure:"provider"`
	APIKey          string    `mapstructure:"api_key"`
	Model           string    `mapstructure:"model"`
	MaxOutputTokens int       `mapstructure:"max_output_tokens"`
	Temperature     float64   `mapstructure:"temperature"`
	TopP            float64   `mapstructure:"top_p"`
	TopK            int       `mapstructure:"top_k"`
	HistoryLimit    int       `mapstructure:"history_limit"`
	PersonaName     string    `mapstructure:"persona_name"`
	PersonaFile     string    `mapstructure:"persona_file"`
	Company         string    `mapstructure:"company"`
	Web             WebConfig `mapstructure:"web"`
}

// Deps are what the web provider needs from the running browser.
type Deps struct {
	Tabs      TabHost
	Clipboard Clipboard
	Selectors selectors.Table
	// Echo receives streamed API output as it arrives.
	Echo io.Writer
}

// New builds the generator selected by cfg.Provider.
func New(ctx context.Context, cfg Config, deps Deps) (Generator, error) {
	pc := PromptConfig{
		PersonaName:  cfg.PersonaName,
		Company:      cfg.Company,
		HistoryLimit: cfg.HistoryLimit,
	}
	if cfg.PersonaFile != "" {
		persona, err := LoadPersona(cfg.PersonaFile)
		if err != nil {
			return nil, err
		}
		pc.Persona = persona
	}
	prompts, err := NewPrompts(pc)
	if err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderAPI, "":
		backend, err := NewGeminiBackend(ctx, GeminiConfig{
			APIKey:          cfg.APIKey,
			Model:           cfg.Model,
			MaxOutputTokens: cfg.MaxOutputTokens,
			Temperature:     cfg.Temperature,
			TopP:            cfg.TopP,
			TopK:            cfg.TopK,
		})
		if err != nil {
			return nil, err
		}
		return NewAPIClient(backend, prompts, deps.Echo), nil
	case ProviderWeb:
		if deps.Tabs == nil {
			return nil, errors.New("web provider needs a browser")
		}
		return NewWebClient(deps.Tabs, deps.Clipboard, deps.Selectors, prompts, cfg.Web), nil
	default:
		return nil, errors.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
