package llm

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-2.5-flash"

type GeminiConfig struct {
	APIKey          string
	Model           string
	MaxOutputTokens int
	Temperature     float64
	TopP            float64
	TopK            int
}

// GeminiBackend talks to the Gemini API with every harm category set to
// BLOCK_NONE.
type GeminiBackend struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

var _ Backend = &GeminiBackend{}

func NewGeminiBackend(ctx context.Context, cfg GeminiConfig) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}

	model := client.GenerativeModel(cfg.Model)
	model.SetCandidateCount(1)
	if cfg.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(cfg.MaxOutputTokens))
	}
	if cfg.Temperature > 0 {
		model.SetTemperature(float32(cfg.Temperature))
	}
	if cfg.TopP > 0 {
		model.SetTopP(float32(cfg.TopP))
	}
	if cfg.TopK > 0 {
		model.SetTopK(int32(cfg.TopK))
	}
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
	}

	return &GeminiBackend{client: client, model: model, name: cfg.Model}, nil
}

func (g *GeminiBackend) Model() string { return g.name }

func (g *GeminiBackend) Stream(ctx context.Context, prompt string, onDelta func(string)) (Completion, error) {
	it := g.model.GenerateContentStream(ctx, genai.Text(prompt))
	var b strings.Builder
	finish := FinishUnknown
	for {
		resp, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return Completion{Text: b.String(), Finish: finish}, errors.Wrap(err, "gemini stream")
		}
		text, f := candidateText(resp)
		if f != FinishUnknown {
			finish = f
		}
		if text != "" {
			if onDelta != nil {
				onDelta(text)
			}
			b.WriteString(text)
		}
	}
	return Completion{Text: b.String(), Finish: finish}, nil
}

func (g *GeminiBackend) Complete(ctx context.Context, prompt string) (Completion, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return Completion{}, errors.Wrap(err, "gemini generate")
	}
	text, finish := candidateText(resp)
	return Completion{Text: text, Finish: finish}, nil
}

func (g *GeminiBackend) Close() error {
	return g.client.Close()
}

func candidateText(resp *genai.GenerateContentResponse) (string, FinishReason) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", FinishUnknown
	}
	c := resp.Candidates[0]
	var b strings.Builder
	if c.Content != nil {
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return b.String(), finishReason(c.FinishReason)
}

func finishReason(r genai.FinishReason) FinishReason {
	switch r {
	case genai.FinishReasonUnspecified:
		return FinishUnknown
	case genai.FinishReasonStop:
		return FinishStop
	case genai.FinishReasonMaxTokens:
		return FinishMaxTokens
	case genai.FinishReasonSafety:
		return FinishSafety
	default:
		return FinishOther
	}
}
