package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/appendiscan/backend/internal/metrics"
)

const DefaultGeminiModel = "gemini-1.5-flash"

// Gemini answers through the Google Generative AI API. The client is
// created once and shared by all requests.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultGeminiModel
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	m := cl.GenerativeModel(strings.TrimSpace(model))
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemPrompt)},
	}
	m.SetTemperature(Temperature)
	m.SetTopP(TopP)
	m.SetMaxOutputTokens(MaxTokens)

	return &Gemini{client: cl, model: m, name: model}, nil
}

func (g *Gemini) Name() string { return ProviderGemini }

func (g *Gemini) Ask(ctx context.Context, question string) (string, error) {
	defer metrics.ObserveUpstream("gemini")()

	resp, err := g.model.GenerateContent(ctx, genai.Text(question))
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", g.name, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyCompletion
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyCompletion
	}
	return b.String(), nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}
