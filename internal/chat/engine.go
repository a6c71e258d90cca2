// Package chat forwards user questions to a hosted chat-completion model
// behind a fixed appendicitis-specialist system prompt.
package chat

import (
	"context"
	"errors"
	"fmt"
)

// SystemPrompt constrains the assistant's persona and topic. The restriction
// lives only in the prompt; replies are returned unfiltered.
const SystemPrompt = "You are a highly experienced medical professional specializing in appendicitis and emergency surgical care. " +
	"Your role is to provide accurate, reliable, and medically sound answers to users' queries " +
	"specifically related to appendicitis, its symptoms, diagnosis, treatment options, and surgical procedures. " +
	"If a user asks about topics outside appendicitis and emergency abdominal conditions, politely decline to answer, " +
	"stating that your expertise is limited to appendicitis and related medical issues. " +
	"Keep responses informative, clear, and accessible to both medical professionals and the general public."

// Sampling parameters sent with every completion.
const (
	Temperature = 1.0
	TopP        = 1.0
	MaxTokens   = 500
)

var ErrEmptyCompletion = errors.New("chat: empty completion")

type Engine interface {
	Name() string
	Ask(ctx context.Context, question string) (string, error)
}

// Provider names accepted by New.
const (
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

type Options struct {
	Provider string

	GroqAPIKey  string
	GroqModel   string
	GroqBaseURL string

	GeminiAPIKey string
	GeminiModel  string
}

// New builds the engine for opts.Provider. Gemini engines hold a client that
// must be released with Close.
func New(ctx context.Context, opts Options) (Engine, error) {
	switch opts.Provider {
	case ProviderGroq, "":
		return NewGroq(opts.GroqAPIKey, opts.GroqModel, opts.GroqBaseURL), nil
	case ProviderGemini:
		return NewGemini(ctx, opts.GeminiAPIKey, opts.GeminiModel)
	default:
		return nil, fmt.Errorf("unknown chat provider %q; use %q or %q", opts.Provider, ProviderGroq, ProviderGemini)
	}
}
