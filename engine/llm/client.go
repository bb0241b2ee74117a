package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Client is the text-completion oracle: one prompt in, raw text out. No
// retry or backoff contract; callers issue a single call per decision point.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Capability is the single injection point every decision step consults. A
// nil client means the oracle is unavailable and the step must take its
// deterministic fallback path; that is a configured mode, not an error.
type Capability struct {
	client   Client
	embedder embeddings.Embedder
}

func NewCapability(client Client, embedder embeddings.Embedder) *Capability {
	return &Capability{client: client, embedder: embedder}
}

// Disabled returns a capability with neither oracle configured.
func Disabled() *Capability {
	return &Capability{}
}

func (c *Capability) Available() bool {
	return c != nil && c.client != nil
}

func (c *Capability) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("llm: completion oracle is not configured")
	}
	return c.client.Complete(ctx, prompt)
}

func (c *Capability) Embedder() embeddings.Embedder {
	if c == nil {
		return nil
	}
	return c.embedder
}

// Config selects the OpenAI models backing the oracle. An empty APIKey
// disables it.
type Config struct {
	APIKey     string
	ChatModel  string
	EmbedModel string
}

type langchainClient struct {
	model llms.Model
}

func (l *langchainClient) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, l.model, prompt, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("llm: generate: %w", err)
	}
	return out, nil
}

// NewCapabilityFromConfig wires the langchaingo OpenAI chat model and
// embedder, or returns the disabled capability when no API key is set.
func NewCapabilityFromConfig(cfg Config) (*Capability, error) {
	if cfg.APIKey == "" {
		return Disabled(), nil
	}
	chat, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.ChatModel),
	)
	if err != nil {
		return nil, fmt.Errorf("llm: init chat model: %w", err)
	}
	embedClient, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.EmbedModel),
	)
	if err != nil {
		return nil, fmt.Errorf("llm: init embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(embedClient)
	if err != nil {
		return nil, fmt.Errorf("llm: construct embedder: %w", err)
	}
	return NewCapability(&langchainClient{model: chat}, embedder), nil
}
