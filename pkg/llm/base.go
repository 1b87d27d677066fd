// Package llm provides the optional reflection synthesizer interface and its
// provider implementations.
//
// A Provider turns a cluster of recalled memories into a written reflection.
// When none is configured, reflection falls back to a deterministic formatter
// in the core package.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/GlitchInZen/graph-mem/pkg/storage"
)

// Provider defines the interface for LLM providers.
type Provider interface {
	// Generate generates text from a prompt.
	Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)

	// GenerateWithMessages generates text from a conversation history.
	GenerateWithMessages(ctx context.Context, messages []Message, opts ...GenerateOption) (string, error)

	// Close releases the provider's resources.
	Close() error
}

// Message represents a single message in a conversation.
type Message struct {
	// Role is the message role: "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the message content text.
	Content string `json:"content"`
}

// GenerateOptions contains options for text generation.
type GenerateOptions struct {
	// Temperature controls randomness (0.0-2.0).
	Temperature float64

	// MaxTokens limits the response length.
	MaxTokens int

	// TopP controls nucleus sampling (0.0-1.0).
	TopP float64
}

// GenerateOption configures generation.
type GenerateOption func(*GenerateOptions)

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float64) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.Temperature = temp
	}
}

// WithMaxTokens sets the response token limit.
func WithMaxTokens(max int) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.MaxTokens = max
	}
}

// WithTopP sets the nucleus sampling parameter.
func WithTopP(topP float64) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.TopP = topP
	}
}

// ApplyGenerateOptions resolves options against the defaults
// (Temperature=0.7, MaxTokens=1000, TopP=1.0).
func ApplyGenerateOptions(opts []GenerateOption) *GenerateOptions {
	options := &GenerateOptions{
		Temperature: 0.7,
		MaxTokens:   1000,
		TopP:        1.0,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// Reflect asks the provider to synthesize an insight from the given memories.
//
// The first line of the returned text is expected to work as a standalone
// summary.
func Reflect(ctx context.Context, p Provider, memories []*storage.Memory, topic string) (string, error) {
	messages := []Message{
		{
			Role: "system",
			Content: "You synthesize insights from an agent's stored memories. " +
				"Respond with a one-line summary on the first line, followed by " +
				"a short reflection that connects the memories and surfaces " +
				"patterns or contradictions.",
		},
		{Role: "user", Content: buildReflectionPrompt(memories, topic)},
	}
	return p.GenerateWithMessages(ctx, messages, WithTemperature(0.4))
}

func buildReflectionPrompt(memories []*storage.Memory, topic string) string {
	var b strings.Builder
	if topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n\n", topic)
	}
	fmt.Fprintf(&b, "Memories (%d):\n", len(memories))
	for _, m := range memories {
		fmt.Fprintf(&b, "- [%s] %s\n", m.Type, m.Content)
	}
	return b.String()
}
