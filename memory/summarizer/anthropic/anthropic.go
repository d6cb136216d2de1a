// Package anthropic provides a Claude-backed Summarizer for
// over-budget conversation segments.
package anthropic

import (
	"context"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// systemPrompt is the fixed summarizer instruction. The summarizer is
// a text-completion collaborator, not a conversational agent.
const systemPrompt = "You are a helpful assistant tasked with summarizing conversation content. " +
	"Provide a concise factual summary of the given text, focusing on key topics " +
	"and information discussed. Do not add opinions or conversational filler."

// Config configures the summarizer.
type Config struct {
	// Model is the Claude model to use.
	Model string

	// MaxTokens caps the summary length. Default: 1024.
	MaxTokens int64
}

// Summarizer condenses conversation prefixes with Claude. An API
// failure yields an absent result (empty string, nil error) rather
// than an error: absence is the expected signal that triggers the
// chunker's segment-drop policy, and is never retried here.
type Summarizer struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// New creates a Summarizer on the given client.
func New(client *anthropic.Client, cfg Config) *Summarizer {
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	return &Summarizer{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
	}
}

// Summarize returns a condensed summary of text, or an empty string
// when the model declines or the call fails.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: s.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		log.Printf("[SUMMARIZER] claude API error: %v", err)
		return "", nil
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(out.String()), nil
}
