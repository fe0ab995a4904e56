package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	anthropicMaxTokens    = 4096
)

// Anthropic talks to the reasoning model. It is both a TokenSource for
// chat answers and a one-shot completer for the intent classifier.
type Anthropic struct {
	client    anthropic.Client
	model     string
	hasAPIKey bool
}

// NewAnthropic builds a client for apiKey. Extra options are appended after
// the defaults, which disable the SDK's automatic retries.
func NewAnthropic(apiKey, model string, opts ...option.RequestOption) *Anthropic {
	if model == "" {
		model = DefaultAnthropicModel
	}
	all := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &Anthropic{
		client:    anthropic.NewClient(all...),
		model:     model,
		hasAPIKey: apiKey != "",
	}
}

func (a *Anthropic) params(message string, maxTokens int64) anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(message)),
		},
	}
}

func (a *Anthropic) Open(ctx context.Context, message string) (TokenStream, error) {
	if !a.hasAPIKey {
		return nil, errors.New("ANTHROPIC_API_KEY is not set")
	}
	return &anthropicStream{s: a.client.Messages.NewStreaming(ctx, a.params(message, anthropicMaxTokens))}, nil
}

// Complete sends prompt as a single user turn and returns the text blocks
// of the reply joined together.
func (a *Anthropic) Complete(ctx context.Context, prompt string, maxTokens int64) (string, error) {
	if !a.hasAPIKey {
		return "", errors.New("ANTHROPIC_API_KEY is not set")
	}
	msg, err := a.client.Messages.New(ctx, a.params(prompt, maxTokens))
	if err != nil {
		return "", fmt.Errorf("anthropic messages request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("anthropic reply has no text content")
	}
	return text.String(), nil
}

type messageEvents interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
	Close() error
}

type anthropicStream struct {
	s messageEvents
}

// Recv skips everything but text deltas: message_start, content block
// boundaries, message_delta and pings carry no answer text.
func (s *anthropicStream) Recv() (string, error) {
	for s.s.Next() {
		ev := s.s.Current()
		if ev.Type != "content_block_delta" || ev.Delta.Type != "text_delta" {
			continue
		}
		if ev.Delta.Text != "" {
			return ev.Delta.Text, nil
		}
	}
	if err := s.s.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *anthropicStream) Close() error {
	return s.s.Close()
}
