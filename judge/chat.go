package judge

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/nomis52/docscore/clients/openai"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o-mini"

// DefaultTemperature is the sampling temperature used when none is configured.
const DefaultTemperature = 0.3

// ChatClient is the part of the OpenAI client used by ChatScorer.
type ChatClient interface {
	Chat(ctx context.Context, req openai.ChatRequest) (string, error)
}

var _ ChatClient = (*openai.Client)(nil)

// ChatScorer implements Scorer with chat completion prompts.
type ChatScorer struct {
	client      ChatClient
	model       string
	temperature float64
	logger      *slog.Logger
}

// ChatOption configures a ChatScorer.
type ChatOption func(*ChatScorer)

// WithModel sets the chat model.
func WithModel(model string) ChatOption {
	return func(s *ChatScorer) {
		if model != "" {
			s.model = model
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ChatOption {
	return func(s *ChatScorer) {
		s.temperature = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ChatOption {
	return func(s *ChatScorer) {
		s.logger = logger.With("component", "chat_scorer")
	}
}

// NewChatScorer returns a ChatScorer using client.
func NewChatScorer(client ChatClient, opts ...ChatOption) *ChatScorer {
	s := &ChatScorer{
		client:      client,
		model:       DefaultModel,
		temperature: DefaultTemperature,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score implements Scorer.
func (s *ChatScorer) Score(ctx context.Context, subject, reference, label string) (Judgment, error) {
	human, err := render(scoreHumanTemplate, map[string]string{
		"Focus":     label,
		"Subject":   subject,
		"Reference": reference,
	})
	if err != nil {
		return Judgment{}, err
	}
	return s.ask(ctx, "score", scoreSystemPrompt, human)
}

// Completeness implements Scorer.
func (s *ChatScorer) Completeness(ctx context.Context, summary, reference string) (Judgment, error) {
	human, err := render(completenessHumanTemplate, map[string]string{
		"Summary":   summary,
		"Reference": reference,
	})
	if err != nil {
		return Judgment{}, err
	}
	return s.ask(ctx, "completeness", completenessSystemPrompt, human)
}

func (s *ChatScorer) ask(ctx context.Context, kind, system, human string) (Judgment, error) {
	temp := s.temperature
	text, err := s.client.Chat(ctx, openai.ChatRequest{
		Model:       s.model,
		Temperature: &temp,
		Messages: []openai.Message{
			{Role: openai.RoleSystem, Content: system},
			{Role: openai.RoleUser, Content: human},
		},
	})
	if err != nil {
		return Judgment{}, err
	}

	j, err := ParseResponse(text)
	if err != nil {
		s.logger.Warn("unparsable judgment", "kind", kind, "response", truncate(text, 200))
		return Judgment{}, err
	}
	s.logger.Debug("judgment", "kind", kind, "score", j.Score)
	return j, nil
}

func render(t *template.Template, data map[string]string) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
