package assistant

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/jrsteele09/study-assistant/internal/errors"
	"google.golang.org/genai"
)

// Completer turns a prompt into a single text completion.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// GenAICompleter calls the Gemini API.
type GenAICompleter struct {
	client *genai.Client
	model  string
}

var _ Completer = (*GenAICompleter)(nil)

func NewGenAICompleter(ctx context.Context, apiKey, model string) (*GenAICompleter, error) {
	if apiKey == "" {
		return nil, apperrors.Wrapf(apperrors.ErrNotConfigured, "GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAICompleter{
		client: client,
		model:  model,
	}, nil
}

func (c *GenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", apperrors.Wrapf(apperrors.ErrUpstream, "GenAI generate failed: %v", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", apperrors.Wrapf(apperrors.ErrUpstream, "GenAI returned no text")
	}
	return text, nil
}
