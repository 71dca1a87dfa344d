package audio

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const DefaultTranscribeModel = "gpt-4o-mini-transcribe"

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type OpenAITranscriber struct {
	client *openai.Client
	model  string
}

func NewOpenAITranscriber(cfg OpenAIConfig) (*OpenAITranscriber, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, ErrOpenAIKeyMissing
	}
	oc := openai.DefaultConfig(key)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		oc.BaseURL = base
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultTranscribeModel
	}
	return &OpenAITranscriber{
		client: openai.NewClientWithConfig(oc),
		model:  model,
	}, nil
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	if t == nil || t.client == nil {
		return "", ErrOpenAIKeyMissing
	}
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: path,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// MissingKeyTranscriber stands in when no OpenAI key is configured so the
// audio stage can still report a per-video failure.
type MissingKeyTranscriber struct{}

func (MissingKeyTranscriber) Transcribe(context.Context, string) (string, error) {
	return "", ErrOpenAIKeyMissing
}
