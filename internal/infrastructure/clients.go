package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"

	"luma_assistant/internal/interfaces"
)

// OpenRouterClient talks to any OpenAI-compatible chat completion endpoint.
type OpenRouterClient struct {
	client openai.Client
	model  string
}

func NewOpenRouterClient(apiKey, baseURL, model string, opts ...option.RequestOption) (*OpenRouterClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openrouter: api key is required")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)
	return &OpenRouterClient{
		client: openai.NewClient(reqOpts...),
		model:  model,
	}, nil
}

func (c *OpenRouterClient) Complete(ctx context.Context, req interfaces.CompletionRequest) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyBackendError("openrouter", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openrouter: no choices: %w", interfaces.ErrBackendUnavailable)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openrouter: empty content: %w", interfaces.ErrBackendUnavailable)
	}
	return text, nil
}

func classifyBackendError(backend string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", backend, interfaces.ErrBackendTimeout, err)
	}
	return fmt.Errorf("%s: %w: %v", backend, interfaces.ErrBackendUnavailable, err)
}

// FallbackAIClient tries the primary backend, then the fallback.
type FallbackAIClient struct {
	primary  interfaces.AIClient
	fallback interfaces.AIClient
	logger   logrus.FieldLogger
}

func NewFallbackAIClient(primary, fallback interfaces.AIClient, logger logrus.FieldLogger) *FallbackAIClient {
	return &FallbackAIClient{primary: primary, fallback: fallback, logger: logger}
}

func (f *FallbackAIClient) Complete(ctx context.Context, req interfaces.CompletionRequest) (string, error) {
	text, err := f.primary.Complete(ctx, req)
	if err == nil {
		return text, nil
	}
	// no time left for a second attempt
	if ctx.Err() != nil {
		return "", err
	}
	f.logger.WithError(err).Warn("primary generative backend failed, trying fallback")
	return f.fallback.Complete(ctx, req)
}

// Close releases whichever backend holds a connection.
func (f *FallbackAIClient) Close() error {
	var errs []error
	for _, b := range []interfaces.AIClient{f.primary, f.fallback} {
		if c, ok := b.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// NewAIClient wires whichever backends are configured. It returns nil when
// none is, and the selector then goes straight to templates.
func NewAIClient(ctx context.Context, openRouterKey, openRouterURL, openRouterModel, geminiKey, geminiModel string, logger logrus.FieldLogger) (interfaces.AIClient, error) {
	var backends []interfaces.AIClient
	if openRouterKey != "" {
		c, err := NewOpenRouterClient(openRouterKey, openRouterURL, openRouterModel)
		if err != nil {
			return nil, err
		}
		backends = append(backends, c)
	}
	if geminiKey != "" {
		c, err := NewGeminiClient(ctx, geminiKey, geminiModel)
		if err != nil {
			return nil, err
		}
		backends = append(backends, c)
	}
	switch len(backends) {
	case 0:
		return nil, nil
	case 1:
		return backends[0], nil
	default:
		return NewFallbackAIClient(backends[0], backends[1], logger), nil
	}
}
