package interfaces

import (
	"context"
	"errors"

	"luma_assistant/internal/entities"
)

var (
	ErrBackendUnavailable = errors.New("generative backend unavailable")
	ErrBackendTimeout     = errors.New("generative backend timed out")
)

// CompletionRequest is a single-turn request to a generative text backend.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

type AIClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type Messenger interface {
	SendMessage(ctx context.Context, to, content string) error
}

// Notifier delivers operator-facing events (handoffs, briefings, alerts).
type Notifier interface {
	Notify(ctx context.Context, evt entities.NotificationEvent) error
}
