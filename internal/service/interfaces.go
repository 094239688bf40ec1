package service

import (
	"context"

	"github.com/reewild/foodprint/internal/carbon"
	"github.com/reewild/foodprint/internal/clients"
)

// ChatCompleter abstracts the provider client for testing.
type ChatCompleter interface {
	Chat(ctx context.Context, req clients.ChatRequest) ([]byte, error)
}

// CompletionPublisher abstracts the estimate.completed publisher for testing.
type CompletionPublisher interface {
	PublishEstimateCompleted(ctx context.Context, source string, est carbon.Estimate) error
}
