package host

import (
	"context"
	"fmt"

	"astromine-go/internal/models"
	"astromine-go/internal/store"
)

type SubmitPostParams struct {
	Community string
	Title     string
	Capacity  int64
}

// ContentHost publishes posts on the platform that hosts the game.
type ContentHost interface {
	SubmitPost(ctx context.Context, params SubmitPostParams) (*models.Post, error)
}

// New returns a WebhookHost when a webhook URL is configured and a
// LocalHost backed by kv otherwise.
func New(cfg models.HostConfig, kv store.KVStore) (ContentHost, error) {
	if cfg.WebhookURL == "" {
		return NewLocalHost(kv), nil
	}
	webhook, err := NewWebhookHost(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create webhook host: %w", err)
	}
	return webhook, nil
}
