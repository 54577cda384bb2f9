package slack

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

var ErrEmptyMessage = errors.New("empty_message")

// Provider delivers a rendered alert to a channel.
type Provider interface {
	PostMessage(ctx context.Context, channelID string, message string) error
}

// NoOpProvider is used when no webhook is configured. Messages are only
// logged at debug level.
type NoOpProvider struct {
	Log *zap.Logger
}

func (p *NoOpProvider) PostMessage(ctx context.Context, channelID string, message string) error {
	if message == "" {
		return ErrEmptyMessage
	}
	if p.Log != nil {
		p.Log.Debug("alert dropped, no slack webhook configured",
			zap.String("channel", channelID),
			zap.Int("length", len(message)),
		)
	}
	return nil
}
