// Package notify defines the push-notification sink. Delivery itself belongs
// to an external system; this service only hands off (tokens, title, body).
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Payload carries the visible notification content.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Dispatcher is a fire-and-forget sink for push notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, tokens []string, p Payload) error
}

// LogDispatcher records dispatches without delivering anything. Used when no
// queue is configured and in tests.
type LogDispatcher struct {
	log *zap.Logger
}

func NewLogDispatcher(log *zap.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

var _ Dispatcher = (*LogDispatcher)(nil)

func (d *LogDispatcher) Dispatch(_ context.Context, tokens []string, p Payload) error {
	d.log.Info("push notification dispatched",
		zap.Int("tokens", len(tokens)),
		zap.String("title", p.Title),
	)
	return nil
}
