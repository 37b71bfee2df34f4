package broadcast

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/orgkit/orgkit/pkg/observability"
)

// Subscriber listens for permission updates on behalf of connected clients
type Subscriber struct {
	client *redis.Client
	log    *observability.Logger
}

// NewSubscriber wraps an existing Redis client for subscriptions
func NewSubscriber(client *redis.Client, log *observability.Logger) *Subscriber {
	if log == nil {
		log = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Subscriber{client: client, log: log}
}

// Subscribe streams permission updates for one user until the context is
// cancelled. Malformed payloads are logged and skipped.
func (s *Subscriber) Subscribe(ctx context.Context, userID int64) (<-chan *PermissionUpdate, error) {
	sub := s.client.Subscribe(ctx, UserChannel(userID))

	// Force the subscription to be established before returning, so a
	// publish immediately after Subscribe is not lost.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	updates := make(chan *PermissionUpdate)

	go func() {
		defer close(updates)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				update, err := ParseUpdate([]byte(msg.Payload))
				if err != nil {
					s.log.WithError(err).WithField("user_id", userID).Warn("dropping malformed permission update")
					continue
				}
				select {
				case updates <- update:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return updates, nil
}
