package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"github.com/orgkit/orgkit/pkg/observability"
)

// Config configures the Redis connection for the publisher
type Config struct {
	// RedisURL is the connection URL, e.g. redis://localhost:6379/0
	RedisURL string

	// Password overrides the URL password when set
	Password string

	// DB overrides the URL database when non-negative
	DB int

	// PoolSize limits the connection pool; zero keeps the client default
	PoolSize int

	// MaxConcurrency caps how many per-user publishes run at once
	MaxConcurrency int
}

// DefaultConfig returns default publisher configuration
func DefaultConfig() Config {
	return Config{
		RedisURL:       "redis://localhost:6379/0",
		DB:             -1,
		MaxConcurrency: 8,
	}
}

// Publisher fans permission-update notifications out over Redis pub/sub,
// one channel per affected user.
type Publisher struct {
	client         *redis.Client
	log            *observability.Logger
	maxConcurrency int
	ownsClient     bool
}

// NewPublisher connects to Redis and returns a publisher
func NewPublisher(config Config, log *observability.Logger) (*Publisher, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if config.Password != "" {
		opts.Password = config.Password
	}
	if config.DB >= 0 {
		opts.DB = config.DB
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	p := NewPublisherWithClient(client, log)
	p.ownsClient = true
	if config.MaxConcurrency > 0 {
		p.maxConcurrency = config.MaxConcurrency
	}
	return p, nil
}

// NewPublisherWithClient wraps an existing Redis client. The caller keeps
// ownership of the client.
func NewPublisherWithClient(client *redis.Client, log *observability.Logger) *Publisher {
	if log == nil {
		log = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Publisher{
		client:         client,
		log:            log,
		maxConcurrency: DefaultConfig().MaxConcurrency,
	}
}

// PublishPermissionUpdate notifies every given user that their permission
// set changed. Publishes run concurrently; the first failure is returned
// after all of them finish.
func (p *Publisher) PublishPermissionUpdate(ctx context.Context, userIDs []int64, reason string) error {
	if len(userIDs) == 0 {
		return nil
	}

	now := time.Now().UTC()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrency)

	for _, userID := range userIDs {
		userID := userID
		g.Go(func() error {
			update := PermissionUpdate{
				UserID:    userID,
				Reason:    reason,
				Timestamp: now,
			}
			payload, err := update.ToJSON()
			if err != nil {
				return fmt.Errorf("failed to encode permission update: %w", err)
			}

			if err := p.client.Publish(ctx, UserChannel(userID), payload).Err(); err != nil {
				return fmt.Errorf("failed to publish permission update for user %d: %w", userID, err)
			}

			p.log.WithFields(map[string]interface{}{
				"user_id": userID,
				"reason":  reason,
			}).Debug("published permission update")
			return nil
		})
	}

	return g.Wait()
}

// Ping checks Redis connectivity
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close releases the Redis connection when the publisher owns it
func (p *Publisher) Close() error {
	if !p.ownsClient {
		return nil
	}
	return p.client.Close()
}
