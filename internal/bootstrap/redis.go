package bootstrap

import (
	"context"

	"github.com/redis/go-redis/v9"

	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	infraredis "github.com/jonesrussell/site-portfolio/infrastructure/redis"
	"github.com/jonesrussell/site-portfolio/internal/config"
	"github.com/jonesrussell/site-portfolio/internal/events"
)

// SetupEventPublisher connects to Redis when events are enabled. Both return
// values are nil when Redis is disabled or unavailable; a nil publisher
// drops events silently.
func SetupEventPublisher(ctx context.Context, cfg *config.Config, log infralogger.Logger) (*redis.Client, *events.Publisher) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}

	client, err := infraredis.NewClient(ctx, cfg.Redis.Config)
	if err != nil {
		log.Warn("Redis not available, events disabled",
			infralogger.Error(err),
		)
		return nil, nil
	}

	publisher := events.NewPublisher(client, cfg.Redis.Stream, log)
	log.Info("Event publisher initialized",
		infralogger.String("redis_address", cfg.Redis.Address),
		infralogger.String("stream", cfg.Redis.Stream),
	)
	return client, publisher
}
