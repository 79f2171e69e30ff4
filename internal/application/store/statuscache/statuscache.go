// Package statuscache caches application snapshots in Redis for the read
// path. The cache is strictly best-effort: every miss, marshal failure, or
// Redis error degrades to a store read, never to a request failure.
package statuscache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"licensure/internal/application/models"
	"licensure/internal/policy"
	id "licensure/pkg/domain"
)

// Cache stores JSON-encoded application snapshots keyed by application ID.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func New(client *redis.Client, logger *slog.Logger) *Cache {
	return &Cache{client: client, ttl: policy.StatusCacheTTL, logger: logger}
}

func key(appID id.ApplicationID) string {
	return "application:snapshot:" + appID.String()
}

func (c *Cache) Get(ctx context.Context, appID id.ApplicationID) (*models.Application, bool) {
	payload, err := c.client.Get(ctx, key(appID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WarnContext(ctx, "status cache read failed",
				"application_id", appID.String(),
				"error", err,
			)
		}
		return nil, false
	}
	var app models.Application
	if err := json.Unmarshal(payload, &app); err != nil {
		c.logger.WarnContext(ctx, "status cache payload corrupt, dropping",
			"application_id", appID.String(),
			"error", err,
		)
		c.Invalidate(ctx, appID)
		return nil, false
	}
	return &app, true
}

func (c *Cache) Set(ctx context.Context, app *models.Application) {
	payload, err := json.Marshal(app)
	if err != nil {
		c.logger.WarnContext(ctx, "status cache marshal failed",
			"application_id", app.ID.String(),
			"error", err,
		)
		return
	}
	if err := c.client.Set(ctx, key(app.ID), payload, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "status cache write failed",
			"application_id", app.ID.String(),
			"error", err,
		)
	}
}

// Invalidate drops the snapshot after a transition commits so the next read
// reflects the new status.
func (c *Cache) Invalidate(ctx context.Context, appID id.ApplicationID) {
	if err := c.client.Del(ctx, key(appID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "status cache invalidation failed",
			"application_id", appID.String(),
			"error", err,
		)
	}
}
