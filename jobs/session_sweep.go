package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-crm/meridian/internal/gateway"
)

type sweptSession struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSessionSweepHandler returns a handler that removes remote auth
// sessions whose expiry passed but whose key TTL never fired (sessions
// written by older backends carry no TTL).
func NewSessionSweepHandler(client *redis.Client, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var removed int
		iter := client.Scan(ctx, 0, gateway.SessionKeyPrefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			key := iter.Val()
			payload, err := client.Get(ctx, key).Bytes()
			if err != nil {
				continue
			}
			var sess sweptSession
			if err := json.Unmarshal(payload, &sess); err != nil {
				continue
			}
			if sess.ExpiresAt.IsZero() || time.Now().Before(sess.ExpiresAt) {
				continue
			}
			if err := client.Del(ctx, key).Err(); err == nil {
				removed++
			}
		}
		if err := iter.Err(); err != nil {
			return err
		}
		if logger != nil {
			logger.Info("session sweep finished", slog.Int("removed", removed))
		}
		return nil
	}
}
