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

// NewCacheRefreshHandler returns a handler that publishes a token_refreshed
// event for every live remote session. Session registries listening on the
// auth feed re-establish and reload their collections, so nightly data fixes
// applied directly in the backend reach long-running sessions.
func NewCacheRefreshHandler(client *redis.Client, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var notified int
		iter := client.Scan(ctx, 0, gateway.SessionKeyPrefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			key := iter.Val()
			payload, err := client.Get(ctx, key).Bytes()
			if err != nil {
				continue
			}
			var sess gateway.RemoteSession
			if err := json.Unmarshal(payload, &sess); err != nil {
				continue
			}
			if !sess.ExpiresAt.IsZero() && time.Now().After(sess.ExpiresAt) {
				continue
			}
			ev, err := json.Marshal(gateway.AuthEvent{
				Type:        gateway.AuthTokenRefreshed,
				Token:       sess.Token,
				PrincipalID: sess.PrincipalID,
			})
			if err != nil {
				continue
			}
			if err := client.Publish(ctx, gateway.AuthEventsChannel, ev).Err(); err != nil {
				return err
			}
			notified++
		}
		if err := iter.Err(); err != nil {
			return err
		}
		if logger != nil {
			logger.Info("cache refresh notified", slog.Int("sessions", notified))
		}
		return nil
	}
}
