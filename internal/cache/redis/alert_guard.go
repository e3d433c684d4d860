package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/tvrelay/internal/domain"
	"github.com/redis/go-redis/v9"
)

// AlertGuard implements domain.AlertGuard using SET NX with a TTL, so the
// check-then-mark step is a single atomic Redis command and the processed
// set survives relay restarts. Keys expire on their own; no cleanup loop is
// needed.
type AlertGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewAlertGuard creates an AlertGuard backed by the given Client. Alerts are
// considered duplicates when re-delivered within ttl.
func NewAlertGuard(c *Client, ttl time.Duration) *AlertGuard {
	return &AlertGuard{rdb: c.Underlying(), ttl: ttl}
}

func alertKey(alertID string) string {
	return "alert:" + alertID
}

// Check returns true when alertID was already marked within the TTL window;
// otherwise it marks the ID and returns false. The SET NX round trip is the
// atomic membership-and-insert step.
func (g *AlertGuard) Check(ctx context.Context, alertID string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, alertKey(alertID), 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: alert guard %s: %w", alertID, err)
	}
	return !ok, nil
}

// Compile-time interface check.
var _ domain.AlertGuard = (*AlertGuard)(nil)
