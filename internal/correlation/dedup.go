package correlation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/forcetrace/forcetrace/internal/config"
	"github.com/forcetrace/forcetrace/internal/database"
	"github.com/forcetrace/forcetrace/internal/logger"
)

// claimTTL bounds how long a crashed handler can hold a canonical claim
// before the store's uniqueness constraint becomes the only arbiter.
const claimTTL = 30 * time.Second

// DedupGate decides whether a callback is a repeat ping for an injection.
// The first accepted callback per injection is canonical; everything after
// is marked duplicate and excluded from metrics and finding generation.
//
// When Redis is configured it serves as a fast cross-instance claim via
// SETNX; the store's partial unique index remains the source of truth
// either way, so a Redis outage degrades to the transactional path rather
// than double-counting.
type DedupGate struct {
	store  *database.Store
	client *redis.Client
	logger *logger.Logger
}

func NewDedupGate(cfg config.RedisConfig, store *database.Store, log *logger.Logger) *DedupGate {
	gate := &DedupGate{
		store:  store,
		logger: log.WithComponent("dedup"),
	}

	if cfg.Addr != "" {
		gate.client = redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			MaxRetries:   cfg.MaxRetries,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	return gate
}

// IsDuplicate reports whether a non-duplicate callback already exists for
// the injection. It does not write anything: the caller records the
// callback and the store's constraint settles any race this check misses.
func (g *DedupGate) IsDuplicate(ctx context.Context, injectionID string) (bool, error) {
	if g.client != nil {
		key := fmt.Sprintf("forcetrace:callback:claim:%s", injectionID)
		claimed, err := g.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), claimTTL).Result()
		if err == nil {
			if claimed {
				return false, nil
			}
			return true, nil
		}
		g.logger.WithContext(ctx).Warnw("redis dedup claim failed, falling back to store",
			"injection_id", injectionID,
			"error", err,
		)
	}

	count, err := g.store.CountCallbacks(ctx, injectionID, false)
	if err != nil {
		return false, fmt.Errorf("failed to check prior callbacks: %w", err)
	}
	return count > 0, nil
}

// Release drops a Redis claim after the handler decided not to persist a
// canonical callback (a filtered false positive), so a later genuine ping
// is not misread as a repeat.
func (g *DedupGate) Release(ctx context.Context, injectionID string) {
	if g.client == nil {
		return
	}
	key := fmt.Sprintf("forcetrace:callback:claim:%s", injectionID)
	if err := g.client.Del(ctx, key).Err(); err != nil {
		g.logger.WithContext(ctx).Warnw("failed to release dedup claim",
			"injection_id", injectionID,
			"error", err,
		)
	}
}

func (g *DedupGate) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
