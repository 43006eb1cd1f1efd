package lock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"marketlink/internal/pkg/config"
	"marketlink/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLeaseBusy = errors.New("lease held by another holder")
	ErrNotHolder = errors.New("lease not held by this token")
)

const stockKeyPrefix = "stock_lock:"

// Release must only delete the key when the caller still holds it; a blind
// DEL could revoke a lease that expired and was reacquired by someone else.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

func StockKey(variantID uuid.UUID) string {
	return stockKeyPrefix + variantID.String()
}

// Client is the slice of the redis API the coordinator needs: SET NX for
// acquisition plus script evaluation for the guarded release.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

// Coordinator grants short-lived named leases backed by redis. The lease is a
// contention optimization in front of the storage-level conditional update,
// never the correctness guarantee.
type Coordinator struct {
	client Client
	cfg    config.LockConfig
}

func NewCoordinator(client Client, cfg config.LockConfig) *Coordinator {
	return &Coordinator{client: client, cfg: cfg}
}

// Acquire retries a SET NX within the configured wait budget and fails fast
// with ErrLeaseBusy when it runs out. Bounded latency beats fairness here.
func (c *Coordinator) Acquire(ctx context.Context, resourceKey string) (string, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(c.cfg.AcquireWait)

	for {
		ok, err := c.client.SetNX(ctx, resourceKey, token, c.cfg.TTL).Result()
		if err != nil {
			return "", errs.Wrap(err, "failed to acquire lease")
		}
		if ok {
			return token, nil
		}

		if time.Now().After(deadline) {
			return "", ErrLeaseBusy
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.cfg.RetryBackoff):
		}
	}
}

// Release is a logged no-op when the token no longer matches: the lease may
// have expired and been reacquired, and that holder must not lose it.
func (c *Coordinator) Release(ctx context.Context, resourceKey, token string) error {
	deleted, err := releaseScript.Run(ctx, c.client, []string{resourceKey}, token).Int()
	if err != nil {
		return errs.Wrap(err, "failed to release lease")
	}
	if deleted == 0 {
		slog.Warn("lease already expired or held by another token", "resource_key", resourceKey)
		return ErrNotHolder
	}
	return nil
}
