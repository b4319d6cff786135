package locks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ahmostafa147/RestaurAI-sub000/pkg/config"
)

const keyNamespace = "restaurai:tenant_lock"

// ReleaseFunc releases a held tenant lock. Safe to call once.
type ReleaseFunc func()

// Locker serializes mutating operations per tenant key. The core assumes at
// most one in-flight mutation per tenant; every write path must hold the
// tenant's lock for the full read-modify-write.
type Locker interface {
	Acquire(ctx context.Context, tenantKey string) (ReleaseFunc, error)
}

type tenantSlot struct {
	ch   chan struct{}
	refs int
}

// Memory is the single-process Locker: one semaphore per tenant key.
type Memory struct {
	mu    sync.Mutex
	slots map[string]*tenantSlot
}

func NewMemory() *Memory {
	return &Memory{slots: make(map[string]*tenantSlot)}
}

func (m *Memory) Acquire(ctx context.Context, tenantKey string) (ReleaseFunc, error) {
	m.mu.Lock()
	slot, ok := m.slots[tenantKey]
	if !ok {
		slot = &tenantSlot{ch: make(chan struct{}, 1)}
		m.slots[tenantKey] = slot
	}
	slot.refs++
	m.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		m.put(tenantKey, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-slot.ch
			m.put(tenantKey, slot)
		})
	}
	return release, nil
}

func (m *Memory) put(tenantKey string, slot *tenantSlot) {
	m.mu.Lock()
	slot.refs--
	if slot.refs == 0 {
		delete(m.slots, tenantKey)
	}
	m.mu.Unlock()
}

// releaseScript deletes the lock key only when the holder token matches, so
// an expired lease can never release a lock re-acquired by someone else.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// cmdable is the slice of the redis command surface the locker uses; tests
// substitute an in-memory implementation.
type cmdable interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

// Redis is the cross-process Locker: a SET NX lease with TTL, polled until
// acquired or the context expires.
type Redis struct {
	client        cmdable
	leaseTTL      time.Duration
	retryInterval time.Duration
}

func NewRedis(client *redis.Client, cfg config.LocksConfig) *Redis {
	ttl := cfg.LeaseTTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	retry := cfg.RetryInterval
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	return &Redis{client: client, leaseTTL: ttl, retryInterval: retry}
}

func (r *Redis) Acquire(ctx context.Context, tenantKey string) (ReleaseFunc, error) {
	key := keyNamespace + ":" + tenantKey
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.leaseTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-time.After(r.retryInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_, _ = releaseScript.Run(relCtx, r.client, []string{key}, token).Result()
		})
	}
	return release, nil
}
