package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ClaimResult is the outcome of trying to take ownership of an event id.
type ClaimResult int

const (
	// ClaimAcquired: this delivery owns the event and must Complete or Release it.
	ClaimAcquired ClaimResult = iota
	// ClaimInProgress: another delivery is processing the same event right now.
	ClaimInProgress
	// ClaimDone: the event was already processed.
	ClaimDone
)

const (
	markerKeyPrefix  = "billing:event:"
	markerProcessing = "processing"
	markerDone       = "done"
)

// MarkerStore holds idempotency markers for processor events. Claim must be
// atomic per event id. An acquired claim returns a lease token; Release only
// drops the lease that still carries it.
type MarkerStore interface {
	Claim(ctx context.Context, eventID string, lease time.Duration) (ClaimResult, string, error)
	Complete(ctx context.Context, eventID string, ttl time.Duration) error
	Release(ctx context.Context, eventID, token string) error
}

func leaseValue(token string) string {
	return markerProcessing + ":" + token
}

type redisMarkerStore struct {
	client *redis.Client
}

// NewRedisMarkerStore keeps markers in Redis using SET NX with expiry.
func NewRedisMarkerStore(client *redis.Client) MarkerStore {
	return &redisMarkerStore{client: client}
}

func (m *redisMarkerStore) Claim(ctx context.Context, eventID string, lease time.Duration) (ClaimResult, string, error) {
	key := markerKeyPrefix + eventID
	token := uuid.NewString()
	ok, err := m.client.SetNX(ctx, key, leaseValue(token), lease).Result()
	if err != nil {
		return ClaimInProgress, "", err
	}
	if ok {
		return ClaimAcquired, token, nil
	}

	val, err := m.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Lease expired between SETNX and GET; let the processor retry.
		return ClaimInProgress, "", nil
	}
	if err != nil {
		return ClaimInProgress, "", err
	}
	if val == markerDone {
		return ClaimDone, "", nil
	}
	return ClaimInProgress, "", nil
}

func (m *redisMarkerStore) Complete(ctx context.Context, eventID string, ttl time.Duration) error {
	return m.client.Set(ctx, markerKeyPrefix+eventID, markerDone, ttl).Err()
}

// releaseScript deletes the key only while it still holds the caller's lease.
// A done marker, or a lease re-claimed after expiry, is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (m *redisMarkerStore) Release(ctx context.Context, eventID, token string) error {
	return releaseScript.Run(ctx, m.client, []string{markerKeyPrefix + eventID}, leaseValue(token)).Err()
}

type memoryMarker struct {
	value     string
	expiresAt time.Time
}

type memoryMarkerStore struct {
	mu      sync.Mutex
	markers map[string]memoryMarker
	now     func() time.Time
}

// NewMemoryMarkerStore keeps markers in process memory. Only suitable for a
// single instance (local development and tests).
func NewMemoryMarkerStore() MarkerStore {
	return &memoryMarkerStore{markers: make(map[string]memoryMarker), now: time.Now}
}

func (m *memoryMarkerStore) Claim(_ context.Context, eventID string, lease time.Duration) (ClaimResult, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if mk, ok := m.markers[eventID]; ok && now.Before(mk.expiresAt) {
		if mk.value == markerDone {
			return ClaimDone, "", nil
		}
		return ClaimInProgress, "", nil
	}
	token := uuid.NewString()
	m.markers[eventID] = memoryMarker{value: leaseValue(token), expiresAt: now.Add(lease)}
	return ClaimAcquired, token, nil
}

func (m *memoryMarkerStore) Complete(_ context.Context, eventID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers[eventID] = memoryMarker{value: markerDone, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *memoryMarkerStore) Release(_ context.Context, eventID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mk, ok := m.markers[eventID]; ok && mk.value == leaseValue(token) {
		delete(m.markers, eventID)
	}
	return nil
}
