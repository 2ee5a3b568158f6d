package repository

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

const markerKeyPattern = "billing:event:*"

// markerRepository implements the MarkerRepository interface
type markerRepository struct {
	// Note: This repository doesn't use GORM DB since it operates on Redis
	rdb *redis.Client
}

// NewMarkerRepository creates a new marker repository instance
func NewMarkerRepository(rdb *redis.Client) MarkerRepository {
	return &markerRepository{rdb: rdb}
}

// List returns up to limit markers using SCAN, sorted by event id.
func (r *markerRepository) List(ctx context.Context, limit int) ([]MarkerInfo, error) {
	if r.rdb == nil {
		return nil, errors.New("redis client not configured")
	}

	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := r.rdb.Scan(ctx, cursor, markerKeyPattern, 500).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 || (limit > 0 && len(keys) >= limit) {
			break
		}
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	out := make([]MarkerInfo, 0, len(keys))
	for _, key := range keys {
		val, err := r.rdb.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		ttl, err := r.rdb.TTL(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		out = append(out, MarkerInfo{
			EventID: strings.TrimPrefix(key, strings.TrimSuffix(markerKeyPattern, "*")),
			State:   strings.SplitN(val, ":", 2)[0],
			TTL:     ttl,
		})
	}
	return out, nil
}

// Delete removes the marker of an event so the next delivery is processed again.
func (r *markerRepository) Delete(ctx context.Context, eventID string) (int64, error) {
	if r.rdb == nil {
		return 0, errors.New("redis client not configured")
	}
	return r.rdb.Del(ctx, strings.TrimSuffix(markerKeyPattern, "*")+eventID).Result()
}
