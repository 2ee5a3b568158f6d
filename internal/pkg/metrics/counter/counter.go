package counter

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	webhookOutcomesKey = "billing:counters:webhook_outcomes"
	csrfRejectionsKey  = "security:counters:csrf_rejections"
)

// Counters keeps operational counters in Redis hashes so every instance
// contributes to the same totals. A nil client turns every call into a no-op.
type Counters struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Counters {
	return &Counters{rdb: rdb}
}

// RecordOutcome counts one webhook delivery outcome. It satisfies
// billing.OutcomeRecorder.
func (c *Counters) RecordOutcome(ctx context.Context, outcome string) {
	c.incr(ctx, webhookOutcomesKey, outcome)
}

// RecordCSRFRejection counts one request dropped by the token check, keyed by
// the first path segment so the hash stays small.
func (c *Counters) RecordCSRFRejection(ctx context.Context, path string) {
	c.incr(ctx, csrfRejectionsKey, pathBucket(path))
}

// Snapshot is the current value of every counter.
type Snapshot struct {
	WebhookOutcomes map[string]int64 `json:"webhook_outcomes"`
	CSRFRejections  map[string]int64 `json:"csrf_rejections"`
}

func (c *Counters) Snapshot(ctx context.Context) (*Snapshot, error) {
	outcomes, err := c.read(ctx, webhookOutcomesKey)
	if err != nil {
		return nil, err
	}
	rejections, err := c.read(ctx, csrfRejectionsKey)
	if err != nil {
		return nil, err
	}
	return &Snapshot{WebhookOutcomes: outcomes, CSRFRejections: rejections}, nil
}

func (c *Counters) incr(ctx context.Context, key, field string) {
	if c == nil || c.rdb == nil || field == "" {
		return
	}
	// Counters are best effort; a Redis hiccup must not fail the request.
	_ = c.rdb.HIncrBy(ctx, key, field, 1).Err()
}

func (c *Counters) read(ctx context.Context, key string) (map[string]int64, error) {
	out := make(map[string]int64)
	if c == nil || c.rdb == nil {
		return out, nil
	}
	data, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	for field, raw := range data {
		n, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			continue
		}
		out[field] = n
	}
	return out, nil
}

func pathBucket(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return "/"
	}
	first, _, _ := strings.Cut(path, "/")
	if first == "api" {
		// keep the version so /api/v1 and /api/v2 stay apart
		parts := strings.SplitN(path, "/", 3)
		if len(parts) >= 2 {
			return "/" + parts[0] + "/" + parts[1]
		}
	}
	return "/" + first
}
