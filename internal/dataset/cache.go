package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"college-predictor/internal/common/logger"
	"college-predictor/internal/common/metrics"
	"college-predictor/internal/cutoff"
)

// CachedDataset is a read-through Redis cache in front of another Dataset.
// Redis failures are logged and fall through to the wrapped store.
type CachedDataset struct {
	next      cutoff.Dataset
	client    redis.Cmdable
	ttl       time.Duration
	namespace string
	logger    logger.Logger
}

func NewCachedDataset(next cutoff.Dataset, client redis.Cmdable, namespace string, ttl time.Duration, log logger.Logger) *CachedDataset {
	return &CachedDataset{
		next:      next,
		client:    client,
		ttl:       ttl,
		namespace: namespace,
		logger:    log,
	}
}

type cachedRow struct {
	Institution string `json:"i"`
	Program     string `json:"p"`
	Cutoff      string `json:"c"`
}

// CacheKey is the Redis key of one round scan.
func CacheKey(namespace string, round cutoff.Round, category cutoff.Category) string {
	return fmt.Sprintf("cutoffs:%s:%d:%s", namespace, int(round), category)
}

func (c *CachedDataset) ScanRound(ctx context.Context, round cutoff.Round, category cutoff.Category) ([]cutoff.CutoffRecord, error) {
	key := CacheKey(c.namespace, round, category)

	if records, ok := c.lookup(ctx, key); ok {
		return records, nil
	}

	records, err := c.next.ScanRound(ctx, round, category)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, records)
	return records, nil
}

func (c *CachedDataset) lookup(ctx context.Context, key string) ([]cutoff.CutoffRecord, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("Round cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false
	}

	var rows []cachedRow
	if err := json.Unmarshal(data, &rows); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("Discarding corrupt round cache entry", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	records := make([]cutoff.CutoffRecord, len(rows))
	for i, r := range rows {
		records[i] = cutoff.NewRecord(r.Institution, r.Program, r.Cutoff)
	}
	return records, true
}

func (c *CachedDataset) store(ctx context.Context, key string, records []cutoff.CutoffRecord) {
	payload, err := encodeRows(records)
	if err != nil {
		c.logger.Warn("Round cache encode failed", map[string]interface{}{"key": key, "error": err.Error()})
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("Round cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

func encodeRows(records []cutoff.CutoffRecord) ([]byte, error) {
	rows := make([]cachedRow, len(records))
	for i, r := range records {
		rows[i] = cachedRow{Institution: r.Institution, Program: r.Program, Cutoff: r.Cutoff.Raw()}
	}
	return json.Marshal(rows)
}
