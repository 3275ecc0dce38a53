package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/perf-engine/internal/metrics"
	"github.com/atmx/perf-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Lineage records are immutable, so writes populate the cache directly
// and entries only leave it by TTL.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (s *CachedStore) SaveRecord(ctx context.Context, rec *model.LineageRecord) error {
	if err := s.primary.SaveRecord(ctx, rec); err != nil {
		return err
	}
	s.cacheRecord(ctx, rec)
	return nil
}

func (s *CachedStore) GetRecord(ctx context.Context, calculationID string) (*model.LineageRecord, error) {
	data, err := s.rdb.Get(ctx, recordKey(calculationID)).Bytes()
	if err == nil {
		var rec model.LineageRecord
		if json.Unmarshal(data, &rec) == nil {
			metrics.CacheLookups.WithLabelValues("record", "hit").Inc()
			return &rec, nil
		}
	}
	metrics.CacheLookups.WithLabelValues("record", "miss").Inc()

	rec, err := s.primary.GetRecord(ctx, calculationID)
	if err != nil {
		return nil, err
	}
	s.cacheRecord(ctx, rec)
	return rec, nil
}

func (s *CachedStore) FindByHash(ctx context.Context, calculationHash string) (*model.LineageRecord, error) {
	// hash -> calculation id mapping, then the record itself.
	id, err := s.rdb.Get(ctx, hashKey(calculationHash)).Result()
	if err == nil {
		metrics.CacheLookups.WithLabelValues("hash", "hit").Inc()
		return s.GetRecord(ctx, id)
	}
	metrics.CacheLookups.WithLabelValues("hash", "miss").Inc()

	rec, err := s.primary.FindByHash(ctx, calculationHash)
	if err != nil {
		return nil, err
	}
	s.cacheRecord(ctx, rec)
	return rec, nil
}

// ListRecords is not cached.
func (s *CachedStore) ListRecords(ctx context.Context, portfolioID string, limit int) ([]model.LineageRecord, error) {
	return s.primary.ListRecords(ctx, portfolioID, limit)
}

func (s *CachedStore) cacheRecord(ctx context.Context, rec *model.LineageRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, recordKey(rec.CalculationID), data, s.ttl)
	pipe.Set(ctx, hashKey(rec.CalculationHash), rec.CalculationID, s.ttl)
	_, _ = pipe.Exec(ctx)
}

func recordKey(id string) string { return fmt.Sprintf("lineage:%s", id) }
func hashKey(h string) string    { return fmt.Sprintf("lineage-hash:%s", h) }
