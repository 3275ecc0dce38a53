package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/atmx/perf-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*model.LineageRecord
	byHash  map[string]string // calculation hash -> latest calculation id
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*model.LineageRecord),
		byHash:  make(map[string]string),
	}
}

func (s *MemoryStore) SaveRecord(_ context.Context, rec *model.LineageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.CalculationID]; ok {
		return fmt.Errorf("lineage record %s already exists", rec.CalculationID)
	}

	// Store a copy to avoid external mutation.
	copy := *rec
	s.records[rec.CalculationID] = &copy
	s.byHash[rec.CalculationHash] = rec.CalculationID
	return nil
}

func (s *MemoryStore) GetRecord(_ context.Context, calculationID string) (*model.LineageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[calculationID]
	if !ok {
		return nil, fmt.Errorf("calculation %s: %w", calculationID, ErrNotFound)
	}
	copy := *rec
	return &copy, nil
}

func (s *MemoryStore) FindByHash(_ context.Context, calculationHash string) (*model.LineageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHash[calculationHash]
	if !ok {
		return nil, fmt.Errorf("hash %s: %w", calculationHash, ErrNotFound)
	}
	copy := *s.records[id]
	return &copy, nil
}

func (s *MemoryStore) ListRecords(_ context.Context, portfolioID string, limit int) ([]model.LineageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.LineageRecord, 0, len(s.records))
	for _, r := range s.records {
		if portfolioID == "" || r.PortfolioID == portfolioID {
			records = append(records, *r)
		}
	}
	slices.SortFunc(records, func(a, b model.LineageRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.CalculationID, a.CalculationID)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
