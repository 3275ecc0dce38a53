// Package store defines the persistence interface for calculation lineage.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and single-node use).
package store

import (
	"context"
	"errors"

	"github.com/atmx/perf-engine/internal/model"
)

// ErrNotFound is returned when no lineage record matches the lookup.
var ErrNotFound = errors.New("lineage record not found")

// Store is the persistence interface. Records are append-only; a record is
// never updated once saved.
type Store interface {
	// SaveRecord persists a new lineage record.
	SaveRecord(ctx context.Context, rec *model.LineageRecord) error

	// GetRecord retrieves a record by its calculation ID.
	GetRecord(ctx context.Context, calculationID string) (*model.LineageRecord, error)

	// FindByHash returns the most recent record with the given calculation hash.
	FindByHash(ctx context.Context, calculationHash string) (*model.LineageRecord, error)

	// ListRecords returns the newest records for a portfolio, newest first.
	// An empty portfolioID lists across portfolios.
	ListRecords(ctx context.Context, portfolioID string, limit int) ([]model.LineageRecord, error)
}
