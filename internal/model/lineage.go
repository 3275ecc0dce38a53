package model

import (
	"encoding/json"
	"time"
)

// Endpoint names used in lineage records and metrics labels.
const (
	EndpointTWR          = "twr"
	EndpointMWR          = "mwr"
	EndpointContribution = "contribution"
	EndpointAttribution  = "attribution"
)

// LineageRecord is an immutable record of one successful calculation.
// Once created, records are never modified.
type LineageRecord struct {
	CalculationID    string          `json:"calculation_id" db:"calculation_id"`
	Endpoint         string          `json:"endpoint" db:"endpoint"`
	PortfolioID      string          `json:"portfolio_id" db:"portfolio_id"`
	InputFingerprint string          `json:"input_fingerprint" db:"input_fingerprint"`
	CalculationHash  string          `json:"calculation_hash" db:"calculation_hash"`
	EngineVersion    string          `json:"engine_version" db:"engine_version"`
	Request          json.RawMessage `json:"request" db:"request"`
	Response         json.RawMessage `json:"response" db:"response"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// CalculationEvent is broadcast to WebSocket subscribers after a calculation.
type CalculationEvent struct {
	Type            string    `json:"type"` // "calculation_completed"
	CalculationID   string    `json:"calculation_id"`
	Endpoint        string    `json:"endpoint"`
	PortfolioID     string    `json:"portfolio_id"`
	CalculationHash string    `json:"calculation_hash"`
	Replay          bool      `json:"replay"`
	Timestamp       time.Time `json:"timestamp"`
}
