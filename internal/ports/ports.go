// Package ports defines the interfaces (contracts) that adapters must implement.
// These are the boundaries of the hexagonal architecture. Domain logic depends
// only on these interfaces, never on concrete implementations.
package ports

import (
	"context"
	"time"
)

// Row is one organisation entry from a registry source. Organisation is
// the primary column; Fields carries any secondary columns keyed by their
// header. Secondary fields feed drift detection only; record building
// ignores them.
type Row struct {
	Organisation string            `json:"organisation"`
	Fields       map[string]string `json:"fields,omitempty"`
}

// Run is one pipeline run recorded in the ledger. Runs are append-only:
// a run is written whether or not it published new artifacts.
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Source     string    `json:"source"`
	SourceHash string    `json:"source_hash"`
	RowCount   int       `json:"row_count"`
	Added      int       `json:"added"`
	Removed    int       `json:"removed"`
	Modified   int       `json:"modified"`
	Published  bool      `json:"published"`
}

// RowSource yields raw organisation rows from one registry source:
// the live register page or a downloaded export file.
type RowSource interface {
	// Rows returns every organisation row plus the raw bytes they were
	// parsed from. The raw bytes are hashed for drift detection and must
	// be exactly what the source produced, not a re-serialization.
	Rows(ctx context.Context) (rows []Row, raw []byte, err error)

	// Name identifies the source in logs, snapshots and run entries.
	Name() string
}
