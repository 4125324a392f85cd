// Package store persists inspection reports.
//
// The store owns the canonical copy of every report. Reports are created
// whole, never deleted, and later enriched only by merging in one grounding
// result or replacing the edited image; every enrichment swaps the stored
// snapshot for a new one (copy-on-write), so readers always observe a
// fully-formed report.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/wgunawan/hiradc/internal/domain"
)

// ReportStore defines the interface for report persistence.
//
// Implementations:
// - FileStore: durable single-file JSON collection for the single-user deployment
// - MemStore: in-memory collection for tests
//
// All methods hand out deep copies; callers can never alias the canonical
// snapshot.
type ReportStore interface {
	// Create inserts a new report.
	// Returns domain.ECONFLICT if the report id already exists.
	Create(ctx context.Context, report *domain.InspectionReport) error

	// Get retrieves one report by id.
	// Returns domain.ENOTFOUND if the report does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.InspectionReport, error)

	// List returns all reports, most recently created first.
	List(ctx context.Context) ([]*domain.InspectionReport, error)

	// UpdateEditedImage replaces the report's edited image wholesale and
	// returns the new snapshot.
	// Returns domain.ENOTFOUND if the report does not exist.
	UpdateEditedImage(ctx context.Context, id uuid.UUID, dataURL string) (*domain.InspectionReport, error)

	// UpdateGroundingResult merges one grounding result into the report,
	// keyed by the exact prompt text (a repeated prompt overwrites its
	// predecessor), and returns the new snapshot.
	// Returns domain.ENOTFOUND if the report does not exist.
	UpdateGroundingResult(ctx context.Context, id uuid.UUID, prompt string, result domain.GroundingResult) (*domain.InspectionReport, error)
}
