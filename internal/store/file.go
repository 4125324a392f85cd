package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/wgunawan/hiradc/internal/domain"
)

// collectionFilename is the one namespaced key the whole report collection
// lives under.
const collectionFilename = "k3-reports.json"

// collectionVersion guards the on-disk format.
const collectionVersion = 1

// collectionDoc is the serialized form of the whole collection. Reports are
// stored most-recent-first, matching the listing order.
type collectionDoc struct {
	Version int                        `json:"version"`
	Reports []*domain.InspectionReport `json:"reports"`
}

// FileStore implements ReportStore on a single JSON document.
//
// The collection is held in memory and every mutation rewrites the whole
// document atomically (write to a temp file, then rename), which gives
// single-record atomicity and read-after-write consistency for the one
// active session this design serves. A mutex serializes access; there is no
// multi-process locking discipline.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	reports []*domain.InspectionReport // most recent first
	index   map[uuid.UUID]int          // id -> position in reports
}

// NewFileStore opens (or creates) the report collection under dir.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve store directory: %w", err)
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	s := &FileStore{
		path:   filepath.Join(absDir, collectionFilename),
		logger: logger,
		index:  make(map[uuid.UUID]int),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	logger.Info("report store ready", "path", s.path, "reports", len(s.reports))

	return s, nil
}

// load reads the collection document from disk. A missing file is an empty
// collection, not an error.
func (s *FileStore) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read report collection: %w", err)
	}

	var doc collectionDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode report collection: %w", err)
	}
	if doc.Version != collectionVersion {
		return fmt.Errorf("unsupported report collection version %d", doc.Version)
	}

	s.reports = doc.Reports
	for i, r := range s.reports {
		s.index[r.ID] = i
	}
	return nil
}

// persist writes the whole collection back to disk atomically.
// Caller must hold the write lock.
func (s *FileStore) persist() error {
	raw, err := json.MarshalIndent(collectionDoc{
		Version: collectionVersion,
		Reports: s.reports,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report collection: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("write report collection: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace report collection: %w", err)
	}
	return nil
}

// Create inserts a new report at the head of the collection.
func (s *FileStore) Create(ctx context.Context, report *domain.InspectionReport) error {
	const op = "store.create"

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if report == nil || report.ID == uuid.Nil {
		return domain.Invalid(op, "report id is required")
	}
	if len(report.Tasks) == 0 {
		return domain.Invalid(op, "report must contain at least one task")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[report.ID]; exists {
		return domain.Conflict(op, fmt.Sprintf("report %q already exists", report.ID))
	}

	// Prepend so listing stays most-recent-first without sorting.
	s.reports = append([]*domain.InspectionReport{report.Clone()}, s.reports...)
	s.reindex()

	if err := s.persist(); err != nil {
		// Roll the in-memory state back so memory and disk agree.
		s.reports = s.reports[1:]
		s.reindex()
		return domain.Internal(err, op, "failed to persist report")
	}

	s.logger.Info("report created", "report_id", report.ID, "tasks", len(report.Tasks), "hazards", report.HazardCount())

	return nil
}

// Get retrieves one report by id.
func (s *FileStore) Get(ctx context.Context, id uuid.UUID) (*domain.InspectionReport, error) {
	const op = "store.get"

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return nil, domain.NotFound(op, "report", id.String())
	}
	return s.reports[i].Clone(), nil
}

// List returns all reports, most recently created first.
func (s *FileStore) List(ctx context.Context) ([]*domain.InspectionReport, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.InspectionReport, len(s.reports))
	for i, r := range s.reports {
		out[i] = r.Clone()
	}
	return out, nil
}

// UpdateEditedImage replaces the report's edited image.
func (s *FileStore) UpdateEditedImage(ctx context.Context, id uuid.UUID, dataURL string) (*domain.InspectionReport, error) {
	const op = "store.update_edited_image"

	return s.replace(ctx, op, id, func(r *domain.InspectionReport) *domain.InspectionReport {
		return r.WithEditedImage(dataURL)
	})
}

// UpdateGroundingResult merges one grounding result, overwriting any prior
// result for the same prompt.
func (s *FileStore) UpdateGroundingResult(ctx context.Context, id uuid.UUID, prompt string, result domain.GroundingResult) (*domain.InspectionReport, error) {
	const op = "store.update_grounding"

	return s.replace(ctx, op, id, func(r *domain.InspectionReport) *domain.InspectionReport {
		return r.WithGroundingResult(prompt, result)
	})
}

// replace swaps the stored snapshot for patch(current) and persists.
func (s *FileStore) replace(ctx context.Context, op string, id uuid.UUID, patch func(*domain.InspectionReport) *domain.InspectionReport) (*domain.InspectionReport, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return nil, domain.NotFound(op, "report", id.String())
	}

	prev := s.reports[i]
	next := patch(prev)
	s.reports[i] = next

	if err := s.persist(); err != nil {
		s.reports[i] = prev
		return nil, domain.Internal(err, op, "failed to persist report update")
	}

	s.logger.Info("report updated", "report_id", id, "op", op)

	return next.Clone(), nil
}

// reindex rebuilds the id index. Caller must hold the write lock.
func (s *FileStore) reindex() {
	s.index = make(map[uuid.UUID]int, len(s.reports))
	for i, r := range s.reports {
		s.index[r.ID] = i
	}
}
