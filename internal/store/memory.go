package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/wgunawan/hiradc/internal/domain"
)

// MemStore is an in-memory ReportStore for tests.
type MemStore struct {
	mu      sync.RWMutex
	reports []*domain.InspectionReport

	// CreateErr, when set, is returned by Create instead of inserting.
	CreateErr error
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Create(ctx context.Context, report *domain.InspectionReport) error {
	const op = "store.create"

	if s.CreateErr != nil {
		return s.CreateErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.reports {
		if r.ID == report.ID {
			return domain.Conflict(op, fmt.Sprintf("report %q already exists", report.ID))
		}
	}
	s.reports = append([]*domain.InspectionReport{report.Clone()}, s.reports...)
	return nil
}

func (s *MemStore) Get(ctx context.Context, id uuid.UUID) (*domain.InspectionReport, error) {
	const op = "store.get"

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.reports {
		if r.ID == id {
			return r.Clone(), nil
		}
	}
	return nil, domain.NotFound(op, "report", id.String())
}

func (s *MemStore) List(ctx context.Context) ([]*domain.InspectionReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.InspectionReport, len(s.reports))
	for i, r := range s.reports {
		out[i] = r.Clone()
	}
	return out, nil
}

func (s *MemStore) UpdateEditedImage(ctx context.Context, id uuid.UUID, dataURL string) (*domain.InspectionReport, error) {
	const op = "store.update_edited_image"

	return s.replace(op, id, func(r *domain.InspectionReport) *domain.InspectionReport {
		return r.WithEditedImage(dataURL)
	})
}

func (s *MemStore) UpdateGroundingResult(ctx context.Context, id uuid.UUID, prompt string, result domain.GroundingResult) (*domain.InspectionReport, error) {
	const op = "store.update_grounding"

	return s.replace(op, id, func(r *domain.InspectionReport) *domain.InspectionReport {
		return r.WithGroundingResult(prompt, result)
	})
}

func (s *MemStore) replace(op string, id uuid.UUID, patch func(*domain.InspectionReport) *domain.InspectionReport) (*domain.InspectionReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.reports {
		if r.ID == id {
			next := patch(r)
			s.reports[i] = next
			return next.Clone(), nil
		}
	}
	return nil, domain.NotFound(op, "report", id.String())
}
