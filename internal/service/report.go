// Package service contains the business logic layer.
//
// This file implements the report service: composing hazard identification
// reports from task lists, answering grounded follow-up questions, and
// applying AI image edits.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wgunawan/hiradc/internal/ai"
	"github.com/wgunawan/hiradc/internal/domain"
	"github.com/wgunawan/hiradc/internal/metrics"
	"github.com/wgunawan/hiradc/internal/store"
	"github.com/wgunawan/hiradc/internal/storage"
)

// maxTasksPerReport bounds the fan-out of a single composition.
const maxTasksPerReport = 20

// maxTaskDescriptionLen bounds a single task description.
const maxTaskDescriptionLen = 2000

// =============================================================================
// Interface Definition
// =============================================================================

// ReportService defines the interface for report operations.
type ReportService interface {
	// Compose analyzes every task with the AI provider and persists the
	// resulting report. Analysis is all-or-nothing: if any task fails, no
	// report is created.
	// Returns domain.EINVALID for validation errors,
	// domain.ETOOLARGE for oversized images, and the provider's error
	// when analysis fails.
	Compose(ctx context.Context, params domain.ComposeReportParams) (*domain.InspectionReport, error)

	// Get retrieves a report by ID.
	// Returns domain.ENOTFOUND if the report does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.InspectionReport, error)

	// List retrieves all reports, most recently created first.
	List(ctx context.Context) ([]*domain.InspectionReport, error)

	// ListSummaries retrieves condensed listing entries for all reports,
	// most recently created first.
	ListSummaries(ctx context.Context) ([]ReportSummary, error)

	// Query runs a grounded follow-up question against a report and saves
	// the answer under the exact prompt text, replacing any earlier answer
	// for the same prompt.
	// Returns domain.ENOTFOUND if the report does not exist and
	// domain.ECONFLICT if a query for the report is already running.
	Query(ctx context.Context, id uuid.UUID, prompt string) (*domain.InspectionReport, error)

	// EditImage applies an AI edit to the report's current image. The edit
	// source is the latest edited image when one exists, otherwise the first
	// task photo. The result replaces any previous edited image.
	// Returns domain.EINVALID if the report has no image to edit,
	// domain.ENOTFOUND if the report does not exist, and domain.ECONFLICT
	// if an edit for the report is already running.
	EditImage(ctx context.Context, id uuid.UUID, instruction string) (*domain.InspectionReport, error)
}

// =============================================================================
// Implementation
// =============================================================================

// reportService implements the ReportService interface.
type reportService struct {
	store     store.ReportStore
	provider  ai.Provider
	artifacts storage.Storage // optional, nil disables archiving
	thumbs    ThumbnailProcessor
	logger    *slog.Logger

	// inFlight guards one mutation per report per action.
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewReportService creates a new ReportService.
//
// artifacts may be nil, in which case image artifacts are not archived to
// object storage and reports carry their images inline only.
func NewReportService(
	reports store.ReportStore,
	provider ai.Provider,
	artifacts storage.Storage,
	thumbs ThumbnailProcessor,
	logger *slog.Logger,
) ReportService {
	return &reportService{
		store:     reports,
		provider:  provider,
		artifacts: artifacts,
		thumbs:    thumbs,
		logger:    logger,
		inFlight:  make(map[string]struct{}),
	}
}

// =============================================================================
// Compose
// =============================================================================

// Compose analyzes every task and persists the combined report.
func (s *reportService) Compose(ctx context.Context, params domain.ComposeReportParams) (*domain.InspectionReport, error) {
	const op = "report.compose"

	tasks, images, err := s.validateComposeParams(params)
	if err != nil {
		return nil, err
	}

	started := time.Now()

	// Fan out one analysis call per task. Any failure cancels the rest and
	// aborts the whole composition.
	analyses := make([]*domain.Analysis, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	for i := range tasks {
		g.Go(func() error {
			result, err := s.provider.AnalyzeHazards(gctx, ai.AnalyzeParams{
				TaskDescription: tasks[i].Description,
				Image:           images[i],
			})
			if err != nil {
				return fmt.Errorf("task %q: %w", tasks[i].Description, err)
			}
			analyses[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("hazard analysis failed",
			"tasks", len(tasks),
			"error", err,
		)
		return nil, domain.Unavailable(err, op, "hazard analysis failed")
	}

	// Merge per-task results in task order.
	merged := &domain.Analysis{Hazards: []domain.Hazard{}}
	for _, a := range analyses {
		merged.Hazards = append(merged.Hazards, a.Hazards...)
	}

	report := &domain.InspectionReport{
		ID:       uuid.New(),
		Date:     time.Now().UTC(),
		Tasks:    tasks,
		Analysis: merged,
		Location: params.Location,
	}

	if err := s.store.Create(ctx, report); err != nil {
		return nil, err
	}

	// Archiving is best-effort: the report is already durable, a storage
	// failure must not fail the request.
	s.archiveTaskImages(ctx, report, images)

	s.logger.Info("report composed",
		"report_id", report.ID,
		"tasks", len(tasks),
		"hazards", len(merged.Hazards),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	metrics.ReportsCreated.Inc()
	metrics.HazardsIdentified.Add(float64(len(merged.Hazards)))

	return report, nil
}

// validateComposeParams checks the task list and decodes any inline images.
// The returned images slice is index-aligned with the returned tasks.
func (s *reportService) validateComposeParams(params domain.ComposeReportParams) ([]domain.TaskItem, []*domain.ImageData, error) {
	const op = "report.validate"

	if len(params.Tasks) == 0 {
		return nil, nil, domain.Invalid(op, "at least one task is required")
	}
	if len(params.Tasks) > maxTasksPerReport {
		return nil, nil, domain.Invalid(op, fmt.Sprintf("at most %d tasks per report", maxTasksPerReport))
	}
	if params.Location != nil {
		if params.Location.Latitude < -90 || params.Location.Latitude > 90 ||
			params.Location.Longitude < -180 || params.Location.Longitude > 180 {
			return nil, nil, domain.Invalid(op, "location coordinates out of range")
		}
	}

	tasks := make([]domain.TaskItem, len(params.Tasks))
	images := make([]*domain.ImageData, len(params.Tasks))
	for i, in := range params.Tasks {
		description := strings.TrimSpace(in.Description)
		if description == "" {
			return nil, nil, domain.Invalid(op, fmt.Sprintf("task %d: description is required", i+1))
		}
		if len(description) > maxTaskDescriptionLen {
			return nil, nil, domain.Invalid(op, fmt.Sprintf("task %d: description too long", i+1))
		}

		tasks[i] = domain.TaskItem{
			ID:          uuid.New(),
			Description: description,
		}

		if in.ImageDataURL != nil && *in.ImageDataURL != "" {
			img, err := domain.ParseImageDataURL(*in.ImageDataURL)
			if err != nil {
				return nil, nil, err
			}
			url := *in.ImageDataURL
			tasks[i].ImageDataURL = &url
			images[i] = &img
		}
	}

	return tasks, images, nil
}

// archiveTaskImages copies task photos and a listing thumbnail into object
// storage. Failures are logged and swallowed.
func (s *reportService) archiveTaskImages(ctx context.Context, report *domain.InspectionReport, images []*domain.ImageData) {
	if s.artifacts == nil {
		return
	}

	for i, img := range images {
		if img == nil {
			continue
		}
		key := storage.TaskImageKey(report.ID, report.Tasks[i].ID, storage.ExtensionForContentType(img.MediaType))
		err := s.artifacts.Put(ctx, key, bytes.NewReader(img.Bytes), storage.PutOptions{
			ContentType: img.MediaType,
			MaxSize:     domain.MaxImageBytes,
		})
		if err != nil {
			s.logger.Warn("failed to archive task image", "report_id", report.ID, "key", key, "error", err)
		}
	}

	// One thumbnail per report, from the first task photo.
	for _, img := range images {
		if img == nil {
			continue
		}
		thumb, _, _, err := s.thumbs.GenerateThumbnail(bytes.NewReader(img.Bytes), domain.ThumbnailMaxWidth, domain.ThumbnailMaxHeight)
		if err != nil {
			s.logger.Warn("failed to generate thumbnail", "report_id", report.ID, "error", err)
			return
		}
		key := storage.ThumbnailKey(report.ID)
		err = s.artifacts.Put(ctx, key, bytes.NewReader(thumb), storage.PutOptions{
			ContentType: "image/jpeg",
			Overwrite:   true,
		})
		if err != nil {
			s.logger.Warn("failed to archive thumbnail", "report_id", report.ID, "key", key, "error", err)
		}
		return
	}
}

// =============================================================================
// Get / List
// =============================================================================

// Get retrieves a report by ID.
func (s *reportService) Get(ctx context.Context, id uuid.UUID) (*domain.InspectionReport, error) {
	return s.store.Get(ctx, id)
}

// List retrieves all reports, most recent first.
func (s *reportService) List(ctx context.Context) ([]*domain.InspectionReport, error) {
	return s.store.List(ctx)
}

// =============================================================================
// Query
// =============================================================================

// Query runs a grounded follow-up question against a report.
func (s *reportService) Query(ctx context.Context, id uuid.UUID, prompt string) (*domain.InspectionReport, error) {
	const op = "report.query"

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, domain.Invalid(op, "prompt is required")
	}

	release, err := s.acquire(op, id, "query")
	if err != nil {
		return nil, err
	}
	defer release()

	report, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := s.provider.GroundedQuery(ctx, ai.QueryParams{
		Prompt:   prompt,
		Location: report.Location,
	})
	if err != nil {
		metrics.GroundedQueries.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.GroundedQueries.WithLabelValues("success").Inc()

	updated, err := s.store.UpdateGroundingResult(ctx, id, prompt, *result)
	if err != nil {
		return nil, err
	}

	s.logger.Info("grounded query answered",
		"report_id", id,
		"prompt_len", len(prompt),
		"citations", len(result.Chunks),
	)

	return updated, nil
}

// =============================================================================
// EditImage
// =============================================================================

// EditImage applies an AI edit to the report's current image.
func (s *reportService) EditImage(ctx context.Context, id uuid.UUID, instruction string) (*domain.InspectionReport, error) {
	const op = "report.edit_image"

	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, domain.Invalid(op, "instruction is required")
	}

	release, err := s.acquire(op, id, "edit")
	if err != nil {
		return nil, err
	}
	defer release()

	report, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Reject before touching the provider: a report without any photo has
	// nothing to edit.
	source := report.EditSourceImage()
	if source == nil {
		return nil, domain.Invalid(op, "report has no image to edit")
	}

	img, err := domain.ParseImageDataURL(*source)
	if err != nil {
		return nil, err
	}

	edited, err := s.provider.EditImage(ctx, ai.EditParams{
		Image:       img,
		Instruction: instruction,
	})
	if err != nil {
		metrics.ImageEdits.WithLabelValues("error").Inc()
		if errors.Is(err, ai.EAINoImage) {
			return nil, domain.NoOutput(err, op, "the model answered without producing an edited image")
		}
		return nil, err
	}
	metrics.ImageEdits.WithLabelValues("success").Inc()

	dataURL := domain.EncodeImageDataURL(edited.MediaType, edited.Data)
	updated, err := s.store.UpdateEditedImage(ctx, id, dataURL)
	if err != nil {
		return nil, err
	}

	if s.artifacts != nil {
		key := storage.EditedImageKey(id, storage.ExtensionForContentType(edited.MediaType))
		putErr := s.artifacts.Put(ctx, key, bytes.NewReader(edited.Data), storage.PutOptions{
			ContentType: edited.MediaType,
		})
		if putErr != nil {
			s.logger.Warn("failed to archive edited image", "report_id", id, "key", key, "error", putErr)
		}
	}

	s.logger.Info("image edited",
		"report_id", id,
		"media_type", edited.MediaType,
		"bytes", len(edited.Data),
	)

	return updated, nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

// acquire takes the per-report-per-action slot or fails with ECONFLICT.
func (s *reportService) acquire(op string, id uuid.UUID, action string) (func(), error) {
	key := id.String() + ":" + action

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[key]; busy {
		return nil, domain.Conflict(op, fmt.Sprintf("a %s for report %q is already running", action, id))
	}
	s.inFlight[key] = struct{}{}

	return func() {
		s.mu.Lock()
		delete(s.inFlight, key)
		s.mu.Unlock()
	}, nil
}
