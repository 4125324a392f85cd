// Package handler contains the HTTP handlers for the HIRADC API.
//
// This file implements the report endpoints: composing reports, listing
// them, grounded follow-up queries, and AI image edits.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/wgunawan/hiradc/internal/domain"
	"github.com/wgunawan/hiradc/internal/service"
)

// maxRequestBodyBytes caps request bodies. Task photos travel inline as
// base64 data URLs, so the cap sits above the raw image limit.
const maxRequestBodyBytes = 32 << 20 // 32 MB

// ReportHandler handles HTTP requests for inspection reports.
type ReportHandler struct {
	reports service.ReportService
	logger  *slog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reports service.ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		logger:  logger,
	}
}

// =============================================================================
// Request/Response Types
// =============================================================================

type composeReportRequest struct {
	Tasks []struct {
		Description  string  `json:"description"`
		ImageDataURL *string `json:"imageDataUrl,omitempty"`
	} `json:"tasks"`
	Location *domain.Location `json:"location,omitempty"`
}

type queryRequest struct {
	Prompt string `json:"prompt"`
}

type imageEditRequest struct {
	Instruction string `json:"instruction"`
}

type listReportsResponse struct {
	Reports []service.ReportSummary `json:"reports"`
}

// =============================================================================
// Handlers
// =============================================================================

// Compose handles report composition.
// POST /api/reports
func (h *ReportHandler) Compose(w http.ResponseWriter, r *http.Request) {
	var req composeReportRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	params := domain.ComposeReportParams{
		Location: req.Location,
	}
	for _, task := range req.Tasks {
		params.Tasks = append(params.Tasks, domain.TaskInput{
			Description:  task.Description,
			ImageDataURL: task.ImageDataURL,
		})
	}

	report, err := h.reports.Compose(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, report)
}

// List handles the report history listing.
// GET /api/reports
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.reports.ListSummaries(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.writeJSON(w, http.StatusOK, listReportsResponse{Reports: summaries})
}

// Get handles retrieving one full report.
// GET /api/reports/{id}
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.reportID(w, r)
	if !ok {
		return
	}

	report, err := h.reports.Get(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

// Query handles grounded follow-up questions.
// POST /api/reports/{id}/queries
func (h *ReportHandler) Query(w http.ResponseWriter, r *http.Request) {
	id, ok := h.reportID(w, r)
	if !ok {
		return
	}

	var req queryRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	report, err := h.reports.Query(r.Context(), id, req.Prompt)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

// EditImage handles AI image edits.
// POST /api/reports/{id}/image-edits
func (h *ReportHandler) EditImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.reportID(w, r)
	if !ok {
		return
	}

	var req imageEditRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	report, err := h.reports.EditImage(r.Context(), id, req.Instruction)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

// =============================================================================
// Helpers
// =============================================================================

// reportID parses the {id} path segment. Writes a 400 and returns false on a
// malformed ID.
func (h *ReportHandler) reportID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.report_id", "invalid report ID"))
		return uuid.Nil, false
	}
	return id, true
}

// decodeJSON decodes the request body. Writes a 400 or 413 and returns false
// on malformed or oversized bodies.
func (h *ReportHandler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			ErrorResponse(w, r, h.logger, domain.Errorf(domain.ETOOLARGE, "handler.decode", "request body too large"))
			return false
		}
		if err == io.EOF {
			ErrorResponse(w, r, h.logger, domain.Invalid("handler.decode", "request body is required"))
			return false
		}
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.decode", "malformed JSON request body"))
		return false
	}

	return true
}

// writeJSON writes a JSON response.
func (h *ReportHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
