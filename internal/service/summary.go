// Package service contains the business logic layer.
//
// This file builds the condensed listing entries shown on the report
// history view.
package service

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wgunawan/hiradc/internal/domain"
)

// =============================================================================
// Data Types
// =============================================================================

// ReportSummary is a condensed listing entry for one report.
type ReportSummary struct {
	ID               uuid.UUID        `json:"id"`
	Title            string           `json:"title"`
	Date             string           `json:"date"` // RFC3339
	HighestRiskLevel domain.RiskLevel `json:"highestRiskLevel,omitempty"`
	HazardCount      int              `json:"hazardCount"`
	ThumbnailDataURL *string          `json:"thumbnailDataUrl,omitempty"`
}

// =============================================================================
// ListSummaries
// =============================================================================

// ListSummaries returns listing entries for all reports, most recent first.
// Thumbnails are downscaled from the first task photo; a photo that fails to
// decode leaves the entry without a thumbnail rather than failing the list.
func (s *reportService) ListSummaries(ctx context.Context) ([]ReportSummary, error) {
	reports, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]ReportSummary, 0, len(reports))
	for _, report := range reports {
		summary := ReportSummary{
			ID:          report.ID,
			Title:       report.Title(),
			Date:        report.Date.Format(time.RFC3339),
			HazardCount: report.HazardCount(),
		}

		if level, ok := report.HighestRiskLevel(); ok {
			summary.HighestRiskLevel = level
		}

		summary.ThumbnailDataURL = s.summaryThumbnail(report)

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// summaryThumbnail downscales the report's first task photo for the listing
// card. Returns nil when the report has no photo or the photo is unreadable.
func (s *reportService) summaryThumbnail(report *domain.InspectionReport) *string {
	source := report.FirstTaskImage()
	if source == nil {
		return nil
	}

	img, err := domain.ParseImageDataURL(*source)
	if err != nil {
		s.logger.Warn("skipping thumbnail for unreadable image", "report_id", report.ID, "error", err)
		return nil
	}

	thumb, _, _, err := s.thumbs.GenerateThumbnail(bytes.NewReader(img.Bytes), domain.ThumbnailMaxWidth, domain.ThumbnailMaxHeight)
	if err != nil {
		s.logger.Warn("skipping thumbnail generation", "report_id", report.ID, "error", err)
		return nil
	}

	dataURL := domain.EncodeImageDataURL("image/jpeg", thumb)
	return &dataURL
}
