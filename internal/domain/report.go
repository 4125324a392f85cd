// Package domain contains core business types and interfaces.
//
// This file defines the InspectionReport aggregate: the tasks a user
// described, the hazard analysis derived from them, and the follow-up
// grounded-query and image-edit history attached afterwards.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Task Input
// =============================================================================

// TaskItem is one task, tool, or material the user described during report
// composition, optionally with a photo of the work area. Immutable once the
// owning report is saved.
type TaskItem struct {
	ID           uuid.UUID `json:"id"`
	Description  string    `json:"description"`
	ImageDataURL *string   `json:"imageDataUrl"` // data:<mime>;base64,... or nil
}

// HasImage returns true if the task carries a photo.
func (t TaskItem) HasImage() bool {
	return t.ImageDataURL != nil && *t.ImageDataURL != ""
}

// =============================================================================
// Hazard
// =============================================================================

// Hazard is one identified source of potential harm tied to a task, with the
// risk assessed before and after the recommended controls.
type Hazard struct {
	ActivityDetail  string         `json:"activityDetail"`
	PotentialHazard string         `json:"potentialHazard"`
	Consequence     string         `json:"consequence"`
	InitialRisk     RiskAssessment `json:"initialRisk"`
	RiskControl     string         `json:"riskControl"` // newline-delimited "LEVEL: description" entries
	ResidualRisk    RiskAssessment `json:"residualRisk"`
}

// Validate cross-checks both risk assessments. The residual<=initial
// relationship is expected of a well-formed analysis but deliberately not
// enforced here; see Controls() callers for the advisory check.
func (h Hazard) Validate() error {
	if err := h.InitialRisk.Validate(); err != nil {
		return err
	}
	return h.ResidualRisk.Validate()
}

// Controls returns the parsed hierarchy-of-controls entries.
func (h Hazard) Controls() []ControlEntry {
	return ParseRiskControl(h.RiskControl)
}

// Analysis is the result of hazard analysis over a report's tasks.
// An empty Hazards slice is a valid "no hazards found" outcome.
type Analysis struct {
	Hazards []Hazard `json:"hazards"`
}

// =============================================================================
// Grounding
// =============================================================================

// Location is a geographic coordinate pair captured opportunistically at
// composition time. Its absence never blocks report creation.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GroundingChunk is one citation backing a grounded answer. Exactly one of
// Web or Maps is set.
type GroundingChunk struct {
	Web  *GroundingSource `json:"web,omitempty"`
	Maps *GroundingSource `json:"maps,omitempty"`
}

// GroundingSource identifies a single citation source.
type GroundingSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// GroundingResult is the answer to one grounded query together with its
// citations. Chunks is never nil in a well-formed result; it defaults to an
// empty sequence when the model omits citations.
type GroundingResult struct {
	Text   string           `json:"text"`
	Chunks []GroundingChunk `json:"chunks"`
}

// =============================================================================
// Inspection Report
// =============================================================================

// InspectionReport is the persisted unit combining tasks, hazard analysis,
// location, and follow-up query/edit history.
//
// A report is created atomically after analysis completes for every task.
// Later enrichment (one grounding result, a new edited image) replaces the
// whole stored snapshot rather than mutating fields in place, so the store
// always holds one fully-formed immutable snapshot per report.
type InspectionReport struct {
	ID                 uuid.UUID                  `json:"id"`
	Date               time.Time                  `json:"date"`
	Tasks              []TaskItem                 `json:"tasks"`    // non-empty, in composition order
	Analysis           *Analysis                  `json:"analysis"` // nil means analysis not run
	Location           *Location                  `json:"location"`
	GroundingResults   map[string]GroundingResult `json:"groundingResults,omitempty"` // keyed by exact query text
	EditedImageDataURL *string                    `json:"editedImageDataUrl,omitempty"`
}

// DefaultReportTitle is used when no task carries a description.
const DefaultReportTitle = "Identifikasi Bahaya Tanpa Judul"

// Title derives a display title by joining the task descriptions.
func (r *InspectionReport) Title() string {
	var parts []string
	for _, t := range r.Tasks {
		if desc := strings.TrimSpace(t.Description); desc != "" {
			parts = append(parts, desc)
		}
	}
	if len(parts) == 0 {
		return DefaultReportTitle
	}
	return strings.Join(parts, " / ")
}

// FirstTaskImage returns the image of the first task that has one, or nil.
// Used for the list-view thumbnail.
func (r *InspectionReport) FirstTaskImage() *string {
	for _, t := range r.Tasks {
		if t.HasImage() {
			return t.ImageDataURL
		}
	}
	return nil
}

// EditSourceImage returns the image an edit should start from: the latest
// edited image if one exists, otherwise the first task image. Returns nil
// when the report has no image at all.
func (r *InspectionReport) EditSourceImage() *string {
	if r.EditedImageDataURL != nil && *r.EditedImageDataURL != "" {
		return r.EditedImageDataURL
	}
	return r.FirstTaskImage()
}

// HighestRiskLevel returns the highest initial risk level across all hazards,
// or the zero value and false when the report has no hazards.
func (r *InspectionReport) HighestRiskLevel() (RiskLevel, bool) {
	if r.Analysis == nil || len(r.Analysis.Hazards) == 0 {
		return "", false
	}
	highest := r.Analysis.Hazards[0].InitialRisk.RiskLevel
	for _, h := range r.Analysis.Hazards[1:] {
		if h.InitialRisk.RiskLevel.Rank() > highest.Rank() {
			highest = h.InitialRisk.RiskLevel
		}
	}
	return highest, true
}

// HazardCount returns the number of identified hazards.
func (r *InspectionReport) HazardCount() int {
	if r.Analysis == nil {
		return 0
	}
	return len(r.Analysis.Hazards)
}

// Clone returns a deep copy of the report. Store implementations hand out
// clones so callers can never alias the canonical snapshot.
func (r *InspectionReport) Clone() *InspectionReport {
	if r == nil {
		return nil
	}

	out := *r

	out.Tasks = make([]TaskItem, len(r.Tasks))
	for i, t := range r.Tasks {
		out.Tasks[i] = t
		if t.ImageDataURL != nil {
			url := *t.ImageDataURL
			out.Tasks[i].ImageDataURL = &url
		}
	}

	if r.Analysis != nil {
		hazards := make([]Hazard, len(r.Analysis.Hazards))
		copy(hazards, r.Analysis.Hazards)
		out.Analysis = &Analysis{Hazards: hazards}
	}

	if r.Location != nil {
		loc := *r.Location
		out.Location = &loc
	}

	if r.GroundingResults != nil {
		out.GroundingResults = make(map[string]GroundingResult, len(r.GroundingResults))
		for prompt, result := range r.GroundingResults {
			chunks := make([]GroundingChunk, len(result.Chunks))
			for i, c := range result.Chunks {
				chunks[i] = c
				if c.Web != nil {
					src := *c.Web
					chunks[i].Web = &src
				}
				if c.Maps != nil {
					src := *c.Maps
					chunks[i].Maps = &src
				}
			}
			out.GroundingResults[prompt] = GroundingResult{Text: result.Text, Chunks: chunks}
		}
	}

	if r.EditedImageDataURL != nil {
		url := *r.EditedImageDataURL
		out.EditedImageDataURL = &url
	}

	return &out
}

// WithGroundingResult returns a new snapshot with the result stored under the
// exact prompt text. A later identical prompt overwrites its predecessor.
func (r *InspectionReport) WithGroundingResult(prompt string, result GroundingResult) *InspectionReport {
	out := r.Clone()
	if out.GroundingResults == nil {
		out.GroundingResults = make(map[string]GroundingResult, 1)
	}
	if result.Chunks == nil {
		result.Chunks = []GroundingChunk{}
	}
	out.GroundingResults[prompt] = result
	return out
}

// WithEditedImage returns a new snapshot with the edited image replaced
// wholesale.
func (r *InspectionReport) WithEditedImage(dataURL string) *InspectionReport {
	out := r.Clone()
	out.EditedImageDataURL = &dataURL
	return out
}

// =============================================================================
// Composition Parameters
// =============================================================================

// TaskInput is one task as submitted by the user, before ids are assigned.
type TaskInput struct {
	Description  string
	ImageDataURL *string
}

// ComposeReportParams contains validated parameters for composing a report.
type ComposeReportParams struct {
	Tasks    []TaskInput // Required: at least one task with a non-empty description
	Location *Location   // Optional: coordinate pair from the client
}
