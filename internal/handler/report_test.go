package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wgunawan/hiradc/internal/ai"
	"github.com/wgunawan/hiradc/internal/ai/mock"
	"github.com/wgunawan/hiradc/internal/domain"
	"github.com/wgunawan/hiradc/internal/service"
	"github.com/wgunawan/hiradc/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestMux wires the report routes the way cmd/server does.
func newTestMux(t *testing.T) (*http.ServeMux, *mock.Provider) {
	t.Helper()

	provider := mock.New(testLogger())
	svc := service.NewReportService(store.NewMemStore(), provider, nil, service.NewImagingProcessor(), testLogger())
	h := NewReportHandler(svc, testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/reports", h.Compose)
	mux.HandleFunc("GET /api/reports", h.List)
	mux.HandleFunc("GET /api/reports/{id}", h.Get)
	mux.HandleFunc("POST /api/reports/{id}/queries", h.Query)
	mux.HandleFunc("POST /api/reports/{id}/image-edits", h.EditImage)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundResponse(w, r, testLogger())
	})
	return mux, provider
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func composeReport(t *testing.T, mux *http.ServeMux) domain.InspectionReport {
	t.Helper()

	rec := doJSON(t, mux, http.MethodPost, "/api/reports", map[string]any{
		"tasks": []map[string]any{
			{"description": "Pemasangan kabel listrik di langit-langit"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var report domain.InspectionReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	return report
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var resp JSONError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

// =============================================================================
// Compose
// =============================================================================

func TestCompose(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/reports", map[string]any{
		"tasks": []map[string]any{
			{"description": "Pemasangan kabel listrik di langit-langit"},
			{"description": "Pengecatan dinding"},
		},
		"location": map[string]float64{"latitude": -6.2, "longitude": 106.8},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report domain.InspectionReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.NotEqual(t, uuid.Nil, report.ID)
	assert.Len(t, report.Tasks, 2)
	require.NotNil(t, report.Analysis)
	assert.Len(t, report.Analysis.Hazards, 4)
	require.NotNil(t, report.Location)
	assert.Equal(t, -6.2, report.Location.Latitude)
}

func TestCompose_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body any
		raw  string
	}{
		{name: "empty tasks", body: map[string]any{"tasks": []any{}}},
		{name: "blank description", body: map[string]any{"tasks": []map[string]any{{"description": " "}}}},
		{name: "malformed json", raw: "{not json"},
		{name: "empty body", raw: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, _ := newTestMux(t)

			var rec *httptest.ResponseRecorder
			if tt.body != nil {
				rec = doJSON(t, mux, http.MethodPost, "/api/reports", tt.body)
			} else {
				req := httptest.NewRequest(http.MethodPost, "/api/reports", bytes.NewBufferString(tt.raw))
				req.Header.Set("Content-Type", "application/json")
				rec = httptest.NewRecorder()
				mux.ServeHTTP(rec, req)
			}

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, domain.EINVALID, errorCode(t, rec))
		})
	}
}

func TestCompose_UpstreamFailure(t *testing.T) {
	mux, provider := newTestMux(t)
	provider.AnalyzeHazardsError = ai.WrapError("analyze", ai.EAIUnavailable)

	rec := doJSON(t, mux, http.MethodPost, "/api/reports", map[string]any{
		"tasks": []map[string]any{{"description": "Pengelasan pipa"}},
	})
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, domain.EUNAVAILABLE, errorCode(t, rec))
}

// =============================================================================
// Get / List
// =============================================================================

func TestGet(t *testing.T) {
	mux, _ := newTestMux(t)
	report := composeReport(t, mux)

	rec := doJSON(t, mux, http.MethodGet, "/api/reports/"+report.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.InspectionReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, report.ID, got.ID)
}

func TestGet_Errors(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/reports/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.ENOTFOUND, errorCode(t, rec))

	rec = doJSON(t, mux, http.MethodGet, "/api/reports/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.EINVALID, errorCode(t, rec))
}

func TestList(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/reports", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reports":[]}`, rec.Body.String())

	composeReport(t, mux)

	rec = doJSON(t, mux, http.MethodGet, "/api/reports", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Reports []service.ReportSummary `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Reports, 1)
	assert.Equal(t, "Pemasangan kabel listrik di langit-langit", resp.Reports[0].Title)
	assert.Equal(t, 2, resp.Reports[0].HazardCount)
}

// =============================================================================
// Query
// =============================================================================

func TestQuery(t *testing.T) {
	mux, _ := newTestMux(t)
	report := composeReport(t, mux)

	path := fmt.Sprintf("/api/reports/%s/queries", report.ID)
	rec := doJSON(t, mux, http.MethodPost, path, map[string]string{"prompt": "rumah sakit terdekat"})
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.InspectionReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Contains(t, got.GroundingResults, "rumah sakit terdekat")
	assert.NotEmpty(t, got.GroundingResults["rumah sakit terdekat"].Text)
}

func TestQuery_UpstreamRateLimit(t *testing.T) {
	mux, provider := newTestMux(t)
	report := composeReport(t, mux)

	provider.GroundedQueryError = ai.WrapError("query", ai.EAIRateLimit)

	path := fmt.Sprintf("/api/reports/%s/queries", report.ID)
	rec := doJSON(t, mux, http.MethodPost, path, map[string]string{"prompt": "regulasi APD"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, domain.EUNAVAILABLE, errorCode(t, rec))
}

// =============================================================================
// EditImage
// =============================================================================

func TestEditImage_NoSource(t *testing.T) {
	mux, provider := newTestMux(t)
	report := composeReport(t, mux) // no photo attached

	path := fmt.Sprintf("/api/reports/%s/image-edits", report.ID)
	rec := doJSON(t, mux, http.MethodPost, path, map[string]string{"instruction": "Tandai area berbahaya"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.EINVALID, errorCode(t, rec))
	assert.Zero(t, provider.EditImageCalls)
}

func TestEditImage(t *testing.T) {
	mux, _ := newTestMux(t)

	img := "data:image/png;base64,iVBORw0KGgo="
	rec := doJSON(t, mux, http.MethodPost, "/api/reports", map[string]any{
		"tasks": []map[string]any{
			{"description": "Pembersihan tangki", "imageDataUrl": img},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var report domain.InspectionReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))

	path := fmt.Sprintf("/api/reports/%s/image-edits", report.ID)
	rec = doJSON(t, mux, http.MethodPost, path, map[string]string{"instruction": "Tandai area berbahaya"})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated domain.InspectionReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.NotNil(t, updated.EditedImageDataURL)
	assert.Contains(t, *updated.EditedImageDataURL, "data:image/png;base64,")
}

func TestEditImage_ModelProducedNoImage(t *testing.T) {
	mux, provider := newTestMux(t)
	provider.EditImageError = ai.WrapError("edit", ai.EAINoImage)

	img := "data:image/png;base64,iVBORw0KGgo="
	rec := doJSON(t, mux, http.MethodPost, "/api/reports", map[string]any{
		"tasks": []map[string]any{
			{"description": "Pembersihan tangki", "imageDataUrl": img},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var report domain.InspectionReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))

	path := fmt.Sprintf("/api/reports/%s/image-edits", report.ID)
	rec = doJSON(t, mux, http.MethodPost, path, map[string]string{"instruction": "Tandai area berbahaya"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, domain.ENOOUTPUT, errorCode(t, rec))
}

// =============================================================================
// Fallback
// =============================================================================

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, domain.ENOTFOUND, errorCode(t, rec))
}
