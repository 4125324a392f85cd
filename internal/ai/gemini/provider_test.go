package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wgunawan/hiradc/internal/ai"
	"github.com/wgunawan/hiradc/internal/domain"
)

// recordingServer captures generateContent requests and replies with a fixed
// status and body.
type recordingServer struct {
	*httptest.Server
	requests []capturedRequest
}

type capturedRequest struct {
	path string
	body apiRequest
}

func newRecordingServer(t *testing.T, status int, responseBody string) *recordingServer {
	t.Helper()
	rs := &recordingServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req apiRequest
		require.NoError(t, json.Unmarshal(raw, &req))
		rs.requests = append(rs.requests, capturedRequest{path: r.URL.Path, body: req})

		w.WriteHeader(status)
		_, _ = w.Write([]byte(responseBody))
	}))
	t.Cleanup(rs.Close)
	return rs
}

func newTestProvider(t *testing.T, baseURL string) *Provider {
	t.Helper()
	p, err := New(Config{
		APIKey:  "test-key",
		BaseURL: baseURL,
		ProviderConfig: ai.ProviderConfig{
			MaxRetries:     1,
			RetryBaseDelay: time.Millisecond,
		},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return p
}

// textResponse builds a generateContent response whose first part is text.
func textResponse(t *testing.T, text string) string {
	t.Helper()
	resp := apiResponse{Candidates: []apiCandidate{{
		Content: apiCandidateContent{Parts: []apiPart{{Text: text}}},
	}}}
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	return string(raw)
}

func validHazardJSON(t *testing.T) string {
	t.Helper()
	analysis := map[string]any{
		"hazards": []domain.Hazard{{
			ActivityDetail:  "Memasang kabel di langit-langit",
			PotentialHazard: "Tersengat listrik",
			Consequence:     "Luka bakar hingga kematian",
			InitialRisk:     domain.RiskAssessment{Probability: 4, Severity: 5, RiskScore: 20, RiskLevel: domain.RiskLevelTinggi},
			RiskControl:     "REKAYASA: Matikan sumber listrik\nAPD: Gunakan sarung tangan isolasi",
			ResidualRisk:    domain.RiskAssessment{Probability: 2, Severity: 5, RiskScore: 10, RiskLevel: domain.RiskLevelSedang},
		}},
	}
	raw, err := json.Marshal(analysis)
	require.NoError(t, err)
	return string(raw)
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestAnalyzeHazardsParsesStructuredResponse(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, textResponse(t, validHazardJSON(t)))
	p := newTestProvider(t, srv.URL)

	analysis, err := p.AnalyzeHazards(context.Background(), ai.AnalyzeParams{
		TaskDescription: "Pemasangan kabel listrik di langit-langit",
	})
	require.NoError(t, err)
	require.Len(t, analysis.Hazards, 1)

	h := analysis.Hazards[0]
	assert.Equal(t, "Tersengat listrik", h.PotentialHazard)
	assert.Equal(t, h.InitialRisk.Probability*h.InitialRisk.Severity, h.InitialRisk.RiskScore)
	assert.Equal(t, domain.RiskLevelTinggi, h.InitialRisk.RiskLevel)

	// The request must target the analysis model and carry the schema.
	require.Len(t, srv.requests, 1)
	req := srv.requests[0]
	assert.Contains(t, req.path, DefaultAnalysisModel)
	require.NotNil(t, req.body.GenerationConfig)
	assert.Equal(t, "application/json", req.body.GenerationConfig.ResponseMimeType)
	require.NotNil(t, req.body.GenerationConfig.ResponseSchema)
	assert.Contains(t, req.body.GenerationConfig.ResponseSchema.Properties, "hazards")
}

func TestAnalyzeHazardsIncludesInlineImage(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, textResponse(t, `{"hazards":[]}`))
	p := newTestProvider(t, srv.URL)

	_, err := p.AnalyzeHazards(context.Background(), ai.AnalyzeParams{
		TaskDescription: "Penggerindaan pipa",
		Image:           &domain.ImageData{MediaType: "image/jpeg", Bytes: []byte("jpeg-bytes")},
	})
	require.NoError(t, err)

	require.Len(t, srv.requests, 1)
	parts := srv.requests[0].body.Contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/jpeg", parts[1].InlineData.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")), parts[1].InlineData.Data)
}

func TestAnalyzeHazardsEmptyArrayIsNotAnError(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, textResponse(t, `{"hazards":[]}`))
	p := newTestProvider(t, srv.URL)

	analysis, err := p.AnalyzeHazards(context.Background(), ai.AnalyzeParams{TaskDescription: "Inspeksi visual"})
	require.NoError(t, err)
	assert.Empty(t, analysis.Hazards)
	assert.NotNil(t, analysis.Hazards)
}

func TestAnalyzeHazardsMalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty candidates", `{"candidates":[]}`},
		{"non-json text", `{"candidates":[{"content":{"parts":[{"text":"sorry, no"}]}}]}`},
		{"missing hazards key", `{"candidates":[{"content":{"parts":[{"text":"{}"}]}}]}`},
		{
			// riskScore 19 is not 4*5, so the classifier cross-check fails
			"inconsistent risk score",
			`{"candidates":[{"content":{"parts":[{"text":"{\"hazards\":[{\"activityDetail\":\"a\",\"potentialHazard\":\"b\",\"consequence\":\"c\",\"initialRisk\":{\"probability\":4,\"severity\":5,\"riskScore\":19,\"riskLevel\":\"Tinggi\"},\"riskControl\":\"APD: x\",\"residualRisk\":{\"probability\":1,\"severity\":1,\"riskScore\":1,\"riskLevel\":\"Sangat Rendah\"}}]}"}]}}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newRecordingServer(t, http.StatusOK, tt.body)
			p := newTestProvider(t, srv.URL)

			_, err := p.AnalyzeHazards(context.Background(), ai.AnalyzeParams{TaskDescription: "task"})
			require.Error(t, err)
			assert.ErrorIs(t, err, ai.EAIMalformedOutput)
		})
	}
}

func TestGroundedQueryMapsRouting(t *testing.T) {
	jakarta := &domain.Location{Latitude: -6.2, Longitude: 106.8}

	tests := []struct {
		name        string
		prompt      string
		location    *domain.Location
		wantMaps    bool
		wantLatLng  bool
	}{
		{"locality keyword without location", "apotek terdekat", nil, true, false},
		{"locality keyword with location", "rumah sakit terdekat", jakarta, true, true},
		{"facility keyword with location", "klinik yang buka sekarang", jakarta, true, true},
		{"facility keyword without location", "klinik yang buka sekarang", nil, false, false},
		{"plain question", "apa itu hirarki pengendalian risiko", jakarta, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newRecordingServer(t, http.StatusOK, textResponse(t, "jawaban"))
			p := newTestProvider(t, srv.URL)

			_, err := p.GroundedQuery(context.Background(), ai.QueryParams{Prompt: tt.prompt, Location: tt.location})
			require.NoError(t, err)

			require.Len(t, srv.requests, 1)
			req := srv.requests[0]
			assert.Contains(t, req.path, DefaultQueryModel)

			// googleSearch is always the first tool
			require.NotEmpty(t, req.body.Tools)
			assert.NotNil(t, req.body.Tools[0].GoogleSearch)

			hasMaps := false
			for _, tool := range req.body.Tools {
				if tool.GoogleMaps != nil {
					hasMaps = true
				}
			}
			assert.Equal(t, tt.wantMaps, hasMaps)

			if tt.wantLatLng {
				require.NotNil(t, req.body.ToolConfig)
				require.NotNil(t, req.body.ToolConfig.RetrievalConfig)
				require.NotNil(t, req.body.ToolConfig.RetrievalConfig.LatLng)
				assert.Equal(t, -6.2, req.body.ToolConfig.RetrievalConfig.LatLng.Latitude)
				assert.Equal(t, 106.8, req.body.ToolConfig.RetrievalConfig.LatLng.Longitude)
			} else {
				assert.Nil(t, req.body.ToolConfig)
			}
		})
	}
}

func TestGroundedQueryParsesCitations(t *testing.T) {
	body := `{"candidates":[{
		"content":{"parts":[{"text":"RS terdekat adalah RSUD Pasar Minggu."}]},
		"groundingMetadata":{"groundingChunks":[
			{"maps":{"uri":"https://maps.example/rsud","title":"RSUD Pasar Minggu"}},
			{"web":{"uri":"https://web.example/rs","title":"Daftar RS Jakarta"}},
			{}
		]}
	}]}`
	srv := newRecordingServer(t, http.StatusOK, body)
	p := newTestProvider(t, srv.URL)

	result, err := p.GroundedQuery(context.Background(), ai.QueryParams{
		Prompt:   "rumah sakit terdekat",
		Location: &domain.Location{Latitude: -6.2, Longitude: 106.8},
	})
	require.NoError(t, err)

	assert.Equal(t, "RS terdekat adalah RSUD Pasar Minggu.", result.Text)
	require.Len(t, result.Chunks, 2) // the empty chunk is dropped
	require.NotNil(t, result.Chunks[0].Maps)
	assert.Equal(t, "https://maps.example/rsud", result.Chunks[0].Maps.URI)
	assert.Equal(t, "RSUD Pasar Minggu", result.Chunks[0].Maps.Title)
	require.NotNil(t, result.Chunks[1].Web)
	assert.Equal(t, "Daftar RS Jakarta", result.Chunks[1].Web.Title)
}

func TestGroundedQueryWithoutCitationsDefaultsToEmpty(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, textResponse(t, "jawaban tanpa sumber"))
	p := newTestProvider(t, srv.URL)

	result, err := p.GroundedQuery(context.Background(), ai.QueryParams{Prompt: "pertanyaan umum"})
	require.NoError(t, err)
	assert.NotNil(t, result.Chunks)
	assert.Empty(t, result.Chunks)
}

func TestEditImageReturnsFirstInlinePart(t *testing.T) {
	edited := base64.StdEncoding.EncodeToString([]byte("edited-png"))
	body := `{"candidates":[{"content":{"parts":[
		{"inlineData":{"mimeType":"image/png","data":"` + edited + `"}},
		{"inlineData":{"mimeType":"image/png","data":"aWdub3JlZA=="}}
	]}}]}`
	srv := newRecordingServer(t, http.StatusOK, body)
	p := newTestProvider(t, srv.URL)

	result, err := p.EditImage(context.Background(), ai.EditParams{
		Image:       domain.ImageData{MediaType: "image/jpeg", Bytes: []byte("source")},
		Instruction: "Tambahkan lingkaran merah di sekitar kabel terkelupas",
	})
	require.NoError(t, err)
	assert.Equal(t, "image/png", result.MediaType)
	assert.Equal(t, []byte("edited-png"), result.Data)

	// Request must target the image model and ask for IMAGE output only.
	require.Len(t, srv.requests, 1)
	req := srv.requests[0]
	assert.Contains(t, req.path, DefaultImageModel)
	require.NotNil(t, req.body.GenerationConfig)
	assert.Equal(t, []string{"IMAGE"}, req.body.GenerationConfig.ResponseModalities)
}

func TestEditImageNoImageProduced(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, textResponse(t, "tidak bisa mengedit gambar ini"))
	p := newTestProvider(t, srv.URL)

	_, err := p.EditImage(context.Background(), ai.EditParams{
		Image:       domain.ImageData{MediaType: "image/jpeg", Bytes: []byte("source")},
		Instruction: "edit",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.EAINoImage)
}

func TestHTTPErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, ai.EAIUnauthorized},
		{"forbidden", http.StatusForbidden, ai.EAIUnauthorized},
		{"rate limited", http.StatusTooManyRequests, ai.EAIRateLimit},
		{"service unavailable", http.StatusServiceUnavailable, ai.EAIUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newRecordingServer(t, tt.status, `{"error":{"code":1,"message":"nope","status":"ERR"}}`)
			p := newTestProvider(t, srv.URL)

			_, err := p.GroundedQuery(context.Background(), ai.QueryParams{Prompt: "pertanyaan"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTransientErrorsAreRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(textResponse(t, "jawaban")))
	}))
	defer srv.Close()

	p, err := New(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		ProviderConfig: ai.ProviderConfig{
			MaxRetries:     3,
			RetryBaseDelay: time.Millisecond,
		},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	result, err := p.GroundedQuery(context.Background(), ai.QueryParams{Prompt: "pertanyaan"})
	require.NoError(t, err)
	assert.Equal(t, "jawaban", result.Text)
	assert.Equal(t, 2, calls)
}

func TestUnauthorizedIsNotRetried(t *testing.T) {
	srv := newRecordingServer(t, http.StatusUnauthorized, `{"error":{"message":"bad key"}}`)
	p := newTestProvider(t, srv.URL)

	_, err := p.GroundedQuery(context.Background(), ai.QueryParams{Prompt: "pertanyaan"})
	require.Error(t, err)
	assert.Len(t, srv.requests, 1)
}
