package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/wgunawan/hiradc/internal/ai"
	"github.com/wgunawan/hiradc/internal/domain"
	"github.com/wgunawan/hiradc/internal/metrics"
)

const (
	// APIBaseURL is the base URL for the Gemini generateContent API.
	// The model name and ":generateContent" are appended per request.
	APIBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

	// DefaultAnalysisModel is used for hazard analysis, which needs the
	// stronger reasoning model.
	DefaultAnalysisModel = "gemini-2.5-pro"

	// DefaultQueryModel is used for grounded queries.
	DefaultQueryModel = "gemini-2.5-flash"

	// DefaultImageModel is used for image edits.
	DefaultImageModel = "gemini-2.5-flash-image"

	// analysisTemperature keeps structured analysis output deterministic.
	analysisTemperature = 0.2
)

// Location-sensitivity heuristic for grounded queries. localityPattern alone
// enables maps retrieval; facilityPattern only does so when a location is
// known, since a facility query without coordinates cannot be biased.
var (
	localityPattern = regexp.MustCompile(`(?i)nearby|terdekat|lokasi|di sekitar|di dekat`)
	facilityPattern = regexp.MustCompile(`(?i)rumah sakit|hospital|clinic|klinik`)
)

// Config contains configuration for the Gemini provider.
type Config struct {
	APIKey         string
	AnalysisModel  string
	QueryModel     string
	ImageModel     string
	BaseURL        string // overridable for tests
	ProviderConfig ai.ProviderConfig
}

// Provider implements the ai.Provider interface using the Gemini API.
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new Gemini provider.
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	// Set defaults
	if config.AnalysisModel == "" {
		config.AnalysisModel = DefaultAnalysisModel
	}
	if config.QueryModel == "" {
		config.QueryModel = DefaultQueryModel
	}
	if config.ImageModel == "" {
		config.ImageModel = DefaultImageModel
	}
	if config.BaseURL == "" {
		config.BaseURL = APIBaseURL
	}
	if config.ProviderConfig.MaxRetries == 0 {
		config.ProviderConfig.MaxRetries = 3
	}
	if config.ProviderConfig.RetryBaseDelay == 0 {
		config.ProviderConfig.RetryBaseDelay = 1 * time.Second
	}
	if config.ProviderConfig.RequestTimeout == 0 {
		config.ProviderConfig.RequestTimeout = 60 * time.Second
	}

	return &Provider{
		config: config,
		client: &http.Client{
			Timeout: config.ProviderConfig.RequestTimeout,
		},
		logger: logger,
	}, nil
}

// =============================================================================
// Hazard Analysis
// =============================================================================

// AnalyzeHazards analyzes one task for K3 hazards using structured output.
func (p *Provider) AnalyzeHazards(ctx context.Context, params ai.AnalyzeParams) (*domain.Analysis, error) {
	if params.TaskDescription == "" {
		return nil, ai.WrapError("analyze hazards", fmt.Errorf("task description is required"))
	}

	parts := []apiPart{{Text: buildHazardAnalysisPrompt(params.TaskDescription)}}
	if params.Image != nil {
		parts = append(parts, apiPart{
			InlineData: &apiInlineData{
				MimeType: params.Image.MediaType,
				Data:     base64.StdEncoding.EncodeToString(params.Image.Bytes),
			},
		})
	}

	reqBody := apiRequest{
		Contents: []apiContent{{Parts: parts}},
		GenerationConfig: &apiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   hazardResponseSchema(),
			Temperature:      analysisTemperature,
		},
	}

	resp, err := p.generateContent(ctx, "analyze", p.config.AnalysisModel, reqBody)
	if err != nil {
		return nil, ai.WrapError("analyze hazards", err)
	}

	analysis, err := p.parseAnalysisResponse(resp)
	if err != nil {
		return nil, ai.WrapError("analyze hazards", err)
	}

	p.logger.Info("hazard analysis completed",
		"model", p.config.AnalysisModel,
		"hazards_found", len(analysis.Hazards),
		"has_image", params.Image != nil,
	)

	return analysis, nil
}

// parseAnalysisResponse extracts and validates the structured hazard list.
func (p *Provider) parseAnalysisResponse(resp *apiResponse) (*domain.Analysis, error) {
	text := resp.firstText()
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ai.EAIMalformedOutput)
	}

	var out struct {
		Hazards []domain.Hazard `json:"hazards"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.EAIMalformedOutput, err)
	}
	if out.Hazards == nil {
		return nil, fmt.Errorf("%w: missing hazards array", ai.EAIMalformedOutput)
	}

	// Cross-check each model-reported assessment against the classifier.
	for i, h := range out.Hazards {
		if err := h.Validate(); err != nil {
			return nil, fmt.Errorf("%w: hazard %d: %v", ai.EAIMalformedOutput, i, err)
		}
	}

	return &domain.Analysis{Hazards: out.Hazards}, nil
}

// =============================================================================
// Grounded Query
// =============================================================================

// GroundedQuery answers a question with web retrieval, adding maps retrieval
// for location-sensitive prompts.
func (p *Provider) GroundedQuery(ctx context.Context, params ai.QueryParams) (*domain.GroundingResult, error) {
	if params.Prompt == "" {
		return nil, ai.WrapError("grounded query", fmt.Errorf("prompt is required"))
	}

	useMaps := locationSensitive(params.Prompt, params.Location != nil)

	tools := []apiTool{{GoogleSearch: &struct{}{}}}
	if useMaps {
		tools = append(tools, apiTool{GoogleMaps: &struct{}{}})
	}

	reqBody := apiRequest{
		Contents: []apiContent{{Parts: []apiPart{{Text: params.Prompt}}}},
		Tools:    tools,
	}

	// Forward coordinates to bias retrieval only on the maps-enabled path.
	if useMaps && params.Location != nil {
		reqBody.ToolConfig = &apiToolConfig{
			RetrievalConfig: &apiRetrievalConfig{
				LatLng: &apiLatLng{
					Latitude:  params.Location.Latitude,
					Longitude: params.Location.Longitude,
				},
			},
		}
	}

	resp, err := p.generateContent(ctx, "query", p.config.QueryModel, reqBody)
	if err != nil {
		return nil, ai.WrapError("grounded query", err)
	}

	text := resp.firstText()
	if text == "" {
		return nil, ai.WrapError("grounded query", fmt.Errorf("%w: empty answer", ai.EAIMalformedOutput))
	}

	result := &domain.GroundingResult{
		Text:   text,
		Chunks: []domain.GroundingChunk{},
	}
	for _, c := range resp.groundingChunks() {
		chunk := domain.GroundingChunk{}
		switch {
		case c.Web != nil:
			chunk.Web = &domain.GroundingSource{URI: c.Web.URI, Title: c.Web.Title}
		case c.Maps != nil:
			chunk.Maps = &domain.GroundingSource{URI: c.Maps.URI, Title: c.Maps.Title}
		default:
			continue
		}
		result.Chunks = append(result.Chunks, chunk)
	}

	p.logger.Info("grounded query completed",
		"model", p.config.QueryModel,
		"maps_enabled", useMaps,
		"citations", len(result.Chunks),
	)

	return result, nil
}

// locationSensitive reports whether the prompt should enable maps retrieval.
// This is a keyword heuristic, not an exact contract.
func locationSensitive(prompt string, hasLocation bool) bool {
	if localityPattern.MatchString(prompt) {
		return true
	}
	return hasLocation && facilityPattern.MatchString(prompt)
}

// =============================================================================
// Image Edit
// =============================================================================

// EditImage applies an edit instruction to a source image.
func (p *Provider) EditImage(ctx context.Context, params ai.EditParams) (*ai.EditedImage, error) {
	if len(params.Image.Bytes) == 0 {
		return nil, ai.WrapError("edit image", ai.EAIInvalidImage)
	}
	if params.Instruction == "" {
		return nil, ai.WrapError("edit image", fmt.Errorf("edit instruction is required"))
	}

	reqBody := apiRequest{
		Contents: []apiContent{{Parts: []apiPart{
			{InlineData: &apiInlineData{
				MimeType: params.Image.MediaType,
				Data:     base64.StdEncoding.EncodeToString(params.Image.Bytes),
			}},
			{Text: params.Instruction},
		}}},
		GenerationConfig: &apiGenerationConfig{
			ResponseModalities: []string{"IMAGE"},
		},
	}

	resp, err := p.generateContent(ctx, "edit", p.config.ImageModel, reqBody)
	if err != nil {
		return nil, ai.WrapError("edit image", err)
	}

	// The first inline-image part is the result.
	inline := resp.firstInlineData()
	if inline == nil {
		return nil, ai.WrapError("edit image", ai.EAINoImage)
	}

	data, err := base64.StdEncoding.DecodeString(inline.Data)
	if err != nil {
		return nil, ai.WrapError("edit image", fmt.Errorf("%w: invalid image payload: %v", ai.EAIMalformedOutput, err))
	}

	p.logger.Info("image edit completed",
		"model", p.config.ImageModel,
		"media_type", inline.MimeType,
		"size_bytes", len(data),
	)

	return &ai.EditedImage{MediaType: inline.MimeType, Data: data}, nil
}

// =============================================================================
// Transport
// =============================================================================

// generateContent marshals the request, executes it against the named model
// with retry on transient errors, and parses the response envelope.
func (p *Provider) generateContent(ctx context.Context, operation, model string, reqBody apiRequest) (*apiResponse, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent", p.config.BaseURL, model)
	started := time.Now()

	var lastErr error
	for attempt := 1; attempt <= p.config.ProviderConfig.MaxRetries; attempt++ {
		resp, err := p.executeRequest(ctx, url, bodyBytes)
		if err == nil {
			metrics.AICallCompleted(operation, time.Since(started))
			return resp, nil
		}

		lastErr = err

		// Only retry on retryable errors
		if !ai.IsRetryable(err) {
			metrics.AICallFailed(operation)
			return nil, err
		}
		if attempt >= p.config.ProviderConfig.MaxRetries {
			break
		}

		// Exponential backoff: base * 2^(attempt-1)
		delay := p.config.ProviderConfig.RetryBaseDelay * time.Duration(1<<(attempt-1))
		p.logger.Info("retrying AI request", "model", model, "attempt", attempt, "delay", delay, "error", err)
		metrics.AIRetried(operation)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			metrics.AICallFailed(operation)
			return nil, ctx.Err()
		}
	}

	metrics.AICallFailed(operation)
	return nil, lastErr
}

// executeRequest executes a single HTTP request.
func (p *Provider) executeRequest(ctx context.Context, url string, body []byte) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		// Network errors are typically retryable
		return nil, ai.EAIUnavailable
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, p.mapHTTPError(resp.StatusCode, bodyBytes)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.EAIMalformedOutput, err)
	}

	return &apiResp, nil
}

// mapHTTPError maps HTTP status codes to domain errors.
func (p *Provider) mapHTTPError(statusCode int, body []byte) error {
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ai.EAIUnauthorized
	case http.StatusTooManyRequests:
		return ai.EAIRateLimit
	case http.StatusRequestTimeout:
		return ai.EAITimeout
	case http.StatusBadRequest:
		if errResp.Error.Status == "INVALID_ARGUMENT" {
			return fmt.Errorf("%w: %s", ai.EAIInvalidImage, errResp.Error.Message)
		}
		return fmt.Errorf("bad request: %s", errResp.Error.Message)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return ai.EAIUnavailable
	default:
		return fmt.Errorf("API error (status %d): %s", statusCode, errResp.Error.Message)
	}
}

// =============================================================================
// API request/response types
// =============================================================================

type apiRequest struct {
	Contents         []apiContent        `json:"contents"`
	GenerationConfig *apiGenerationConfig `json:"generationConfig,omitempty"`
	Tools            []apiTool           `json:"tools,omitempty"`
	ToolConfig       *apiToolConfig      `json:"toolConfig,omitempty"`
}

type apiContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []apiPart `json:"parts"`
}

type apiPart struct {
	Text       string         `json:"text,omitempty"`
	InlineData *apiInlineData `json:"inlineData,omitempty"`
}

type apiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type apiGenerationConfig struct {
	ResponseMimeType   string     `json:"responseMimeType,omitempty"`
	ResponseSchema     *apiSchema `json:"responseSchema,omitempty"`
	ResponseModalities []string   `json:"responseModalities,omitempty"`
	Temperature        float64    `json:"temperature,omitempty"`
}

type apiTool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
	GoogleMaps   *struct{} `json:"googleMaps,omitempty"`
}

type apiToolConfig struct {
	RetrievalConfig *apiRetrievalConfig `json:"retrievalConfig,omitempty"`
}

type apiRetrievalConfig struct {
	LatLng *apiLatLng `json:"latLng,omitempty"`
}

type apiLatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type apiResponse struct {
	Candidates []apiCandidate `json:"candidates"`
}

type apiCandidate struct {
	Content           apiCandidateContent   `json:"content"`
	GroundingMetadata *apiGroundingMetadata `json:"groundingMetadata,omitempty"`
}

type apiCandidateContent struct {
	Parts []apiPart `json:"parts"`
}

type apiGroundingMetadata struct {
	GroundingChunks []apiGroundingChunk `json:"groundingChunks"`
}

type apiGroundingChunk struct {
	Web  *apiGroundingSource `json:"web,omitempty"`
	Maps *apiGroundingSource `json:"maps,omitempty"`
}

type apiGroundingSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// firstText returns the first text part of the first candidate, or "".
func (r *apiResponse) firstText() string {
	for _, cand := range r.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}

// firstInlineData returns the first inline-data part of the first candidate,
// or nil when the response carries no inline image.
func (r *apiResponse) firstInlineData() *apiInlineData {
	for _, cand := range r.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil {
				return part.InlineData
			}
		}
	}
	return nil
}

// groundingChunks returns the citation chunks of the first candidate that
// carries grounding metadata.
func (r *apiResponse) groundingChunks() []apiGroundingChunk {
	for _, cand := range r.Candidates {
		if cand.GroundingMetadata != nil {
			return cand.GroundingMetadata.GroundingChunks
		}
	}
	return nil
}
