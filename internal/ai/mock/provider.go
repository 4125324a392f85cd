package mock

import (
	"context"
	"log/slog"
	"sync"

	"github.com/wgunawan/hiradc/internal/ai"
	"github.com/wgunawan/hiradc/internal/domain"
)

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger

	// Configurable responses for testing
	AnalyzeHazardsResponse *domain.Analysis
	AnalyzeHazardsError    error
	GroundedQueryResponse  *domain.GroundingResult
	GroundedQueryError     error
	EditImageResponse      *ai.EditedImage
	EditImageError         error

	// Per-task error injection: a task description listed here fails even
	// when AnalyzeHazardsError is unset. Lets tests fail one task of a
	// multi-task composition.
	FailTaskDescriptions map[string]error

	// Call tracking for testing. Guarded by mu: compositions call
	// AnalyzeHazards from multiple goroutines.
	mu                  sync.Mutex
	AnalyzeHazardsCalls int
	GroundedQueryCalls  int
	EditImageCalls      int
}

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// AnalyzeHazards returns a canned analysis with one sample hazard
func (p *Provider) AnalyzeHazards(ctx context.Context, params ai.AnalyzeParams) (*domain.Analysis, error) {
	p.mu.Lock()
	p.AnalyzeHazardsCalls++
	p.mu.Unlock()

	if err, ok := p.FailTaskDescriptions[params.TaskDescription]; ok {
		return nil, err
	}
	if p.AnalyzeHazardsError != nil {
		return nil, p.AnalyzeHazardsError
	}
	if p.AnalyzeHazardsResponse != nil {
		return p.AnalyzeHazardsResponse, nil
	}

	// Default canned response
	return &domain.Analysis{
		Hazards: []domain.Hazard{
			{
				ActivityDetail:  "Pekerjaan pada instalasi listrik aktif: " + params.TaskDescription,
				PotentialHazard: "Tersengat arus listrik",
				Consequence:     "Luka bakar, henti jantung, hingga kematian",
				InitialRisk: domain.RiskAssessment{
					Probability: 4, Severity: 5, RiskScore: 20, RiskLevel: domain.RiskLevelTinggi,
				},
				RiskControl: "REKAYASA: Matikan dan kunci sumber listrik (LOTO)\nADMINISTRASI: Izin kerja listrik dan pengawasan\nAPD: Sarung tangan isolasi dan sepatu dielektrik",
				ResidualRisk: domain.RiskAssessment{
					Probability: 2, Severity: 5, RiskScore: 10, RiskLevel: domain.RiskLevelSedang,
				},
			},
			{
				ActivityDetail:  "Bekerja di ketinggian menggunakan tangga",
				PotentialHazard: "Terjatuh dari ketinggian",
				Consequence:     "Memar, patah tulang, cedera kepala",
				InitialRisk: domain.RiskAssessment{
					Probability: 3, Severity: 4, RiskScore: 12, RiskLevel: domain.RiskLevelSedang,
				},
				RiskControl: "ADMINISTRASI: Gunakan tangga sesuai SOP dengan pendamping\nAPD: Helm keselamatan",
				ResidualRisk: domain.RiskAssessment{
					Probability: 2, Severity: 4, RiskScore: 8, RiskLevel: domain.RiskLevelRendah,
				},
			},
		},
	}, nil
}

// GroundedQuery returns a canned grounded answer with one citation of each kind
func (p *Provider) GroundedQuery(ctx context.Context, params ai.QueryParams) (*domain.GroundingResult, error) {
	p.mu.Lock()
	p.GroundedQueryCalls++
	p.mu.Unlock()

	if p.GroundedQueryError != nil {
		return nil, p.GroundedQueryError
	}
	if p.GroundedQueryResponse != nil {
		return p.GroundedQueryResponse, nil
	}

	return &domain.GroundingResult{
		Text: "Rumah sakit terdekat dari lokasi Anda adalah RSUD Kota, sekitar 2,3 km.",
		Chunks: []domain.GroundingChunk{
			{Maps: &domain.GroundingSource{URI: "https://maps.example/rsud-kota", Title: "RSUD Kota"}},
			{Web: &domain.GroundingSource{URI: "https://web.example/igd-24-jam", Title: "Daftar IGD 24 Jam"}},
		},
	}, nil
}

// EditImage returns a canned one-pixel PNG
func (p *Provider) EditImage(ctx context.Context, params ai.EditParams) (*ai.EditedImage, error) {
	p.mu.Lock()
	p.EditImageCalls++
	p.mu.Unlock()

	if p.EditImageError != nil {
		return nil, p.EditImageError
	}
	if p.EditImageResponse != nil {
		return p.EditImageResponse, nil
	}

	return &ai.EditedImage{
		MediaType: "image/png",
		Data:      []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a},
	}, nil
}
