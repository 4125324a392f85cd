package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyScoreIsProduct(t *testing.T) {
	for p := 1; p <= 5; p++ {
		for s := 1; s <= 5; s++ {
			got, err := Classify(p, s)
			require.NoError(t, err)
			assert.Equal(t, p*s, got.RiskScore)
			assert.Equal(t, p, got.Probability)
			assert.Equal(t, s, got.Severity)
			assert.True(t, got.RiskLevel.IsValid())
		}
	}
}

func TestClassifyLevelBoundaries(t *testing.T) {
	tests := []struct {
		name        string
		probability int
		severity    int
		wantScore   int
		wantLevel   RiskLevel
	}{
		{"minimum score", 1, 1, 1, RiskLevelSangatRendah},
		{"upper bound of sangat rendah", 1, 4, 4, RiskLevelSangatRendah},
		{"lower bound of rendah", 1, 5, 5, RiskLevelRendah},
		{"upper bound of rendah", 3, 3, 9, RiskLevelRendah},
		{"lower bound of sedang", 2, 5, 10, RiskLevelSedang},
		{"upper bound of sedang", 3, 5, 15, RiskLevelSedang},
		{"lower bound of tinggi", 4, 4, 16, RiskLevelTinggi},
		{"upper bound of tinggi", 4, 5, 20, RiskLevelTinggi},
		{"lower bound of kritis", 5, 5, 25, RiskLevelKritis},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.probability, tt.severity)
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, got.RiskScore)
			assert.Equal(t, tt.wantLevel, got.RiskLevel)
		})
	}
}

func TestLevelForScoreAtEveryBoundary(t *testing.T) {
	tests := []struct {
		score int
		want  RiskLevel
	}{
		{1, RiskLevelSangatRendah},
		{4, RiskLevelSangatRendah},
		{5, RiskLevelRendah},
		{9, RiskLevelRendah},
		{10, RiskLevelSedang},
		{15, RiskLevelSedang},
		{16, RiskLevelTinggi},
		{20, RiskLevelTinggi},
		{21, RiskLevelKritis},
		{25, RiskLevelKritis},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelForScore(tt.score), "score %d", tt.score)
	}
}

func TestClassifyRejectsOutOfRangeInput(t *testing.T) {
	tests := []struct {
		name        string
		probability int
		severity    int
	}{
		{"probability zero", 0, 3},
		{"probability six", 6, 3},
		{"probability negative", -1, 3},
		{"severity zero", 3, 0},
		{"severity six", 3, 6},
		{"both out of range", 0, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Classify(tt.probability, tt.severity)
			require.Error(t, err)
			assert.Equal(t, EINVALID, ErrorCode(err))
		})
	}
}

func TestRiskAssessmentValidate(t *testing.T) {
	tests := []struct {
		name       string
		assessment RiskAssessment
		wantErr    bool
	}{
		{
			name:       "consistent assessment",
			assessment: RiskAssessment{Probability: 4, Severity: 5, RiskScore: 20, RiskLevel: RiskLevelTinggi},
			wantErr:    false,
		},
		{
			name:       "score not the product",
			assessment: RiskAssessment{Probability: 4, Severity: 5, RiskScore: 19, RiskLevel: RiskLevelTinggi},
			wantErr:    true,
		},
		{
			name:       "level does not match score",
			assessment: RiskAssessment{Probability: 4, Severity: 5, RiskScore: 20, RiskLevel: RiskLevelRendah},
			wantErr:    true,
		},
		{
			name:       "probability out of range",
			assessment: RiskAssessment{Probability: 0, Severity: 5, RiskScore: 0, RiskLevel: RiskLevelSangatRendah},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.assessment.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRiskLevelRankOrdering(t *testing.T) {
	assert.Less(t, RiskLevelSangatRendah.Rank(), RiskLevelRendah.Rank())
	assert.Less(t, RiskLevelRendah.Rank(), RiskLevelSedang.Rank())
	assert.Less(t, RiskLevelSedang.Rank(), RiskLevelTinggi.Rank())
	assert.Less(t, RiskLevelTinggi.Rank(), RiskLevelKritis.Rank())
	assert.Equal(t, 0, RiskLevel("unknown").Rank())
}

func TestParseRiskControl(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []ControlEntry
	}{
		{
			name: "empty text",
			text: "",
			want: nil,
		},
		{
			name: "subset of levels",
			text: "REKAYASA: Pasang pelindung mesin\nADMINISTRASI: Buat SOP penggunaan\nAPD: Gunakan sarung tangan",
			want: []ControlEntry{
				{Level: ControlRekayasa, Description: "Pasang pelindung mesin"},
				{Level: ControlAdministrasi, Description: "Buat SOP penggunaan"},
				{Level: ControlAPD, Description: "Gunakan sarung tangan"},
			},
		},
		{
			name: "unlabelled prose kept as-is",
			text: "Gunakan alat yang sesuai standar",
			want: []ControlEntry{
				{Level: "", Description: "Gunakan alat yang sesuai standar"},
			},
		},
		{
			name: "unknown label kept as plain description",
			text: "CATATAN: bukan level hirarki",
			want: []ControlEntry{
				{Level: "", Description: "CATATAN: bukan level hirarki"},
			},
		},
		{
			name: "blank lines skipped",
			text: "ELIMINASI: Hentikan pekerjaan di ketinggian\n\nAPD: Gunakan full body harness\n",
			want: []ControlEntry{
				{Level: ControlEliminasi, Description: "Hentikan pekerjaan di ketinggian"},
				{Level: ControlAPD, Description: "Gunakan full body harness"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRiskControl(tt.text))
		})
	}
}
