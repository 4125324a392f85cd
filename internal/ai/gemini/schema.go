package gemini

import "github.com/wgunawan/hiradc/internal/domain"

// apiSchema is the subset of the generateContent structured-output schema
// language we need to pin down the hazard response shape.
type apiSchema struct {
	Type        string               `json:"type"`
	Description string               `json:"description,omitempty"`
	Enum        []string             `json:"enum,omitempty"`
	Items       *apiSchema           `json:"items,omitempty"`
	Properties  map[string]apiSchema `json:"properties,omitempty"`
	Required    []string             `json:"required,omitempty"`
}

const (
	schemaObject = "OBJECT"
	schemaArray  = "ARRAY"
	schemaString = "STRING"
	schemaNumber = "NUMBER"
)

// hazardResponseSchema constrains the analysis response to an object with a
// single "hazards" array whose elements carry every Hazard field.
func hazardResponseSchema() *apiSchema {
	riskAssessment := apiSchema{
		Type: schemaObject,
		Properties: map[string]apiSchema{
			"probability": {Type: schemaNumber, Description: "Skor probabilitas dari 1-5"},
			"severity":    {Type: schemaNumber, Description: "Skor keparahan dari 1-5"},
			"riskScore":   {Type: schemaNumber, Description: "Skor risiko (probabilitas * keparahan)"},
			"riskLevel": {
				Type: schemaString,
				Enum: []string{
					domain.RiskLevelSangatRendah.String(),
					domain.RiskLevelRendah.String(),
					domain.RiskLevelSedang.String(),
					domain.RiskLevelTinggi.String(),
					domain.RiskLevelKritis.String(),
				},
			},
		},
		Required: []string{"probability", "severity", "riskScore", "riskLevel"},
	}

	hazard := apiSchema{
		Type: schemaObject,
		Properties: map[string]apiSchema{
			"activityDetail":  {Type: schemaString},
			"potentialHazard": {Type: schemaString},
			"consequence":     {Type: schemaString},
			"initialRisk":     riskAssessment,
			"riskControl":     {Type: schemaString},
			"residualRisk":    riskAssessment,
		},
		Required: []string{"activityDetail", "potentialHazard", "consequence", "initialRisk", "riskControl", "residualRisk"},
	}

	return &apiSchema{
		Type: schemaObject,
		Properties: map[string]apiSchema{
			"hazards": {Type: schemaArray, Items: &hazard},
		},
		Required: []string{"hazards"},
	}
}
