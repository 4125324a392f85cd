// Package domain contains core business types and interfaces.
//
// This file defines the HIRADC risk matrix: the 1-5 probability/severity
// scales, the five Indonesian risk levels, and the deterministic mapping
// from risk score to level.
package domain

import "strings"

// =============================================================================
// Risk Levels
// =============================================================================

// RiskLevel is the categorical bucket derived from a risk score.
// The string values are the Indonesian K3 labels and are part of the
// persisted report format, so they must not change.
type RiskLevel string

const (
	RiskLevelSangatRendah RiskLevel = "Sangat Rendah"
	RiskLevelRendah       RiskLevel = "Rendah"
	RiskLevelSedang       RiskLevel = "Sedang"
	RiskLevelTinggi       RiskLevel = "Tinggi"
	RiskLevelKritis       RiskLevel = "Sangat Tinggi/Kritis"
)

// String returns the string representation of the level.
func (l RiskLevel) String() string {
	return string(l)
}

// IsValid returns true if the level is a recognized value.
func (l RiskLevel) IsValid() bool {
	switch l {
	case RiskLevelSangatRendah, RiskLevelRendah, RiskLevelSedang,
		RiskLevelTinggi, RiskLevelKritis:
		return true
	}
	return false
}

// Rank returns the ordinal position of the level, 1 (lowest) to 5 (highest).
// Unknown levels rank 0 so they never win a "highest risk" comparison.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLevelSangatRendah:
		return 1
	case RiskLevelRendah:
		return 2
	case RiskLevelSedang:
		return 3
	case RiskLevelTinggi:
		return 4
	case RiskLevelKritis:
		return 5
	}
	return 0
}

// =============================================================================
// Risk Assessment
// =============================================================================

// RiskAssessment is one cell of the risk matrix: a (probability, severity)
// pair with its derived score and level. RiskScore is always
// Probability*Severity; it is never set independently.
type RiskAssessment struct {
	Probability int       `json:"probability"` // 1 (very unlikely) to 5 (very likely)
	Severity    int       `json:"severity"`    // 1 (insignificant injury) to 5 (fatality)
	RiskScore   int       `json:"riskScore"`   // Probability * Severity, 1-25
	RiskLevel   RiskLevel `json:"riskLevel"`
}

// Classify maps a (probability, severity) pair to its risk score and level.
//
// Both inputs must be integers in 1..5 inclusive. The level boundaries are:
//
//	 1-4  Sangat Rendah
//	 5-9  Rendah
//	10-15 Sedang
//	16-20 Tinggi
//	21-25 Sangat Tinggi/Kritis
func Classify(probability, severity int) (RiskAssessment, error) {
	const op = "risk.classify"

	if probability < 1 || probability > 5 {
		return RiskAssessment{}, Invalid(op, "probability must be an integer between 1 and 5")
	}
	if severity < 1 || severity > 5 {
		return RiskAssessment{}, Invalid(op, "severity must be an integer between 1 and 5")
	}

	score := probability * severity

	return RiskAssessment{
		Probability: probability,
		Severity:    severity,
		RiskScore:   score,
		RiskLevel:   LevelForScore(score),
	}, nil
}

// LevelForScore returns the risk level for a score in 1..25.
// The ranges are contiguous and exhaustive over the valid score range.
func LevelForScore(score int) RiskLevel {
	switch {
	case score <= 4:
		return RiskLevelSangatRendah
	case score <= 9:
		return RiskLevelRendah
	case score <= 15:
		return RiskLevelSedang
	case score <= 20:
		return RiskLevelTinggi
	default:
		return RiskLevelKritis
	}
}

// Validate checks that the assessment is internally consistent: inputs in
// range, score equal to the product, and level matching the score. Used to
// cross-check model-reported assessments before they enter a report.
func (a RiskAssessment) Validate() error {
	const op = "risk.validate"

	want, err := Classify(a.Probability, a.Severity)
	if err != nil {
		return err
	}
	if a.RiskScore != want.RiskScore {
		return Errorf(EINVALID, op, "risk score %d does not equal probability*severity (%d)", a.RiskScore, want.RiskScore)
	}
	if a.RiskLevel != want.RiskLevel {
		return Errorf(EINVALID, op, "risk level %q does not match score %d (want %q)", a.RiskLevel, a.RiskScore, want.RiskLevel)
	}
	return nil
}

// =============================================================================
// Hierarchy of Controls
// =============================================================================

// ControlLevel is one level of the hierarchy of controls, highest priority
// first. The values match the labels the analysis emits in riskControl text.
type ControlLevel string

const (
	ControlEliminasi    ControlLevel = "ELIMINASI"
	ControlSubstitusi   ControlLevel = "SUBSTITUSI"
	ControlRekayasa     ControlLevel = "REKAYASA"
	ControlAdministrasi ControlLevel = "ADMINISTRASI"
	ControlAPD          ControlLevel = "APD"
)

// ControlHierarchy lists the control levels in priority order.
var ControlHierarchy = []ControlLevel{
	ControlEliminasi,
	ControlSubstitusi,
	ControlRekayasa,
	ControlAdministrasi,
	ControlAPD,
}

// IsValid returns true if the level is part of the hierarchy.
func (c ControlLevel) IsValid() bool {
	for _, l := range ControlHierarchy {
		if c == l {
			return true
		}
	}
	return false
}

// ControlEntry is one parsed line of riskControl text.
type ControlEntry struct {
	Level       ControlLevel
	Description string
}

// ParseRiskControl splits newline-delimited "LEVEL: description" riskControl
// text into entries. This is best-effort presentation parsing: lines that do
// not carry a recognized level prefix are kept with an empty Level rather
// than rejected, since the text is model-generated prose.
func ParseRiskControl(text string) []ControlEntry {
	var entries []ControlEntry

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		entry := ControlEntry{Description: line}
		if label, rest, ok := strings.Cut(line, ":"); ok {
			level := ControlLevel(strings.ToUpper(strings.TrimSpace(label)))
			if level.IsValid() {
				entry.Level = level
				entry.Description = strings.TrimSpace(rest)
			}
		}
		entries = append(entries, entry)
	}

	return entries
}
