package gemini

import "fmt"

// buildHazardAnalysisPrompt creates the hazard-identification instruction for
// one task. The risk table and hierarchy-of-controls rule here mirror the
// classification implemented in the domain package; the schema in schema.go
// constrains the response shape to match.
func buildHazardAnalysisPrompt(taskDescription string) string {
	return fmt.Sprintf(`Analyze the provided task description for potential workplace safety hazards (K3 - Keselamatan dan Kesehatan Kerja) in Indonesia. An image of the work area may also be provided for additional context.
Task Description: %q

Your task is to identify all potential hazards and perform a risk assessment for each.
Present the result in a structured JSON format. The root object must have a single key "hazards", which is an array of hazard objects.

For each identified hazard, provide the following information in a hazard object:
1.  "activityDetail": A brief description of the specific activity or condition that relates to the hazard. If an image is provided, reference it.
2.  "potentialHazard": A clear and concise description of the potential hazard itself (e.g., "Tersandung kabel listrik", "Terkena percikan api gerinda").
3.  "consequence": The potential consequence if the hazard is realized (e.g., "Cedera ringan hingga berat, memar, patah tulang", "Luka bakar pada mata atau kulit").
4.  "initialRisk": An object representing the risk assessment *before* any controls are applied.
5.  "riskControl": A detailed description of recommended control measures. Follow the hierarchy of controls (ELIMINASI, SUBSTITUSI, REKAYASA, ADMINISTRASI, APD). **Only include the control levels that are relevant and applicable to the hazard.** If a level is not applicable, omit it entirely from the response. Structure the output as a multi-line string with each applicable control level on a new line, like: "REKAYASA: [description]\nADMINISTRASI: [description]".
6.  "residualRisk": An object representing the risk assessment *after* the recommended controls are applied.

For both "initialRisk" and "residualRisk" objects, provide:
- "probability": A numerical score from 1 (very unlikely) to 5 (very likely).
- "severity": A numerical score from 1 (insignificant injury) to 5 (fatality).
- "riskScore": Calculated as probability * severity.
- "riskLevel": The risk level based on the risk score, which must be one of: 'Sangat Rendah', 'Rendah', 'Sedang', 'Tinggi', 'Sangat Tinggi/Kritis'.
    - Sangat Rendah (1-4)
    - Rendah (5-9)
    - Sedang (10-15)
    - Tinggi (16-20)
    - Sangat Tinggi/Kritis (21-25)

Ensure your entire response is ONLY the JSON object, starting with { and ending with }. Do not include any introductory text, markdown formatting, or explanations outside the JSON structure. If no hazards are found, return an empty hazards array: {"hazards": []}.`, taskDescription)
}
