package enrich

import "fmt"

// Reply field names.
const (
	FieldEmotionalRegulation = "emotional_regulation_score"
	FieldSocialIntegration   = "social_integration_score"
	FieldResilienceSummary   = "resilience_notes_summary"
)

const promptTemplate = `You are an expert child development analyst. Read the observation of a child below and assess it.

Observation: %s

Respond ONLY with a JSON object, with no text before or after it, in exactly this shape:

{
"%s": <integer 1-5>,
"%s": <integer 1-5>,
"%s": "<short summary>"
}

Guidelines:
- %s (1-5): 1=very poor, 5=excellent. Ability to manage emotions, stay calm, and handle frustration.
- %s (1-5): 1=very poor, 5=excellent. Ability to interact with peers, share, cooperate, and communicate.
- %s: brief summary of observed resilience indicators, coping strategies, or adaptability.

Return ONLY the JSON object.`

// BuildPrompt embeds the cleaned observation in the scoring instructions.
func BuildPrompt(observation string) string {
	return fmt.Sprintf(promptTemplate,
		observation,
		FieldEmotionalRegulation, FieldSocialIntegration, FieldResilienceSummary,
		FieldEmotionalRegulation, FieldSocialIntegration, FieldResilienceSummary,
	)
}
