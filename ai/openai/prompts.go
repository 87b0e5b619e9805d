package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/clinicalner/ai"
)

const entityResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "text": {
            "type": "string"
          },
          "label": {
            "type": "string"
          },
          "score": {
            "type": "number",
            "minimum": 0,
            "maximum": 1
          }
        },
        "required": ["text", "label", "score"],
        "additionalProperties": false
      }
    }
  },
  "required": ["entities"],
  "additionalProperties": false
}`

const entityPromptTemplate = `You are a clinical named entity recognizer. Find every span of the given clinical note that
belongs to one of the labels below and return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Labels:
%s

Rules:
- "text" must be copied exactly as it appears in the note, with the same casing and punctuation.
- "label" must be exactly one of: %s.
- "score" is your confidence from 0 to 1.
- List entities in the order they appear. If a span appears several times, list it each time.
- Include only spans that are present in the note. Do not hallucinate.
- If nothing matches, return "entities": [].
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "Patient reports Headache. Prescribed Ibuprofen 400 mg for the headache."
Output:
{
  "entities": [
    {"text":"Headache","label":"symptom","score":0.95},
    {"text":"Ibuprofen","label":"medication","score":0.97},
    {"text":"headache","label":"symptom","score":0.9}
  ]
}

Example (nothing clinical):
Input: "Follow up in two weeks."
Output:
{
  "entities": []
}`

// buildSystemPrompt creates the system prompt for the requested labels.
func buildSystemPrompt(labels []string) string {
	var lines strings.Builder
	for _, label := range labels {
		desc, ok := ai.LabelDescriptions[label]
		if !ok {
			desc = strings.ReplaceAll(label, "_", " ")
		}
		fmt.Fprintf(&lines, "- %s: %s\n", label, desc)
	}
	return fmt.Sprintf(entityPromptTemplate,
		entityResponseSchema,
		strings.TrimSuffix(lines.String(), "\n"),
		strings.Join(labels, ", "))
}
