package artifact

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/poiesic/clinicalner/core"
)

// wireDocument mirrors core.ProcessedDocument with pointer fields so absent
// keys can be told apart from zero values.
type wireDocument struct {
	ID              *int64                  `json:"id"`
	OriginalText    string                  `json:"original_text"`
	CleanedText     *string                 `json:"cleaned_text"`
	TextLength      *int                    `json:"text_length"`
	MedicalEntities *core.ExtractedEntities `json:"medical_entities"`
	EntityMetrics   *wireMetrics            `json:"entity_metrics"`
}

type wireMetrics struct {
	TotalEntities   *int     `json:"total_entities"`
	SemanticDensity *float64 `json:"semantic_density"`
}

// missing lists the required keys absent from d.
func (d *wireDocument) missing() []string {
	var keys []string
	if d.ID == nil {
		keys = append(keys, "id")
	}
	if d.CleanedText == nil {
		keys = append(keys, "cleaned_text")
	}
	if d.TextLength == nil {
		keys = append(keys, "text_length")
	}
	if d.MedicalEntities == nil {
		keys = append(keys, "medical_entities")
	}
	switch {
	case d.EntityMetrics == nil:
		keys = append(keys, "entity_metrics")
	default:
		if d.EntityMetrics.TotalEntities == nil {
			keys = append(keys, "entity_metrics.total_entities")
		}
		if d.EntityMetrics.SemanticDensity == nil {
			keys = append(keys, "entity_metrics.semantic_density")
		}
	}
	return keys
}

// decodeDocuments parses a JSON array of documents. Every required key must be
// present; an empty medical_entities object is accepted and normalized.
func decodeDocuments(name string, raw []byte) ([]*core.ProcessedDocument, error) {
	var wire []*wireDocument
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArtifact, name, err)
	}

	docs := make([]*core.ProcessedDocument, len(wire))
	for i, w := range wire {
		if w == nil {
			return nil, fmt.Errorf("%w: %s: document %d is null", ErrInvalidArtifact, name, i)
		}
		if keys := w.missing(); len(keys) > 0 {
			return nil, fmt.Errorf("%w: %s: document %d: missing %s", ErrInvalidArtifact, name, i, strings.Join(keys, ", "))
		}
		docs[i] = &core.ProcessedDocument{
			ID:              *w.ID,
			OriginalText:    w.OriginalText,
			CleanedText:     *w.CleanedText,
			TextLength:      *w.TextLength,
			MedicalEntities: w.MedicalEntities.Normalize(),
			EntityMetrics: core.EntityMetrics{
				TotalEntities:   *w.EntityMetrics.TotalEntities,
				SemanticDensity: *w.EntityMetrics.SemanticDensity,
			},
		}
	}
	return docs, nil
}
