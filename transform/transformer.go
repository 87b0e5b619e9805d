// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package transform

import (
	"context"

	"github.com/poiesic/clinicalner/core"
)

// Transformer turns raw notes into processed documents.
type Transformer struct {
	extractor *Extractor
}

// NewTransformer creates a transformer that extracts entities with extractor.
func NewTransformer(extractor *Extractor) (*Transformer, error) {
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	return &Transformer{extractor: extractor}, nil
}

// Transform cleans the note text, extracts entities from the original text
// and derives entity metrics.
//
// Returns an error only for malformed notes or a cancelled context; model
// failures yield a document with no entities.
func (t *Transformer) Transform(ctx context.Context, note core.RawNote) (*core.ProcessedDocument, error) {
	if err := core.ValidateRawNote(note); err != nil {
		return nil, err
	}

	entities := t.extractor.Extract(ctx, note.Text)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cleaned := CleanText(note.Text)
	length := core.TextLength(cleaned)
	total := entities.Total()

	return &core.ProcessedDocument{
		ID:              note.ID,
		OriginalText:    note.Text,
		CleanedText:     cleaned,
		TextLength:      length,
		MedicalEntities: entities,
		EntityMetrics: core.EntityMetrics{
			TotalEntities:   total,
			SemanticDensity: core.SemanticDensity(total, length),
		},
	}, nil
}

// Extractor returns the wrapped extractor, for failure accounting.
func (t *Transformer) Extractor() *Extractor {
	return t.extractor
}
