package core

import (
	"fmt"
	"math"
)

// densityTolerance absorbs decimal formatting by other JSON writers.
const densityTolerance = 1e-9

// ValidateRawNote validates a note before it is transformed.
//
// Validation rules:
//   - ID must not be negative
//   - Text must not be NULL (empty text is allowed)
func ValidateRawNote(note RawNote) error {
	if note.ID < 0 {
		return fmt.Errorf("%w: %w: %d", ErrInvalidNote, ErrInvalidID, note.ID)
	}
	if note.Missing {
		return fmt.Errorf("%w: %w", ErrInvalidNote, ErrMissingText)
	}
	return nil
}

// ValidateProcessedDocument validates a document read back from a batch artifact.
//
// Validation rules:
//   - ID must not be negative
//   - TextLength must equal the character length of CleanedText
//   - TotalEntities must equal the number of extracted spans
//   - SemanticDensity must be finite and non-negative
//   - SemanticDensity must equal SemanticDensity(TotalEntities, TextLength)
//
// Missing label keys are not an error; callers normalize them first.
func ValidateProcessedDocument(doc *ProcessedDocument) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if doc.ID < 0 {
		return fmt.Errorf("%w: %w: %d", ErrInvalidDocument, ErrInvalidID, doc.ID)
	}
	if got := TextLength(doc.CleanedText); got != doc.TextLength {
		return fmt.Errorf("%w: id %d: %w (%d != %d)", ErrInvalidDocument, doc.ID, ErrLengthMismatch, doc.TextLength, got)
	}
	if got := doc.MedicalEntities.Total(); got != doc.EntityMetrics.TotalEntities {
		return fmt.Errorf("%w: id %d: %w (%d != %d)", ErrInvalidDocument, doc.ID, ErrCountMismatch, doc.EntityMetrics.TotalEntities, got)
	}
	d := doc.EntityMetrics.SemanticDensity
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return fmt.Errorf("%w: id %d: %w", ErrInvalidDocument, doc.ID, ErrInvalidDensity)
	}
	if want := SemanticDensity(doc.EntityMetrics.TotalEntities, doc.TextLength); math.Abs(d-want) > densityTolerance {
		return fmt.Errorf("%w: id %d: %w (%g != %g)", ErrInvalidDocument, doc.ID, ErrDensityMismatch, d, want)
	}
	return nil
}
