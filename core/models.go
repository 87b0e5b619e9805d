package core

import (
	"time"
	"unicode/utf8"
)

// Entity labels recognized by the extraction model.
const (
	LabelMedication = "medication"
	LabelDiagnosis  = "diagnosis"
	LabelSymptom    = "symptom"
	LabelProcedure  = "procedure"
	LabelBodyPart   = "body_part"
)

// Labels is the fixed, ordered label vocabulary requested from the model.
var Labels = []string{
	LabelMedication,
	LabelDiagnosis,
	LabelSymptom,
	LabelProcedure,
	LabelBodyPart,
}

// IsLabel reports whether label belongs to the fixed vocabulary.
func IsLabel(label string) bool {
	for _, l := range Labels {
		if l == label {
			return true
		}
	}
	return false
}

// RawNote is a clinical note as stored in the clinical_notes table.
type RawNote struct {
	ID   int64
	Text string
	// Missing is set when the note column is NULL.
	Missing bool
}

// DatasetRow is one row of the public clinical notes corpus.
type DatasetRow struct {
	Idx          int64  `json:"idx"`
	Note         string `json:"note"`
	FullNote     string `json:"full_note"`
	Conversation string `json:"conversation"`
	Summary      string `json:"summary"`
}

// ExtractedEntities maps every label to the spans the model matched for it.
// Order and duplicates are kept as returned by the model.
type ExtractedEntities map[string][]string

// NewExtractedEntities returns an entity set with every label mapped to an empty slice.
func NewExtractedEntities() ExtractedEntities {
	e := make(ExtractedEntities, len(Labels))
	for _, label := range Labels {
		e[label] = []string{}
	}
	return e
}

// Add appends a span to label. Unknown labels are ignored.
func (e ExtractedEntities) Add(label, span string) bool {
	if !IsLabel(label) {
		return false
	}
	e[label] = append(e[label], span)
	return true
}

// Get returns the spans for label, never nil.
func (e ExtractedEntities) Get(label string) []string {
	if spans, ok := e[label]; ok && spans != nil {
		return spans
	}
	return []string{}
}

// Total counts all spans across labels.
func (e ExtractedEntities) Total() int {
	total := 0
	for _, label := range Labels {
		total += len(e[label])
	}
	return total
}

// Normalize ensures every label key is present with a non-nil slice.
// Decoded artifacts written by older tooling may omit keys.
func (e ExtractedEntities) Normalize() ExtractedEntities {
	if e == nil {
		return NewExtractedEntities()
	}
	for _, label := range Labels {
		if e[label] == nil {
			e[label] = []string{}
		}
	}
	return e
}

// EntityMetrics holds the derived counts for a document.
type EntityMetrics struct {
	TotalEntities   int     `json:"total_entities"`
	SemanticDensity float64 `json:"semantic_density"`
}

// ProcessedDocument is the structured record produced for one note.
type ProcessedDocument struct {
	ID              int64             `json:"id"`
	OriginalText    string            `json:"original_text"`
	CleanedText     string            `json:"cleaned_text"`
	TextLength      int               `json:"text_length"`
	MedicalEntities ExtractedEntities `json:"medical_entities"`
	EntityMetrics   EntityMetrics     `json:"entity_metrics"`
}

// TextLength returns the character length of text.
func TextLength(text string) int {
	return utf8.RuneCountInString(text)
}

// SemanticDensity returns total/length, or 0 when length is zero.
func SemanticDensity(total, length int) float64 {
	if length <= 0 {
		return 0
	}
	return float64(total) / float64(length)
}

// Checkpoint records how far a processor got through the corpus.
type Checkpoint struct {
	ProcessorType string    `json:"processor_type"`
	LastID        int64     `json:"last_id"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LedgerEntry records an artifact that was applied to the store.
type LedgerEntry struct {
	Artifact  string    `json:"artifact"`
	Digest    string    `json:"digest"`
	Documents int       `json:"documents"`
	AppliedAt time.Time `json:"applied_at"`
}

// NoteMetadata is the derived metadata stored alongside a note.
type NoteMetadata struct {
	ID              int64
	Note            string
	TextLength      *int
	TotalEntities   *int
	SemanticDensity *float64
	Entities        ExtractedEntities
}
