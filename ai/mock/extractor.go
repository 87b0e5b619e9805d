package mock

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/poiesic/clinicalner/ai"
)

// Lexicon is the default term list used by MockEntityExtractor, keyed by label.
var Lexicon = map[string][]string{
	"medication": {"ibuprofen", "aspirin", "metformin", "insulin", "amoxicillin"},
	"diagnosis":  {"diabetes", "pneumonia", "hypertension", "migraine"},
	"symptom":    {"headache", "fever", "cough", "nausea", "chest pain"},
	"procedure":  {"ct scan", "x-ray", "mri", "biopsy", "appendectomy"},
	"body_part":  {"chest", "abdomen", "knee", "head"},
}

// MockEntityExtractor is a test double for ai.EntityExtractor.
// It allows custom behavior injection via function fields.
type MockEntityExtractor struct {
	// PredictEntitiesFunc is called by PredictEntities if set.
	// If nil, uses default lexicon matching.
	PredictEntitiesFunc func(ctx context.Context, text string, labels []string, threshold float64) ([]ai.Entity, error)

	mu        sync.Mutex
	callCount int
}

// NewMockEntityExtractor creates a mock extractor with default lexicon behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockEntityExtractor() *MockEntityExtractor {
	return &MockEntityExtractor{}
}

// WithPredictFunc sets custom behavior and returns the mock for chaining.
func (m *MockEntityExtractor) WithPredictFunc(fn func(ctx context.Context, text string, labels []string, threshold float64) ([]ai.Entity, error)) *MockEntityExtractor {
	m.PredictEntitiesFunc = fn
	return m
}

// PredictEntities returns lexicon matches for the requested labels.
func (m *MockEntityExtractor) PredictEntities(ctx context.Context, text string, labels []string, threshold float64) ([]ai.Entity, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.PredictEntitiesFunc != nil {
		return m.PredictEntitiesFunc(ctx, text, labels, threshold)
	}

	type hit struct {
		pos    int
		entity ai.Entity
	}

	lower := strings.ToLower(text)
	var hits []hit
	for _, label := range labels {
		for _, term := range Lexicon[label] {
			offset := 0
			for {
				idx := strings.Index(lower[offset:], term)
				if idx < 0 {
					break
				}
				start := offset + idx
				end := start + len(term)
				hits = append(hits, hit{
					pos:    start,
					entity: ai.Entity{Text: text[start:end], Label: label, Score: 1.0},
				})
				offset = end
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	entities := make([]ai.Entity, 0, len(hits))
	for _, h := range hits {
		entities = append(entities, h.entity)
	}
	return entities, nil
}

// CallCount returns the number of times PredictEntities was called.
func (m *MockEntityExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockEntityExtractor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.PredictEntitiesFunc = nil
}
