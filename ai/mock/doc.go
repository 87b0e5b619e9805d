// Package mock provides test double implementations of AI service interfaces.
//
// MockEntityExtractor and MockProvider let pipeline tests run without a model
// server and with deterministic output.
//
//	extractor := mock.NewMockEntityExtractor().
//	    WithPredictFunc(func(ctx context.Context, text string, labels []string, threshold float64) ([]ai.Entity, error) {
//	        return []ai.Entity{{Text: "Headache", Label: "symptom", Score: 0.9}}, nil
//	    })
//	count := extractor.CallCount()
//
// # Default Behavior
//
// Without an injected function, MockEntityExtractor matches a small built-in
// lexicon of clinical terms case-insensitively and returns each hit in text
// order with score 1.0.
package mock
