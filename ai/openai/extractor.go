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


package openai

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/clinicalner/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const maxParseAttempts = 3

// EntityExtractor implements ai.EntityExtractor using OpenAI-compatible chat APIs.
type EntityExtractor struct {
	client llms.Model
	logger *slog.Logger
}

// entity is an internal type used for JSON unmarshaling.
// It matches the structure expected by the LLM.
type entity struct {
	Text  string  `json:"text"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// recognition is the wrapper structure for the LLM's JSON response.
type recognition struct {
	Entities []entity `json:"entities"`
}

// newEntityExtractor is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEntityExtractor(config *ai.Config) (*EntityExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.Host),
		openai.WithToken(config.Token),
		openai.WithModel(config.Model),
	)
	if err != nil {
		return nil, err
	}

	return newEntityExtractorWithModel(client), nil
}

func newEntityExtractorWithModel(client llms.Model) *EntityExtractor {
	return &EntityExtractor{
		client: client,
		logger: slog.Default().With("component", "openai-extractor"),
	}
}

// NewEntityExtractor creates a new entity extractor using the provided configuration.
//
// Returns ai.EntityExtractor interface to enforce abstraction.
func NewEntityExtractor(config *ai.Config) (ai.EntityExtractor, error) {
	return newEntityExtractor(config)
}

// PredictEntities labels spans of text using an LLM.
// Spans below threshold, with labels outside the requested set, or that do not
// occur in text are dropped.
func (e *EntityExtractor) PredictEntities(ctx context.Context, text string, labels []string, threshold float64) ([]ai.Entity, error) {
	if strings.TrimSpace(text) == "" {
		return []ai.Entity{}, nil
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(buildSystemPrompt(labels)),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(text),
			},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var result recognition
	var lastErr error
	for attempt := 0; attempt < maxParseAttempts; attempt++ {
		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}

		if len(response.Choices) < 1 {
			e.logger.Debug("no choices returned from model")
			return []ai.Entity{}, nil
		}

		responseText := repairJSON(stripCodeFences(response.Choices[0].Content))

		result = recognition{}
		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = err
			e.logger.Warn("error parsing recognizer response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		e.logger.Error("failed to parse recognizer response after retries", "err", lastErr)
		return nil, lastErr
	}

	lowerText := strings.ToLower(text)
	extracted := make([]ai.Entity, 0, len(result.Entities))
	for _, ent := range result.Entities {
		span := strings.TrimSpace(ent.Text)
		label := normalizeLabel(ent.Label)
		switch {
		case span == "":
			continue
		case ent.Score < threshold:
			continue
		case !slices.Contains(labels, label):
			continue
		case !strings.Contains(lowerText, strings.ToLower(span)):
			e.logger.Debug("dropping span not present in text", "span", span, "label", label)
			continue
		}
		extracted = append(extracted, ai.Entity{Text: span, Label: label, Score: ent.Score})
	}

	e.logger.Debug("recognized entities",
		"total", len(result.Entities),
		"kept", len(extracted))

	return extracted, nil
}
