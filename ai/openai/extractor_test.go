package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/clinicalner/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// scriptedModel replays canned responses, one per GenerateContent call.
type scriptedModel struct {
	responses []string
	err       error
	calls     int
	lastMsgs  []llms.MessageContent
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls++
	m.lastMsgs = messages
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return &llms.ContentResponse{}, nil
	}
	idx := m.calls - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.responses[idx]}},
	}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

var labels = []string{"medication", "diagnosis", "symptom", "procedure", "body_part"}

func TestPredictEntities_ParsesAndFilters(t *testing.T) {
	model := &scriptedModel{responses: []string{"```json\n" + `{
  "entities": [
    {"text":"Headache","label":"symptom","score":0.95},
    {"text":"Ibuprofen","label":"Medication","score":0.9},
    {"text":"aspirin","label":"medication","score":0.9},
    {"text":"headache","label":"symptom","score":0.2},
    {"text":"staph","label":"organism","score":0.99},
    {"text":"left knee","label":"body part","score":0.8},
  ]
}` + "\n```"}}
	e := newEntityExtractorWithModel(model)

	got, err := e.PredictEntities(context.Background(),
		"Headache for two days; took Ibuprofen. Left knee swollen. headache again.", labels, 0.5)
	require.NoError(t, err)

	assert.Equal(t, []ai.Entity{
		{Text: "Headache", Label: "symptom", Score: 0.95},
		{Text: "Ibuprofen", Label: "medication", Score: 0.9},
		{Text: "left knee", Label: "body_part", Score: 0.8},
	}, got)
	assert.Equal(t, 1, model.calls)
	require.Len(t, model.lastMsgs, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.lastMsgs[0].Role)
}

func TestPredictEntities_RetriesMalformedJSON(t *testing.T) {
	model := &scriptedModel{responses: []string{
		"not json at all",
		`{"entities":[{"text":"fever","label":"symptom","score":1}]}`,
	}}
	e := newEntityExtractorWithModel(model)

	got, err := e.PredictEntities(context.Background(), "fever overnight", labels, 0.5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 2, model.calls)
}

func TestPredictEntities_GivesUpAfterThreeParseFailures(t *testing.T) {
	model := &scriptedModel{responses: []string{"nope"}}
	e := newEntityExtractorWithModel(model)

	_, err := e.PredictEntities(context.Background(), "fever", labels, 0.5)
	assert.Error(t, err)
	assert.Equal(t, maxParseAttempts, model.calls)
}

func TestPredictEntities_ModelError(t *testing.T) {
	boom := errors.New("connection refused")
	model := &scriptedModel{err: boom}
	e := newEntityExtractorWithModel(model)

	_, err := e.PredictEntities(context.Background(), "fever", labels, 0.5)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, model.calls)
}

func TestPredictEntities_BlankTextSkipsModel(t *testing.T) {
	model := &scriptedModel{}
	e := newEntityExtractorWithModel(model)

	got, err := e.PredictEntities(context.Background(), "   ", labels, 0.5)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, model.calls)
}

func TestPredictEntities_NoChoices(t *testing.T) {
	model := &scriptedModel{}
	e := newEntityExtractorWithModel(model)

	got, err := e.PredictEntities(context.Background(), "fever", labels, 0.5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBuildSystemPrompt_ListsLabels(t *testing.T) {
	prompt := buildSystemPrompt([]string{"medication", "custom_label"})

	assert.Contains(t, prompt, "- medication: drug names")
	assert.Contains(t, prompt, "- custom_label: custom label")
	assert.Contains(t, prompt, "exactly one of: medication, custom_label")
}

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "valid input untouched", in: `{"a":[1,2]}`, want: `{"a":[1,2]}`},
		{name: "bare key", in: `{text":"fever"}`, want: `{"text":"fever"}`},
		{name: "bare key after comma", in: `{"text":"fever", label":"symptom"}`, want: `{"text":"fever", "label":"symptom"}`},
		{name: "trailing comma in array", in: `{"entities":[1,2,]}`, want: `{"entities":[1,2]}`},
		{name: "trailing comma in object", in: "{\"a\":1,\n}", want: "{\"a\":1\n}"},
		{name: "comma inside string kept", in: `{"a":"x,]"}`, want: `{"a":"x,]"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, repairJSON(tt.in))
		})
	}
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "body_part", normalizeLabel(" Body Part "))
	assert.Equal(t, "body_part", normalizeLabel("body-part"))
	assert.Equal(t, "medication", normalizeLabel("MEDICATION"))
}

func TestNewProvider_ValidatesConfig(t *testing.T) {
	_, err := NewProvider(&ai.Config{Host: "", Model: "m"})
	assert.Error(t, err)

	p, err := NewProvider(ai.NewConfig(ai.WithHost("http://localhost:11434")))
	require.NoError(t, err)
	assert.NotNil(t, p.EntityExtractor())
	assert.NoError(t, p.Close())
}
