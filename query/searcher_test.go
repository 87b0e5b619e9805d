package query

import (
	"context"
	"strings"
	"testing"

	"github.com/poiesic/clinicalner/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore answers queries from a fixed list of notes.
type fakeStore struct {
	notes     []*core.NoteMetadata
	lastTerm  string
	lastLimit int
}

func (f *fakeStore) Preview(ctx context.Context, limit int) ([]*core.NoteMetadata, error) {
	f.lastLimit = limit
	if limit > len(f.notes) {
		limit = len(f.notes)
	}
	return f.notes[:limit], nil
}

func (f *fakeStore) FindByEntity(ctx context.Context, label, term string, limit int) ([]*core.NoteMetadata, error) {
	f.lastTerm = term
	f.lastLimit = limit
	var out []*core.NoteMetadata
	for _, n := range f.notes {
		for _, span := range n.Entities.Get(label) {
			if strings.Contains(strings.ToLower(span), term) {
				out = append(out, n)
				break
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func note(id int64, label string, spans ...string) *core.NoteMetadata {
	entities := core.NewExtractedEntities()
	for _, s := range spans {
		entities.Add(label, s)
	}
	return &core.NoteMetadata{ID: id, Note: "note", Entities: entities}
}

func newFixture(t *testing.T) (*Searcher, *fakeStore) {
	t.Helper()
	store := &fakeStore{notes: []*core.NoteMetadata{
		note(1, core.LabelSymptom, "severe chest pain"),
		note(2, core.LabelSymptom, "chest tightness"),
		note(3, core.LabelMedication, "Ibuprofen 400mg"),
		note(4, core.LabelSymptom, "pain in the chest"),
	}}
	s, err := NewSearcher(store)
	require.NoError(t, err)
	return s, store
}

func TestNewSearcher_RequiresStore(t *testing.T) {
	_, err := NewSearcher(nil)
	assert.ErrorIs(t, err, ErrStoreRequired)
}

func TestPreview_DefaultsToOneNote(t *testing.T) {
	s, store := newFixture(t)
	notes, err := s.Preview(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
	assert.Equal(t, DefaultPreviewLimit, store.lastLimit)
}

func TestFindByEntity_SingleWord(t *testing.T) {
	s, store := newFixture(t)
	notes, err := s.FindByEntity(context.Background(), core.LabelMedication, "  IBUPROFEN ", 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, int64(3), notes[0].ID)
	assert.Equal(t, "ibuprofen", store.lastTerm)
	assert.Equal(t, DefaultFindLimit, store.lastLimit)
}

func TestFindByEntity_AllWordsMustMatchOneSpan(t *testing.T) {
	s, store := newFixture(t)
	notes, err := s.FindByEntity(context.Background(), core.LabelSymptom, "the chest pain", 10)
	require.NoError(t, err)

	ids := make([]int64, len(notes))
	for i, n := range notes {
		ids[i] = n.ID
	}
	assert.Equal(t, []int64{1, 4}, ids)
	assert.Equal(t, "chest", store.lastTerm)
	assert.Equal(t, 10*overfetch, store.lastLimit)
}

func TestFindByEntity_RespectsLimitAfterFiltering(t *testing.T) {
	s, _ := newFixture(t)
	notes, err := s.FindByEntity(context.Background(), core.LabelSymptom, "chest pain", 1)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, int64(1), notes[0].ID)
}

func TestFindByEntity_Validation(t *testing.T) {
	s, _ := newFixture(t)

	_, err := s.FindByEntity(context.Background(), "organism", "e. coli", 5)
	assert.ErrorIs(t, err, ErrUnknownLabel)

	_, err = s.FindByEntity(context.Background(), core.LabelSymptom, " the ", 5)
	assert.ErrorIs(t, err, ErrEmptyTerm)
}

func TestTokenizeAndFilter(t *testing.T) {
	assert.Equal(t, []string{"pain", "chest"}, tokenizeAndFilter("Pain in the (chest)."))
	assert.Empty(t, tokenizeAndFilter("of the"))
}
