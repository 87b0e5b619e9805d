package corpus

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/poiesic/clinicalner/ai"
	"github.com/poiesic/clinicalner/ai/mock"
	"github.com/poiesic/clinicalner/artifact"
	"github.com/poiesic/clinicalner/core"
	"github.com/poiesic/clinicalner/storage/badger"
	"github.com/poiesic/clinicalner/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySource serves notes from a slice ordered by id.
type memorySource struct {
	notes []core.RawNote
	err   error
}

func (s *memorySource) CountNotes(ctx context.Context, afterID int64) (int, error) {
	n := 0
	for _, note := range s.notes {
		if note.ID > afterID {
			n++
		}
	}
	return n, nil
}

func (s *memorySource) ForEachNote(ctx context.Context, afterID int64, fn func(core.RawNote) error) error {
	for _, note := range s.notes {
		if note.ID <= afterID {
			continue
		}
		if err := fn(note); err != nil {
			return err
		}
	}
	return s.err
}

func newTransformer(t *testing.T, m *mock.MockEntityExtractor) *transform.Transformer {
	t.Helper()
	policy := transform.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	extractor, err := transform.NewExtractor(m, transform.WithRetryPolicy(policy))
	require.NoError(t, err)
	tr, err := transform.NewTransformer(extractor)
	require.NoError(t, err)
	return tr
}

func notes(ids ...int64) []core.RawNote {
	out := make([]core.RawNote, len(ids))
	for i, id := range ids {
		out[i] = core.RawNote{ID: id, Text: "Patient has a fever and a cough."}
	}
	return out
}

func loadAll(t *testing.T, dir string) []*core.ProcessedDocument {
	t.Helper()
	paths, err := artifact.List(dir)
	require.NoError(t, err)
	var docs []*core.ProcessedDocument
	for _, p := range paths {
		batch, err := artifact.Load(p)
		require.NoError(t, err)
		docs = append(docs, batch.Documents...)
	}
	return docs
}

func TestNewProcessor_RequiresDependencies(t *testing.T) {
	tr := newTransformer(t, mock.NewMockEntityExtractor())

	_, err := NewProcessor(nil, tr, nil)
	assert.ErrorIs(t, err, ErrSourceRequired)

	_, err = NewProcessor(&memorySource{}, nil, nil)
	assert.ErrorIs(t, err, ErrTransformerRequired)
}

func TestRun_WritesBatchesInOrder(t *testing.T) {
	dir := t.TempDir()
	source := &memorySource{notes: notes(1, 2, 3, 4, 5)}
	var progress bytes.Buffer

	p, err := NewProcessor(source, newTransformer(t, mock.NewMockEntityExtractor()),
		&Config{OutputDir: dir, BatchSize: 2, ReportInterval: 1},
		WithProgress(&progress))
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 5, report.Processed())
	assert.Equal(t, 5, report.Succeeded())
	assert.Empty(t, report.Failures())
	require.Len(t, report.Artifacts, 3)
	assert.Equal(t, []int{2, 2, 1}, []int{
		report.Artifacts[0].Documents,
		report.Artifacts[1].Documents,
		report.Artifacts[2].Documents,
	})

	docs := loadAll(t, dir)
	require.Len(t, docs, 5)
	for i, doc := range docs {
		assert.Equal(t, int64(i+1), doc.ID)
		assert.Equal(t, []string{"fever", "cough"}, doc.MedicalEntities[core.LabelSymptom])
		assert.Equal(t, 2, doc.EntityMetrics.TotalEntities)
		assert.NoError(t, core.ValidateProcessedDocument(doc))
	}

	assert.Contains(t, progress.String(), "5/5")
	assert.Contains(t, progress.String(), "100.0%")
}

func TestRun_SkipsInvalidNotes(t *testing.T) {
	dir := t.TempDir()
	source := &memorySource{notes: []core.RawNote{
		{ID: 1, Text: "Headache."},
		{ID: 2, Missing: true},
		{ID: 3, Text: "Nausea."},
	}}

	p, err := NewProcessor(source, newTransformer(t, mock.NewMockEntityExtractor()),
		&Config{OutputDir: dir, BatchSize: 10, ReportInterval: 10})
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Processed())
	assert.Equal(t, 2, report.Succeeded())
	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, int64(2), failures[0].NoteID)
	assert.ErrorIs(t, failures[0].Err, core.ErrMissingText)

	docs := loadAll(t, dir)
	require.Len(t, docs, 2)
	assert.Equal(t, int64(1), docs[0].ID)
	assert.Equal(t, int64(3), docs[1].ID)
}

func TestRun_ExtractionFailureDegradesToEmptyEntities(t *testing.T) {
	dir := t.TempDir()
	m := mock.NewMockEntityExtractor().WithPredictFunc(func(ctx context.Context, text string, labels []string, threshold float64) ([]ai.Entity, error) {
		return nil, errors.New("model offline")
	})

	p, err := NewProcessor(&memorySource{notes: notes(7)}, newTransformer(t, m),
		&Config{OutputDir: dir, BatchSize: 10, ReportInterval: 10})
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded())
	assert.Equal(t, int64(1), report.ExtractionFailures)

	docs := loadAll(t, dir)
	require.Len(t, docs, 1)
	assert.Equal(t, 0, docs[0].EntityMetrics.TotalEntities)
	assert.Len(t, docs[0].MedicalEntities, len(core.Labels))
}

func TestRun_EmptyCorpusWritesNothing(t *testing.T) {
	dir := t.TempDir()
	p, err := NewProcessor(&memorySource{}, newTransformer(t, mock.NewMockEntityExtractor()),
		&Config{OutputDir: dir, BatchSize: 10, ReportInterval: 10})
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Processed())
	assert.Empty(t, report.Artifacts)
	assert.Empty(t, loadAll(t, dir))
}

func TestRun_CancellationFlushesBufferedDocuments(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := mock.NewMockEntityExtractor()
	m.WithPredictFunc(func(ctx context.Context, text string, labels []string, threshold float64) ([]ai.Entity, error) {
		if m.CallCount() == 3 {
			cancel()
		}
		return nil, nil
	})

	p, err := NewProcessor(&memorySource{notes: notes(1, 2, 3, 4, 5)}, newTransformer(t, m),
		&Config{OutputDir: dir, BatchSize: 100, ReportInterval: 10})
	require.NoError(t, err)

	report, err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)

	docs := loadAll(t, dir)
	require.Len(t, docs, 2)
	assert.Equal(t, int64(1), docs[0].ID)
	assert.Equal(t, int64(2), docs[1].ID)
	assert.Len(t, report.Artifacts, 1)
}

func TestRun_SourceErrorStillFlushes(t *testing.T) {
	dir := t.TempDir()
	sourceErr := errors.New("connection reset")
	source := &memorySource{notes: notes(1, 2), err: sourceErr}

	p, err := NewProcessor(source, newTransformer(t, mock.NewMockEntityExtractor()),
		&Config{OutputDir: dir, BatchSize: 100, ReportInterval: 10})
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, sourceErr)
	assert.Len(t, loadAll(t, dir), 2)
}

func TestRun_ResumeFromCheckpoint(t *testing.T) {
	checkpoints, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	source := &memorySource{notes: notes(10, 20, 30, 40, 50)}

	first := t.TempDir()
	p, err := NewProcessor(source, newTransformer(t, mock.NewMockEntityExtractor()),
		&Config{OutputDir: first, BatchSize: 2, ReportInterval: 10},
		WithCheckpoints(checkpoints))
	require.NoError(t, err)

	report, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), report.StartAfter)

	checkpoint, err := checkpoints.LoadCheckpoint(ctx, ProcessorType)
	require.NoError(t, err)
	require.NotNil(t, checkpoint)
	assert.Equal(t, int64(50), checkpoint.LastID)

	// Pretend the run stopped after the second note.
	require.NoError(t, checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{ProcessorType: ProcessorType, LastID: 20}))

	second := t.TempDir()
	p, err = NewProcessor(source, newTransformer(t, mock.NewMockEntityExtractor()),
		&Config{OutputDir: second, BatchSize: 2, ReportInterval: 10, Resume: true},
		WithCheckpoints(checkpoints))
	require.NoError(t, err)

	report, err = p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20), report.StartAfter)
	assert.Equal(t, 3, report.Total)

	docs := loadAll(t, second)
	require.Len(t, docs, 3)
	assert.Equal(t, int64(30), docs[0].ID)
}
