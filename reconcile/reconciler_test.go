package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/poiesic/clinicalner/artifact"
	"github.com/poiesic/clinicalner/core"
	"github.com/poiesic/clinicalner/storage"
	"github.com/poiesic/clinicalner/storage/badger"
	"github.com/poiesic/clinicalner/storage/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// row is the metadata a note carries after reconciliation.
type row struct {
	textLength int
	total      int
	density    float64
	entities   map[string][]string
}

// memoryStore is an in-memory MetadataStore over a fixed set of note ids.
type memoryStore struct {
	mu          sync.Mutex
	rows        map[int64]*row
	ensureCalls int
	applyCalls  int
	failOn      int64
	schemaErr   error
}

func newMemoryStore(ids ...int64) *memoryStore {
	s := &memoryStore{rows: make(map[int64]*row), failOn: -1}
	for _, id := range ids {
		s.rows[id] = nil
	}
	return s
}

func (s *memoryStore) EnsureColumns(ctx context.Context, columns core.SchemaColumnSet) (*storage.SchemaReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureCalls++
	if s.schemaErr != nil {
		return nil, s.schemaErr
	}
	return &storage.SchemaReport{Ensured: columns.Names()}, nil
}

func (s *memoryStore) ApplyBatch(ctx context.Context, docs []*core.ProcessedDocument) (*storage.ApplyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyCalls++

	staged := make(map[int64]*row)
	result := &storage.ApplyResult{}
	for _, doc := range docs {
		if doc.ID == s.failOn {
			return nil, errors.New("connection lost")
		}
		if _, ok := s.rows[doc.ID]; !ok {
			result.Unmatched = append(result.Unmatched, doc.ID)
			continue
		}
		entities := make(map[string][]string)
		for _, label := range core.Labels {
			entities[label] = append([]string{}, doc.MedicalEntities.Get(label)...)
		}
		staged[doc.ID] = &row{
			textLength: doc.TextLength,
			total:      doc.EntityMetrics.TotalEntities,
			density:    doc.EntityMetrics.SemanticDensity,
			entities:   entities,
		}
		result.Updated++
	}
	for id, r := range staged {
		s.rows[id] = r
	}
	return result, nil
}

func (s *memoryStore) snapshot() map[int64]row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]row)
	for id, r := range s.rows {
		if r != nil {
			out[id] = *r
		}
	}
	return out
}

func makeDoc(id int64, symptom string) *core.ProcessedDocument {
	entities := core.NewExtractedEntities()
	entities.Add(core.LabelSymptom, symptom)
	cleaned := "patient has " + symptom
	length := core.TextLength(cleaned)
	return &core.ProcessedDocument{
		ID:              id,
		OriginalText:    "Patient has " + symptom,
		CleanedText:     cleaned,
		TextLength:      length,
		MedicalEntities: entities,
		EntityMetrics:   core.EntityMetrics{TotalEntities: 1, SemanticDensity: core.SemanticDensity(1, length)},
	}
}

// writeArtifacts writes docs into dir as artifacts of batchSize documents.
func writeArtifacts(t *testing.T, dir string, batchSize int, docs ...*core.ProcessedDocument) []artifact.ArtifactInfo {
	t.Helper()
	w, err := artifact.NewWriter(dir, artifact.WithBatchSize(batchSize))
	require.NoError(t, err)
	for _, d := range docs {
		require.NoError(t, w.Append(d))
	}
	require.NoError(t, w.Close())
	return w.Written()
}

func newTestReconciler(t *testing.T, store storage.MetadataStore, opts ...Option) *Reconciler {
	t.Helper()
	r, err := NewReconciler(store, append([]Option{WithLoadWorkers(2)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func TestNewReconciler_RequiresStore(t *testing.T) {
	_, err := NewReconciler(nil)
	assert.ErrorIs(t, err, ErrStoreRequired)
}

func TestReconcile_AppliesAllArtifactsInOrder(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir, 2, makeDoc(1, "fever"), makeDoc(2, "cough"), makeDoc(3, "nausea"), makeDoc(1, "headache"))

	store := newMemoryStore(1, 2, 3)
	report, err := newTestReconciler(t, store).Reconcile(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, store.ensureCalls)
	assert.Equal(t, 2, report.Count(StatusApplied))
	assert.Equal(t, 4, report.Updated())
	assert.Zero(t, report.Unmatched())
	assert.True(t, report.Schema.OK())

	rows := store.snapshot()
	require.Len(t, rows, 3)
	// The later artifact wins for note 1.
	assert.Equal(t, []string{"headache"}, rows[1].entities[core.LabelSymptom])
	assert.Equal(t, []string{"cough"}, rows[2].entities[core.LabelSymptom])
	assert.Empty(t, rows[3].entities[core.LabelMedication])
}

func TestReconcile_TwiceLeavesSameState(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir, 2, makeDoc(1, "fever"), makeDoc(2, "cough"), makeDoc(3, "nausea"))

	store := newMemoryStore(1, 2, 3)
	r := newTestReconciler(t, store)

	_, err := r.Reconcile(context.Background(), dir)
	require.NoError(t, err)
	first := store.snapshot()

	report, err := r.Reconcile(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(StatusApplied))
	assert.Equal(t, first, store.snapshot())
	assert.Equal(t, 2, store.ensureCalls)
}

func TestReconcile_UnknownIDIsUnmatchedNotError(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir, 10, makeDoc(1, "fever"), makeDoc(99, "cough"))

	store := newMemoryStore(1)
	report, err := newTestReconciler(t, store).Reconcile(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, report.Artifacts, 1)
	assert.Equal(t, StatusApplied, report.Artifacts[0].Status)
	assert.Equal(t, 1, report.Updated())
	assert.Equal(t, []int64{99}, report.Artifacts[0].Unmatched)
}

func TestReconcile_SkipsCorruptAndInvalidArtifacts(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir, 1, makeDoc(1, "fever"), makeDoc(2, "cough"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "clinical_notes_batch_00000000T000000_bad.json"), []byte("{not json"), 0o644))

	bad := makeDoc(3, "nausea")
	bad.EntityMetrics.TotalEntities = 7
	writeArtifacts(t, dir, 10, bad)

	store := newMemoryStore(1, 2, 3)
	report, err := newTestReconciler(t, store).Reconcile(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Count(StatusApplied))
	rejected := report.Rejected()
	require.Len(t, rejected, 2)
	assert.ErrorIs(t, rejected[0].Err, artifact.ErrInvalidArtifact)
	assert.Equal(t, "clinical_notes_batch_00000000T000000_bad.json", rejected[0].Name)
	assert.ErrorIs(t, rejected[1].Err, core.ErrCountMismatch)

	rows := store.snapshot()
	assert.Len(t, rows, 2)
	_, touched := rows[3]
	assert.False(t, touched, "invalid artifact must write nothing")
}

func TestReconcile_AcceptsLegacyArrays(t *testing.T) {
	dir := t.TempDir()
	legacy := `[{"id": 5, "original_text": "Fever", "cleaned_text": "fever", "text_length": 5,
	  "medical_entities": {"symptom": ["fever"]},
	  "entity_metrics": {"total_entities": 1, "semantic_density": 0.2}}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clinical_notes_batch_20240101_120000.json"), []byte(legacy), 0o644))

	store := newMemoryStore(5)
	report, err := newTestReconciler(t, store).Reconcile(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, report.Artifacts, 1)
	assert.True(t, report.Artifacts[0].Legacy)
	assert.Equal(t, StatusApplied, report.Artifacts[0].Status)
	assert.Equal(t, []string{"fever"}, store.snapshot()[5].entities[core.LabelSymptom])
}

func TestReconcile_RejectsDocumentsMissingRequiredFields(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"clinical_notes_batch_20240101_120000.json": `[{"original_text": "x", "cleaned_text": "", "medical_entities": {}}]`,
		"clinical_notes_batch_20240101_120100.json": `[{"id": 5}]`,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	store := newMemoryStore(0, 5)
	report, err := newTestReconciler(t, store).Reconcile(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Count(StatusApplied))
	rejected := report.Rejected()
	require.Len(t, rejected, 2)
	for _, r := range rejected {
		assert.ErrorIs(t, r.Err, artifact.ErrInvalidArtifact)
	}
	assert.Contains(t, rejected[0].Err.Error(), "missing id")
	assert.Contains(t, rejected[1].Err.Error(), "text_length")
	assert.Empty(t, store.snapshot(), "rejected artifacts must not touch any row")
	assert.Zero(t, store.applyCalls)
}

func TestReconcile_AcceptsEmptyEntitiesForFailedExtraction(t *testing.T) {
	dir := t.TempDir()
	legacy := `[{"id": 0, "original_text": "Seen", "cleaned_text": "seen", "text_length": 4,
	  "medical_entities": {}, "entity_metrics": {"total_entities": 0, "semantic_density": 0.0}}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clinical_notes_batch_20240101_120000.json"), []byte(legacy), 0o644))

	store := newMemoryStore(0)
	report, err := newTestReconciler(t, store).Reconcile(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Count(StatusApplied))
	got := store.snapshot()[0]
	assert.Equal(t, 4, got.textLength)
	for _, label := range core.Labels {
		assert.Equal(t, []string{}, got.entities[label])
	}
}

func TestReconcile_RejectsTamperedDensity(t *testing.T) {
	dir := t.TempDir()
	legacy := `[{"id": 5, "original_text": "Fever", "cleaned_text": "fever", "text_length": 5,
	  "medical_entities": {"symptom": ["fever"]},
	  "entity_metrics": {"total_entities": 1, "semantic_density": 0.9}}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clinical_notes_batch_20240101_120000.json"), []byte(legacy), 0o644))

	store := newMemoryStore(5)
	report, err := newTestReconciler(t, store).Reconcile(context.Background(), dir)
	require.NoError(t, err)

	rejected := report.Rejected()
	require.Len(t, rejected, 1)
	assert.ErrorIs(t, rejected[0].Err, core.ErrDensityMismatch)
	assert.Empty(t, store.snapshot())
}

func TestReconcile_StoreErrorAbortsRun(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir, 1, makeDoc(1, "fever"), makeDoc(2, "cough"), makeDoc(3, "nausea"))

	store := newMemoryStore(1, 2, 3)
	store.failOn = 2

	report, err := newTestReconciler(t, store).Reconcile(context.Background(), dir)
	require.ErrorIs(t, err, ErrApplyFailed)
	require.NotNil(t, report)

	require.Len(t, report.Artifacts, 2)
	assert.Equal(t, StatusApplied, report.Artifacts[0].Status)
	assert.Equal(t, StatusFailed, report.Artifacts[1].Status)
	assert.Equal(t, 2, store.applyCalls, "no artifact after the failure is applied")

	rows := store.snapshot()
	assert.Contains(t, rows, int64(1))
	assert.NotContains(t, rows, int64(2))
	assert.NotContains(t, rows, int64(3))
}

func TestReconcile_SchemaFailureIsFatal(t *testing.T) {
	store := newMemoryStore(1)
	store.schemaErr = storage.ErrUnavailable

	_, err := newTestReconciler(t, store).Reconcile(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrSchemaUnavailable)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
}

func TestReconcile_LedgerSkipsAppliedArtifacts(t *testing.T) {
	_, ledger, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	dir := t.TempDir()
	written := writeArtifacts(t, dir, 1, makeDoc(1, "fever"), makeDoc(2, "cough"))

	store := newMemoryStore(1, 2)
	ctx := context.Background()

	report, err := newTestReconciler(t, store, WithLedger(ledger)).Reconcile(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(StatusApplied))

	entries, err := ledger.ListApplied(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, written[0].Name, entries[0].Artifact)
	assert.Equal(t, written[0].Digest, entries[0].Digest)

	report, err = newTestReconciler(t, store, WithLedger(ledger)).Reconcile(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(StatusAlreadyApplied))
	assert.Equal(t, 2, store.applyCalls)

	report, err = newTestReconciler(t, store, WithLedger(ledger), WithForce(true)).Reconcile(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(StatusApplied))
	assert.Equal(t, 4, store.applyCalls)
}

func TestReconcile_EmptyDirectoryStillEnsuresSchema(t *testing.T) {
	store := newMemoryStore()
	report, err := newTestReconciler(t, store).Reconcile(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, report.Artifacts)
	assert.Equal(t, 1, store.ensureCalls)
}

func TestReconcile_PostgresTransactionPerArtifact(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, err := postgres.NewStore(db)
	require.NoError(t, err)

	dir := t.TempDir()
	writeArtifacts(t, dir, 2, makeDoc(1, "fever"), makeDoc(2, "cough"), makeDoc(3, "nausea"))

	for _, col := range core.MetadataColumns() {
		mock.ExpectExec(regexp.QuoteMeta(postgres.AddColumnSQL(core.NotesTable, col))).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	mock.ExpectQuery(regexp.QuoteMeta(postgres.ColumnTypesSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "udt_name"}))
	update := regexp.QuoteMeta(postgres.UpdateMetadataSQL(core.NotesTable))

	mock.ExpectBegin()
	mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(update).WillReturnError(errors.New("server closed the connection"))
	mock.ExpectRollback()

	report, err := newTestReconciler(t, store).Reconcile(context.Background(), dir)
	require.ErrorIs(t, err, ErrApplyFailed)
	assert.ErrorIs(t, err, storage.ErrTransactionFailed)
	assert.Equal(t, 1, report.Count(StatusApplied))
	assert.Equal(t, 1, report.Count(StatusFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
}
