package clinicalner

import (
	"bytes"
	"context"
	"database/sql/driver"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/poiesic/clinicalner/ai/mock"
	"github.com/poiesic/clinicalner/artifact"
	"github.com/poiesic/clinicalner/core"
	"github.com/poiesic/clinicalner/reconcile"
	"github.com/poiesic/clinicalner/storage/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSystem(t *testing.T, withState bool) (*System, sqlmock.Sqlmock) {
	t.Helper()
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := DefaultConfig()
	cfg.Extract.OutputDir = filepath.Join(t.TempDir(), "artifacts")
	cfg.Extract.BatchSize = 2
	cfg.Reconcile.InputDir = cfg.Extract.OutputDir
	cfg.Reconcile.LoadWorkers = 2
	if withState {
		cfg.StateDir = filepath.Join(t.TempDir(), "state")
	}

	sys, err := NewSystem(context.Background(), cfg, WithDB(db), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	t.Cleanup(func() { sys.Close() })
	return sys, sqlMock
}

func TestNewSystem_FactoryMethods(t *testing.T) {
	sys, _ := newTestSystem(t, true)

	assert.NotNil(t, sys.Store())
	assert.NotNil(t, sys.CheckpointRepository())
	assert.NotNil(t, sys.LedgerRepository())

	ingestor, err := sys.NewIngestor()
	require.NoError(t, err)
	assert.NotNil(t, ingestor)

	proc, err := sys.NewProcessor(nil, false)
	require.NoError(t, err)
	assert.NotNil(t, proc)

	rec, err := sys.NewReconciler(false)
	require.NoError(t, err)
	rec.Release()

	searcher, err := sys.NewSearcher()
	require.NoError(t, err)
	assert.NotNil(t, searcher)
}

func TestNewSystem_WithoutStateDir(t *testing.T) {
	sys, _ := newTestSystem(t, false)
	assert.Nil(t, sys.CheckpointRepository())
	assert.Nil(t, sys.LedgerRepository())
}

func TestNewSystem_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Extract.BatchSize = 0
	_, err := NewSystem(context.Background(), cfg)
	assert.ErrorIs(t, err, artifact.ErrInvalidBatchSize)
}

func TestSystem_ExtractThenReconcile(t *testing.T) {
	sys, sqlMock := newTestSystem(t, true)
	ctx := context.Background()

	sqlMock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "clinical_notes" WHERE idx > $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	sqlMock.ExpectQuery(regexp.QuoteMeta(`SELECT idx, note FROM "clinical_notes" WHERE idx > $1 ORDER BY idx LIMIT $2`)).
		WillReturnRows(sqlmock.NewRows([]string{"idx", "note"}).
			AddRow(1, "Patient reports severe Headache.").
			AddRow(2, "Prescribed Ibuprofen 400mg.").
			AddRow(3, "Follow-up in two weeks."))

	var progress bytes.Buffer
	proc, err := sys.NewProcessor(&progress, false)
	require.NoError(t, err)

	report, err := proc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Succeeded())
	require.Len(t, report.Artifacts, 2)

	checkpoint, err := sys.CheckpointRepository().LoadCheckpoint(ctx, "extract")
	require.NoError(t, err)
	require.NotNil(t, checkpoint)
	assert.Equal(t, int64(3), checkpoint.LastID)

	for _, col := range core.MetadataColumns() {
		sqlMock.ExpectExec(regexp.QuoteMeta(postgres.AddColumnSQL(core.NotesTable, col))).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	sqlMock.ExpectQuery(regexp.QuoteMeta(postgres.ColumnTypesSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "udt_name"}))
	update := regexp.QuoteMeta(postgres.UpdateMetadataSQL(core.NotesTable))
	sqlMock.ExpectBegin()
	sqlMock.ExpectExec(update).WithArgs(anyArgs(8, int64(1))...).WillReturnResult(sqlmock.NewResult(0, 1))
	sqlMock.ExpectExec(update).WithArgs(anyArgs(8, int64(2))...).WillReturnResult(sqlmock.NewResult(0, 1))
	sqlMock.ExpectCommit()
	sqlMock.ExpectBegin()
	sqlMock.ExpectExec(update).WithArgs(anyArgs(8, int64(3))...).WillReturnResult(sqlmock.NewResult(0, 0))
	sqlMock.ExpectCommit()

	rec, err := sys.NewReconciler(false)
	require.NoError(t, err)
	defer rec.Release()

	result, err := rec.Reconcile(ctx, sys.Config().Reconcile.InputDir)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count(reconcile.StatusApplied))
	assert.Equal(t, 2, result.Updated())
	assert.Equal(t, 1, result.Unmatched())
	assert.NoError(t, sqlMock.ExpectationsWereMet())

	entries, err := sys.LedgerRepository().ListApplied(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

// anyArgs matches n arbitrary leading arguments followed by id.
func anyArgs(n int, id int64) []driver.Value {
	args := make([]driver.Value, 0, n+1)
	for i := 0; i < n; i++ {
		args = append(args, sqlmock.AnyArg())
	}
	return append(args, id)
}
