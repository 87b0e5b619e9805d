package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/poiesic/clinicalner/core"
	"github.com/poiesic/clinicalner/storage"
)

// UpdateMetadataSQL returns the statement overwriting a note's metadata columns.
// Parameters are the scalar metrics, one array per label in core.Labels order,
// then the note id.
func UpdateMetadataSQL(table string) string {
	assignments := []string{
		pq.QuoteIdentifier(core.ColumnTextLength),
		pq.QuoteIdentifier(core.ColumnTotalEntities),
		pq.QuoteIdentifier(core.ColumnSemanticDensity),
	}
	for _, label := range core.Labels {
		col, _ := core.ColumnForLabel(label)
		assignments = append(assignments, pq.QuoteIdentifier(col))
	}
	for i := range assignments {
		assignments[i] = fmt.Sprintf("%s = $%d", assignments[i], i+1)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE idx = $%d",
		pq.QuoteIdentifier(table), strings.Join(assignments, ", "), len(assignments)+1)
}

// metadataArgs returns the UpdateMetadataSQL parameters for doc.
func metadataArgs(doc *core.ProcessedDocument) []any {
	args := []any{
		doc.TextLength,
		doc.EntityMetrics.TotalEntities,
		doc.EntityMetrics.SemanticDensity,
	}
	for _, label := range core.Labels {
		args = append(args, pq.Array(doc.MedicalEntities.Get(label)))
	}
	return append(args, doc.ID)
}

// ApplyBatch overwrites metadata for every document in one transaction.
// Documents whose id matches no note are reported as unmatched. A database
// error rolls back the whole batch.
func (s *Store) ApplyBatch(ctx context.Context, docs []*core.ProcessedDocument) (*storage.ApplyResult, error) {
	result := &storage.ApplyResult{}
	if len(docs) == 0 {
		return result, nil
	}

	query := UpdateMetadataSQL(s.table)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, doc := range docs {
			res, err := tx.ExecContext(ctx, query, metadataArgs(doc)...)
			if err != nil {
				return fmt.Errorf("failed to update note %d: %w", doc.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				result.Unmatched = append(result.Unmatched, doc.ID)
				continue
			}
			result.Updated++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
