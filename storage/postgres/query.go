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

func (s *Store) selectMetadataSQL() string {
	cols := []string{"idx", "note",
		pq.QuoteIdentifier(core.ColumnTextLength),
		pq.QuoteIdentifier(core.ColumnTotalEntities),
		pq.QuoteIdentifier(core.ColumnSemanticDensity),
	}
	for _, label := range core.Labels {
		col, _ := core.ColumnForLabel(label)
		cols = append(cols, pq.QuoteIdentifier(col))
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), s.quotedTable())
}

// Preview returns up to limit notes with their metadata, ordered by idx.
func (s *Store) Preview(ctx context.Context, limit int) ([]*core.NoteMetadata, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	query := s.selectMetadataSQL() + " ORDER BY idx LIMIT $1"
	return s.queryMetadata(ctx, query, limit)
}

// FindByEntity returns notes whose column for label holds a span containing term.
// Matching is case-insensitive.
func (s *Store) FindByEntity(ctx context.Context, label, term string, limit int) ([]*core.NoteMetadata, error) {
	col, ok := core.ColumnForLabel(label)
	if !ok {
		return nil, fmt.Errorf("%w: unknown label %q", storage.ErrInvalidQuery, label)
	}
	if strings.TrimSpace(term) == "" {
		return nil, fmt.Errorf("%w: empty search term", storage.ErrInvalidQuery)
	}
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	query := s.selectMetadataSQL() + fmt.Sprintf(
		" WHERE EXISTS (SELECT 1 FROM unnest(%s) AS span WHERE strpos(lower(span), lower($1)) > 0) ORDER BY idx LIMIT $2",
		pq.QuoteIdentifier(col))
	return s.queryMetadata(ctx, query, term, limit)
}

func (s *Store) queryMetadata(ctx context.Context, query string, args ...any) ([]*core.NoteMetadata, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	var out []*core.NoteMetadata
	for rows.Next() {
		var (
			m       core.NoteMetadata
			note    sql.NullString
			length  sql.NullInt64
			total   sql.NullInt64
			density sql.NullFloat64
			arrays  = make([]pq.StringArray, len(core.Labels))
		)
		dest := []any{&m.ID, &note, &length, &total, &density}
		for i := range arrays {
			dest = append(dest, &arrays[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		m.Note = note.String
		if length.Valid {
			v := int(length.Int64)
			m.TextLength = &v
		}
		if total.Valid {
			v := int(total.Int64)
			m.TotalEntities = &v
		}
		if density.Valid {
			v := density.Float64
			m.SemanticDensity = &v
		}
		m.Entities = core.NewExtractedEntities()
		for i, label := range core.Labels {
			if arrays[i] != nil {
				m.Entities[label] = []string(arrays[i])
			}
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	return out, nil
}
