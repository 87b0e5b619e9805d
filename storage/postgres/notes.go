package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/poiesic/clinicalner/core"
)

// CountNotes returns the number of notes with idx > afterID.
func (s *Store) CountNotes(ctx context.Context, afterID int64) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE idx > $1`, s.quotedTable())

	var count int
	if err := s.db.QueryRowContext(ctx, query, afterID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return count, nil
}

// ForEachNote streams notes with idx > afterID in ascending order, one page at a time.
func (s *Store) ForEachNote(ctx context.Context, afterID int64, fn func(note core.RawNote) error) error {
	query := fmt.Sprintf(`SELECT idx, note FROM %s WHERE idx > $1 ORDER BY idx LIMIT $2`, s.quotedTable())

	cursor := afterID
	for {
		page, err := s.fetchPage(ctx, query, cursor)
		if err != nil {
			return err
		}
		for _, note := range page {
			if err := fn(note); err != nil {
				return err
			}
			cursor = note.ID
		}
		if len(page) < s.pageSize {
			return nil
		}
	}
}

func (s *Store) fetchPage(ctx context.Context, query string, afterID int64) ([]core.RawNote, error) {
	rows, err := s.db.QueryContext(ctx, query, afterID, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	page := make([]core.RawNote, 0, s.pageSize)
	for rows.Next() {
		var (
			id   int64
			text sql.NullString
		)
		if err := rows.Scan(&id, &text); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		page = append(page, core.RawNote{ID: id, Text: text.String, Missing: !text.Valid})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notes: %w", err)
	}
	return page, nil
}

// EnsureTable creates the notes table if it does not exist.
func (s *Store) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    idx INTEGER PRIMARY KEY,
    note TEXT,
    full_note TEXT,
    conversation TEXT,
    summary TEXT
)`, s.quotedTable())

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// InsertNotes inserts rows in a single transaction. Rows whose idx already
// exists are skipped. Any failure rolls back the whole chunk.
func (s *Store) InsertNotes(ctx context.Context, rows []core.DatasetRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (idx, note, full_note, conversation, summary)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (idx) DO NOTHING`, s.quotedTable())

	var inserted int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, row := range rows {
			res, err := tx.ExecContext(ctx, query, row.Idx, row.Note, row.FullNote, row.Conversation, row.Summary)
			if err != nil {
				return fmt.Errorf("failed to insert note %d: %w", row.Idx, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug("inserted notes", "rows", len(rows), "inserted", inserted)
	return inserted, nil
}
