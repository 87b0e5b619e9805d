package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/poiesic/clinicalner/core"
	"github.com/poiesic/clinicalner/storage"
)

// SchemaEvolver adds derived metadata columns to the notes table.
// Each column is added by its own autocommitted statement, so one failing
// column does not prevent the others.
type SchemaEvolver struct {
	store *Store
}

// NewSchemaEvolver returns an evolver for store's table.
func NewSchemaEvolver(store *Store) *SchemaEvolver {
	return &SchemaEvolver{store: store}
}

// AddColumnSQL returns the idempotent statement adding col to table.
func AddColumnSQL(table string, col core.Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s",
		pq.QuoteIdentifier(table), pq.QuoteIdentifier(col.Name), col.SQLType)
}

// ColumnTypesSQL lists the declared types of a table's columns.
const ColumnTypesSQL = `SELECT column_name, data_type, udt_name FROM information_schema.columns ` +
	`WHERE table_schema = current_schema() AND table_name = $1`

// EnsureColumns adds every column in columns that is missing. Running it
// again is a no-op. Statement failures and columns that already exist with a
// different type are collected as warnings; only an unreachable database is
// returned as an error.
func (e *SchemaEvolver) EnsureColumns(ctx context.Context, columns core.SchemaColumnSet) (*storage.SchemaReport, error) {
	s := e.store
	if err := s.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}

	report := &storage.SchemaReport{}
	for _, col := range columns {
		if !validSQLType(col.SQLType) {
			err := fmt.Errorf("column %s: unsupported type %q", col.Name, col.SQLType)
			s.logger.Warn("skipping column", "column", col.Name, "err", err)
			report.Warnings = append(report.Warnings, err)
			continue
		}
		if _, err := s.db.ExecContext(ctx, AddColumnSQL(s.table, col)); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			s.logger.Warn("failed to ensure column", "column", col.Name, "err", err)
			report.Warnings = append(report.Warnings, fmt.Errorf("column %s: %w", col.Name, err))
			continue
		}
		report.Ensured = append(report.Ensured, col.Name)
	}

	if len(report.Ensured) > 0 {
		if err := e.checkTypes(ctx, columns, report); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			s.logger.Warn("failed to verify column types", "err", err)
			report.Warnings = append(report.Warnings, fmt.Errorf("verify column types: %w", err))
		}
	}

	s.logger.Info("schema ensured", "columns", len(report.Ensured), "warnings", len(report.Warnings))
	return report, nil
}

// checkTypes moves ensured columns whose existing type differs from the
// declared one into the report's warnings.
func (e *SchemaEvolver) checkTypes(ctx context.Context, columns core.SchemaColumnSet, report *storage.SchemaReport) error {
	s := e.store
	rows, err := s.db.QueryContext(ctx, ColumnTypesSQL, s.table)
	if err != nil {
		return err
	}
	defer rows.Close()

	actual := make(map[string]string)
	for rows.Next() {
		var name, dataType, udtName string
		if err := rows.Scan(&name, &dataType, &udtName); err != nil {
			return err
		}
		actual[name] = columnType(dataType, udtName)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	declared := make(map[string]string, len(columns))
	for _, col := range columns {
		declared[col.Name] = canonicalType(col.SQLType)
	}

	ensured := report.Ensured[:0]
	for _, name := range report.Ensured {
		got, ok := actual[name]
		if ok && got != declared[name] {
			err := fmt.Errorf("column %s: existing type %s, want %s", name, got, declared[name])
			s.logger.Warn("column type conflict", "column", name, "existing", got, "declared", declared[name])
			report.Warnings = append(report.Warnings, err)
			continue
		}
		ensured = append(ensured, name)
	}
	report.Ensured = ensured
	return nil
}

// typeAliases maps short and internal type names to information_schema names.
var typeAliases = map[string]string{
	"int":     "integer",
	"int4":    "integer",
	"int8":    "bigint",
	"float8":  "double precision",
	"float":   "double precision",
	"float4":  "real",
	"bool":    "boolean",
	"varchar": "character varying",
}

func canonicalType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if elem, ok := strings.CutSuffix(t, "[]"); ok {
		return canonicalType(elem) + "[]"
	}
	if alias, ok := typeAliases[t]; ok {
		return alias
	}
	return t
}

// columnType renders an information_schema row in the form canonicalType produces.
func columnType(dataType, udtName string) string {
	if strings.EqualFold(dataType, "ARRAY") {
		return canonicalType(strings.TrimPrefix(udtName, "_")) + "[]"
	}
	return canonicalType(dataType)
}

// EnsureColumns is a convenience for NewSchemaEvolver(s).EnsureColumns.
func (s *Store) EnsureColumns(ctx context.Context, columns core.SchemaColumnSet) (*storage.SchemaReport, error) {
	return NewSchemaEvolver(s).EnsureColumns(ctx, columns)
}

// validSQLType accepts only plain type names; the type is interpolated into DDL.
func validSQLType(t string) bool {
	if t == "" {
		return false
	}
	for _, r := range strings.ToUpper(t) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == ' ', r == '[', r == ']', r == '(', r == ')', r == ',', r == '_':
		default:
			return false
		}
	}
	return true
}
