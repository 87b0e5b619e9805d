package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/poiesic/clinicalner/core"
)

// RowSource yields corpus rows in source order.
type RowSource interface {
	// ForEachRow calls fn for every row. Iteration stops at the first error.
	ForEachRow(ctx context.Context, fn func(row core.DatasetRow) error) error
}

// maxLineSize bounds one JSON Lines record. Full notes and conversations can
// run to tens of kilobytes.
const maxLineSize = 16 * 1024 * 1024

// JSONLSource reads rows from a JSON Lines export, one object per line.
type JSONLSource struct {
	path string
}

// NewJSONLSource returns a source reading path.
func NewJSONLSource(path string) *JSONLSource {
	return &JSONLSource{path: path}
}

// ForEachRow implements RowSource. Blank lines are ignored.
func (s *JSONLSource) ForEachRow(ctx context.Context, fn func(row core.DatasetRow) error) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var row core.DatasetRow
		if err := json.Unmarshal([]byte(text), &row); err != nil {
			return fmt.Errorf("%w: %s line %d: %w", ErrMalformedRow, s.path, line, err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	return nil
}
