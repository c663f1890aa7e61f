package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// SummaryFile is where the report writes the DescribeAllTables result.
const SummaryFile = "supabase_tables_summary.json"

// ExportFilename is the file ExportTable writes when none is given.
func ExportFilename(table string) string {
	return table + "_export.json"
}

// ExportTable writes up to ExportLimit rows of a table to filename as a JSON
// array and returns the file name. An empty filename means
// ExportFilename(table). Nothing is written when the query fails.
func (c *Client) ExportTable(ctx context.Context, name, filename string) (string, error) {
	if filename == "" {
		filename = ExportFilename(name)
	}

	rows, err := c.Query(ctx, name, nil, ExportLimit)
	if err != nil {
		return "", fmt.Errorf("export %s: %w", name, err)
	}
	if err := WriteJSON(filename, rows); err != nil {
		return "", fmt.Errorf("export %s: %w", name, err)
	}

	c.logger.Info("exported table", zap.String("table", name), zap.Int("rows", len(rows)), zap.String("file", filename))
	return filename, nil
}

// WriteJSON writes v to path as UTF-8 JSON indented by two spaces.
func WriteJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
