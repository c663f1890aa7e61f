package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/tidwall/gjson"
)

// LoadTables reads a fixture under testdata/ mapping table names to arrays of
// rows. Rows are returned as raw JSON objects with their key order intact,
// and table names in file order.
func LoadTables(filename string) (names []string, rows map[string][]string, err error) {
	_, currentFile, _, _ := runtime.Caller(0)
	dir := filepath.Dir(currentFile)

	data, err := os.ReadFile(filepath.Join(dir, "testdata", filename))
	if err != nil {
		return nil, nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, nil, fmt.Errorf("%s: invalid JSON", filename)
	}

	rows = make(map[string][]string)
	gjson.ParseBytes(data).ForEach(func(table, value gjson.Result) bool {
		name := table.String()
		names = append(names, name)
		rows[name] = []string{}
		value.ForEach(func(_, row gjson.Result) bool {
			rows[name] = append(rows[name], row.Raw)
			return true
		})
		return true
	})
	return names, rows, nil
}
