package supactl

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/edgeflare/supactl/pkg/supabase"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

var queryCmd = &cobra.Command{
	Use:   "query TABLE",
	Short: "Print rows matching every --filter",
	Example: `  supactl query loans --filter status=active --limit 10
  supactl query customers --filter id=7`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

var insertCmd = &cobra.Command{
	Use:     "insert TABLE",
	Short:   "Insert a row and print it as stored",
	Example: `  supactl insert loans --data '{"amount": 500, "status": "active"}'`,
	Args:    cobra.ExactArgs(1),
	RunE:    runInsert,
}

var updateCmd = &cobra.Command{
	Use:     "update TABLE",
	Short:   "Update rows matching every --filter and print them",
	Example: `  supactl update loans --filter id=1 --data '{"status": "closed"}'`,
	Args:    cobra.ExactArgs(1),
	RunE:    runUpdate,
}

var deleteCmd = &cobra.Command{
	Use:     "delete TABLE",
	Short:   "Delete rows matching every --filter and print them",
	Example: `  supactl delete loans --filter id=1`,
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

var exportCmd = &cobra.Command{
	Use:   "export TABLE",
	Short: "Write up to 10000 rows of a table to a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	for _, c := range []*cobra.Command{queryCmd, updateCmd, deleteCmd} {
		c.Flags().StringArrayP("filter", "f", nil, "column=value equality filter, repeatable")
	}
	queryCmd.Flags().IntP("limit", "n", supabase.DefaultLimit, "maximum number of rows, 0 means the default")
	for _, c := range []*cobra.Command{insertCmd, updateCmd} {
		c.Flags().StringP("data", "d", "", "row values as a JSON object")
		_ = c.MarkFlagRequired("data")
	}
	for _, c := range []*cobra.Command{updateCmd, deleteCmd} {
		_ = c.MarkFlagRequired("filter")
	}
	exportCmd.Flags().StringP("output", "o", "", "output file (default TABLE_export.json in export.dir)")

	rootCmd.AddCommand(queryCmd, insertCmd, updateCmd, deleteCmd, exportCmd)
}

// parseFilters turns column=value arguments into a Filter. Values that are
// JSON scalars keep their type (id=1 is a number, paid=true a bool, note=null
// matches NULL); anything else is a string.
func parseFilters(args []string) (supabase.Filter, error) {
	filter := supabase.Filter{}
	for _, arg := range args {
		col, val, ok := strings.Cut(arg, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid filter %q, want column=value", arg)
		}
		if _, dup := filter[col]; dup {
			return nil, fmt.Errorf("duplicate filter on column %q", col)
		}
		filter[col] = scalar(val)
	}
	return filter, nil
}

func scalar(s string) any {
	if !gjson.Valid(s) {
		return s
	}
	switch v := gjson.Parse(s); v.Type {
	case gjson.Null:
		return nil
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Number:
		return json.Number(v.Raw)
	case gjson.String:
		return v.Str
	}
	return s
}

// parseRow decodes --data, which must be a JSON object.
func parseRow(data string) (supabase.Row, error) {
	var row supabase.Row
	if err := json.Unmarshal([]byte(data), &row); err != nil {
		return supabase.Row{}, fmt.Errorf("--data: %w", err)
	}
	if row.Len() == 0 {
		return supabase.Row{}, errors.New("--data: no columns given")
	}
	return row, nil
}

func filterFlag(cmd *cobra.Command) (supabase.Filter, error) {
	args, err := cmd.Flags().GetStringArray("filter")
	if err != nil {
		return nil, err
	}
	return parseFilters(args)
}

func dataFlag(cmd *cobra.Command) (supabase.Row, error) {
	data, err := cmd.Flags().GetString("data")
	if err != nil {
		return supabase.Row{}, err
	}
	return parseRow(data)
}

func runQuery(cmd *cobra.Command, args []string) error {
	filter, err := filterFlag(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	client, done, err := newClient()
	if err != nil {
		return err
	}
	defer done()

	rows, err := client.Query(cmd.Context(), args[0], filter, limit)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), rows)
}

func runInsert(cmd *cobra.Command, args []string) error {
	row, err := dataFlag(cmd)
	if err != nil {
		return err
	}

	client, done, err := newClient()
	if err != nil {
		return err
	}
	defer done()

	stored, err := client.Insert(cmd.Context(), args[0], row)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), stored)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	filter, err := filterFlag(cmd)
	if err != nil {
		return err
	}
	row, err := dataFlag(cmd)
	if err != nil {
		return err
	}

	client, done, err := newClient()
	if err != nil {
		return err
	}
	defer done()

	rows, err := client.Update(cmd.Context(), args[0], filter, row)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), rows)
}

func runDelete(cmd *cobra.Command, args []string) error {
	filter, err := filterFlag(cmd)
	if err != nil {
		return err
	}

	client, done, err := newClient()
	if err != nil {
		return err
	}
	defer done()

	rows, err := client.Delete(cmd.Context(), args[0], filter)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), rows)
}

func runExport(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("output")
	if filename == "" {
		filename = filepath.Join(cfg.Export.Dir, supabase.ExportFilename(args[0]))
	}

	client, done, err := newClient()
	if err != nil {
		return err
	}
	defer done()

	written, err := client.ExportTable(cmd.Context(), args[0], filename)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", args[0], written)
	return nil
}
