package supactl

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/edgeflare/supactl/pkg/supabase"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the project's tables",
	Long: `Lists tables through the table-listing database function, then the
Postgres catalog if configured. Unless --strict is given, a built-in list of
known tables is printed when neither answers.`,
	Args: cobra.NoArgs,
	RunE: runTables,
}

var describeCmd = &cobra.Command{
	Use:   "describe TABLE",
	Short: "Print a table's columns, a sample row and its row count as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

var countCmd = &cobra.Command{
	Use:   "count TABLE",
	Short: "Print the exact number of rows in a table",
	Args:  cobra.ExactArgs(1),
	RunE:  runCount,
}

func init() {
	tablesCmd.Flags().Bool("strict", false, "fail instead of printing the known tables")
	rootCmd.AddCommand(tablesCmd, describeCmd, countCmd)
}

func runTables(cmd *cobra.Command, _ []string) error {
	client, done, err := newClient()
	if err != nil {
		return err
	}
	defer done()

	var tables []string
	if strict, _ := cmd.Flags().GetBool("strict"); strict {
		var source supabase.Source
		tables, source, err = client.DiscoverTables(cmd.Context())
		if err != nil {
			return err
		}
		logger.Debug("listed tables", zap.String("source", string(source)))
	} else {
		tables = client.ListTables(cmd.Context())
	}

	for _, name := range tables {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func runDescribe(cmd *cobra.Command, args []string) error {
	client, done, err := newClient()
	if err != nil {
		return err
	}
	defer done()

	info := client.DescribeTable(cmd.Context(), args[0])
	if err := printJSON(cmd.OutOrStdout(), info); err != nil {
		return err
	}
	if !info.OK() {
		return fmt.Errorf("describe %s: %s", info.TableName, info.Error)
	}
	return nil
}

func runCount(cmd *cobra.Command, args []string) error {
	client, done, err := newClient()
	if err != nil {
		return err
	}
	defer done()

	count, err := client.CountRows(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatInt(count, 10))
	return nil
}

// printJSON writes v indented by two spaces.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
