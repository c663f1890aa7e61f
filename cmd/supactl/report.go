package supactl

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/edgeflare/supactl/pkg/supabase"
	"github.com/spf13/cobra"
)

// maxColumns is how many column names the detailed section lists per table.
const maxColumns = 10

var rule = strings.Repeat("=", 60)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Describe every table and write a summary file",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	client, done, err := newClient()
	if err != nil {
		return err
	}
	defer done()

	path := filepath.Join(cfg.Export.Dir, cfg.Export.SummaryFile)
	return report(cmd.Context(), cmd.OutOrStdout(), client, path)
}

// report describes all tables, prints them to w and writes the summary to path.
func report(ctx context.Context, w io.Writer, client *supabase.Client, path string) error {
	fmt.Fprintf(w, "%s\nSUPABASE DATABASE REPORT\n%s\n", rule, rule)
	fmt.Fprintf(w, "Project: %s\n", client.URL())

	summary := client.DescribeAllTables(ctx)

	fmt.Fprintf(w, "\nFound %d tables:\n\n", summary.TotalTables)
	for _, info := range summary.Infos() {
		if !info.OK() {
			fmt.Fprintf(w, "  %-15s Error: %s\n", info.TableName, info.Error)
			continue
		}
		fmt.Fprintf(w, "  %-15s Columns: %d | Rows: %d\n", info.TableName, len(info.Columns), info.RowCount)
	}

	fmt.Fprintf(w, "\n%s\nDETAILED TABLE INFORMATION\n%s\n", rule, rule)
	for _, info := range summary.Infos() {
		printDetails(w, info)
	}

	if err := supabase.WriteJSON(path, summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	fmt.Fprintf(w, "\nSummary exported to %s\n%s\n", path, rule)
	return nil
}

func printDetails(w io.Writer, info supabase.TableInfo) {
	fmt.Fprintf(w, "\nTable: %s\n", info.TableName)
	if !info.OK() {
		fmt.Fprintf(w, "  Error: %s\n", info.Error)
		return
	}

	shown := info.Columns
	if len(shown) > maxColumns {
		shown = shown[:maxColumns]
	}
	fmt.Fprintf(w, "  Columns (%d): %s\n", len(info.Columns), strings.Join(shown, ", "))
	if more := len(info.Columns) - len(shown); more > 0 {
		fmt.Fprintf(w, "  ... and %d more\n", more)
	}
	fmt.Fprintf(w, "  Row count: %d\n", info.RowCount)
	if info.CountError != "" {
		fmt.Fprintf(w, "  Count error: %s\n", info.CountError)
	}
}
