package supactl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/edgeflare/supactl/pkg/config"
	"github.com/edgeflare/supactl/pkg/supabase"
	"github.com/edgeflare/supactl/pkg/util"
	"github.com/spf13/cobra"
)

var errCheckFailed = errors.New("some connections failed")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check credentials, table access and storage buckets",
	Long: `Checks that credentials are set, that each table can be read with the
configured key and that the storage buckets exist and can be listed.
Exits non-zero if anything failed.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringSlice("tables", nil, "tables to check (default storage.checkTables)")
	checkCmd.Flags().StringSlice("bucket", nil, "storage buckets to check (default storage.buckets)")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	printEnv(w)

	client, done, err := newClient()
	if err != nil {
		return err
	}
	defer done()

	tables, _ := cmd.Flags().GetStringSlice("tables")
	if len(tables) == 0 {
		tables = cfg.Storage.CheckTables
	}
	buckets, _ := cmd.Flags().GetStringSlice("bucket")
	if len(buckets) == 0 {
		buckets = cfg.Storage.Buckets
	}

	return check(cmd.Context(), w, client, tables, buckets)
}

func printEnv(w io.Writer) {
	fmt.Fprintln(w, "Environment:")
	for _, names := range [][]string{config.URLEnvVars, config.KeyEnvVars} {
		status := "missing"
		if _, from := util.FirstEnv(names...); from != "" {
			status = "set (" + from + ")"
		}
		fmt.Fprintf(w, "  %s: %s\n", strings.Join(names, " or "), status)
	}
}

// check reads every table and bucket and prints one line for each. It
// returns errCheckFailed if any of them could not be reached.
func check(ctx context.Context, w io.Writer, client *supabase.Client, tables, buckets []string) error {
	ok := true
	fmt.Fprintf(w, "\nProject: %s\n\nTables:\n", client.URL())
	for _, name := range tables {
		count, err := client.CountRows(ctx, name)
		switch {
		case supabase.IsNotFound(err):
			ok = false
			fmt.Fprintf(w, "  %-15s missing: table does not exist\n", name)
		case err != nil:
			ok = false
			fmt.Fprintf(w, "  %-15s error: %v\n", name, err)
		default:
			fmt.Fprintf(w, "  %-15s Connected (%d rows)\n", name, count)
		}
	}

	if len(buckets) > 0 {
		fmt.Fprintln(w, "\nStorage:")
	}
	for _, name := range buckets {
		status := client.CheckBucket(ctx, name)
		switch {
		case status.Err != nil:
			ok = false
			fmt.Fprintf(w, "  %-15s error: could not list buckets: %v\n", name, status.Err)
		case !status.Exists:
			ok = false
			fmt.Fprintf(w, "  %-15s missing: bucket does not exist\n", name)
		case status.ListErr != nil:
			ok = false
			fmt.Fprintf(w, "  %-15s Connected (%s), cannot list files: %v\n", name, visibility(status.Public), status.ListErr)
		default:
			fmt.Fprintf(w, "  %-15s Connected (%s), %d files visible\n", name, visibility(status.Public), status.Files)
		}
	}

	fmt.Fprintln(w)
	if !ok {
		return errCheckFailed
	}
	fmt.Fprintln(w, "All connections succeeded.")
	return nil
}

func visibility(public bool) string {
	if public {
		return "public"
	}
	return "private"
}
