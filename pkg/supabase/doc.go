/*
Package supabase is a table-oriented facade over a Supabase project's REST
API: table discovery, schema-by-example descriptions, row counts, equality
queries, inserts, updates, deletes and JSON export.

	client, err := supabase.New(supabase.Credentials{URL: url, Key: key},
		supabase.WithLogger(logger))
	if err != nil {
		return err
	}
	rows, err := client.Query(ctx, "loans", supabase.Filter{"id": 1}, 10)

Reads degrade instead of failing where a sensible default exists:
ListTables falls back to a known table list, and DescribeTable records
errors in the returned TableInfo. Query and CountRows return an empty value
together with the error, so callers can tell an empty table from a failed
request. Insert, Update and Delete return their errors.

Each operation sends its requests under the caller's context. Requests are
logged at debug level, counted in the metrics package and tagged with an
X-Request-Id header.
*/
package supabase
