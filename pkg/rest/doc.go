// Package rest holds the server-side pieces of the PostgREST wire protocol
// that supactl speaks as a client: query parameter parsing, Prefer header
// handling, Content-Range formatting and the JSON error body.
//
// The in-memory server in package resttest is built on these helpers so the
// Supabase facade can be exercised without a live project.
//
// Query parameters understood:
//
//	Parameter         | Description
//	------------------|------------------------------------------------
//	?select=col1,col2 | Select specific columns (default: *)
//	?limit=100        | Limit number of results (default: unlimited)
//	?offset=0         | Pagination offset (default: 0)
//	?col=eq.val       | Filter by column equality
//	?col=neq.val      | Filter by column inequality
//	?col=is.null      | Filter for null values
//	?col=in.(a,b,c)   | Filter with value lists
//
// Headers:
//
//	Header                         | Description
//	-------------------------------|----------------------------------------
//	Prefer: return=minimal         | Return status code only (default)
//	Prefer: return=representation  | Return modified rows in response body
//	Prefer: count=exact            | Add exact total count of rows in Content-Range header
//
// API is compatible with PostgREST. For more details, see:
// https://docs.postgrest.org/en/stable/references/api/tables_views.html
package rest
