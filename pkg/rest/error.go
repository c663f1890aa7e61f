package rest

// Error is the JSON body PostgREST returns alongside 4xx and 5xx statuses.
type Error struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details"`
	Hint    *string `json:"hint"`
}

// Common PostgREST and PostgreSQL error codes.
const (
	CodeUndefinedTable    = "42P01"
	CodeUndefinedColumn   = "42703"
	CodeTableNotFound     = "PGRST205"
	CodeFunctionNotFound  = "PGRST202"
	CodeSingularResponse  = "PGRST116"
	CodeInvalidParameters = "PGRST100"
	CodeInvalidBody       = "PGRST102"
)
