package supabase

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/edgeflare/supactl/pkg/rest"
	"github.com/tidwall/gjson"
)

// ErrEmptyFilter is returned by Update and Delete when no filter is given.
// PostgREST would otherwise apply the change to every row.
var ErrEmptyFilter = errors.New("supabase: refusing to modify every row without a filter")

// ErrNegativeLimit is returned by Query for a limit below zero.
var ErrNegativeLimit = errors.New("supabase: limit must not be negative")

// ConfigurationError reports missing or invalid connection settings. It is
// returned before any network call is made.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// APIError is an error answered by the REST API.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("supabase: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("supabase: %s (%s)", e.Message, e.Code)
}

// IsNotFound reports whether err means the table or function does not exist.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case rest.CodeUndefinedTable, rest.CodeTableNotFound, rest.CodeFunctionNotFound, rest.CodeSingularResponse:
		return true
	}
	return strings.Contains(apiErr.Message, "does not exist")
}

// postgrest-go flattens error bodies to "(code) message".
var executeErrorRe = regexp.MustCompile(`^\(([^)]*)\) (.*)$`)

// apiError converts an error from postgrest-go into an *APIError when the
// server answered with an error status.
func apiError(err error, status int) error {
	if err == nil || status < 400 {
		return err
	}
	if m := executeErrorRe.FindStringSubmatch(err.Error()); m != nil {
		return &APIError{Status: status, Code: m[1], Message: m[2]}
	}
	return &APIError{Status: status, Message: err.Error()}
}

// decodeAPIError parses a raw PostgREST error body.
func decodeAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	if gjson.ValidBytes(body) {
		doc := gjson.ParseBytes(body)
		e.Code = doc.Get("code").String()
		e.Message = doc.Get("message").String()
		e.Details = doc.Get("details").String()
		e.Hint = doc.Get("hint").String()
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
	}
	return e
}
