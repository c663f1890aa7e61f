package rest

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// Prefer holds preferences from the Prefer header (RFC 7240).
type Prefer struct {
	Return string // "minimal", "representation", "headers-only"
	Count  string // "exact", "planned", "estimated"
}

// Headers holds all parsed HTTP headers relevant to REST actions.
type Headers struct {
	Prefer *Prefer
	Schema string // Accept-Profile for reads, Content-Profile for writes
}

// ParseHeaders parses all relevant headers from the HTTP request
func ParseHeaders(r *http.Request) *Headers {
	h := &Headers{}
	h.Prefer = ParsePrefer(r)

	profile := "Accept-Profile"
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		profile = "Content-Profile"
	}
	h.Schema = r.Header.Get(profile)
	if h.Schema == "" {
		h.Schema = "public"
	}
	return h
}

// ParsePrefer parses the Prefer header according to RFC 7240.
// It returns nil if the header is not present.
func ParsePrefer(r *http.Request) *Prefer {
	header := r.Header.Get("Prefer")
	if header == "" {
		return nil
	}

	p := &Prefer{
		Return: "minimal", // RFC 7240 default behavior
	}

	parseKeyValPairs(header, func(key, value string) {
		if !slices.Contains(preferValues[key], strings.ToLower(value)) {
			return
		}
		switch key {
		case "return":
			p.Return = value
		case "count":
			p.Count = value
		}
	})

	return p
}

// preferValues lists the accepted values of each understood preference.
var preferValues = map[string][]string{
	"return": {"minimal", "representation", "headers-only"},
	"count":  {"exact", "planned", "estimated"},
}

// parseKeyValPairs calls fn for each key=value directive in a comma-separated
// Prefer header, with the key lowercased and the value unquoted.
func parseKeyValPairs(header string, fn func(key, value string)) {
	for pref := range strings.SplitSeq(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(pref), "=")
		if !found {
			continue
		}
		fn(strings.ToLower(strings.TrimSpace(key)), strings.Trim(strings.TrimSpace(value), `"`))
	}
}

// WantsRepresentation reports whether the client prefers full representation
// in the response body for mutation operations.
func (p *Prefer) WantsRepresentation() bool {
	return p != nil && p.Return == "representation"
}

// WantsCountExact reports whether the client wants an exact count in the response.
func (p *Prefer) WantsCountExact() bool {
	return p != nil && strings.ToLower(p.Count) == "exact"
}

// ContentRange formats the Content-Range header PostgREST sends with row
// responses: "0-9/120" for a page of ten rows out of 120, "*/0" for an empty
// page. total < 0 means the total is unknown and renders as "*".
func ContentRange(offset, n, total int) string {
	t := "*"
	if total >= 0 {
		t = strconv.Itoa(total)
	}
	if n == 0 {
		return "*/" + t
	}
	return fmt.Sprintf("%d-%d/%s", offset, offset+n-1, t)
}
