// Package pagination normalizes the limit/offset inputs accepted by the
// list endpoints.
package pagination

import (
	"net/http"
	"strconv"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any list query can request.
	MaxLimit = 100
)

// Params holds normalized pagination inputs.
type Params struct {
	Limit  int
	Offset int
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// FromRequest reads limit and offset query parameters. Malformed or missing
// values fall back to the defaults rather than erroring.
func FromRequest(r *http.Request) Params {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: NormalizeLimit(limit), Offset: offset}
}
