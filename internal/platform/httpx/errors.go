// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-costing/internal/shared"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrDuplicate  = errors.New("duplicate entry")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
)

// StatusMapping maps a domain error onto a problem status and title.
type StatusMapping struct {
	Err    error
	Status int
	Title  string
}

var baseMappings = []StatusMapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Err: shared.ErrNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Err: ErrDuplicate, Status: http.StatusConflict, Title: "Duplicate"},
	{Err: shared.ErrIdempotencyConflict, Status: http.StatusConflict, Title: "Duplicate"},
	{Err: ErrConflict, Status: http.StatusConflict, Title: "Conflict"},
	{Err: ErrValidation, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Err: shared.ErrInvalidArgument, Status: http.StatusBadRequest, Title: "Validation Failed"},
}

// RespondError maps domain errors to HTTP responses using RFC7807. Handler
// specific mappings are checked before the base ones. Unmapped errors are
// reported as 500 without detail.
func RespondError(w http.ResponseWriter, err error, mappings ...StatusMapping) {
	if m, ok := Classify(err, mappings...); ok {
		Problem(w, m.Status, m.Title, err.Error())
		return
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

// Classify returns the first mapping matching err.
func Classify(err error, mappings ...StatusMapping) (StatusMapping, bool) {
	for _, set := range [][]StatusMapping{mappings, baseMappings} {
		for _, m := range set {
			if errors.Is(err, m.Err) {
				return m, true
			}
		}
	}
	return StatusMapping{}, false
}
