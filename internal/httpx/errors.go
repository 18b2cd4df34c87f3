package httpx

import (
	"net/http"

	"github.com/JLChnToZ/shota-url/internal/errx"
)

// StatusOf maps an errx.Kind to its default HTTP status code. Handlers may
// override the mapping for specific endpoints.
func StatusOf(kind errx.Kind) int {
	switch kind {
	case errx.NotFound:
		return http.StatusNotFound
	case errx.Conflict:
		return http.StatusConflict
	case errx.Invalid:
		return http.StatusBadRequest
	case errx.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf maps an errx.Kind to the machine-readable error code used in
// JSON error payloads.
func CodeOf(kind errx.Kind) string {
	switch kind {
	case errx.NotFound:
		return "not_found"
	case errx.Conflict:
		return "duplicate_key"
	case errx.Invalid:
		return "validation_failed"
	case errx.Unavailable:
		return "unavailable"
	default:
		return "internal_error"
	}
}
