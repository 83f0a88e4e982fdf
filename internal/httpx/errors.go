package httpx

import (
	"net/http"

	"github.com/sundayezeilo/tinylink/internal/errx"
)

// ErrorKindToStatus maps errx.Kind to HTTP status codes.
// Storage outages are still reported as 500: clients cannot tell
// them apart from any other server failure.
func ErrorKindToStatus(kind errx.Kind) int {
	switch kind {
	case errx.NotFound:
		return http.StatusNotFound
	case errx.Conflict:
		return http.StatusConflict
	case errx.Invalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorKindToCode maps errx.Kind to error codes for JSON responses.
func ErrorKindToCode(kind errx.Kind) string {
	switch kind {
	case errx.NotFound:
		return "not_found"
	case errx.Conflict:
		return "conflict"
	case errx.Invalid:
		return "invalid_input"
	case errx.Unavailable:
		return "unavailable"
	default:
		return "internal_error"
	}
}

// IsServerError reports whether err should be logged as a server-side failure.
func IsServerError(err error) bool {
	return ErrorKindToStatus(errx.KindOf(err)) >= http.StatusInternalServerError
}
