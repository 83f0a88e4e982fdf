package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const (
	// MaxRequestBodySize is the maximum allowed request body size (64KB).
	MaxRequestBodySize = 64 << 10
)

// DecodeJSON decodes a single JSON object from the request body.
// Unknown fields are ignored; wrong types, oversized bodies and trailing
// data are reported as client errors.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var zero T

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	defer func() {
		_ = r.Body.Close()
	}()

	decoder := json.NewDecoder(r.Body)

	var v T
	if err := decoder.Decode(&v); err != nil {
		var syntaxErr *json.SyntaxError
		var unmarshalErr *json.UnmarshalTypeError
		var maxBytesErr *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxErr):
			return zero, fmt.Errorf("malformed JSON at position %d", syntaxErr.Offset)
		case errors.As(err, &unmarshalErr):
			return zero, fmt.Errorf("invalid value for field %q", unmarshalErr.Field)
		case errors.As(err, &maxBytesErr):
			return zero, fmt.Errorf("request body too large (max %d bytes)", MaxRequestBodySize)
		case errors.Is(err, io.EOF):
			return zero, errors.New("request body is empty")
		case errors.Is(err, io.ErrUnexpectedEOF):
			return zero, errors.New("malformed JSON: unexpected end of input")
		default:
			return zero, fmt.Errorf("failed to decode JSON: %w", err)
		}
	}

	if decoder.More() {
		return zero, errors.New("request body contains multiple JSON values")
	}

	return v, nil
}
