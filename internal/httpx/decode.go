package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MaxRequestBodySize caps request bodies at 1MB; comments and target lists
// have no business being bigger than that.
const MaxRequestBodySize = 1 << 20

// DecodeJSON decodes the request body into a value of type T, enforcing the
// body size limit and rejecting trailing garbage.
func DecodeJSON[T any](r *http.Request) (T, error) {
	var zero T

	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)

	var v T
	if err := dec.Decode(&v); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var tooBig *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxErr):
			return zero, fmt.Errorf("malformed JSON at offset %d", syntaxErr.Offset)
		case errors.As(err, &typeErr):
			return zero, fmt.Errorf("invalid value for field %q", typeErr.Field)
		case errors.As(err, &tooBig):
			return zero, fmt.Errorf("request body exceeds %d bytes", MaxRequestBodySize)
		case errors.Is(err, io.EOF):
			return zero, errors.New("request body is empty")
		default:
			return zero, fmt.Errorf("failed to decode JSON: %w", err)
		}
	}

	if dec.More() {
		return zero, errors.New("request body contains trailing data")
	}

	return v, nil
}
