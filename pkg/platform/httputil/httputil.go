// Package httputil centralizes JSON encoding and domain error translation for
// HTTP handlers so every endpoint speaks the same error envelope.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "citizenly/pkg/domain-errors"
)

const maxBodyBytes = 1 << 20

// ErrorBody is the stable error envelope. error_code values are part of the
// API contract; message text is not.
type ErrorBody struct {
	ErrorCode string            `json:"error_code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to its HTTP status and error envelope.
// Internal errors never expose their message or cause to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := ErrorBody{
		ErrorCode: string(code),
		Message:   "internal error",
		Retryable: dErrors.Retryable(err),
	}

	var de *dErrors.Error
	if errors.As(err, &de) && code != dErrors.CodeInternal {
		body.Message = de.Message
		body.Fields = de.Fields
	}

	WriteJSON(w, dErrors.ToHTTPStatus(err), body)
}

// Decode parses a JSON request body into T with a size cap. On failure it
// writes a bad-request envelope and returns ok=false.
func Decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return v, false
	}
	return v, true
}
