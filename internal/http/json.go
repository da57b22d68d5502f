package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// maxRequestBody caps request bodies. Every request this API accepts is a
// small JSON document; anything larger is malformed or hostile.
const maxRequestBody = 1 << 20

// DecodeJSON decodes the request body into dst, rejecting unknown fields and
// oversized bodies. Returns false after writing an invalid_json response, so
// handlers can bail with a bare return.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}
	return true
}

// WriteJSON encodes v into a buffer first so an encoding failure can still
// become a clean 500 instead of a half-written body.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// The client went away mid-response; nothing left to salvage.
		return
	}
}

// ErrorParams names the pieces of an error response: the HTTP status, the
// stable machine-readable code callers branch on, and the human-readable cause.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// errorResponse is the error body every endpoint of this API returns. The
// "error" field is the stable contract; "message" is free-form diagnostics
// and may change between releases.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes the uniform JSON error body.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, errorResponse{Error: p.ErrCode, Message: p.Err.Error()})
}
