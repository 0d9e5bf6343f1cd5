package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/momoso/api/internal/middleware"
	"github.com/momoso/api/internal/model"
)

// maxJSONBody caps JSON request bodies
const maxJSONBody = 1 << 20

// DataResponse wraps a successful response with optional HATEOAS links
type DataResponse struct {
	Data  any               `json:"data"`
	Links map[string]string `json:"_links,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteData writes a successful data response
func WriteData(w http.ResponseWriter, status int, data any, links map[string]string) {
	WriteJSON(w, status, DataResponse{Data: data, Links: links})
}

// WriteError writes an error response using RFC 9457 Problem Details
func WriteError(w http.ResponseWriter, err *model.ProblemDetails) {
	err.WriteJSON(w)
}

// WriteNoContent writes a 204 No Content response
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// DecodeJSON decodes a JSON request body into the given struct
func DecodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// validatable is implemented by the model request types
type validatable interface {
	Validate() []model.FieldError
}

// decodeValid decodes the body into v and runs its validation. It writes
// the error response itself and reports whether the handler may go on.
func decodeValid(w http.ResponseWriter, r *http.Request, v validatable) bool {
	if err := DecodeJSON(r, v); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return false
	}
	if errs := v.Validate(); len(errs) > 0 {
		WriteError(w, model.NewValidationError(errs))
		return false
	}
	return true
}

// decodeOptional is DecodeJSON that accepts an empty body
func decodeOptional(w http.ResponseWriter, r *http.Request, v validatable) bool {
	if err := DecodeJSON(r, v); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return false
	}
	if errs := v.Validate(); len(errs) > 0 {
		WriteError(w, model.NewValidationError(errs))
		return false
	}
	return true
}

// requireUser returns the authenticated user ID or writes 401
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return "", false
	}
	return userID, true
}

// recordID accepts both "n1" and "novel:n1" in the path
func recordID(table, raw string) string {
	if strings.HasPrefix(raw, table+":") {
		return raw
	}
	return table + ":" + raw
}
