package model

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// ============================================================================
// Error() Interface Tests
// ============================================================================

func TestProblemDetails_Error_ReturnsFormattedMessage(t *testing.T) {
	t.Parallel()

	pd := &ProblemDetails{
		Status: http.StatusNotFound,
		Title:  "Not Found",
		Detail: "novel not found",
	}

	errMsg := pd.Error()

	for _, want := range []string{"404", "Not Found", "novel not found"} {
		if !strings.Contains(errMsg, want) {
			t.Errorf("error message should contain %q, got: %s", want, errMsg)
		}
	}
}

// ============================================================================
// WriteJSON Tests
// ============================================================================

func TestProblemDetails_WriteJSON(t *testing.T) {
	t.Parallel()

	pd := NewConflictError("nickname already taken")
	rec := httptest.NewRecorder()

	pd.WriteJSON(rec)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected problem+json content type, got %q", ct)
	}

	var decoded ProblemDetails
	if err := json.NewDecoder(rec.Body).Decode(&decoded); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if decoded.Detail != "nickname already taken" || decoded.Code != ErrCodeConflict {
		t.Errorf("unexpected body: %+v", decoded)
	}
}

// ============================================================================
// Constructor Tests
// ============================================================================

func TestConstructors_StatusAndType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		pd     *ProblemDetails
		status int
		slug   string
	}{
		{"unauthorized", NewUnauthorizedError("x"), http.StatusUnauthorized, "unauthorized"},
		{"forbidden", NewForbiddenError("x"), http.StatusForbidden, "forbidden"},
		{"not found", NewNotFoundError("novel"), http.StatusNotFound, "not-found"},
		{"conflict", NewConflictError("x"), http.StatusConflict, "conflict"},
		{"internal", NewInternalError(""), http.StatusInternalServerError, "internal"},
		{"bad request", NewBadRequestError("x"), http.StatusBadRequest, "bad-request"},
		{"too large", NewPayloadTooLargeError(10), http.StatusRequestEntityTooLarge, "payload-too-large"},
		{"bad gateway", NewBadGatewayError(""), http.StatusBadGateway, "upstream"},
		{"unavailable", NewServiceUnavailableError("x"), http.StatusServiceUnavailable, "unavailable"},
		{"method", NewMethodNotAllowedError("POST"), http.StatusMethodNotAllowed, "method-not-allowed"},
		{"rate", NewRateLimitError(3), http.StatusTooManyRequests, "rate-limited"},
	}

	for _, tt := range tests {
		if tt.pd.Status != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.name, tt.status, tt.pd.Status)
		}
		if tt.pd.Type != problemTypeBase+tt.slug {
			t.Errorf("%s: unexpected type %q", tt.name, tt.pd.Type)
		}
	}
}

func TestNewNotFoundError_FormatsResourceName(t *testing.T) {
	t.Parallel()

	pd := NewNotFoundError("discussion")

	if pd.Detail != "discussion not found" {
		t.Errorf("unexpected detail %q", pd.Detail)
	}
}

func TestNewInternalError_EmptyDetail_UsesDefault(t *testing.T) {
	t.Parallel()

	if pd := NewInternalError(""); pd.Detail != "An unexpected error occurred" {
		t.Errorf("unexpected default detail %q", pd.Detail)
	}
}

func TestNewValidationError_MultipleFields_SummarizesCount(t *testing.T) {
	t.Parallel()

	pd := NewValidationError([]FieldError{
		{Field: "topic", Message: "topic is required"},
		{Field: "max_participants", Message: "must be between 2 and 50"},
	})

	if pd.Detail != "topic: topic is required (and 1 more errors)" {
		t.Errorf("unexpected detail %q", pd.Detail)
	}
	if len(pd.Errors) != 2 {
		t.Errorf("expected 2 field errors, got %d", len(pd.Errors))
	}
}

func TestNewValidationError_EmptyErrors_ReturnsDefaultMessage(t *testing.T) {
	t.Parallel()

	if pd := NewValidationError(nil); pd.Detail != "One or more fields failed validation" {
		t.Errorf("unexpected detail %q", pd.Detail)
	}
}

func TestWithCode_OverridesCode(t *testing.T) {
	t.Parallel()

	pd := NewForbiddenError("not your novel").WithCode(ErrCodeNotOwner)

	if pd.Code != ErrCodeNotOwner {
		t.Errorf("expected ErrCodeNotOwner, got %d", pd.Code)
	}
}

// ============================================================================
// Error Code Constants Tests
// ============================================================================

func TestErrorCodes_CorrectRanges(t *testing.T) {
	t.Parallel()

	ranges := []struct {
		codes []ErrorCode
		lo    ErrorCode
	}{
		{[]ErrorCode{ErrCodeUnauthorized, ErrCodeTokenExpired, ErrCodeTokenInvalid, ErrCodeLoginFailed, ErrCodeVerificationFailed}, 1000},
		{[]ErrorCode{ErrCodeForbidden, ErrCodeNotOwner, ErrCodeNotParticipant}, 2000},
		{[]ErrorCode{ErrCodeNotFound, ErrCodeAlreadyExists, ErrCodeConflict}, 3000},
		{[]ErrorCode{ErrCodeValidation, ErrCodeInvalidInput, ErrCodeTooLarge}, 4000},
		{[]ErrorCode{ErrCodeInternal, ErrCodeDatabase, ErrCodeExternalAPI}, 5000},
	}

	seen := make(map[ErrorCode]bool)
	for _, r := range ranges {
		for _, code := range r.codes {
			if code < r.lo || code >= r.lo+1000 {
				t.Errorf("code %d outside %dxxx range", code, r.lo/1000)
			}
			if seen[code] {
				t.Errorf("duplicate error code %d", code)
			}
			seen[code] = true
		}
	}
}

// ============================================================================
// JSON Serialization Tests
// ============================================================================

func TestProblemDetails_JSON_OmitsEmptyFields(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(&ProblemDetails{Type: "t", Title: "T", Status: 400})
	if err != nil {
		t.Fatal(err)
	}

	for _, field := range []string{"detail", "instance", "errors", "code"} {
		if strings.Contains(string(data), `"`+field+`"`) {
			t.Errorf("expected %s to be omitted, got %s", field, data)
		}
	}
}
