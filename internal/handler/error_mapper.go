package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/momoso/api/internal/ai"
	"github.com/momoso/api/internal/database"
	"github.com/momoso/api/internal/middleware"
	"github.com/momoso/api/internal/model"
	"github.com/momoso/api/internal/provider"
	"github.com/momoso/api/internal/service"
	"github.com/momoso/api/internal/transcribe"
)

// MapServiceError converts a service error to a ProblemDetails response.
// This centralizes error handling logic for all handlers, ensuring consistent
// HTTP status codes and error messages across the API.
func MapServiceError(err error) *model.ProblemDetails {
	if err == nil {
		return nil
	}

	switch {
	// ===== Authentication Errors → 401 =====
	case errors.Is(err, service.ErrInvalidCredentials):
		return model.NewUnauthorizedError(err.Error()).WithCode(model.ErrCodeLoginFailed)
	case errors.Is(err, service.ErrRefreshTokenExpired):
		return model.NewUnauthorizedError(err.Error()).WithCode(model.ErrCodeTokenExpired)
	case errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrRefreshTokenRevoked),
		errors.Is(err, provider.ErrInvalidIDToken):
		return model.NewUnauthorizedError(err.Error()).WithCode(model.ErrCodeTokenInvalid)
	case errors.Is(err, service.ErrInvalidOAuthState),
		errors.Is(err, service.ErrInvalidAuthCode):
		return model.NewUnauthorizedError(err.Error())

	// ===== Authorization Errors → 403 =====
	case errors.Is(err, service.ErrNotNovelOwner):
		return model.NewForbiddenError(err.Error()).WithCode(model.ErrCodeNotOwner)
	case errors.Is(err, service.ErrNotParticipating):
		return model.NewForbiddenError(err.Error()).WithCode(model.ErrCodeNotParticipant)
	case errors.Is(err, service.ErrPhoneNotVerified),
		errors.Is(err, service.ErrEmailNotVerified):
		return model.NewForbiddenError(err.Error()).WithCode(model.ErrCodeVerificationFailed)

	// ===== Not Found Errors → 404 =====
	case errors.Is(err, service.ErrUserNotFound):
		return model.NewNotFoundError("user")
	case errors.Is(err, service.ErrNovelNotFound):
		return model.NewNotFoundError("novel")
	case errors.Is(err, service.ErrDiscussionNotFound):
		return model.NewNotFoundError("discussion")
	case errors.Is(err, database.ErrNotFound):
		return model.NewNotFoundError("record")

	// ===== Conflict Errors → 409 =====
	case errors.Is(err, service.ErrEmailAlreadyExists),
		errors.Is(err, service.ErrNicknameTaken):
		return model.NewConflictError(err.Error()).WithCode(model.ErrCodeAlreadyExists)
	case errors.Is(err, service.ErrAlreadyParticipating),
		errors.Is(err, service.ErrDiscussionFull),
		errors.Is(err, service.ErrDiscussionEnded):
		return model.NewConflictError(err.Error())
	case errors.Is(err, database.ErrDuplicate):
		return model.NewConflictError("the resource was modified concurrently, retry the request")

	// ===== Validation Errors → 422 =====
	case errors.Is(err, service.ErrInvalidEmail):
		return fieldError("email", err)
	case errors.Is(err, service.ErrInvalidName):
		return fieldError("name", err)
	case errors.Is(err, service.ErrInvalidNickname):
		return fieldError("nickname", err)
	case errors.Is(err, service.ErrInvalidPhone):
		return fieldError("phone", err)
	case errors.Is(err, service.ErrPasswordRequired),
		errors.Is(err, service.ErrPasswordTooShort),
		errors.Is(err, service.ErrPasswordTooLong),
		errors.Is(err, service.ErrPasswordTooWeak):
		return fieldError("password", err)
	case errors.Is(err, service.ErrPasswordMismatch):
		return fieldError("confirm_password", err)
	case errors.Is(err, service.ErrInvalidVerificationCode),
		errors.Is(err, service.ErrVerificationExpired):
		return fieldError("code", err).WithCode(model.ErrCodeVerificationFailed)
	case errors.Is(err, service.ErrGenerationPrecondition):
		return fieldError("novel", err)
	case errors.Is(err, service.ErrNothingToIndex):
		return fieldError("episodes", err)
	case errors.Is(err, service.ErrNothingToSummarize):
		return fieldError("transcript", err)
	case errors.Is(err, transcribe.ErrInvalidRoom):
		return fieldError("room", err)

	// ===== Provider/External Errors → 502 =====
	case errors.Is(err, service.ErrMalformedGeneration),
		errors.Is(err, ai.ErrEmptyResponse),
		errors.Is(err, ai.ErrProviderUnavailable):
		return model.NewBadGatewayError("the AI provider failed to answer, try again")
	case errors.Is(err, provider.ErrProviderError):
		return model.NewBadGatewayError("an external provider failed, try again")

	// ===== Unavailable → 503 =====
	case errors.Is(err, service.ErrVerificationUnavailable),
		errors.Is(err, service.ErrOAuthNotConfigured),
		errors.Is(err, transcribe.ErrQueueFull),
		errors.Is(err, transcribe.ErrStopped):
		return model.NewServiceUnavailableError(err.Error())

	// ===== Default → 500 =====
	default:
		return model.NewInternalError("")
	}
}

// MapServiceErrorWithContext converts a service error to a ProblemDetails response
// with additional context about the operation that failed.
func MapServiceErrorWithContext(err error, operation string) *model.ProblemDetails {
	pd := MapServiceError(err)
	if pd != nil && pd.Status == http.StatusInternalServerError {
		pd.Detail = operation + ": an unexpected error occurred"
	}
	return pd
}

// writeServiceError maps err and logs it when the fault is ours or upstream
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	pd := MapServiceErrorWithContext(err, operation)
	if pd.Status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), operation+" failed",
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.Int("status", pd.Status),
			slog.String("error", err.Error()),
		)
	}
	WriteError(w, pd)
}

func fieldError(field string, err error) *model.ProblemDetails {
	return model.NewValidationError([]model.FieldError{{Field: field, Message: err.Error()}})
}
