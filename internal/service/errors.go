package service

import "errors"

// Centralized service layer errors.
// All errors returned by service methods are defined here so handlers can
// map them to HTTP statuses in one place.

// ===== Authentication Errors =====
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailAlreadyExists = errors.New("email already registered")
	ErrNicknameTaken      = errors.New("nickname already taken")
	ErrUserNotFound       = errors.New("user not found")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
	ErrPasswordTooWeak    = errors.New("password must contain a letter, a digit and a special character")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrInvalidName        = errors.New("name must be 1 to 50 characters")
	ErrInvalidNickname    = errors.New("nickname must be 2 to 20 characters")
	ErrInvalidPhone       = errors.New("phone must look like 010-XXXX-XXXX")
)

// ===== Token Errors =====
var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrRefreshTokenRevoked = errors.New("refresh token revoked")
)

// ===== Verification Errors =====
var (
	ErrInvalidVerificationCode = errors.New("invalid verification code")
	ErrVerificationExpired     = errors.New("verification code expired")
	ErrPhoneNotVerified        = errors.New("phone number not verified")
	ErrEmailNotVerified        = errors.New("email not verified")
	ErrVerificationUnavailable = errors.New("verification channel not configured")
)

// ===== OAuth Errors =====
var (
	ErrInvalidOAuthState  = errors.New("invalid or expired OAuth state")
	ErrOAuthNotConfigured = errors.New("OAuth provider not configured")
	ErrInvalidAuthCode    = errors.New("invalid authorization code")
)

// ===== Novel Errors =====
var (
	ErrNovelNotFound          = errors.New("novel not found")
	ErrNotNovelOwner          = errors.New("only the novel owner can do this")
	ErrGenerationPrecondition = errors.New("previous generation step is missing")
	ErrMalformedGeneration    = errors.New("generator returned an unusable response")
	ErrNothingToIndex         = errors.New("novel has no episodes to index")
)

// ===== Discussion Errors =====
var (
	ErrDiscussionNotFound   = errors.New("discussion not found")
	ErrAlreadyParticipating = errors.New("already participating in this discussion")
	ErrDiscussionFull       = errors.New("discussion has reached its participant limit")
	ErrDiscussionEnded      = errors.New("discussion has ended")
	ErrNotParticipating     = errors.New("not a participant of this discussion")
	ErrNothingToSummarize   = errors.New("discussion has no transcript to summarize")
)
