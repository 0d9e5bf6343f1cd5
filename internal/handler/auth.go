package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/momoso/api/internal/middleware"
	"github.com/momoso/api/internal/model"
	"github.com/momoso/api/internal/service"
)

// AuthService is the account side of authentication
type AuthService interface {
	Signup(ctx context.Context, req service.SignupRequest) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	GetUser(ctx context.Context, userID string) (*model.User, error)
	FindEmail(ctx context.Context, name, phone string) (string, error)
	ResetPassword(ctx context.Context, req service.ResetPasswordRequest) error
	CheckNickname(ctx context.Context, nickname string) (bool, error)
}

// VerificationService sends and checks one-time codes
type VerificationService interface {
	SendPhoneCode(ctx context.Context, phone string) error
	VerifyPhoneCode(ctx context.Context, phone, code string) error
	SendEmailCode(ctx context.Context, email, name string) error
	VerifyEmailCode(ctx context.Context, email, name, code string) error
}

// OAuthService runs the Google authorization code flow
type OAuthService interface {
	AuthURL(ctx context.Context) (string, error)
	Callback(ctx context.Context, code, state string) (*service.OAuthResult, error)
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	auth         AuthService
	verification VerificationService
	oauth        OAuthService
	cookies      middleware.Cookies
	successURL   string
}

// AuthHandlerConfig holds the auth handler dependencies
type AuthHandlerConfig struct {
	AuthService         AuthService
	VerificationService VerificationService
	OAuthService        OAuthService
	Cookies             middleware.Cookies
	// OAuthSuccessURL receives the browser after a Google sign-in. Empty
	// means the callback answers with JSON.
	OAuthSuccessURL string
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		auth:         cfg.AuthService,
		verification: cfg.VerificationService,
		oauth:        cfg.OAuthService,
		cookies:      cfg.Cookies,
		successURL:   cfg.OAuthSuccessURL,
	}
}

// ===== Request Bodies =====

type PhoneRequest struct {
	Phone string `json:"phone"`
}

func (r *PhoneRequest) Validate() []model.FieldError {
	if strings.TrimSpace(r.Phone) == "" {
		return []model.FieldError{{Field: "phone", Message: "phone is required"}}
	}
	return nil
}

type PhoneVerifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

func (r *PhoneVerifyRequest) Validate() []model.FieldError {
	var errs []model.FieldError
	if strings.TrimSpace(r.Phone) == "" {
		errs = append(errs, model.FieldError{Field: "phone", Message: "phone is required"})
	}
	if strings.TrimSpace(r.Code) == "" {
		errs = append(errs, model.FieldError{Field: "code", Message: "code is required"})
	}
	return errs
}

type EmailCodeRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (r *EmailCodeRequest) Validate() []model.FieldError {
	var errs []model.FieldError
	if strings.TrimSpace(r.Email) == "" {
		errs = append(errs, model.FieldError{Field: "email", Message: "email is required"})
	}
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, model.FieldError{Field: "name", Message: "name is required"})
	}
	return errs
}

type EmailVerifyRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Code  string `json:"code"`
}

func (r *EmailVerifyRequest) Validate() []model.FieldError {
	errs := (&EmailCodeRequest{Email: r.Email, Name: r.Name}).Validate()
	if strings.TrimSpace(r.Code) == "" {
		errs = append(errs, model.FieldError{Field: "code", Message: "code is required"})
	}
	return errs
}

type SignupRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Name            string `json:"name"`
	Nickname        string `json:"nickname"`
	Phone           string `json:"phone"`
}

// Validate only checks presence; format rules live in the service
func (r *SignupRequest) Validate() []model.FieldError {
	var errs []model.FieldError
	for _, f := range []struct{ name, value string }{
		{"email", r.Email},
		{"password", r.Password},
		{"confirm_password", r.ConfirmPassword},
		{"name", r.Name},
		{"nickname", r.Nickname},
		{"phone", r.Phone},
	} {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, model.FieldError{Field: f.name, Message: f.name + " is required"})
		}
	}
	return errs
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() []model.FieldError {
	var errs []model.FieldError
	if strings.TrimSpace(r.Email) == "" {
		errs = append(errs, model.FieldError{Field: "email", Message: "email is required"})
	}
	if r.Password == "" {
		errs = append(errs, model.FieldError{Field: "password", Message: "password is required"})
	}
	return errs
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type FindEmailRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (r *FindEmailRequest) Validate() []model.FieldError {
	var errs []model.FieldError
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, model.FieldError{Field: "name", Message: "name is required"})
	}
	if strings.TrimSpace(r.Phone) == "" {
		errs = append(errs, model.FieldError{Field: "phone", Message: "phone is required"})
	}
	return errs
}

type ResetPasswordRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (r *ResetPasswordRequest) Validate() []model.FieldError {
	var errs []model.FieldError
	if strings.TrimSpace(r.Email) == "" {
		errs = append(errs, model.FieldError{Field: "email", Message: "email is required"})
	}
	if r.Password == "" {
		errs = append(errs, model.FieldError{Field: "password", Message: "password is required"})
	}
	return errs
}

// SessionResponse is returned by every endpoint that signs a user in
type SessionResponse struct {
	User      *model.User        `json:"user"`
	Token     *service.TokenPair `json:"token"`
	IsNewUser bool               `json:"is_new_user,omitempty"`
}

// ===== Verification =====

// SendPhoneCode handles POST /v1/auth/phone/send
func (h *AuthHandler) SendPhoneCode(w http.ResponseWriter, r *http.Request) {
	var req PhoneRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if err := h.verification.SendPhoneCode(r.Context(), req.Phone); err != nil {
		writeServiceError(w, r, err, "send phone code")
		return
	}
	WriteData(w, http.StatusAccepted, map[string]string{"status": "sent"}, map[string]string{
		"verify": "/v1/auth/phone/verify",
	})
}

// VerifyPhoneCode handles POST /v1/auth/phone/verify
func (h *AuthHandler) VerifyPhoneCode(w http.ResponseWriter, r *http.Request) {
	var req PhoneVerifyRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if err := h.verification.VerifyPhoneCode(r.Context(), req.Phone, req.Code); err != nil {
		writeServiceError(w, r, err, "verify phone code")
		return
	}
	WriteData(w, http.StatusOK, map[string]bool{"verified": true}, nil)
}

// SendEmailCode handles POST /v1/auth/email/send
func (h *AuthHandler) SendEmailCode(w http.ResponseWriter, r *http.Request) {
	var req EmailCodeRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if err := h.verification.SendEmailCode(r.Context(), req.Email, req.Name); err != nil {
		writeServiceError(w, r, err, "send email code")
		return
	}
	WriteData(w, http.StatusAccepted, map[string]string{"status": "sent"}, map[string]string{
		"verify": "/v1/auth/email/verify",
	})
}

// VerifyEmailCode handles POST /v1/auth/email/verify
func (h *AuthHandler) VerifyEmailCode(w http.ResponseWriter, r *http.Request) {
	var req EmailVerifyRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if err := h.verification.VerifyEmailCode(r.Context(), req.Email, req.Name, req.Code); err != nil {
		writeServiceError(w, r, err, "verify email code")
		return
	}
	WriteData(w, http.StatusOK, map[string]bool{"verified": true}, map[string]string{
		"reset_password": "/v1/auth/reset-password",
	})
}

// ===== Accounts =====

// Signup handles POST /v1/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeValid(w, r, &req) {
		return
	}

	result, err := h.auth.Signup(r.Context(), service.SignupRequest{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Name:            req.Name,
		Nickname:        req.Nickname,
		Phone:           req.Phone,
	})
	if err != nil {
		writeServiceError(w, r, err, "signup")
		return
	}

	h.cookies.SetTokens(w, result.TokenPair.AccessToken, result.TokenPair.RefreshToken)
	WriteData(w, http.StatusCreated, SessionResponse{User: result.User, Token: result.TokenPair}, map[string]string{
		"self": "/v1/auth/me",
	})
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeValid(w, r, &req) {
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err, "login")
		return
	}

	h.cookies.SetTokens(w, result.TokenPair.AccessToken, result.TokenPair.RefreshToken)
	WriteData(w, http.StatusOK, SessionResponse{User: result.User, Token: result.TokenPair}, map[string]string{
		"self": "/v1/auth/me",
	})
}

// Refresh handles POST /v1/auth/refresh. The refresh token comes from the
// body or, for browsers, from the refresh_token cookie.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	token := req.RefreshToken
	if token == "" {
		if c, err := r.Cookie(middleware.RefreshTokenCookie); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		WriteError(w, model.NewValidationError([]model.FieldError{
			{Field: "refresh_token", Message: "refresh_token is required"},
		}))
		return
	}

	pair, err := h.auth.Refresh(r.Context(), token)
	if err != nil {
		h.cookies.Clear(w)
		writeServiceError(w, r, err, "refresh")
		return
	}

	h.cookies.SetTokens(w, pair.AccessToken, pair.RefreshToken)
	WriteData(w, http.StatusOK, pair, nil)
}

// Logout handles POST /v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.auth.Logout(r.Context(), userID); err != nil {
		writeServiceError(w, r, err, "logout")
		return
	}

	h.cookies.Clear(w)
	WriteNoContent(w)
}

// Me handles GET /v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.auth.GetUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "get user")
		return
	}

	WriteData(w, http.StatusOK, user, map[string]string{
		"self":   "/v1/auth/me",
		"logout": "/v1/auth/logout",
	})
}

// FindEmail handles POST /v1/auth/find-email
func (h *AuthHandler) FindEmail(w http.ResponseWriter, r *http.Request) {
	var req FindEmailRequest
	if !decodeValid(w, r, &req) {
		return
	}

	email, err := h.auth.FindEmail(r.Context(), req.Name, req.Phone)
	if err != nil {
		writeServiceError(w, r, err, "find email")
		return
	}

	WriteData(w, http.StatusOK, map[string]string{"email": email}, map[string]string{
		"login": "/v1/auth/login",
	})
}

// ResetPassword handles POST /v1/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decodeValid(w, r, &req) {
		return
	}

	err := h.auth.ResetPassword(r.Context(), service.ResetPasswordRequest{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		writeServiceError(w, r, err, "reset password")
		return
	}

	WriteNoContent(w)
}

// CheckNickname handles GET /v1/auth/nickname?nickname=...
func (h *AuthHandler) CheckNickname(w http.ResponseWriter, r *http.Request) {
	nickname := strings.TrimSpace(r.URL.Query().Get("nickname"))
	if nickname == "" {
		WriteError(w, model.NewValidationError([]model.FieldError{
			{Field: "nickname", Message: "nickname is required"},
		}))
		return
	}

	available, err := h.auth.CheckNickname(r.Context(), nickname)
	if err != nil {
		writeServiceError(w, r, err, "check nickname")
		return
	}

	WriteData(w, http.StatusOK, map[string]any{
		"nickname":  nickname,
		"available": available,
	}, nil)
}

// ===== Google OAuth =====

// GoogleStart handles GET /v1/auth/google by redirecting to the consent page
func (h *AuthHandler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	target, err := h.oauth.AuthURL(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "google auth url")
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// GoogleCallback handles GET /v1/auth/google/callback
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		WriteError(w, model.NewUnauthorizedError("google sign-in was not completed: "+reason))
		return
	}

	result, err := h.oauth.Callback(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		writeServiceError(w, r, err, "google callback")
		return
	}

	h.cookies.SetTokens(w, result.TokenPair.AccessToken, result.TokenPair.RefreshToken)

	if h.successURL != "" {
		target, err := url.Parse(h.successURL)
		if err == nil {
			if result.IsNewUser {
				v := target.Query()
				v.Set("new_user", "true")
				target.RawQuery = v.Encode()
			}
			http.Redirect(w, r, target.String(), http.StatusFound)
			return
		}
	}

	status := http.StatusOK
	if result.IsNewUser {
		status = http.StatusCreated
	}
	WriteData(w, status, SessionResponse{
		User:      result.User,
		Token:     result.TokenPair,
		IsNewUser: result.IsNewUser,
	}, map[string]string{"self": "/v1/auth/me"})
}
