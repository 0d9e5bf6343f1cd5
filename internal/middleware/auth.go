package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/momoso/api/internal/model"
	"github.com/momoso/api/pkg/jwt"
)

// TokenService defines the token operations the auth middleware needs
type TokenService interface {
	ValidateAccessToken(token string) (*jwt.Claims, error)
	// ReissueAccess mints a new access token from a valid refresh token
	ReissueAccess(ctx context.Context, refreshToken string) (string, *jwt.Claims, error)
}

// ClaimsKey is the context key for JWT claims
const ClaimsKey contextKey = "claims"

// UserEmailKey is the context key for user email
const UserEmailKey contextKey = "userEmail"

// errNoToken means neither the header nor the cookie carried a token
var errNoToken = errors.New("no access token")

// Auth returns a middleware that requires a valid access token. When the
// access token is missing or expired but the refresh_token cookie is still
// valid, a new access token is issued into the cookie and the request
// continues.
func Auth(tokens TokenService, cookies Cookies) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(w, r, tokens, cookies)
			if err != nil {
				switch {
				case errors.Is(err, errNoToken):
					model.NewUnauthorizedError("missing access token").WriteJSON(w)
				case errors.Is(err, jwt.ErrTokenExpired):
					model.NewUnauthorizedError("token expired").WithCode(model.ErrCodeTokenExpired).WriteJSON(w)
				case errors.Is(err, jwt.ErrInvalidSignature):
					model.NewUnauthorizedError("invalid token signature").WithCode(model.ErrCodeTokenInvalid).WriteJSON(w)
				default:
					model.NewUnauthorizedError("invalid token").WithCode(model.ErrCodeTokenInvalid).WriteJSON(w)
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth is like Auth but doesn't require authentication.
// It will set user info in context if a token is present and valid.
func OptionalAuth(tokens TokenService, cookies Cookies) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(w, r, tokens, cookies)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

func authenticate(w http.ResponseWriter, r *http.Request, tokens TokenService, cookies Cookies) (*jwt.Claims, error) {
	token, err := accessToken(r)
	if err != nil {
		return nil, err
	}

	if token != "" {
		claims, err := tokens.ValidateAccessToken(token)
		if err == nil {
			return claims, nil
		}
		if !errors.Is(err, jwt.ErrTokenExpired) {
			return nil, err
		}
		if refreshed, ok := reissue(w, r, tokens, cookies); ok {
			return refreshed, nil
		}
		return nil, err
	}

	if refreshed, ok := reissue(w, r, tokens, cookies); ok {
		return refreshed, nil
	}
	return nil, errNoToken
}

// accessToken reads the Authorization header first, then the cookie
func accessToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", jwt.ErrInvalidToken
		}
		return parts[1], nil
	}

	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", nil
}

func reissue(w http.ResponseWriter, r *http.Request, tokens TokenService, cookies Cookies) (*jwt.Claims, bool) {
	c, err := r.Cookie(RefreshTokenCookie)
	if err != nil || c.Value == "" {
		return nil, false
	}

	access, claims, err := tokens.ReissueAccess(r.Context(), c.Value)
	if err != nil {
		slog.DebugContext(r.Context(), "access token reissue failed",
			slog.String("request_id", GetRequestID(r.Context())),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	cookies.SetAccess(w, access)
	return claims, true
}

func withClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetUserID extracts the user ID from context
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// GetUserEmail extracts the user email from context
func GetUserEmail(ctx context.Context) string {
	if email, ok := ctx.Value(UserEmailKey).(string); ok {
		return email
	}
	return ""
}

// GetClaims extracts the JWT claims from context
func GetClaims(ctx context.Context) *jwt.Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*jwt.Claims); ok {
		return claims
	}
	return nil
}
