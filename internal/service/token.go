package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/momoso/api/internal/cache"
	"github.com/momoso/api/internal/model"
	"github.com/momoso/api/pkg/jwt"
)

// TokenService issues JWT pairs and keeps one active refresh token per
// user in the cache. Only a fingerprint of the refresh token ID is stored.
type TokenService struct {
	jwtService *jwt.Service
	store      cache.Store
}

// TokenServiceConfig holds configuration for the token service
type TokenServiceConfig struct {
	JWTService *jwt.Service
	Store      cache.Store
}

// NewTokenService creates a new token service
func NewTokenService(cfg TokenServiceConfig) *TokenService {
	return &TokenService{
		jwtService: cfg.JWTService,
		store:      cfg.Store,
	}
}

// TokenPair represents an access token and refresh token pair
type TokenPair struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`         // seconds
	RefreshExpiresIn int    `json:"refresh_expires_in"` // seconds
}

// AccessTTL returns the lifetime of access tokens
func (s *TokenService) AccessTTL() time.Duration {
	return s.jwtService.TTL(jwt.TypeAccess)
}

// RefreshTTL returns the lifetime of refresh tokens
func (s *TokenService) RefreshTTL() time.Duration {
	return s.jwtService.TTL(jwt.TypeRefresh)
}

// IssuePair signs a new access/refresh pair for user and replaces any
// refresh token previously stored for them
func (s *TokenService) IssuePair(ctx context.Context, user *model.User) (*TokenPair, error) {
	return s.issue(ctx, user.ID, user.Email, user.Nickname)
}

func (s *TokenService) issue(ctx context.Context, userID, email, nickname string) (*TokenPair, error) {
	accessToken, err := s.jwtService.Sign(jwt.Claims{
		Subject:   userID,
		UserID:    userID,
		Email:     email,
		Nickname:  nickname,
		TokenType: jwt.TypeAccess,
	})
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	jti, err := generateTokenID()
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.jwtService.Sign(jwt.Claims{
		Subject:   userID,
		UserID:    userID,
		Email:     email,
		Nickname:  nickname,
		JWTID:     jti,
		TokenType: jwt.TypeRefresh,
	})
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.store.Set(ctx, cache.RefreshTokenKey(userID), hashToken(jti), s.RefreshTTL()); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        int(s.AccessTTL().Seconds()),
		RefreshExpiresIn: int(s.RefreshTTL().Seconds()),
	}, nil
}

// Rotate exchanges a refresh token for a new pair. The stored fingerprint
// is consumed atomically, so a token can be rotated once; presenting a
// stale token revokes the session.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.validateRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.GetDel(ctx, cache.RefreshTokenKey(claims.UserID))
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrRefreshTokenExpired
	}
	if err != nil {
		return nil, err
	}

	if !sameHash(stored, hashToken(claims.JWTID)) {
		// Replay of an already-rotated token; the key is gone now.
		return nil, ErrRefreshTokenRevoked
	}

	return s.issue(ctx, claims.UserID, claims.Email, claims.Nickname)
}

// ReissueAccess validates a refresh token without rotating it and signs a
// fresh access token
func (s *TokenService) ReissueAccess(ctx context.Context, refreshToken string) (string, *jwt.Claims, error) {
	claims, err := s.validateRefresh(refreshToken)
	if err != nil {
		return "", nil, err
	}

	key := cache.RefreshTokenKey(claims.UserID)
	stored, err := s.store.Get(ctx, key)
	if errors.Is(err, cache.ErrMiss) {
		return "", nil, ErrRefreshTokenExpired
	}
	if err != nil {
		return "", nil, err
	}
	if !sameHash(stored, hashToken(claims.JWTID)) {
		_ = s.store.Delete(ctx, key)
		return "", nil, ErrRefreshTokenRevoked
	}

	access := jwt.Claims{
		Subject:   claims.UserID,
		UserID:    claims.UserID,
		Email:     claims.Email,
		Nickname:  claims.Nickname,
		TokenType: jwt.TypeAccess,
	}
	token, err := s.jwtService.Sign(access)
	if err != nil {
		return "", nil, fmt.Errorf("sign access token: %w", err)
	}
	return token, &access, nil
}

// Revoke deletes the user's refresh token (logout)
func (s *TokenService) Revoke(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, cache.RefreshTokenKey(userID))
}

// ValidateAccessToken validates an access token and returns the claims
func (s *TokenService) ValidateAccessToken(token string) (*jwt.Claims, error) {
	return s.jwtService.ValidateType(token, jwt.TypeAccess)
}

func (s *TokenService) validateRefresh(token string) (*jwt.Claims, error) {
	claims, err := s.jwtService.ValidateType(token, jwt.TypeRefresh)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrRefreshTokenExpired
	case err != nil:
		return nil, ErrInvalidRefreshToken
	}
	if claims.UserID == "" || claims.JWTID == "" {
		return nil, ErrInvalidRefreshToken
	}
	return claims, nil
}

// generateTokenID creates a cryptographically secure random token ID
func generateTokenID() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// hashToken creates a SHA-256 hash of the token for storage
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func sameHash(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
