package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/momoso/api/internal/cache"
	"github.com/momoso/api/internal/database"
	"github.com/momoso/api/internal/model"
	"github.com/momoso/api/internal/provider"
)

const (
	providerGoogle = "google"

	oauthStateTTL = 10 * time.Minute

	nicknameSuffixDigits = 4
	nicknameAttempts     = 5
)

// IdentityRepository defines the interface for identity storage
type IdentityRepository interface {
	Create(ctx context.Context, identity *model.Identity) error
	GetByProviderID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// GoogleAuthenticator runs Google's authorization code flow
type GoogleAuthenticator interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*provider.GoogleUserInfo, error)
}

// OAuthService handles sign-in through Google
type OAuthService struct {
	google       GoogleAuthenticator
	userRepo     UserRepository
	identityRepo IdentityRepository
	tokenService *TokenService
	store        cache.Store
}

// OAuthServiceConfig holds configuration for the OAuth service.
// A nil Google disables the flow.
type OAuthServiceConfig struct {
	Google       GoogleAuthenticator
	UserRepo     UserRepository
	IdentityRepo IdentityRepository
	TokenService *TokenService
	Store        cache.Store
}

// NewOAuthService creates a new OAuth service
func NewOAuthService(cfg OAuthServiceConfig) *OAuthService {
	return &OAuthService{
		google:       cfg.Google,
		userRepo:     cfg.UserRepo,
		identityRepo: cfg.IdentityRepo,
		tokenService: cfg.TokenService,
		store:        cfg.Store,
	}
}

// OAuthResult represents a successful OAuth authentication
type OAuthResult struct {
	User      *model.User
	TokenPair *TokenPair
	IsNewUser bool
}

// AuthURL returns the Google consent URL with a fresh state that the
// callback must present within ten minutes
func (s *OAuthService) AuthURL(ctx context.Context) (string, error) {
	if s.google == nil {
		return "", ErrOAuthNotConfigured
	}

	state := uuid.NewString()
	if _, err := s.store.SetNX(ctx, cache.OAuthStateKey(state), "1", oauthStateTTL); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	return s.google.AuthCodeURL(state), nil
}

// Callback consumes the state, exchanges the code and signs the user in,
// creating or linking the account as needed
func (s *OAuthService) Callback(ctx context.Context, code, state string) (*OAuthResult, error) {
	if s.google == nil {
		return nil, ErrOAuthNotConfigured
	}
	if state == "" {
		return nil, ErrInvalidOAuthState
	}
	if _, err := s.store.GetDel(ctx, cache.OAuthStateKey(state)); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, ErrInvalidOAuthState
		}
		return nil, err
	}
	if code == "" {
		return nil, ErrInvalidAuthCode
	}

	info, err := s.google.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google exchange: %w", err)
	}

	return s.handleGoogleUser(ctx, info)
}

func (s *OAuthService) handleGoogleUser(ctx context.Context, info *provider.GoogleUserInfo) (*OAuthResult, error) {
	identity, err := s.identityRepo.GetByProviderID(ctx, providerGoogle, info.ID)
	if err != nil {
		return nil, err
	}

	if identity != nil {
		user, err := s.userRepo.GetByID(ctx, identity.UserID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrUserNotFound
		}
		return s.signIn(ctx, user, false)
	}

	email := normalizeEmail(info.Email)
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		// Only a provider-verified address may claim an existing account
		if !info.EmailVerified {
			return nil, ErrEmailAlreadyExists
		}
		if err := s.link(ctx, existing.ID, info); err != nil {
			return nil, err
		}
		return s.signIn(ctx, existing, false)
	}

	nickname, err := s.generateNickname(ctx, email)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(info.Name)
	if name == "" {
		name = nickname
	}
	if utf8.RuneCountInString(name) > model.MaxNameLength {
		name = string([]rune(name)[:model.MaxNameLength])
	}

	user := &model.User{
		Email:    email,
		Name:     name,
		Nickname: nickname,
		UserImg:  info.Picture,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}

	if err := s.link(ctx, user.ID, info); err != nil {
		return nil, err
	}
	return s.signIn(ctx, user, true)
}

func (s *OAuthService) link(ctx context.Context, userID string, info *provider.GoogleUserInfo) error {
	email := info.Email
	return s.identityRepo.Create(ctx, &model.Identity{
		UserID:                  userID,
		Provider:                providerGoogle,
		ProviderUserID:          info.ID,
		ProviderEmail:           &email,
		EmailVerifiedByProvider: info.EmailVerified,
	})
}

func (s *OAuthService) signIn(ctx context.Context, user *model.User, isNew bool) (*OAuthResult, error) {
	tokenPair, err := s.tokenService.IssuePair(ctx, user)
	if err != nil {
		return nil, err
	}
	return &OAuthResult{User: user, TokenPair: tokenPair, IsNewUser: isNew}, nil
}

// generateNickname derives a free nickname from the email local part plus
// a numeric suffix
func (s *OAuthService) generateNickname(ctx context.Context, email string) (string, error) {
	base := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		base = email[:at]
	}
	maxBase := model.MaxNicknameLength - nicknameSuffixDigits - 1
	if utf8.RuneCountInString(base) > maxBase {
		base = string([]rune(base)[:maxBase])
	}
	if base == "" {
		base = "user"
	}

	for i := 0; i < nicknameAttempts; i++ {
		suffix, err := generateNumericCode(nicknameSuffixDigits)
		if err != nil {
			return "", err
		}
		candidate := base + "_" + suffix
		taken, err := s.userRepo.GetByNickname(ctx, candidate)
		if err != nil {
			return "", err
		}
		if taken == nil {
			return candidate, nil
		}
	}
	return "", ErrNicknameTaken
}
