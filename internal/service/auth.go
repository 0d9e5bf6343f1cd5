package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/momoso/api/internal/database"
	"github.com/momoso/api/internal/model"
	"golang.org/x/crypto/bcrypt"
)

const (
	// bcrypt cost factor (10-14 recommended for production)
	bcryptCost = 12

	// Password constraints. The minimum counts characters; the maximum is
	// bcrypt's input limit in bytes.
	minPasswordLength = 8
	maxPasswordBytes  = 72
)

// UserRepository defines the interface for user storage
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByNickname(ctx context.Context, nickname string) (*model.User, error)
	GetByNameAndPhone(ctx context.Context, name, phone string) (*model.User, error)
	UpdatePassword(ctx context.Context, userID, hash string) error
	TouchLogin(ctx context.Context, userID string) error
}

// AuthService handles the email/password account flows
type AuthService struct {
	userRepo     UserRepository
	tokenService *TokenService
	verification *VerificationService
}

// AuthServiceConfig holds configuration for the auth service
type AuthServiceConfig struct {
	UserRepo     UserRepository
	TokenService *TokenService
	Verification *VerificationService
}

// NewAuthService creates a new auth service
func NewAuthService(cfg AuthServiceConfig) *AuthService {
	return &AuthService{
		userRepo:     cfg.UserRepo,
		tokenService: cfg.TokenService,
		verification: cfg.Verification,
	}
}

// SignupRequest represents a registration request
type SignupRequest struct {
	Email           string
	Password        string
	ConfirmPassword string
	Name            string
	Nickname        string
	Phone           string
}

// AuthResult is a user together with a freshly issued token pair
type AuthResult struct {
	User      *model.User
	TokenPair *TokenPair
}

// Signup creates a new account for a verified phone number
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*AuthResult, error) {
	email := normalizeEmail(req.Email)
	if !isValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	name := strings.TrimSpace(req.Name)
	if !isValidName(name) {
		return nil, ErrInvalidName
	}
	nickname := strings.TrimSpace(req.Nickname)
	if !isValidNickname(nickname) {
		return nil, ErrInvalidNickname
	}
	if !isValidPhone(req.Phone) {
		return nil, ErrInvalidPhone
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}
	if req.Password != req.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	verified, err := s.verification.IsPhoneVerified(ctx, req.Phone)
	if err != nil {
		return nil, err
	}
	if !verified {
		return nil, ErrPhoneNotVerified
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyExists
	}
	existing, err = s.userRepo.GetByNickname(ctx, nickname)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrNicknameTaken
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:    email,
		Name:     name,
		Nickname: nickname,
		Phone:    req.Phone,
		Hash:     &hash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, s.duplicateReason(ctx, nickname)
		}
		return nil, err
	}

	tokenPair, err := s.tokenService.IssuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, TokenPair: tokenPair}, nil
}

// duplicateReason resolves a unique index violation that raced past the
// pre-checks
func (s *AuthService) duplicateReason(ctx context.Context, nickname string) error {
	if u, err := s.userRepo.GetByNickname(ctx, nickname); err == nil && u != nil {
		return ErrNicknameTaken
	}
	return ErrEmailAlreadyExists
}

// Login authenticates a user with email/password
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	// OAuth-only accounts have no password
	if !user.HasPassword() {
		return nil, ErrInvalidCredentials
	}
	if !checkPassword(password, *user.Hash) {
		return nil, ErrInvalidCredentials
	}

	if err := s.userRepo.TouchLogin(ctx, user.ID); err != nil {
		slog.WarnContext(ctx, "failed to record login time", "user_id", user.ID, "error", err)
	}

	tokenPair, err := s.tokenService.IssuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, TokenPair: tokenPair}, nil
}

// Refresh rotates a refresh token into a new pair
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return s.tokenService.Rotate(ctx, refreshToken)
}

// Logout revokes the user's refresh token
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	return s.tokenService.Revoke(ctx, userID)
}

// GetUser retrieves a user by ID
func (s *AuthService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// FindEmail returns the email registered for name and a verified phone
func (s *AuthService) FindEmail(ctx context.Context, name, phone string) (string, error) {
	if !isValidPhone(phone) {
		return "", ErrInvalidPhone
	}
	verified, err := s.verification.IsPhoneVerified(ctx, phone)
	if err != nil {
		return "", err
	}
	if !verified {
		return "", ErrPhoneNotVerified
	}

	user, err := s.userRepo.GetByNameAndPhone(ctx, strings.TrimSpace(name), phone)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}
	return user.Email, nil
}

// ResetPasswordRequest carries a new password for a verified email
type ResetPasswordRequest struct {
	Email           string
	Password        string
	ConfirmPassword string
}

// ResetPassword replaces the password of an account whose email was just
// verified and signs every session out
func (s *AuthService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	email := normalizeEmail(req.Email)
	if err := validatePassword(req.Password); err != nil {
		return err
	}
	if req.Password != req.ConfirmPassword {
		return ErrPasswordMismatch
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	if err := s.verification.ConsumeEmailVerified(ctx, email); err != nil {
		return err
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return s.tokenService.Revoke(ctx, user.ID)
}

// CheckNickname reports whether a nickname is free to use
func (s *AuthService) CheckNickname(ctx context.Context, nickname string) (bool, error) {
	nickname = strings.TrimSpace(nickname)
	if !isValidNickname(nickname) {
		return false, ErrInvalidNickname
	}
	user, err := s.userRepo.GetByNickname(ctx, nickname)
	if err != nil {
		return false, err
	}
	return user == nil, nil
}

// Helper functions

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func checkPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func validatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}

	var letter, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if !letter || !digit || !special {
		return ErrPasswordTooWeak
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	// Basic email validation
	if email == "" {
		return false
	}
	if len(email) > 254 {
		return false
	}
	atIndex := strings.Index(email, "@")
	if atIndex < 1 {
		return false
	}
	dotIndex := strings.LastIndex(email, ".")
	if dotIndex < atIndex+2 {
		return false
	}
	if dotIndex >= len(email)-1 {
		return false
	}
	return true
}

func isValidName(name string) bool {
	n := utf8.RuneCountInString(name)
	return n >= 1 && n <= model.MaxNameLength
}

func isValidNickname(nickname string) bool {
	n := utf8.RuneCountInString(nickname)
	return n >= model.MinNicknameLength && n <= model.MaxNicknameLength
}
