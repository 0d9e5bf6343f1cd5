package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/momoso/api/internal/cache"
)

const (
	emailCodeTTL     = 600 * time.Second
	emailVerifiedTTL = 10 * time.Minute
	phoneVerifiedTTL = 24 * time.Hour

	emailCodeDigits = 6
)

var phonePattern = regexp.MustCompile(`^010-\d{4}-\d{4}$`)

// SMSSender delivers and checks one-time codes by SMS
type SMSSender interface {
	SendCode(ctx context.Context, to string) error
	CheckCode(ctx context.Context, to, code string) (bool, error)
}

// Mailer delivers plain text email
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// VerificationService runs the SMS and email OTP flows. Verified flags
// live in the cache with a TTL and are read by the account flows.
type VerificationService struct {
	sms    SMSSender
	mailer Mailer
	store  cache.Store
}

// VerificationServiceConfig holds configuration for the verification service.
// A nil SMS or Mailer disables that channel.
type VerificationServiceConfig struct {
	SMS    SMSSender
	Mailer Mailer
	Store  cache.Store
}

// NewVerificationService creates a new verification service
func NewVerificationService(cfg VerificationServiceConfig) *VerificationService {
	return &VerificationService{
		sms:    cfg.SMS,
		mailer: cfg.Mailer,
		store:  cfg.Store,
	}
}

type emailCodeEntry struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// SendPhoneCode sends an SMS code to a 010-XXXX-XXXX number
func (s *VerificationService) SendPhoneCode(ctx context.Context, phone string) error {
	if !isValidPhone(phone) {
		return ErrInvalidPhone
	}
	if s.sms == nil {
		return ErrVerificationUnavailable
	}
	if err := s.sms.SendCode(ctx, toE164(phone)); err != nil {
		return fmt.Errorf("send sms code: %w", err)
	}
	return nil
}

// VerifyPhoneCode checks the SMS code and marks the phone verified for a day
func (s *VerificationService) VerifyPhoneCode(ctx context.Context, phone, code string) error {
	if !isValidPhone(phone) {
		return ErrInvalidPhone
	}
	if s.sms == nil {
		return ErrVerificationUnavailable
	}

	approved, err := s.sms.CheckCode(ctx, toE164(phone), strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("check sms code: %w", err)
	}
	if !approved {
		return ErrInvalidVerificationCode
	}

	return s.store.Set(ctx, cache.PhoneVerifiedKey(phone), "1", phoneVerifiedTTL)
}

// IsPhoneVerified reports whether the phone passed SMS verification recently
func (s *VerificationService) IsPhoneVerified(ctx context.Context, phone string) (bool, error) {
	_, err := s.store.Get(ctx, cache.PhoneVerifiedKey(phone))
	if errors.Is(err, cache.ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SendEmailCode mails a 6-digit code bound to the account holder's name
func (s *VerificationService) SendEmailCode(ctx context.Context, email, name string) error {
	email = normalizeEmail(email)
	if !isValidEmail(email) {
		return ErrInvalidEmail
	}
	name = strings.TrimSpace(name)
	if !isValidName(name) {
		return ErrInvalidName
	}
	if s.mailer == nil {
		return ErrVerificationUnavailable
	}

	code, err := generateNumericCode(emailCodeDigits)
	if err != nil {
		return err
	}

	entry, err := json.Marshal(emailCodeEntry{Code: code, Name: name})
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, cache.EmailCodeKey(email), string(entry), emailCodeTTL); err != nil {
		return err
	}

	body := fmt.Sprintf("Hello %s,\n\nYour Momoso verification code is %s.\nIt expires in %d minutes.\n",
		name, code, int(emailCodeTTL.Minutes()))
	if err := s.mailer.Send(ctx, email, "[Momoso] Email verification code", body); err != nil {
		_ = s.store.Delete(ctx, cache.EmailCodeKey(email))
		return fmt.Errorf("send email code: %w", err)
	}
	return nil
}

// VerifyEmailCode checks the code and name, then marks the email verified
func (s *VerificationService) VerifyEmailCode(ctx context.Context, email, name, code string) error {
	email = normalizeEmail(email)
	key := cache.EmailCodeKey(email)

	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, cache.ErrMiss) {
		return ErrVerificationExpired
	}
	if err != nil {
		return err
	}

	var entry emailCodeEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		_ = s.store.Delete(ctx, key)
		return ErrVerificationExpired
	}

	codeOK := subtle.ConstantTimeCompare([]byte(entry.Code), []byte(strings.TrimSpace(code))) == 1
	if !codeOK || entry.Name != strings.TrimSpace(name) {
		return ErrInvalidVerificationCode
	}

	if err := s.store.Delete(ctx, key); err != nil {
		return err
	}
	return s.store.Set(ctx, cache.EmailVerifiedKey(email), "1", emailVerifiedTTL)
}

// ConsumeEmailVerified removes the verified flag, failing if it was absent
func (s *VerificationService) ConsumeEmailVerified(ctx context.Context, email string) error {
	_, err := s.store.GetDel(ctx, cache.EmailVerifiedKey(normalizeEmail(email)))
	if errors.Is(err, cache.ErrMiss) {
		return ErrEmailNotVerified
	}
	return err
}

func isValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// toE164 turns 010-1234-5678 into +821012345678
func toE164(phone string) string {
	digits := strings.ReplaceAll(phone, "-", "")
	return "+82" + strings.TrimPrefix(digits, "0")
}

func generateNumericCode(digits int) (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
