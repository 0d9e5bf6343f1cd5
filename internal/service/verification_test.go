package service

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/momoso/api/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerification(t *testing.T) (*VerificationService, *mockSMS, *mockMailer, cache.Store, *miniredis.Miniredis) {
	t.Helper()
	store, mr := newTestStore(t)
	sms := &mockSMS{approve: true}
	mailer := &mockMailer{}
	svc := NewVerificationService(VerificationServiceConfig{SMS: sms, Mailer: mailer, Store: store})
	return svc, sms, mailer, store, mr
}

var sixDigits = regexp.MustCompile(`\b(\d{6})\b`)

// ============================================================================
// Phone
// ============================================================================

func TestToE164(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "+821012345678", toE164("010-1234-5678"))
}

func TestIsValidPhone(t *testing.T) {
	t.Parallel()

	for phone, want := range map[string]bool{
		"010-1234-5678": true,
		"01012345678":   false,
		"011-1234-5678": false,
		"010-123-5678":  false,
		"010-1234-567a": false,
		"":              false,
	} {
		assert.Equal(t, want, isValidPhone(phone), phone)
	}
}

func TestVerification_SendPhoneCode(t *testing.T) {
	t.Parallel()
	svc, sms, _, _, _ := newTestVerification(t)

	require.NoError(t, svc.SendPhoneCode(context.Background(), "010-1234-5678"))
	assert.Equal(t, []string{"+821012345678"}, sms.sent)

	assert.ErrorIs(t, svc.SendPhoneCode(context.Background(), "1234"), ErrInvalidPhone)
}

func TestVerification_SendPhoneCode_ProviderFailureWrapped(t *testing.T) {
	t.Parallel()
	svc, sms, _, _, _ := newTestVerification(t)
	upstream := errors.New("twilio down")
	sms.sendErr = upstream

	err := svc.SendPhoneCode(context.Background(), "010-1234-5678")
	assert.ErrorIs(t, err, upstream)
}

func TestVerification_VerifyPhoneCode_SetsFlagForADay(t *testing.T) {
	t.Parallel()
	svc, sms, _, _, mr := newTestVerification(t)
	ctx := context.Background()

	require.NoError(t, svc.VerifyPhoneCode(ctx, "010-1234-5678", "123456"))
	assert.Equal(t, "+821012345678", sms.checkedTo)

	ok, err := svc.IsPhoneVerified(ctx, "010-1234-5678")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(25 * time.Hour)
	ok, err = svc.IsPhoneVerified(ctx, "010-1234-5678")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerification_VerifyPhoneCode_Rejected(t *testing.T) {
	t.Parallel()
	svc, sms, _, _, _ := newTestVerification(t)
	sms.approve = false

	err := svc.VerifyPhoneCode(context.Background(), "010-1234-5678", "000000")
	assert.ErrorIs(t, err, ErrInvalidVerificationCode)

	ok, _ := svc.IsPhoneVerified(context.Background(), "010-1234-5678")
	assert.False(t, ok)
}

func TestVerification_NoSender_Unavailable(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	svc := NewVerificationService(VerificationServiceConfig{Store: store})

	assert.ErrorIs(t, svc.SendPhoneCode(context.Background(), "010-1234-5678"), ErrVerificationUnavailable)
	assert.ErrorIs(t, svc.SendEmailCode(context.Background(), "a@example.com", "Kim"), ErrVerificationUnavailable)
}

// ============================================================================
// Email
// ============================================================================

func TestVerification_SendEmailCode_StoresCodeAndName(t *testing.T) {
	t.Parallel()
	svc, _, mailer, store, _ := newTestVerification(t)
	ctx := context.Background()

	require.NoError(t, svc.SendEmailCode(ctx, "  Kim@Example.COM ", "Kim"))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "kim@example.com", mailer.sent[0].to)

	match := sixDigits.FindStringSubmatch(mailer.sent[0].body)
	require.NotNil(t, match, "mail body should carry a 6-digit code")

	raw, err := store.Get(ctx, cache.EmailCodeKey("kim@example.com"))
	require.NoError(t, err)
	var entry emailCodeEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &entry))
	assert.Equal(t, match[1], entry.Code)
	assert.Equal(t, "Kim", entry.Name)

	ttl, err := store.TTL(ctx, cache.EmailCodeKey("kim@example.com"))
	require.NoError(t, err)
	assert.InDelta(t, 600, ttl.Seconds(), 1)
}

func TestVerification_SendEmailCode_MailFailureClearsCode(t *testing.T) {
	t.Parallel()
	svc, _, mailer, store, _ := newTestVerification(t)
	mailer.err = errors.New("smtp refused")

	err := svc.SendEmailCode(context.Background(), "kim@example.com", "Kim")
	require.Error(t, err)

	_, err = store.Get(context.Background(), cache.EmailCodeKey("kim@example.com"))
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func sendAndReadCode(t *testing.T, svc *VerificationService, mailer *mockMailer, email, name string) string {
	t.Helper()
	require.NoError(t, svc.SendEmailCode(context.Background(), email, name))
	match := sixDigits.FindStringSubmatch(mailer.sent[len(mailer.sent)-1].body)
	require.NotNil(t, match)
	return match[1]
}

func TestVerification_VerifyEmailCode_Success(t *testing.T) {
	t.Parallel()
	svc, _, mailer, store, _ := newTestVerification(t)
	ctx := context.Background()

	code := sendAndReadCode(t, svc, mailer, "kim@example.com", "Kim")
	require.NoError(t, svc.VerifyEmailCode(ctx, "KIM@example.com", "Kim", code))

	_, err := store.Get(ctx, cache.EmailCodeKey("kim@example.com"))
	assert.ErrorIs(t, err, cache.ErrMiss, "code should be deleted after use")

	require.NoError(t, svc.ConsumeEmailVerified(ctx, "kim@example.com"))
	assert.ErrorIs(t, svc.ConsumeEmailVerified(ctx, "kim@example.com"), ErrEmailNotVerified)
}

func TestVerification_VerifyEmailCode_WrongNameOrCode(t *testing.T) {
	t.Parallel()
	svc, _, mailer, _, _ := newTestVerification(t)
	ctx := context.Background()

	code := sendAndReadCode(t, svc, mailer, "kim@example.com", "Kim")

	assert.ErrorIs(t, svc.VerifyEmailCode(ctx, "kim@example.com", "Lee", code), ErrInvalidVerificationCode)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	assert.ErrorIs(t, svc.VerifyEmailCode(ctx, "kim@example.com", "Kim", wrong), ErrInvalidVerificationCode)

	// A failed attempt leaves the code usable
	assert.NoError(t, svc.VerifyEmailCode(ctx, "kim@example.com", "Kim", code))
}

func TestVerification_VerifyEmailCode_Expired(t *testing.T) {
	t.Parallel()
	svc, _, mailer, _, mr := newTestVerification(t)

	code := sendAndReadCode(t, svc, mailer, "kim@example.com", "Kim")
	mr.FastForward(601 * time.Second)

	err := svc.VerifyEmailCode(context.Background(), "kim@example.com", "Kim", code)
	assert.ErrorIs(t, err, ErrVerificationExpired)
}

func TestVerification_EmailVerifiedFlagExpires(t *testing.T) {
	t.Parallel()
	svc, _, mailer, _, mr := newTestVerification(t)
	ctx := context.Background()

	code := sendAndReadCode(t, svc, mailer, "kim@example.com", "Kim")
	require.NoError(t, svc.VerifyEmailCode(ctx, "kim@example.com", "Kim", code))

	mr.FastForward(11 * time.Minute)
	assert.ErrorIs(t, svc.ConsumeEmailVerified(ctx, "kim@example.com"), ErrEmailNotVerified)
}

func TestGenerateNumericCode(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		code, err := generateNumericCode(6)
		require.NoError(t, err)
		assert.Regexp(t, `^\d{6}$`, code)
	}
}
