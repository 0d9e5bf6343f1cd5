package cache

// Key layout shared by every component that touches the store

func RefreshTokenKey(userID string) string {
	return "refresh_token:" + userID
}

func PhoneVerifiedKey(phone string) string {
	return "verified:" + phone
}

func EmailCodeKey(email string) string {
	return "email_verification:" + email
}

func EmailVerifiedKey(email string) string {
	return "email_verified:" + email
}

func OAuthStateKey(state string) string {
	return "oauth_state:" + state
}

func IdempotencyKey(scope, key string) string {
	return "idempotency:" + scope + ":" + key
}

func RateLimitKey(scope, subject string) string {
	return "ratelimit:" + scope + ":" + subject
}
