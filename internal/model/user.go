package model

import "time"

// User represents a user account
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Nickname  string     `json:"nickname"`
	Phone     string     `json:"phone,omitempty"`
	Hash      *string    `json:"-"` // Never expose password hash
	UserImg   string     `json:"user_img,omitempty"`
	CreatedOn time.Time  `json:"created_on"`
	UpdatedOn time.Time  `json:"updated_on"`
	LoginOn   *time.Time `json:"login_on,omitempty"`
}

// HasPassword reports whether the account can log in with a password.
// OAuth-only accounts have no hash.
func (u *User) HasPassword() bool {
	return u.Hash != nil && *u.Hash != ""
}

// Identity represents a linked OAuth provider
type Identity struct {
	ID                      string    `json:"id"`
	UserID                  string    `json:"user_id"`
	Provider                string    `json:"provider"` // "google"
	ProviderUserID          string    `json:"provider_user_id"`
	ProviderEmail           *string   `json:"provider_email,omitempty"`
	EmailVerifiedByProvider bool      `json:"email_verified_by_provider"`
	CreatedOn               time.Time `json:"created_on"`
	UpdatedOn               time.Time `json:"updated_on"`
}

// TokenClaims represents extracted JWT claims
type TokenClaims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname,omitempty"`
}

// Account constraints
const (
	MinNicknameLength = 2
	MaxNicknameLength = 20
	MaxNameLength     = 50
)
