package types

import "time"

// User represents an account in the system.
// It contains identity, credential, and session-token state.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id"`

	// Email is the user's email address, stored lower-cased and unique.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level or role
	// within the system (e.g., "admin", "user").
	Role string `json:"role" db:"role"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// IsEmailVerified reports whether the user has consumed an
	// email-verification token.
	IsEmailVerified bool `json:"is_email_verified" db:"is_email_verified"`

	// LoginAttempts counts consecutive failed password verifications.
	// It resets to zero on a successful login or once a lock expires.
	LoginAttempts int `json:"-" db:"login_attempts"`

	// LockUntil, when set and in the future, blocks all login attempts.
	LockUntil *time.Time `json:"-" db:"lock_until"`

	// RefreshTokens holds the refresh tokens currently accepted for this
	// user. A token absent from this list is rejected even when its
	// signature is valid.
	RefreshTokens []RefreshToken `json:"-" db:"-"`

	// EmailVerificationTokenHash is the SHA-256 hex digest of the last
	// issued verification token. The plaintext is never persisted.
	EmailVerificationTokenHash *string `json:"-" db:"email_verification_token_hash"`

	// EmailVerificationExpiry bounds the verification token's validity.
	EmailVerificationExpiry *time.Time `json:"-" db:"email_verification_expiry"`

	// PasswordResetTokenHash is the SHA-256 hex digest of the last issued
	// password-reset token. The plaintext is never persisted.
	PasswordResetTokenHash *string `json:"-" db:"password_reset_token_hash"`

	// PasswordResetExpiry bounds the reset token's validity.
	PasswordResetExpiry *time.Time `json:"-" db:"password_reset_expiry"`

	// LastLogin is the timestamp of the most recent successful login.
	LastLogin *time.Time `json:"last_login,omitempty" db:"last_login"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RefreshToken is one entry in a user's accepted refresh-token list.
type RefreshToken struct {
	// Token is the signed token string exactly as issued to the client.
	Token string `json:"-" db:"token"`

	// IssuedAt is when the token was minted.
	IssuedAt time.Time `json:"issued_at" db:"issued_at"`

	// ExpiresAt is when the token stops being accepted regardless of
	// store membership.
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// Locked reports whether the account is locked at the given instant.
func (u User) Locked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}
