package services

import "errors"

// Error kinds returned by the auth service. Handlers map these to HTTP
// status codes; nothing here is fatal to the process.
var (
	// ErrDuplicateEmail is returned when registering an email that already exists.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials covers both unknown email and wrong password;
	// the caller cannot distinguish the two.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while a lockout window is active.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidRefreshToken covers forged, expired, rotated, and revoked
	// refresh tokens identically.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrInvalidOrExpiredToken covers unknown, consumed, and expired
	// verification/reset tokens identically.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrUnauthenticated is returned when a bearer access token is
	// missing, malformed, expired, or its user no longer exists.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when the caller's role is not allowed.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when a referenced user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable wraps transient store failures; it is the only
	// kind eligible for caller-side retry.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotificationFailed reports that an email job could not be
	// enqueued. It is surfaced only where issuance must roll back.
	ErrNotificationFailed = errors.New("notification failed")
)
