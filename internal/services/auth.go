package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coursehub/apiserver/config"
	"github.com/coursehub/apiserver/internal/password"
	"github.com/coursehub/apiserver/internal/store"
	"github.com/coursehub/apiserver/internal/token"
	"github.com/coursehub/apiserver/types"
)

const defaultUserRole = "user"

// UserRepository defines persistence operations for users and their
// token state. RecordLoginFailure and RemoveRefreshToken must be atomic
// per user record; the Postgres and in-memory implementations both are.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByVerificationTokenHash(ctx context.Context, hash string) (types.User, error)
	GetByResetTokenHash(ctx context.Context, hash string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id string) error

	RecordLoginFailure(ctx context.Context, id string, threshold int, lockUntil time.Time) (int, *time.Time, error)
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
	ClearLock(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	SetEmailVerification(ctx context.Context, id, hash string, expiry time.Time) error
	MarkEmailVerified(ctx context.Context, id string) error
	SetPasswordReset(ctx context.Context, id, hash string, expiry time.Time) error
	ClearPasswordReset(ctx context.Context, id string) error

	AddRefreshToken(ctx context.Context, userID string, t types.RefreshToken) error
	RemoveRefreshToken(ctx context.Context, userID, tokenString string) (bool, error)
	RemoveAllRefreshTokens(ctx context.Context, userID string) error
}

// Notifier enqueues outbound email for delivery by an external worker.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// AuthService implements the credential and session-token lifecycle:
// registration, login with lockout, refresh rotation, and one-time
// verification/reset tokens.
type AuthService struct {
	repo     UserRepository
	issuer   *token.Issuer
	notifier Notifier
	cfg      config.AuthConfig
	logger   *slog.Logger

	// now is swapped out in tests to drive lock and expiry windows.
	now func() time.Time
}

// NewAuthService constructs an AuthService. The notifier may be a
// broker-backed mailer or a log backend; its failures never corrupt
// store state.
func NewAuthService(repo UserRepository, issuer *token.Issuer, notifier Notifier, cfg config.AuthConfig, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		repo:     repo,
		issuer:   issuer,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Register creates an account and issues an email-verification token.
// Delivery of the verification email is best-effort: a broker failure is
// logged and registration still succeeds with the token left active.
func (s *AuthService) Register(ctx context.Context, email, plainPassword string) (types.User, error) {
	email = NormalizeEmail(email)

	hash, err := password.Hash(plainPassword)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:        email,
		Role:         defaultUserRole,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return types.User{}, ErrDuplicateEmail
		}
		return types.User{}, s.storeErr(err)
	}

	if err := s.issueVerification(ctx, user); err != nil {
		s.logger.WarnContext(ctx, "verification email not enqueued",
			"user_id", user.ID, "error", err)
	}

	return user, nil
}

// Login verifies credentials under the lockout state machine and, on
// success, mints and persists a fresh token pair.
func (s *AuthService) Login(ctx context.Context, email, plainPassword string) (types.User, token.Pair, error) {
	now := s.now()

	user, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, token.Pair{}, ErrInvalidCredentials
		}
		return types.User{}, token.Pair{}, s.storeErr(err)
	}

	if user.LockUntil != nil {
		if user.LockUntil.After(now) {
			// Locked: reject before touching the password so a locked
			// attempt neither increments the counter nor leaks whether
			// the password was right.
			return types.User{}, token.Pair{}, ErrAccountLocked
		}
		// Lock expired: re-enter Active with a clean slate.
		if err := s.repo.ClearLock(ctx, user.ID); err != nil {
			return types.User{}, token.Pair{}, s.storeErr(err)
		}
		user.LoginAttempts = 0
		user.LockUntil = nil
	}

	if !password.Verify(plainPassword, user.PasswordHash) {
		if _, _, err := s.repo.RecordLoginFailure(ctx, user.ID, s.cfg.LockoutThreshold, now.Add(s.cfg.LockoutDuration)); err != nil {
			return types.User{}, token.Pair{}, s.storeErr(err)
		}
		return types.User{}, token.Pair{}, ErrInvalidCredentials
	}

	if err := s.repo.RecordLoginSuccess(ctx, user.ID, now); err != nil {
		return types.User{}, token.Pair{}, s.storeErr(err)
	}
	user.LoginAttempts = 0
	user.LockUntil = nil
	user.LastLogin = &now

	pair, err := s.issueAndPersist(ctx, user.ID, now)
	if err != nil {
		return types.User{}, token.Pair{}, err
	}
	return user, pair, nil
}

// Logout revokes one refresh token. An unknown or already-revoked token
// is reported as ErrInvalidRefreshToken, same as rotation.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	userID, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return ErrInvalidRefreshToken
	}
	removed, err := s.repo.RemoveRefreshToken(ctx, userID, refreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidRefreshToken
		}
		return s.storeErr(err)
	}
	if !removed {
		return ErrInvalidRefreshToken
	}
	return nil
}

// Refresh rotates a refresh token: signature and expiry are checked,
// the exact token must still be present in the store, and the removal is
// an atomic remove-if-present so two racing rotations of the same token
// cannot both succeed. A replayed token fails identically to a forged
// one.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (token.Pair, error) {
	userID, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return token.Pair{}, ErrInvalidRefreshToken
	}

	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return token.Pair{}, ErrInvalidRefreshToken
		}
		return token.Pair{}, s.storeErr(err)
	}

	removed, err := s.repo.RemoveRefreshToken(ctx, userID, refreshToken)
	if err != nil {
		return token.Pair{}, s.storeErr(err)
	}
	if !removed {
		return token.Pair{}, ErrInvalidRefreshToken
	}

	return s.issueAndPersist(ctx, userID, s.now())
}

// VerifyEmail consumes an email-verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, plainToken string) (types.User, error) {
	user, err := s.lookupOneTime(ctx, s.repo.GetByVerificationTokenHash, plainToken)
	if err != nil {
		return types.User{}, err
	}
	if user.EmailVerificationExpiry == nil || !user.EmailVerificationExpiry.After(s.now()) {
		return types.User{}, ErrInvalidOrExpiredToken
	}

	if err := s.repo.MarkEmailVerified(ctx, user.ID); err != nil {
		return types.User{}, s.storeErr(err)
	}
	user.IsEmailVerified = true
	user.EmailVerificationTokenHash = nil
	user.EmailVerificationExpiry = nil
	return user, nil
}

// ForgotPassword issues a password-reset token and enqueues the reset
// email. Unlike verification, a delivery failure here rolls the stored
// token back so no undeliverable token stays active.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return s.storeErr(err)
	}

	plain, hash, err := token.NewOneTime()
	if err != nil {
		return err
	}
	expiry := s.now().Add(s.cfg.ResetTokenTTL)
	if err := s.repo.SetPasswordReset(ctx, user.ID, hash, expiry); err != nil {
		return s.storeErr(err)
	}

	if err := s.notifier.Send(ctx, user.Email, "Reset your password",
		fmt.Sprintf("Use this token to reset your password: %s", plain)); err != nil {
		if rbErr := s.repo.ClearPasswordReset(ctx, user.ID); rbErr != nil {
			s.logger.ErrorContext(ctx, "reset token rollback failed",
				"user_id", user.ID, "error", rbErr)
		}
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	return nil
}

// ResetPassword consumes a reset token and installs the new password.
// Every refresh token for the user is revoked, forcing re-authentication
// everywhere.
func (s *AuthService) ResetPassword(ctx context.Context, plainToken, newPassword string) (types.User, error) {
	user, err := s.lookupOneTime(ctx, s.repo.GetByResetTokenHash, plainToken)
	if err != nil {
		return types.User{}, err
	}
	if user.PasswordResetExpiry == nil || !user.PasswordResetExpiry.After(s.now()) {
		return types.User{}, ErrInvalidOrExpiredToken
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return types.User{}, err
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return types.User{}, s.storeErr(err)
	}
	user.PasswordHash = hash
	user.PasswordResetTokenHash = nil
	user.PasswordResetExpiry = nil
	user.RefreshTokens = nil
	return user, nil
}

// Authenticate resolves a bearer access token to its user. It backs the
// access-guard middleware.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (types.User, error) {
	userID, err := s.issuer.VerifyAccess(accessToken)
	if err != nil {
		return types.User{}, ErrUnauthenticated
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUnauthenticated
		}
		return types.User{}, s.storeErr(err)
	}
	return user, nil
}

func (s *AuthService) issueAndPersist(ctx context.Context, userID string, now time.Time) (token.Pair, error) {
	pair, err := s.issuer.IssuePair(userID, now)
	if err != nil {
		return token.Pair{}, err
	}
	if err := s.repo.AddRefreshToken(ctx, userID, types.RefreshToken{
		Token:     pair.RefreshToken,
		IssuedAt:  pair.IssuedAt,
		ExpiresAt: pair.ExpiresAt,
	}); err != nil {
		return token.Pair{}, s.storeErr(err)
	}
	return pair, nil
}

func (s *AuthService) issueVerification(ctx context.Context, user types.User) error {
	plain, hash, err := token.NewOneTime()
	if err != nil {
		return err
	}
	expiry := s.now().Add(s.cfg.VerificationTokenTTL)
	if err := s.repo.SetEmailVerification(ctx, user.ID, hash, expiry); err != nil {
		return s.storeErr(err)
	}
	if err := s.notifier.Send(ctx, user.Email, "Verify your email",
		fmt.Sprintf("Use this token to verify your email address: %s", plain)); err != nil {
		// Best-effort: the token stays active so the user can request a
		// manual resend; only reset issuance rolls back.
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	return nil
}

func (s *AuthService) lookupOneTime(ctx context.Context, get func(context.Context, string) (types.User, error), plainToken string) (types.User, error) {
	plainToken = strings.TrimSpace(plainToken)
	if plainToken == "" {
		return types.User{}, ErrInvalidOrExpiredToken
	}
	user, err := get(ctx, token.HashOneTime(plainToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidOrExpiredToken
		}
		return types.User{}, s.storeErr(err)
	}
	return user, nil
}

func (s *AuthService) storeErr(err error) error {
	if errors.Is(err, store.ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

// NormalizeEmail lower-cases and trims an email address so lookups and
// the unique constraint agree on one canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
