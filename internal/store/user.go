package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/coursehub/apiserver/types"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const userColumns = `
	id, email, role, password_hash, is_email_verified,
	login_attempts, lock_until,
	email_verification_token_hash, email_verification_expiry,
	password_reset_token_hash, password_reset_expiry,
	last_login, created_at, updated_at`

// UserRepository handles persistence for users and their refresh tokens.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	const query = `
		SELECT` + userColumns + `
		FROM users
		WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `
		SELECT` + userColumns + `
		FROM users
		WHERE email = $1`
	return r.getOne(ctx, query, email)
}

// GetByVerificationTokenHash looks a user up by the stored hash of an
// email-verification token. Expiry is checked by the caller.
func (r *UserRepository) GetByVerificationTokenHash(ctx context.Context, hash string) (types.User, error) {
	const query = `
		SELECT` + userColumns + `
		FROM users
		WHERE email_verification_token_hash = $1`
	return r.getOne(ctx, query, hash)
}

// GetByResetTokenHash looks a user up by the stored hash of a
// password-reset token. Expiry is checked by the caller.
func (r *UserRepository) GetByResetTokenHash(ctx context.Context, hash string) (types.User, error) {
	const query = `
		SELECT` + userColumns + `
		FROM users
		WHERE password_reset_token_hash = $1`
	return r.getOne(ctx, query, hash)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (types.User, error) {
	var user types.User
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.Role,
		&user.PasswordHash,
		&user.IsEmailVerified,
		&user.LoginAttempts,
		&user.LockUntil,
		&user.EmailVerificationTokenHash,
		&user.EmailVerificationExpiry,
		&user.PasswordResetTokenHash,
		&user.PasswordResetExpiry,
		&user.LastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, wrapErr(err)
	}

	tokens, err := r.refreshTokens(ctx, user.ID)
	if err != nil {
		return types.User{}, err
	}
	user.RefreshTokens = tokens
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (id, email, role, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Email,
		user.Role,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return types.User{}, ErrDuplicateEmail
		}
		return types.User{}, wrapErr(err)
	}
	return user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return wrapErr(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return wrapErr(err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordLoginFailure applies a failed password verification as a single
// atomic statement. The counter is capped at the threshold; once the cap
// is reached lock_until is set. Two racing failures cannot both observe a
// sub-threshold count.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id string, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	const query = `
		UPDATE users
		SET login_attempts = LEAST(login_attempts + 1, $2),
			lock_until = CASE WHEN login_attempts + 1 >= $2 THEN $3 ELSE lock_until END,
			updated_at = now()
		WHERE id = $1
		RETURNING login_attempts, lock_until`
	var attempts int
	var lockedUntil *time.Time
	err := r.db.QueryRowContext(ctx, query, id, threshold, lockUntil).Scan(&attempts, &lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, ErrNotFound
		}
		return 0, nil, wrapErr(err)
	}
	return attempts, lockedUntil, nil
}

// RecordLoginSuccess resets the failure counter, clears any lock, and
// stamps last_login.
func (r *UserRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	const query = `
		UPDATE users
		SET login_attempts = 0,
			lock_until = NULL,
			last_login = $2,
			updated_at = now()
		WHERE id = $1`
	return r.execOne(ctx, query, id, at)
}

// ClearLock resets the failure counter and removes an expired lock.
func (r *UserRepository) ClearLock(ctx context.Context, id string) error {
	const query = `
		UPDATE users
		SET login_attempts = 0,
			lock_until = NULL,
			updated_at = now()
		WHERE id = $1`
	return r.execOne(ctx, query, id)
}

// UpdatePassword stores a new password hash, clears any pending reset
// token, and revokes every refresh token in a single transaction.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const update = `
		UPDATE users
		SET password_hash = $2,
			password_reset_token_hash = NULL,
			password_reset_expiry = NULL,
			updated_at = now()
		WHERE id = $1`
	result, err := tx.ExecContext(ctx, update, id, passwordHash)
	if err != nil {
		return wrapErr(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return wrapErr(err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, id); err != nil {
		return wrapErr(err)
	}

	if err := tx.Commit(); err != nil {
		return wrapErr(err)
	}
	return nil
}

// SetEmailVerification stores the hash and expiry of a newly issued
// verification token, replacing any previous one.
func (r *UserRepository) SetEmailVerification(ctx context.Context, id, hash string, expiry time.Time) error {
	const query = `
		UPDATE users
		SET email_verification_token_hash = $2,
			email_verification_expiry = $3,
			updated_at = now()
		WHERE id = $1`
	return r.execOne(ctx, query, id, hash, expiry)
}

// MarkEmailVerified flips the verified flag and clears the stored
// verification hash and expiry.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, id string) error {
	const query = `
		UPDATE users
		SET is_email_verified = TRUE,
			email_verification_token_hash = NULL,
			email_verification_expiry = NULL,
			updated_at = now()
		WHERE id = $1`
	return r.execOne(ctx, query, id)
}

// SetPasswordReset stores the hash and expiry of a newly issued reset
// token, replacing any previous one.
func (r *UserRepository) SetPasswordReset(ctx context.Context, id, hash string, expiry time.Time) error {
	const query = `
		UPDATE users
		SET password_reset_token_hash = $2,
			password_reset_expiry = $3,
			updated_at = now()
		WHERE id = $1`
	return r.execOne(ctx, query, id, hash, expiry)
}

// ClearPasswordReset removes a pending reset token, used both on consume
// and on delivery-failure rollback.
func (r *UserRepository) ClearPasswordReset(ctx context.Context, id string) error {
	const query = `
		UPDATE users
		SET password_reset_token_hash = NULL,
			password_reset_expiry = NULL,
			updated_at = now()
		WHERE id = $1`
	return r.execOne(ctx, query, id)
}

func (r *UserRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapErr(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return wrapErr(err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func wrapErr(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
