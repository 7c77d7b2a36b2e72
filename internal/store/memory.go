package store

import (
	"context"
	"sync"
	"time"

	"github.com/coursehub/apiserver/types"
	"github.com/google/uuid"
)

// MemoryUserRepository is an in-memory implementation of the user
// repository with the same per-user atomicity guarantees as the Postgres
// one. It backs unit tests and local development without a database.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[string]*types.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*types.User)}
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return cloneUser(user), nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) GetByVerificationTokenHash(ctx context.Context, hash string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.EmailVerificationTokenHash != nil && *user.EmailVerificationTokenHash == hash {
			return cloneUser(user), nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) GetByResetTokenHash(ctx context.Context, hash string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.PasswordResetTokenHash != nil && *user.PasswordResetTokenHash == hash {
			return cloneUser(user), nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return types.User{}, ErrDuplicateEmail
		}
	}

	now := time.Now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := cloneUser(&user)
	r.users[user.ID] = &stored
	return user, nil
}

func (r *MemoryUserRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	return nil
}

// SetRole changes a user's role. It backs tests and operator tooling;
// the HTTP surface never exposes it.
func (r *MemoryUserRepository) SetRole(ctx context.Context, id, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.Role = role
	user.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryUserRepository) RecordLoginFailure(ctx context.Context, id string, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return 0, nil, ErrNotFound
	}
	if user.LoginAttempts+1 >= threshold {
		until := lockUntil
		user.LockUntil = &until
	}
	if user.LoginAttempts < threshold {
		user.LoginAttempts++
	}
	user.UpdatedAt = time.Now()
	return user.LoginAttempts, cloneTime(user.LockUntil), nil
}

func (r *MemoryUserRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.LoginAttempts = 0
	user.LockUntil = nil
	stamp := at
	user.LastLogin = &stamp
	user.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryUserRepository) ClearLock(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.LoginAttempts = 0
	user.LockUntil = nil
	user.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.PasswordResetTokenHash = nil
	user.PasswordResetExpiry = nil
	user.RefreshTokens = nil
	user.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryUserRepository) SetEmailVerification(ctx context.Context, id, hash string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.EmailVerificationTokenHash = &hash
	user.EmailVerificationExpiry = &expiry
	user.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryUserRepository) MarkEmailVerified(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.IsEmailVerified = true
	user.EmailVerificationTokenHash = nil
	user.EmailVerificationExpiry = nil
	user.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryUserRepository) SetPasswordReset(ctx context.Context, id, hash string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.PasswordResetTokenHash = &hash
	user.PasswordResetExpiry = &expiry
	user.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryUserRepository) ClearPasswordReset(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.PasswordResetTokenHash = nil
	user.PasswordResetExpiry = nil
	user.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryUserRepository) AddRefreshToken(ctx context.Context, userID string, token types.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.RefreshTokens = append(user.RefreshTokens, token)
	return nil
}

func (r *MemoryUserRepository) RemoveRefreshToken(ctx context.Context, userID, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return false, ErrNotFound
	}
	for i, entry := range user.RefreshTokens {
		if entry.Token == token {
			user.RefreshTokens = append(user.RefreshTokens[:i], user.RefreshTokens[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryUserRepository) RemoveAllRefreshTokens(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.RefreshTokens = nil
	return nil
}

func cloneUser(user *types.User) types.User {
	clone := *user
	clone.LockUntil = cloneTime(user.LockUntil)
	clone.EmailVerificationExpiry = cloneTime(user.EmailVerificationExpiry)
	clone.PasswordResetExpiry = cloneTime(user.PasswordResetExpiry)
	clone.LastLogin = cloneTime(user.LastLogin)
	if user.EmailVerificationTokenHash != nil {
		hash := *user.EmailVerificationTokenHash
		clone.EmailVerificationTokenHash = &hash
	}
	if user.PasswordResetTokenHash != nil {
		hash := *user.PasswordResetTokenHash
		clone.PasswordResetTokenHash = &hash
	}
	clone.RefreshTokens = append([]types.RefreshToken(nil), user.RefreshTokens...)
	return clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
