package services

import (
	"context"
	"errors"

	"github.com/coursehub/apiserver/internal/store"
	"github.com/coursehub/apiserver/types"
)

// UserService encapsulates user lookup and administration use-cases
// outside the credential lifecycle itself.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrNotFound
		}
		if errors.Is(err, store.ErrUnavailable) {
			return types.User{}, ErrStoreUnavailable
		}
		return types.User{}, err
	}
	return user, nil
}

// Delete removes an account. All of its refresh tokens go with it via
// the store's cascade.
func (s *UserService) Delete(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		if errors.Is(err, store.ErrUnavailable) {
			return ErrStoreUnavailable
		}
		return err
	}
	return nil
}
