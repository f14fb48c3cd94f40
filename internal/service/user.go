package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eldercare/backend/internal/model"
	"eldercare/backend/internal/repository"
)

type userService struct {
	userRepo repository.UserRepository
	now      func() time.Time
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo, now: time.Now}
}

func (s *userService) CreateUser(ctx context.Context, name, email string) (*model.User, error) {
	user := &model.User{Name: name, Email: email}
	user.Normalize()

	if user.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if user.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}
	if !strings.Contains(user.Email, "@") {
		return nil, fmt.Errorf("%w: email is invalid", ErrValidation)
	}

	user.CreatedAt = s.now().UTC()
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.userRepo.List(ctx)
}
