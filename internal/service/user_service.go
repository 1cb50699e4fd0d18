package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/repository"

	"gorm.io/gorm"
)

const maxUsernameLen = 64

type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "User", id)
	}
	return user, nil
}

// EnsureUser returns the local user for username, creating it on first use.
// Identity issuers call this to link a subject to a user id.
func (s *UserService) EnsureUser(ctx context.Context, username, displayName string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, models.NewValidationError("Username is required")
	}
	if len(username) > maxUsernameLen {
		return nil, models.NewValidationError("Username too long (max 64 characters)")
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = &models.User{Username: username, DisplayName: displayName}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			// Lost a race with a concurrent link of the same subject.
			return s.userRepo.GetByUsername(ctx, username)
		}
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "user linked",
		slog.Uint64("user_id", uint64(user.ID)),
		slog.String("username", username),
	)
	return user, nil
}
