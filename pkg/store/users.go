package store

import (
	"context"
	"time"

	"github.com/ggnet/ggnetd/pkg/models"
)

// ============================================
// USER OPERATIONS
// ============================================

func (s *GORMStore) GetUser(ctx context.Context, username string) (*models.User, error) {
	return getByField[models.User](s.db, ctx, "username", username, models.ErrUserNotFound)
}

func (s *GORMStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return getByField[models.User](s.db, ctx, "id", id, models.ErrUserNotFound)
}

func (s *GORMStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	return listAll[models.User](s.db, ctx)
}

func (s *GORMStore) CreateUser(ctx context.Context, user *models.User) (string, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = string(models.RoleViewer)
	}
	return createWithID(s.db, ctx, user, func(u *models.User, id string) { u.ID = id }, user.ID, models.ErrDuplicateUser)
}

func (s *GORMStore) UpdateUser(ctx context.Context, user *models.User) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"role":       user.Role,
			"active":     user.Active,
			"updated_at": time.Now(),
		})
	return checkRowsAffected(result, models.ErrUserNotFound)
}

func (s *GORMStore) DeleteUser(ctx context.Context, username string) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("username = ?", username).
		Updates(map[string]any{
			"active":     false,
			"updated_at": time.Now(),
		})
	return checkRowsAffected(result, models.ErrUserNotFound)
}

func (s *GORMStore) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("username = ?", username).
		Updates(map[string]any{
			"password_hash": passwordHash,
			"updated_at":    time.Now(),
		})
	return checkRowsAffected(result, models.ErrUserNotFound)
}

func (s *GORMStore) RecordLoginSuccess(ctx context.Context, username string, at time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("username = ?", username).
		Updates(map[string]any{
			"failed_login_attempts": 0,
			"locked_until":          nil,
			"last_login":            at,
			"updated_at":            at,
		})
	return checkRowsAffected(result, models.ErrUserNotFound)
}

func (s *GORMStore) RecordLoginFailure(ctx context.Context, username string, at time.Time, threshold int, lockDuration time.Duration) error {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		return err
	}

	attempts := user.FailedLoginAttempts + 1
	updates := map[string]any{
		"failed_login_attempts": attempts,
		"updated_at":            at,
	}
	if attempts >= threshold {
		lockUntil := at.Add(lockDuration)
		updates["locked_until"] = lockUntil
	}

	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(updates)
	return checkRowsAffected(result, models.ErrUserNotFound)
}
