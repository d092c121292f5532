package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ggnet/ggnetd/pkg/models"
)

// ============================================
// ADMIN INITIALIZATION
// ============================================

// EnsureAdminUser creates a default admin account on first run, following
// the teacher's startup-initialization convention of generating a random
// password rather than shipping a fixed default credential.
func (s *GORMStore) EnsureAdminUser(ctx context.Context) (string, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ?", string(models.RoleAdmin)).
		Count(&count).Error; err != nil {
		return "", err
	}
	if count > 0 {
		return "", nil
	}

	password, err := generateRandomPassword()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	admin := &models.User{
		Username:     "admin",
		PasswordHash: string(hash),
		Role:         string(models.RoleAdmin),
		Active:       true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if _, err := s.CreateUser(ctx, admin); err != nil {
		return "", err
	}

	return password, nil
}

func generateRandomPassword() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
