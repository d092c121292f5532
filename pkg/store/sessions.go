package store

import (
	"context"
	"time"

	"github.com/ggnet/ggnetd/pkg/models"
)

// ============================================
// SESSION OPERATIONS
// ============================================

func (s *GORMStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	return getByField[models.Session](s.db, ctx, "session_id", sessionID, models.ErrSessionNotFound)
}

func (s *GORMStore) GetLiveSessionByMachine(ctx context.Context, machineID string) (*models.Session, error) {
	var session models.Session
	err := s.db.WithContext(ctx).
		Where("machine_id = ? AND status IN ?", machineID, []string{
			string(models.SessionStatusStarting), string(models.SessionStatusActive),
		}).
		First(&session).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrSessionNotFound)
	}
	return &session, nil
}

func (s *GORMStore) ListSessions(ctx context.Context, status string) ([]*models.Session, error) {
	var sessions []*models.Session
	q := s.db.WithContext(ctx)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("created_at desc").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *GORMStore) CreateSession(ctx context.Context, session *models.Session) (string, error) {
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	if session.Status == "" {
		session.Status = string(models.SessionStatusStarting)
	}
	if session.SessionID == "" {
		session.SessionID = newID()
	}
	id, err := createWithID(s.db, ctx, session, func(sess *models.Session, id string) { sess.ID = id }, session.ID, models.ErrSessionConflict)
	if err != nil {
		// The partial unique index on (machine_id) WHERE status IN
		// (starting, active) is the authoritative guard against a second
		// live session; a unique-constraint violation here always means a
		// conflicting session exists, not a duplicate SessionID.
		if isUniqueConstraintError(err) {
			return "", models.ErrSessionConflict
		}
		return "", err
	}
	return id, nil
}

func (s *GORMStore) ActivateSession(ctx context.Context, sessionID string, startedAt time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"status":       string(models.SessionStatusActive),
			"started_at":   startedAt,
			"last_activity": startedAt,
			"updated_at":   startedAt,
		})
	return checkRowsAffected(result, models.ErrSessionNotFound)
}

func (s *GORMStore) StopSession(ctx context.Context, sessionID string, endedAt time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"status":     string(models.SessionStatusStopped),
			"ended_at":   endedAt,
			"updated_at": endedAt,
		})
	return checkRowsAffected(result, models.ErrSessionNotFound)
}

func (s *GORMStore) FailSession(ctx context.Context, sessionID, errMessage string) error {
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"status":        string(models.SessionStatusError),
			"error_message": errMessage,
			"ended_at":      now,
			"updated_at":    now,
		})
	return checkRowsAffected(result, models.ErrSessionNotFound)
}

func (s *GORMStore) TouchSession(ctx context.Context, sessionID string, at time.Time, clientIP string, bytesTransferred int64) error {
	updates := map[string]any{
		"last_activity": at,
		"updated_at":    at,
	}
	if clientIP != "" {
		updates["client_ip"] = clientIP
	}
	if bytesTransferred > 0 {
		updates["bytes_transferred"] = bytesTransferred
	}
	result := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Updates(updates)
	return checkRowsAffected(result, models.ErrSessionNotFound)
}

func (s *GORMStore) ListStaleSessions(ctx context.Context, olderThan time.Time) ([]*models.Session, error) {
	var sessions []*models.Session
	err := s.db.WithContext(ctx).
		Where("status IN ?", []string{string(models.SessionStatusStarting), string(models.SessionStatusActive)}).
		Where("COALESCE(last_activity, created_at) < ?", olderThan).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
