package store

import (
	"context"
	"time"

	"github.com/ggnet/ggnetd/pkg/models"
)

// ============================================
// TARGET OPERATIONS
// ============================================

func (s *GORMStore) GetTarget(ctx context.Context, id string) (*models.Target, error) {
	return getByField[models.Target](s.db, ctx, "id", id, models.ErrTargetNotFound)
}

func (s *GORMStore) GetTargetByMachine(ctx context.Context, machineID string) (*models.Target, error) {
	return getByField[models.Target](s.db, ctx, "machine_id", machineID, models.ErrTargetNotFound)
}

func (s *GORMStore) ListTargets(ctx context.Context) ([]*models.Target, error) {
	return listAll[models.Target](s.db, ctx)
}

func (s *GORMStore) CreateTarget(ctx context.Context, target *models.Target) (string, error) {
	now := time.Now()
	target.CreatedAt = now
	target.UpdatedAt = now
	if target.Status == "" {
		target.Status = string(models.TargetStatusCreating)
	}
	return createWithID(s.db, ctx, target, func(t *models.Target, id string) { t.ID = id }, target.ID, models.ErrDuplicateTarget)
}

func (s *GORMStore) UpdateTargetStatus(ctx context.Context, id, status string) error {
	result := s.db.WithContext(ctx).
		Model(&models.Target{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now(),
		})
	return checkRowsAffected(result, models.ErrTargetNotFound)
}

func (s *GORMStore) DeleteTarget(ctx context.Context, id string) error {
	return deleteByField[models.Target](s.db, ctx, "id", id, models.ErrTargetNotFound)
}
