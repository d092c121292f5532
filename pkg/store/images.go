package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ggnet/ggnetd/pkg/models"
)

// ============================================
// IMAGE OPERATIONS
// ============================================

func (s *GORMStore) GetImage(ctx context.Context, id string) (*models.Image, error) {
	return getByField[models.Image](s.db, ctx, "id", id, models.ErrImageNotFound)
}

func (s *GORMStore) ListImages(ctx context.Context, status string) ([]*models.Image, error) {
	var images []*models.Image
	q := s.db.WithContext(ctx).Where("status <> ?", string(models.ImageStatusDeleted))
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("created_at asc").Find(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}

func (s *GORMStore) CreateImage(ctx context.Context, image *models.Image) (string, error) {
	now := time.Now()
	image.CreatedAt = now
	image.UpdatedAt = now
	if image.Status == "" {
		image.Status = string(models.ImageStatusUploading)
	}

	// The uniqueness constraint is over non-deleted images only, which a
	// plain unique index cannot express across a soft-delete status column;
	// check explicitly inside the same flow instead of relying on the DB
	// constraint (see idx_images_display_name_active in models.Image, which
	// still guards concurrent duplicate inserts at the database level for
	// the common case where no earlier row has transitioned to deleted).
	var existing models.Image
	err := s.db.WithContext(ctx).
		Where("display_name = ? AND status <> ?", image.DisplayName, string(models.ImageStatusDeleted)).
		First(&existing).Error
	if err == nil {
		return "", models.ErrDuplicateImage
	}
	if err != gorm.ErrRecordNotFound {
		return "", err
	}

	return createWithID(s.db, ctx, image, func(i *models.Image, id string) { i.ID = id }, image.ID, models.ErrDuplicateImage)
}

func (s *GORMStore) UpdateImage(ctx context.Context, image *models.Image) error {
	image.UpdatedAt = time.Now()
	result := s.db.WithContext(ctx).
		Model(&models.Image{}).
		Where("id = ?", image.ID).
		Updates(map[string]any{
			"display_name": image.DisplayName,
			"image_type":   image.ImageType,
			"updated_at":   image.UpdatedAt,
		})
	return checkRowsAffected(result, models.ErrImageNotFound)
}

func (s *GORMStore) SoftDeleteImage(ctx context.Context, id string) error {
	var inUse int64
	if err := s.db.WithContext(ctx).
		Model(&models.Target{}).
		Where("image_id = ? AND status <> ?", id, string(models.TargetStatusDeleting)).
		Count(&inUse).Error; err != nil {
		return err
	}
	if inUse > 0 {
		return models.ErrImageInUse
	}

	result := s.db.WithContext(ctx).
		Model(&models.Image{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     string(models.ImageStatusDeleted),
			"updated_at": time.Now(),
		})
	return checkRowsAffected(result, models.ErrImageNotFound)
}

// ClaimImageForConversion atomically moves up to batchSize images from
// processing to converting. Each row is claimed with an individual
// conditional UPDATE so that two workers racing on the same row never both
// see RowsAffected > 0; this is the compare-and-swap analogue of the
// teacher's optimistic-locking Version column, applied here to a status
// enum instead of a counter.
func (s *GORMStore) ClaimImageForConversion(ctx context.Context, claimerID string, batchSize int) ([]*models.Image, error) {
	var candidates []models.Image
	if err := s.db.WithContext(ctx).
		Where("status = ?", string(models.ImageStatusProcessing)).
		Order("created_at asc").
		Limit(batchSize).
		Find(&candidates).Error; err != nil {
		return nil, err
	}

	claimed := make([]*models.Image, 0, len(candidates))
	now := time.Now()
	for i := range candidates {
		result := s.db.WithContext(ctx).
			Model(&models.Image{}).
			Where("id = ? AND status = ?", candidates[i].ID, string(models.ImageStatusProcessing)).
			Updates(map[string]any{
				"status":     string(models.ImageStatusConverting),
				"claimed_by": claimerID,
				"claimed_at": now,
				"updated_at": now,
			})
		if result.Error != nil {
			return claimed, result.Error
		}
		if result.RowsAffected == 0 {
			continue // lost the race to another worker
		}
		img := candidates[i]
		img.Status = string(models.ImageStatusConverting)
		claimed = append(claimed, &img)
	}
	return claimed, nil
}

func (s *GORMStore) ReleaseStuckConversions(ctx context.Context, olderThan time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Image{}).
		Where("status = ? AND claimed_at < ?", string(models.ImageStatusConverting), olderThan).
		Updates(map[string]any{
			"status":     string(models.ImageStatusProcessing),
			"claimed_by": nil,
			"claimed_at": nil,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

func (s *GORMStore) CompleteConversion(ctx context.Context, id, claimerID, filePath string, virtualSizeBytes int64, processingLog string) error {
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&models.Image{}).
		Where("id = ? AND status = ? AND claimed_by = ?", id, string(models.ImageStatusConverting), claimerID).
		Updates(map[string]any{
			"status":             string(models.ImageStatusReady),
			"file_path":          filePath,
			"virtual_size_bytes": virtualSizeBytes,
			"processing_log":     processingLog,
			"claimed_by":         nil,
			"claimed_at":         nil,
			"updated_at":         now,
		})
	return checkRowsAffected(result, models.ErrImageNotFound)
}

func (s *GORMStore) FailConversion(ctx context.Context, id, claimerID, errMessage, processingLog string) error {
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&models.Image{}).
		Where("id = ? AND status = ? AND claimed_by = ?", id, string(models.ImageStatusConverting), claimerID).
		Updates(map[string]any{
			"status":         string(models.ImageStatusError),
			"error_message":  errMessage,
			"processing_log": processingLog,
			"claimed_by":     nil,
			"claimed_at":     nil,
			"updated_at":     now,
		})
	return checkRowsAffected(result, models.ErrImageNotFound)
}

func (s *GORMStore) RetryImage(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).
		Model(&models.Image{}).
		Where("id = ? AND status = ?", id, string(models.ImageStatusError)).
		Updates(map[string]any{
			"status":        string(models.ImageStatusProcessing),
			"error_message": "",
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Distinguish "doesn't exist" from "exists but not in error"
		if _, err := s.GetImage(ctx, id); err != nil {
			return err
		}
		return models.ErrImageNotReady
	}
	return nil
}
