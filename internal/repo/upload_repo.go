package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/feedback-hub/internal/domain"
)

// CreateUpload records a stored file for projectID.
func CreateUpload(ctx context.Context, db *gorm.DB, projectID, fileURL, fileType string) (*domain.Upload, error) {
	u := &domain.Upload{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		FileURL:   fileURL,
		FileType:  fileType,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// ListUploads returns the uploads of projectID, newest first.
func ListUploads(ctx context.Context, db *gorm.DB, projectID string) ([]domain.Upload, error) {
	var out []domain.Upload
	err := db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}
