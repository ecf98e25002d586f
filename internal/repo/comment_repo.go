package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/feedback-hub/internal/domain"
)

// CreateComment appends a comment to projectID. Comments are never updated
// afterwards. A missing project surfaces as a foreign key error.
func CreateComment(ctx context.Context, db *gorm.DB, projectID, author, text string, timestamp *string) (*domain.Comment, error) {
	c := &domain.Comment{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Author:    author,
		Comment:   text,
		Timestamp: timestamp,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// ListCommentsByProject returns every comment of projectID in insertion
// order (oldest first). The summarizer builds its prompt from this order,
// so it must stay stable for an unchanged comment set.
func ListCommentsByProject(ctx context.Context, db *gorm.DB, projectID string) ([]domain.Comment, error) {
	var out []domain.Comment
	err := db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at asc").
		Order("id asc").
		Find(&out).Error
	return out, err
}

// ListComments returns the comments of projectID, newest first.
func ListComments(ctx context.Context, db *gorm.DB, projectID string) ([]domain.Comment, error) {
	var out []domain.Comment
	err := db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at desc").
		Order("id desc").
		Find(&out).Error
	return out, err
}
