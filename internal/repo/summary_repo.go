// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Summary
// model.
//
// Summaries are insert-only. CreateSummary never updates an existing row,
// so repeated generations for the same project accumulate history that
// ListSummaries returns newest first.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/feedback-hub/internal/domain"
)

// CreateSummary inserts exactly one Summary row. A nil combined slice is
// stored as an empty JSON array.
func CreateSummary(ctx context.Context, db *gorm.DB, projectID, summary, priority string, combined []string) (*domain.Summary, error) {
	if combined == nil {
		combined = []string{}
	}
	s := &domain.Summary{
		ID:               uuid.NewString(),
		ProjectID:        projectID,
		Summary:          summary,
		Priority:         priority,
		CombinedComments: combined,
		CreatedAt:        time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetSummary fetches a single summary by ID, or ErrNotFound if missing.
func GetSummary(ctx context.Context, db *gorm.DB, id string) (*domain.Summary, error) {
	var s domain.Summary
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSummaries returns every summary of projectID, newest first.
func ListSummaries(ctx context.Context, db *gorm.DB, projectID string) ([]domain.Summary, error) {
	var out []domain.Summary
	err := db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at desc").
		Order("id desc").
		Find(&out).Error
	return out, err
}
