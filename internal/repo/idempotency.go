package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/feedback-hub/internal/domain"
)

// ErrDuplicate means a live record already holds (project_id, key).
var ErrDuplicate = errors.New("idempotency key already recorded")

// GetIdempotency returns the live record for (projectID, key) at now, or
// ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, projectID, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(projectID) == "" || strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("project_id = ? AND key = ? AND expires_at > ?", projectID, key, now).
		Take(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency records summaryID under (projectID, key) for ttl. An
// expired record for the same pair is overwritten; a live one yields
// ErrDuplicate and is left untouched.
func CreateIdempotency(ctx context.Context, db *gorm.DB, projectID, key, summaryID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Key:       key,
		SummaryID: summaryID,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"id", "summary_id", "status", "created_at", "expires_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "idempotency.expires_at <= ?", Vars: []any{now}},
		}},
	}).Create(rec)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrDuplicate
	}
	return rec, nil
}

// PurgeExpiredIdempotency deletes records that expired at or before now.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
