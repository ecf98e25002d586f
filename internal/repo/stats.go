package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/feedback-hub/internal/domain"
)

// countAndNewest counts the rows selected by scope and reads the largest
// value of column among them. newest is nil when nothing matched.
//
// The newest value is read with ORDER BY ... LIMIT 1 rather than MAX(),
// which SQLite hands back as TEXT and GORM cannot scan into time.Time.
func countAndNewest(scope func() *gorm.DB, column string) (count int64, newest *time.Time, err error) {
	if err = scope().Count(&count).Error; err != nil || count == 0 {
		return 0, nil, err
	}

	var row struct{ Newest time.Time }
	if err = scope().Select(column + " AS newest").Order(column + " DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.Newest, nil
}

// ProjectsStats feeds the project list ETag: how many projects match q and
// when the most recently touched one was updated.
func ProjectsStats(ctx context.Context, db *gorm.DB, q string) (int64, *time.Time, error) {
	return countAndNewest(func() *gorm.DB {
		return projectFilter(db.WithContext(ctx).Model(&domain.Project{}), q)
	}, "updated_at")
}

// SummariesStats is ProjectsStats for one project's summaries. Summaries are
// immutable, so created_at stands in for updated_at.
func SummariesStats(ctx context.Context, db *gorm.DB, projectID string) (int64, *time.Time, error) {
	return countAndNewest(func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.Summary{}).Where("project_id = ?", projectID)
	}, "created_at")
}
