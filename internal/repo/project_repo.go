// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Project
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a project is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - CreateProject(ctx, db, name, client, deadline, description) -> *domain.Project, error
//     Inserts a new Project row with UUID primary key and UTC timestamps.
//
//   - GetProject(ctx, db, id) -> *domain.Project, error
//     Fetches a single project by ID, or ErrNotFound if missing.
//
//   - CountProjects(ctx, db, q) -> (int64, error)
//     Returns the number of projects whose name or client matches q.
//
//   - ListProjectsPage(ctx, db, q, offset, limit) -> []domain.Project, error
//     Returns a paginated slice of matching projects, newest first.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/feedback-hub/internal/domain"
)

// CreateProject inserts a new Project row. The project ID is a randomly
// generated UUID and both timestamps are set to the same UTC instant.
func CreateProject(ctx context.Context, db *gorm.DB, name, client, deadline string, description *string) (*domain.Project, error) {
	now := time.Now().UTC()
	p := &domain.Project{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  description,
		Client:       client,
		DeadlineDate: deadline,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// GetProject fetches a single project by its ID. If the record does not
// exist, it returns ErrNotFound.
func GetProject(ctx context.Context, db *gorm.DB, id string) (*domain.Project, error) {
	var p domain.Project
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// projectFilter scopes a query to projects whose name or client contains q
// (case-insensitive). An empty q matches everything.
func projectFilter(db *gorm.DB, q string) *gorm.DB {
	q = strings.TrimSpace(q)
	if q == "" {
		return db
	}
	like := "%" + strings.ToLower(q) + "%"
	return db.Where("LOWER(name) LIKE ? OR LOWER(client) LIKE ?", like, like)
}

// CountProjects returns the total number of projects matching q.
func CountProjects(ctx context.Context, db *gorm.DB, q string) (int64, error) {
	var total int64
	err := projectFilter(db.WithContext(ctx).Model(&domain.Project{}), q).
		Count(&total).Error
	return total, err
}

// ListProjectsPage returns a paginated slice of projects matching q, ordered
// by creation time descending. Use CountProjects to obtain the total for
// pagination metadata.
func ListProjectsPage(ctx context.Context, db *gorm.DB, q string, offset, limit int) ([]domain.Project, error) {
	var out []domain.Project
	err := projectFilter(db.WithContext(ctx), q).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
