// Package services – ProjectService
//
// This file implements ProjectService, which validates and normalizes project
// fields, creates projects, and lists them with optional search and
// pagination. Search matches name or client, case-insensitively.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/feedback-hub/internal/domain"
	"github.com/tbourn/feedback-hub/internal/utils"
)

// deadlineLayout is the calendar-date format accepted for DeadlineDate.
const deadlineLayout = "2006-01-02"

// ProjectRepo defines the repository contract required by ProjectService.
type ProjectRepo interface {
	CreateProject(ctx context.Context, db *gorm.DB, name, client, deadline string, description *string) (*domain.Project, error)
	GetProject(ctx context.Context, db *gorm.DB, id string) (*domain.Project, error)
	CountProjects(ctx context.Context, db *gorm.DB, q string) (int64, error)
	ListProjectsPage(ctx context.Context, db *gorm.DB, q string, offset, limit int) ([]domain.Project, error)
}

// ProjectInput carries the user-supplied fields of a new project.
type ProjectInput struct {
	Name         string
	Client       string
	Description  *string
	DeadlineDate string
}

// ProjectService provides project creation, lookup and listing.
type ProjectService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the project repository used by this service.
	Repo ProjectRepo

	// NameMaxLen caps name and client by rune length.
	NameMaxLen int
}

// NewProjectService constructs a ProjectService with default limits.
func NewProjectService(db *gorm.DB, r ProjectRepo) *ProjectService {
	return &ProjectService{DB: db, Repo: r, NameMaxLen: 255}
}

// Create validates in and inserts a new project. Name, client and a
// YYYY-MM-DD deadline are required; a blank description is stored as null.
func (s *ProjectService) Create(ctx context.Context, in ProjectInput) (*domain.Project, error) {
	name := normalizeSpace(in.Name)
	client := normalizeSpace(in.Client)
	deadline := strings.TrimSpace(in.DeadlineDate)

	switch {
	case name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProject)
	case client == "":
		return nil, fmt.Errorf("%w: client is required", ErrInvalidProject)
	case deadline == "":
		return nil, fmt.Errorf("%w: deadline_date is required", ErrInvalidProject)
	}
	if s.NameMaxLen > 0 && (utf8.RuneCountInString(name) > s.NameMaxLen || utf8.RuneCountInString(client) > s.NameMaxLen) {
		return nil, fmt.Errorf("%w: name and client must be at most %d characters", ErrInvalidProject, s.NameMaxLen)
	}
	if _, err := time.Parse(deadlineLayout, deadline); err != nil {
		return nil, fmt.Errorf("%w: deadline_date must be YYYY-MM-DD", ErrInvalidProject)
	}

	var desc *string
	if in.Description != nil {
		if d := strings.TrimSpace(*in.Description); d != "" {
			desc = &d
		}
	}
	return s.Repo.CreateProject(ctx, s.DB, name, client, deadline, desc)
}

// Get returns the project or ErrProjectNotFound.
func (s *ProjectService) Get(ctx context.Context, id string) (*domain.Project, error) {
	p, err := s.Repo.GetProject(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	return p, err
}

// ListPage returns a page of projects matching q, newest first, plus the
// total number of matches. Invalid page/pageSize values fall back to defaults.
func (s *ProjectService) ListPage(ctx context.Context, q string, page, pageSize int) ([]domain.Project, int64, error) {
	pr := utils.PageRequest{Page: page, Size: pageSize}.Normalize()
	q = normalizeSpace(q)

	total, err := s.Repo.CountProjects(ctx, s.DB, q)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Project{}, 0, nil
	}

	items, err := s.Repo.ListProjectsPage(ctx, s.DB, q, pr.Offset(), pr.Size)
	return items, total, err
}

// normalizeSpace trims and collapses internal whitespace runs to one space.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
