// Package services – CommentService
//
// This file implements CommentService. Comments are append-only: the service
// creates and lists them but never edits or deletes one.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/feedback-hub/internal/domain"
)

// CommentRepo defines the repository contract required by CommentService.
type CommentRepo interface {
	GetProject(ctx context.Context, db *gorm.DB, id string) (*domain.Project, error)
	CreateComment(ctx context.Context, db *gorm.DB, projectID, author, text string, timestamp *string) (*domain.Comment, error)
	ListComments(ctx context.Context, db *gorm.DB, projectID string) ([]domain.Comment, error)
}

// CommentService records and lists client feedback on a project.
type CommentService struct {
	DB   *gorm.DB
	Repo CommentRepo

	// MaxCommentRunes caps comment length; zero disables the cap.
	MaxCommentRunes int
}

// NewCommentService constructs a CommentService.
func NewCommentService(db *gorm.DB, r CommentRepo) *CommentService {
	return &CommentService{DB: db, Repo: r, MaxCommentRunes: 10000}
}

// Create appends a comment to projectID. Author and comment text are
// required. A blank timestamp is stored as null.
func (s *CommentService) Create(ctx context.Context, projectID, author, text string, timestamp *string) (*domain.Comment, error) {
	author = normalizeSpace(author)
	text = strings.TrimSpace(text)
	if author == "" {
		return nil, fmt.Errorf("%w: author is required", ErrInvalidComment)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: comment is required", ErrInvalidComment)
	}
	if s.MaxCommentRunes > 0 && len([]rune(text)) > s.MaxCommentRunes {
		return nil, fmt.Errorf("%w: comment must be at most %d characters", ErrInvalidComment, s.MaxCommentRunes)
	}
	var ts *string
	if timestamp != nil {
		if v := strings.TrimSpace(*timestamp); v != "" {
			ts = &v
		}
	}

	if err := s.ensureProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.Repo.CreateComment(ctx, s.DB, projectID, author, text, ts)
}

// List returns the comments of projectID, newest first.
func (s *CommentService) List(ctx context.Context, projectID string) ([]domain.Comment, error) {
	if err := s.ensureProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.Repo.ListComments(ctx, s.DB, projectID)
}

func (s *CommentService) ensureProject(ctx context.Context, projectID string) error {
	if _, err := s.Repo.GetProject(ctx, s.DB, projectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		return err
	}
	return nil
}
