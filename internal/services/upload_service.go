// Package services – UploadService
//
// This file implements UploadService. A file is first written to the object
// store under "{projectID}/{unixMillis}.{ext}", then recorded as an Upload
// row carrying its public URL. If the row cannot be written the object is
// removed again so the bucket holds no unreferenced files.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/feedback-hub/internal/domain"
)

// allowedUploadTypes maps accepted extensions to the content type sent to the
// object store.
var allowedUploadTypes = map[string]string{
	"txt":  "text/plain; charset=utf-8",
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

// ObjectStore is the subset of storage.S3Store used for uploads.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
}

// UploadRepo defines the repository contract required by UploadService.
type UploadRepo interface {
	GetProject(ctx context.Context, db *gorm.DB, id string) (*domain.Project, error)
	CreateUpload(ctx context.Context, db *gorm.DB, projectID, fileURL, fileType string) (*domain.Upload, error)
	ListUploads(ctx context.Context, db *gorm.DB, projectID string) ([]domain.Upload, error)
}

// UploadService stores project files and their metadata.
type UploadService struct {
	DB    *gorm.DB
	Repo  UploadRepo
	Store ObjectStore // nil disables uploads

	MaxBytes int64
	Now      func() time.Time
}

// NewUploadService constructs an UploadService. store may be nil.
func NewUploadService(db *gorm.DB, r UploadRepo, store ObjectStore, maxBytes int64) *UploadService {
	return &UploadService{DB: db, Repo: r, Store: store, MaxBytes: maxBytes, Now: time.Now}
}

// Enabled reports whether an object store is configured.
func (s *UploadService) Enabled() bool { return s.Store != nil }

// Upload stores size bytes read from r as a file of projectID. filename is
// only used for its extension.
func (s *UploadService) Upload(ctx context.Context, projectID, filename string, r io.Reader, size int64) (*domain.Upload, error) {
	if s.Store == nil {
		return nil, ErrUploadsDisabled
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	contentType, ok := allowedUploadTypes[ext]
	if !ok {
		return nil, fmt.Errorf("%w: please upload .txt, .pdf, .jpg, or .png files", ErrInvalidFileType)
	}
	if s.MaxBytes > 0 && size > s.MaxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.MaxBytes)
	}
	if _, err := s.Repo.GetProject(ctx, s.DB, projectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}

	key := fmt.Sprintf("%s/%d.%s", projectID, s.Now().UnixMilli(), ext)
	url, err := s.Store.Put(ctx, key, r, size, contentType)
	if err != nil {
		return nil, fmt.Errorf("store object: %w", err)
	}

	up, err := s.Repo.CreateUpload(ctx, s.DB, projectID, url, ext)
	if err != nil {
		if rerr := s.Store.Remove(context.WithoutCancel(ctx), key); rerr != nil {
			zerolog.Ctx(ctx).Error().Err(rerr).Str("key", key).Msg("failed to remove orphaned upload")
		}
		return nil, fmt.Errorf("%w: record upload: %w", ErrStorage, err)
	}
	return up, nil
}

// List returns the uploads of projectID, newest first.
func (s *UploadService) List(ctx context.Context, projectID string) ([]domain.Upload, error) {
	if _, err := s.Repo.GetProject(ctx, s.DB, projectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return s.Repo.ListUploads(ctx, s.DB, projectID)
}
