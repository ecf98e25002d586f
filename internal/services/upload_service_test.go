package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tbourn/feedback-hub/internal/domain"
)

type fakeStore struct {
	puts    map[string]string
	ctypes  map[string]string
	removed []string
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{puts: map[string]string{}, ctypes: map[string]string{}}
}

func (f *fakeStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	b, _ := io.ReadAll(r)
	f.puts[key] = string(b)
	f.ctypes[key] = contentType
	return "https://files.example.com/" + key, nil
}

func (f *fakeStore) Remove(ctx context.Context, key string) error {
	f.removed = append(f.removed, key)
	return nil
}

type fakeUploadRepo struct {
	getErr    error
	createErr error
	created   *domain.Upload
}

func (r *fakeUploadRepo) GetProject(ctx context.Context, db *gorm.DB, id string) (*domain.Project, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return &domain.Project{ID: id}, nil
}

func (r *fakeUploadRepo) CreateUpload(ctx context.Context, db *gorm.DB, projectID, fileURL, fileType string) (*domain.Upload, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.created = &domain.Upload{ID: "u1", ProjectID: projectID, FileURL: fileURL, FileType: fileType}
	return r.created, nil
}

func (r *fakeUploadRepo) ListUploads(ctx context.Context, db *gorm.DB, projectID string) ([]domain.Upload, error) {
	return []domain.Upload{{ID: "u1"}}, nil
}

func fixedClock() time.Time { return time.UnixMilli(1700000000123) }

func TestUploadService_Upload_StoresAndRecords(t *testing.T) {
	st := newFakeStore()
	r := &fakeUploadRepo{}
	s := NewUploadService(nil, r, st, 1<<20)
	s.Now = fixedClock

	up, err := s.Upload(context.Background(), "p1", "Brief.PDF", strings.NewReader("%PDF"), 4)
	require.NoError(t, err)
	assert.Equal(t, "pdf", up.FileType)
	assert.Equal(t, "https://files.example.com/p1/1700000000123.pdf", up.FileURL)
	assert.Equal(t, "%PDF", st.puts["p1/1700000000123.pdf"])
	assert.Equal(t, "application/pdf", st.ctypes["p1/1700000000123.pdf"])
	assert.Empty(t, st.removed)
}

func TestUploadService_Upload_Rejections(t *testing.T) {
	st := newFakeStore()
	s := NewUploadService(nil, &fakeUploadRepo{}, st, 10)

	_, err := s.Upload(context.Background(), "p1", "run.exe", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrInvalidFileType)
	_, err = s.Upload(context.Background(), "p1", "noext", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrInvalidFileType)
	_, err = s.Upload(context.Background(), "p1", "big.png", strings.NewReader("x"), 11)
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Empty(t, st.puts)

	disabled := NewUploadService(nil, &fakeUploadRepo{}, nil, 10)
	assert.False(t, disabled.Enabled())
	_, err = disabled.Upload(context.Background(), "p1", "a.txt", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrUploadsDisabled)
}

func TestUploadService_Upload_UnknownProject(t *testing.T) {
	st := newFakeStore()
	s := NewUploadService(nil, &fakeUploadRepo{getErr: gorm.ErrRecordNotFound}, st, 0)
	_, err := s.Upload(context.Background(), "missing", "a.txt", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrProjectNotFound)
	assert.Empty(t, st.puts)

	_, err = s.List(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestUploadService_Upload_RowFailureRemovesObject(t *testing.T) {
	st := newFakeStore()
	s := NewUploadService(nil, &fakeUploadRepo{createErr: errors.New("constraint")}, st, 0)
	s.Now = fixedClock

	_, err := s.Upload(context.Background(), "p1", "pic.jpeg", strings.NewReader("img"), 3)
	require.ErrorIs(t, err, ErrStorage)
	assert.Equal(t, []string{"p1/1700000000123.jpeg"}, st.removed)
}

func TestUploadService_Upload_StoreFailure(t *testing.T) {
	st := newFakeStore()
	st.putErr = errors.New("bucket gone")
	r := &fakeUploadRepo{}
	s := NewUploadService(nil, r, st, 0)

	_, err := s.Upload(context.Background(), "p1", "a.png", strings.NewReader("x"), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket gone")
	assert.Nil(t, r.created)
}

func TestUploadService_List(t *testing.T) {
	got, err := NewUploadService(nil, &fakeUploadRepo{}, nil, 0).List(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
