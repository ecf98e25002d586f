// Package storage persists uploaded project files in an S3-compatible object
// store (MinIO, AWS S3, or any S3-compatible gateway).
//
// Objects are written once and addressed by key; the store does not list or
// rewrite them. The public URL recorded for each object is derived from
// PublicBaseURL when configured, or from the endpoint and bucket otherwise.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotConfigured is returned by NewS3Store when no endpoint is set.
var ErrNotConfigured = errors.New("object storage not configured")

// S3Config holds connection settings for the object store.
type S3Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

// S3Store is an object store backed by github.com/minio/minio-go/v7.
type S3Store struct {
	client     *minio.Client
	bucketName string
	region     string
	publicBase string

	mu    sync.Mutex
	ready bool // bucket confirmed; failures are retried on the next write
}

// NewS3Store validates cfg and builds a client. It does not touch the network;
// the bucket is checked (and created if missing) on first write.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, ErrNotConfigured
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	public := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if public == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		public = scheme + "://" + endpoint + "/" + bucket
	}

	return &S3Store{
		client:     client,
		bucketName: bucket,
		region:     region,
		publicBase: public,
	}, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !exists {
		err = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
		if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
			return err
		}
	}
	s.ready = true
	return nil
}

// Put uploads size bytes from r under key and returns the object's public URL.
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := s.client.PutObject(ctx, s.bucketName, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", err
	}
	return s.URL(key), nil
}

// Remove deletes the object stored under key. Missing objects are not an error.
func (s *S3Store) Remove(ctx context.Context, key string) error {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return nil
	}
	return err
}

// URL returns the public URL for key. Path segments are escaped.
func (s *S3Store) URL(key string) string {
	parts := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.publicBase + "/" + strings.Join(parts, "/")
}
