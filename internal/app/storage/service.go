/*
Package storage stores uploaded images in an S3-compatible bucket and builds the
public URLs clients load them from.
*/
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotConfigured is returned by every operation when no bucket is configured.
var ErrNotConfigured = errors.New("storage: not configured")

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// PublicBaseURL, when set, prefixes object keys in returned URLs (a CDN or
	// public bucket domain). Otherwise path-style endpoint URLs are used.
	PublicBaseURL string
}

// Service defines the public interface for the file storage service.
type Service interface {
	// Upload stores body under key and returns its public URL.
	Upload(ctx context.Context, key, contentType string, size int64, body io.Reader) (string, error)

	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error

	// KeyFromURL returns the key of a URL produced by Upload.
	KeyFromURL(url string) (string, bool)
}

// NewService returns an S3-backed Service, or a Service that rejects every
// call when cfg has no bucket.
func NewService(cfg ServiceConfig) (Service, error) {
	if cfg.S3BucketName == "" || cfg.S3Endpoint == "" {
		return disabled{}, nil
	}
	return newS3Client(cfg)
}

type disabled struct{}

func (disabled) Upload(context.Context, string, string, int64, io.Reader) (string, error) {
	return "", ErrNotConfigured
}

func (disabled) Delete(context.Context, string) error { return ErrNotConfigured }

func (disabled) KeyFromURL(string) (string, bool) { return "", false }
