// Package storage keeps uploaded receipt images on local disk or in S3.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileStore persists uploaded files under a key
type FileStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ReceiptKey builds the key of a receipt image uploaded at t,
// e.g. receipts/2026/03/01/<uuid>.png
func ReceiptKey(t time.Time, ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return path.Join("receipts", t.UTC().Format("2006/01/02"), fmt.Sprintf("%s.%s", uuid.NewString(), ext))
}

// Config selects and configures a backend
type Config struct {
	Type               string // local or s3
	LocalPath          string
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3Bucket           string
}

// New returns the backend selected by cfg.Type
func New(ctx context.Context, cfg Config) (FileStore, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalStore(cfg.LocalPath)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
