package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"fapdraft-backend/apperrors"
	"fapdraft-backend/config"
)

// Storage interface for file storage operations. Keys are slash separated
// and always start with the owning tenant prefix.
type Storage interface {
	// Put stores data under key, replacing any previous object
	Put(ctx context.Context, key string, data io.Reader) error

	// Get retrieves an object; a missing key is apperrors.ErrNotFound
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object, ignoring missing keys
	Delete(ctx context.Context, key string) error
}

// Kind groups the objects of a tenant.
type Kind string

const (
	KindTemplate  Kind = "templates"
	KindBase      Kind = "base"
	KindKnowledge Kind = "knowledge"
	KindPetition  Kind = "petitions"
)

// StorageType represents the storage backend type
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// New creates a storage instance from configuration
func New(cfg config.StorageConfig, aws config.AWSConfig) (Storage, error) {
	switch StorageType(cfg.Type) {
	case StorageTypeLocal, "":
		return NewLocalStorage(cfg.LocalPath)
	case StorageTypeS3:
		if aws.S3Bucket == "" {
			return nil, apperrors.Validation("aws.s3_bucket is required for S3 storage")
		}
		return NewS3Storage(S3Config{
			Bucket:    aws.S3Bucket,
			Region:    aws.Region,
			AccessKey: aws.AccessKeyID,
			SecretKey: aws.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

func tenantPrefix(tenantID int64) string {
	return fmt.Sprintf("tenants/%d/", tenantID)
}

// TenantKey generates a unique key for a tenant file
func TenantKey(tenantID int64, kind Kind, filename string) string {
	return tenantPrefix(tenantID) + string(kind) + "/" + uuid.NewString() + "_" + SanitizeFilename(filename)
}

// OwnedBy reports whether key lives under the tenant prefix.
func OwnedBy(tenantID int64, key string) bool {
	clean := path.Clean(key)
	return clean == key && strings.HasPrefix(clean, tenantPrefix(tenantID)) && !strings.Contains(clean, "..")
}

// SanitizeFilename keeps the base name of filename with path separators
// and spaces replaced.
func SanitizeFilename(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	name = strings.NewReplacer(" ", "_", "/", "_", "..", "_").Replace(name)
	if name == "" || name == "." {
		name = "arquivo"
	}
	return name + ext
}

// ReadAll loads a whole object.
func ReadAll(ctx context.Context, s Storage, key string) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func validKey(key string) error {
	if key == "" || path.IsAbs(key) || path.Clean(key) != key || strings.HasPrefix(key, "../") || key == ".." {
		return apperrors.Validation("invalid storage key %q", key)
	}
	return nil
}
