// Package storage provides the object storage abstraction used to archive
// report image artifacts.
//
// Two implementations are provided:
// - LocalStorage: filesystem storage for development
// - R2Storage: Cloudflare R2 (S3-compatible) storage for production
//
// Reports themselves live in the report store; this package only holds the
// binary artifacts (uploaded task photos, thumbnails, AI-edited images) so
// the JSON collection stays small.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage defines the interface for object storage operations.
//
// All methods are context-aware for timeout and cancellation support.
type Storage interface {
	// Put stores data at the specified key with the given options.
	// Returns ErrKeyExists if the key exists and overwrite is disabled.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get retrieves the data at the specified key.
	// The caller must close the returned reader.
	// Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at the specified key.
	// Idempotent: no error if the key doesn't exist.
	Delete(ctx context.Context, key string) error

	// URL returns a URL for accessing the object at the specified key.
	// For private objects this is a presigned URL valid for expires.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists reports whether an object exists at the specified key.
	Exists(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// Data Types
// =============================================================================

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType specifies the MIME type of the object.
	// If empty, it is detected from the key extension or content.
	ContentType string

	// MaxSize is the maximum allowed size in bytes. Exceeding it returns
	// ErrTooLarge. Zero means no limit.
	MaxSize int64

	// Overwrite allows replacing an existing object at the same key.
	Overwrite bool

	// Public marks the object publicly accessible. For R2 this sets the
	// ACL to public-read; local storage ignores it.
	Public bool
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// =============================================================================
// Configuration Types
// =============================================================================

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory where files are stored.
	BasePath string

	// BaseURL is the public URL prefix for accessing files.
	// Example: "http://localhost:8080/files"
	BaseURL string
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL is the public URL for the bucket (custom domain).
	// If empty, presigned URLs are used for all access.
	PublicURL string

	// Region is required by the AWS SDK; R2 accepts "auto".
	Region string
}

// =============================================================================
// Provider Constants
// =============================================================================

const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

// =============================================================================
// Key Generation Helpers
// =============================================================================

// TaskImageKey generates the storage key for an uploaded task photo.
// Format: reports/{reportID}/tasks/{taskID}{ext}
func TaskImageKey(reportID, taskID uuid.UUID, ext string) string {
	return fmt.Sprintf("reports/%s/tasks/%s%s", reportID, taskID, ext)
}

// ThumbnailKey generates the storage key for a report's listing thumbnail.
// Format: reports/{reportID}/thumbnail.jpg
func ThumbnailKey(reportID uuid.UUID) string {
	return fmt.Sprintf("reports/%s/thumbnail.jpg", reportID)
}

// EditedImageKey generates the storage key for an AI-edited image. Each edit
// gets a fresh key so earlier edits remain retrievable.
// Format: reports/{reportID}/edits/{uuid}{ext}
func EditedImageKey(reportID uuid.UUID, ext string) string {
	return fmt.Sprintf("reports/%s/edits/%s%s", reportID, uuid.New(), ext)
}
