package storage

import (
	"context"
	"io"
	"time"

	"github.com/spf13/afero"
)

// Provider represents the storage provider type
type Provider string

const (
	ProviderS3 Provider = "s3"
)

// Storage is the subset of object-store operations the dataset clients
// depend on. Keys are bucket-relative; the bucket is fixed per instance.
type Storage interface {
	// Provider returns the storage provider type
	Provider() Provider

	// Bucket returns the bucket every key is resolved against.
	Bucket() string

	// List returns every object whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Stat returns metadata about a single object.
	Stat(ctx context.Context, key string) (*Metadata, error)

	// ResolveDigest lists by key and requires exactly one match, returning
	// the content digest of that object.
	ResolveDigest(ctx context.Context, key string) (Digest, error)

	// Download writes the full object to target on fs, truncating any
	// existing file. It returns the number of bytes written.
	Download(ctx context.Context, key string, fs afero.Fs, target string) (int64, error)

	// Get streams the object body.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// ObjectInfo contains information about a listed object
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// Metadata contains detailed metadata about a storage object
type Metadata struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
	PartsCount   int
	Metadata     map[string]string
}
