// Package metadata loads JSON metadata documents through the local cache.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/sgl-project/atlasdata/pkg/cache"
	"github.com/sgl-project/atlasdata/pkg/logging"
)

// Repository reads JSON objects from the bucket via a cache directory.
type Repository struct {
	fetcher  *cache.Fetcher
	cacheDir string
	logger   logging.Interface
}

// NewRepository creates a repository caching under cacheDir.
func NewRepository(fetcher *cache.Fetcher, cacheDir string, logger logging.Interface) *Repository {
	return &Repository{
		fetcher:  fetcher,
		cacheDir: cacheDir,
		logger:   logger,
	}
}

// CacheDir returns the directory local copies are written to.
func (r *Repository) CacheDir() string {
	return r.cacheDir
}

// LocalPath returns where localCacheName is stored.
func (r *Repository) LocalPath(localCacheName string) string {
	return filepath.Join(r.cacheDir, localCacheName)
}

// LoadJSON ensures remoteKey is cached as localCacheName and decodes it into out.
func (r *Repository) LoadJSON(ctx context.Context, remoteKey, localCacheName string, out any) error {
	data, err := r.fetch(ctx, remoteKey, localCacheName)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", r.LocalPath(localCacheName), err)
	}
	return nil
}

// LoadDocument is LoadJSON into an untyped Document.
func (r *Repository) LoadDocument(ctx context.Context, remoteKey, localCacheName string) (Document, error) {
	data, err := r.fetch(ctx, remoteKey, localCacheName)
	if err != nil {
		return Document{}, err
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return Document{}, fmt.Errorf("failed to parse %s: %w", r.LocalPath(localCacheName), err)
	}
	return doc, nil
}

func (r *Repository) fetch(ctx context.Context, remoteKey, localCacheName string) ([]byte, error) {
	fs := r.fetcher.Fs()
	if err := fs.MkdirAll(r.cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", r.cacheDir, err)
	}

	localPath := r.LocalPath(localCacheName)
	if err := r.fetcher.EnsureLocal(ctx, remoteKey, localPath); err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(fs, localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", localPath, err)
	}
	r.logger.WithField("path", localPath).Debug("Loaded metadata")
	return data, nil
}

// Document is an opaque JSON value. Numbers keep their literal text.
type Document struct {
	value any
}

// ParseDocument decodes a JSON value.
func ParseDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return Document{}, err
	}
	return Document{value: v}, nil
}

// Value returns the decoded value.
func (d Document) Value() any {
	return d.value
}

// List returns the document as an ordered list of records.
func (d Document) List() ([]map[string]any, error) {
	items, ok := d.value.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON array, got %T", d.value)
	}
	out := make([]map[string]any, 0, len(items))
	for i, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("element %d: expected a JSON object, got %T", i, item)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Object returns the document as a single record.
func (d Document) Object() (map[string]any, error) {
	rec, ok := d.value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %T", d.value)
	}
	return rec, nil
}

// Decode re-encodes the document into out.
func (d Document) Decode(out any) error {
	data, err := json.Marshal(d.value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
