// Package cache keeps local copies of remote objects and refreshes them only
// when the remote content digest differs from the local file.
package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/sgl-project/atlasdata/pkg/logging"
	"github.com/sgl-project/atlasdata/pkg/storage"
)

// Fetcher materializes remote objects at local paths.
type Fetcher struct {
	store   storage.Storage
	fs      afero.Fs
	logger  logging.Interface
	metrics *Metrics
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithMetrics records cache activity into m.
func WithMetrics(m *Metrics) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// NewFetcher creates a fetcher reading from store and writing into fs.
func NewFetcher(store storage.Storage, fs afero.Fs, logger logging.Interface, opts ...Option) *Fetcher {
	f := &Fetcher{
		store:  store,
		fs:     fs,
		logger: logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.metrics == nil {
		f.metrics = NewMetrics(nil)
	}
	return f
}

// Storage returns the backing object store.
func (f *Fetcher) Storage() storage.Storage {
	return f.store
}

// Fs returns the local filesystem.
func (f *Fetcher) Fs() afero.Fs {
	return f.fs
}

// EnsureLocal makes localPath hold the current content of remoteKey.
//
// The remote key must match exactly one object. A regular file at localPath
// whose digest already matches is left untouched (no write, no mtime change).
// Otherwise the object is transferred and verified; a digest mismatch after
// transfer is an error.
func (f *Fetcher) EnsureLocal(ctx context.Context, remoteKey, localPath string) error {
	bucket := f.store.Bucket()
	log := f.logger.WithField("key", remoteKey).WithField("path", localPath)

	digest, err := f.store.ResolveDigest(ctx, remoteKey)
	if err != nil {
		f.metrics.recordFailure(bucket, "resolve")
		return err
	}

	kind, err := storage.StatPath(f.fs, localPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	switch kind {
	case storage.PathOther:
		f.metrics.recordFailure(bucket, "not_regular_file")
		return fmt.Errorf("%w: %s", ErrNotRegularFile, localPath)
	case storage.PathRegularFile:
		ok, err := digest.Matches(f.fs, localPath)
		if err != nil {
			return err
		}
		if ok {
			f.metrics.recordHit(bucket)
			log.Debug("Local copy is current")
			return nil
		}
		log.WithField("etag", digest.String()).Info("Local copy is stale, downloading")
	}

	if err := f.fs.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", localPath, err)
	}

	start := time.Now()
	n, err := f.store.Download(ctx, remoteKey, f.fs, localPath)
	if err != nil {
		f.metrics.recordFailure(bucket, "download")
		return err
	}

	ok, err := digest.Matches(f.fs, localPath)
	if err != nil {
		return err
	}
	if !ok {
		f.metrics.recordFailure(bucket, "checksum")
		return fmt.Errorf("%w: downloaded %s from bucket %s to %s but the result does not match etag %s",
			storage.ErrChecksumMismatch, remoteKey, bucket, localPath, digest)
	}

	elapsed := time.Since(start)
	f.metrics.recordDownload(bucket, n, elapsed.Seconds())
	log.WithField("size", humanize.Bytes(uint64(n))).
		WithField("duration", elapsed.Round(time.Millisecond).String()).
		Info("Downloaded object")

	return nil
}
