package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgl-project/atlasdata/pkg/logging"
	"github.com/sgl-project/atlasdata/pkg/storage"
	s3provider "github.com/sgl-project/atlasdata/pkg/storage/s3"
	"github.com/sgl-project/atlasdata/pkg/storage/s3/s3test"
)

const testBucket = "allen-mouse-brain-atlas"

type fixture struct {
	fake    *s3test.Fake
	fs      afero.Fs
	logs    *logging.Recorder
	metrics *Metrics
	fetcher *Fetcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := s3test.New(testBucket)
	store, err := s3provider.New(fake, s3provider.Config{Bucket: testBucket}, logging.NewNopLogger())
	require.NoError(t, err)
	store.WithRetryConfig(storage.RetryConfig{})

	fs := afero.NewMemMapFs()
	logs := logging.NewRecorder()
	metrics := NewMetrics(prometheus.NewRegistry())
	return &fixture{
		fake:    fake,
		fs:      fs,
		logs:    logs,
		metrics: metrics,
		fetcher: NewFetcher(store, fs, logs, WithMetrics(metrics)),
	}
}

func TestFetcher_EnsureLocal_MissThenHit(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.fake.PutJSON("section_data_sets.json", `[{"id": 1}]`)

	require.NoError(t, fx.fetcher.EnsureLocal(ctx, "section_data_sets.json", "/cache/nested/section_data_sets.json"))

	data, err := afero.ReadFile(fx.fs, "/cache/nested/section_data_sets.json")
	require.NoError(t, err)
	assert.Equal(t, `[{"id": 1}]`, string(data))
	assert.Equal(t, 1, fx.fake.Calls(s3test.OpGet))
	assert.Equal(t, float64(1), testutil.ToFloat64(fx.metrics.downloadsTotal.WithLabelValues(testBucket)))
	assert.Equal(t, float64(11), testutil.ToFloat64(fx.metrics.downloadBytesTotal.WithLabelValues(testBucket)))

	info, err := fx.fs.Stat("/cache/nested/section_data_sets.json")
	require.NoError(t, err)
	before := info.ModTime()
	time.Sleep(5 * time.Millisecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, fx.fetcher.EnsureLocal(ctx, "section_data_sets.json", "/cache/nested/section_data_sets.json"))
	}

	info, err = fx.fs.Stat("/cache/nested/section_data_sets.json")
	require.NoError(t, err)
	assert.True(t, before.Equal(info.ModTime()), "cache hit must not touch the file")
	assert.Equal(t, 1, fx.fake.Calls(s3test.OpGet))
	assert.Equal(t, float64(3), testutil.ToFloat64(fx.metrics.cacheHitsTotal.WithLabelValues(testBucket)))
	assert.Empty(t, fx.logs.Warnings())
}

func TestFetcher_EnsureLocal_Stale(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.fake.PutJSON("donor_metadata.json", `{"v":2}`)
	require.NoError(t, afero.WriteFile(fx.fs, "/cache/donor_metadata.json", []byte(`{"v":1}`), 0644))

	require.NoError(t, fx.fetcher.EnsureLocal(ctx, "donor_metadata.json", "/cache/donor_metadata.json"))

	data, err := afero.ReadFile(fx.fs, "/cache/donor_metadata.json")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(data))
	assert.Equal(t, 1, fx.fake.Calls(s3test.OpGet))

	// a remote update is picked up on the next call
	fx.fake.PutJSON("donor_metadata.json", `{"v":3}`)
	require.NoError(t, fx.fetcher.EnsureLocal(ctx, "donor_metadata.json", "/cache/donor_metadata.json"))
	data, err = afero.ReadFile(fx.fs, "/cache/donor_metadata.json")
	require.NoError(t, err)
	assert.Equal(t, `{"v":3}`, string(data))
	assert.Equal(t, 2, fx.fake.Calls(s3test.OpGet))
}

func TestFetcher_EnsureLocal_Multipart(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	body := make([]byte, 100)
	for i := range body {
		body[i] = byte(i)
	}
	fx.fake.PutMultipart("section_data_set_7/downsample_4/a.tif", body, 32)

	require.NoError(t, fx.fetcher.EnsureLocal(ctx, "section_data_set_7/downsample_4/a.tif", "/cache/a.tif"))
	require.NoError(t, fx.fetcher.EnsureLocal(ctx, "section_data_set_7/downsample_4/a.tif", "/cache/a.tif"))
	assert.Equal(t, 1, fx.fake.Calls(s3test.OpGet))
	assert.Equal(t, float64(1), testutil.ToFloat64(fx.metrics.cacheHitsTotal.WithLabelValues(testBucket)))
}

func TestFetcher_EnsureLocal_Fatal(t *testing.T) {
	ctx := context.Background()

	t.Run("ambiguous key", func(t *testing.T) {
		fx := newFixture(t)
		fx.fake.PutJSON("section_metadata.json", `[]`)
		fx.fake.PutJSON("section_metadata.json.old", `[]`)

		err := fx.fetcher.EnsureLocal(ctx, "section_metadata.json", "/cache/section_metadata.json")
		require.Error(t, err)
		assert.True(t, storage.IsAmbiguousKey(err))
		assert.Contains(t, err.Error(), "returned 2 results")
		assert.Zero(t, fx.fake.Calls(s3test.OpGet))
	})

	t.Run("missing key", func(t *testing.T) {
		fx := newFixture(t)
		err := fx.fetcher.EnsureLocal(ctx, "section_metadata.json", "/cache/section_metadata.json")
		require.Error(t, err)
		assert.True(t, storage.IsAmbiguousKey(err))
		assert.Contains(t, err.Error(), "returned 0 results")
	})

	t.Run("directory at local path", func(t *testing.T) {
		fx := newFixture(t)
		fx.fake.PutJSON("section_metadata.json", `[]`)
		require.NoError(t, fx.fs.MkdirAll("/cache/section_metadata.json", 0755))

		err := fx.fetcher.EnsureLocal(ctx, "section_metadata.json", "/cache/section_metadata.json")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotRegularFile))
		assert.Contains(t, err.Error(), "/cache/section_metadata.json")
		assert.Zero(t, fx.fake.Calls(s3test.OpGet))
		assert.Equal(t, float64(1), testutil.ToFloat64(fx.metrics.downloadFailuresTotal.WithLabelValues(testBucket, "not_regular_file")))
	})

	t.Run("corrupted transfer", func(t *testing.T) {
		fx := newFixture(t)
		fx.fake.PutJSON("section_metadata.json", `[{"id":1}]`)
		fx.fake.Corrupt("section_metadata.json", []byte(`[{"id":2}]`))

		err := fx.fetcher.EnsureLocal(ctx, "section_metadata.json", "/cache/section_metadata.json")
		require.Error(t, err)
		assert.True(t, storage.IsChecksumMismatch(err))
		assert.Contains(t, err.Error(), "section_metadata.json")
		assert.Contains(t, err.Error(), fx.fake.ETag("section_metadata.json"))
		assert.Equal(t, float64(1), testutil.ToFloat64(fx.metrics.downloadFailuresTotal.WithLabelValues(testBucket, "checksum")))
		assert.Equal(t, float64(0), testutil.ToFloat64(fx.metrics.downloadsTotal.WithLabelValues(testBucket)))
	})
}

func TestNewFetcher_DefaultMetrics(t *testing.T) {
	fake := s3test.New(testBucket)
	store, err := s3provider.New(fake, s3provider.Config{Bucket: testBucket}, logging.NewNopLogger())
	require.NoError(t, err)

	// unregistered metrics allow more than one fetcher per process
	a := NewFetcher(store, afero.NewMemMapFs(), logging.NewNopLogger())
	b := NewFetcher(store, afero.NewMemMapFs(), logging.NewNopLogger())
	assert.NotNil(t, a.metrics)
	assert.NotSame(t, a.metrics, b.metrics)
	assert.Same(t, store, a.Storage())
}
