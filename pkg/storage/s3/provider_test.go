package s3

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/smithy-go"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgl-project/atlasdata/pkg/logging"
	"github.com/sgl-project/atlasdata/pkg/storage"
	"github.com/sgl-project/atlasdata/pkg/storage/s3/s3test"
)

const testBucket = "allen-mouse-brain-atlas"

func newTestProvider(t *testing.T, fake *s3test.Fake, cfg Config) *S3Provider {
	t.Helper()
	cfg.Bucket = testBucket
	p, err := New(fake, cfg, logging.NewNopLogger())
	require.NoError(t, err)
	p.WithRetryConfig(storage.RetryConfig{
		MaxRetries:     2,
		InitialDelay:   time.Millisecond,
		MaxDelay:       time.Millisecond,
		Multiplier:     1,
		RetryableError: storage.IsRetryable,
	})
	return p
}

func patterned(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i*7 + i/251)
	}
	return buf
}

func TestConfig(t *testing.T) {
	cfg := Config{Bucket: testBucket}.WithDefaults()
	assert.Equal(t, DefaultRegion, cfg.Region)
	assert.Equal(t, DefaultRegion, cfg.Auth.Region)
	assert.EqualValues(t, 5, cfg.PartSizeMB)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.False(t, cfg.usePathStyle())
	require.NoError(t, cfg.Validate())

	assert.True(t, Config{Endpoint: "http://localhost:9000"}.usePathStyle())
	assert.False(t, Config{Endpoint: "https://s3.us-west-2.amazonaws.com"}.usePathStyle())

	for _, bad := range []Config{{}, {Bucket: "Upper_Case"}, {Bucket: "ab"}, {Bucket: testBucket, Concurrency: -1}} {
		err := bad.Validate()
		assert.ErrorIs(t, err, storage.ErrInvalidConfig, "bucket %q", bad.Bucket)
	}
}

func TestNewS3Provider_CABundle(t *testing.T) {
	t.Setenv("AWS_CA_BUNDLE", s3test.CABundle(t))

	p, err := NewS3Provider(context.Background(), Config{Bucket: testBucket}, aws.AnonymousCredentials{}, logging.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, testBucket, p.Bucket())
}

func TestKeyFromURI(t *testing.T) {
	assert.Equal(t, "a/b.tif", KeyFromURI("bucket", "s3://bucket/a/b.tif"))
	assert.Equal(t, "a/b.tif", KeyFromURI("bucket", "a/b.tif"))
	// a lookalike bucket prefix is left alone
	assert.Equal(t, "s3://bucket2/a", KeyFromURI("bucket", "s3://bucket2/a"))
	assert.Equal(t, "s3://bucket/a", BuildURI("bucket", "a"))
}

func TestS3Provider_ResolveDigest(t *testing.T) {
	ctx := context.Background()
	fake := s3test.New(testBucket)
	fake.PutJSON("section_data_sets.json", `[]`)
	fake.PutJSON("section_data_set_1/section_data_set.json", `{}`)
	fake.PutJSON("section_data_set_1/section_data_set.json.bak", `{}`)
	fake.PutMultipart("big.tif", patterned(10), 4)
	p := newTestProvider(t, fake, Config{})

	t.Run("single part", func(t *testing.T) {
		digest, err := p.ResolveDigest(ctx, "section_data_sets.json")
		require.NoError(t, err)
		assert.Equal(t, fake.ETag("section_data_sets.json"), digest.ETag)
		assert.False(t, digest.IsMultipart())
		assert.Zero(t, digest.PartSize)
	})

	t.Run("multipart resolves part size", func(t *testing.T) {
		digest, err := p.ResolveDigest(ctx, "big.tif")
		require.NoError(t, err)
		assert.Equal(t, 3, digest.Parts())
		assert.EqualValues(t, 4, digest.PartSize)
	})

	t.Run("prefix matches two objects", func(t *testing.T) {
		_, err := p.ResolveDigest(ctx, "section_data_set_1/section_data_set.json")
		require.Error(t, err)
		assert.True(t, storage.IsAmbiguousKey(err))
		assert.Contains(t, err.Error(), "section_data_set_1/section_data_set.json")
		assert.Contains(t, err.Error(), "returned 2 results")
	})

	t.Run("no match", func(t *testing.T) {
		_, err := p.ResolveDigest(ctx, "missing.json")
		require.Error(t, err)
		assert.True(t, storage.IsAmbiguousKey(err))
		assert.Contains(t, err.Error(), "returned 0 results")
	})
}

func TestS3Provider_List(t *testing.T) {
	fake := s3test.New(testBucket)
	fake.PageSize = 2
	for _, key := range []string{"a/1", "a/2", "a/3", "a/4", "a/5", "b/1"} {
		fake.PutJSON(key, key)
	}
	p := newTestProvider(t, fake, Config{})

	objects, err := p.List(context.Background(), "/a/")
	require.NoError(t, err)
	require.Len(t, objects, 5)
	assert.Equal(t, "a/1", objects[0].Key)
	assert.Equal(t, "a/5", objects[4].Key)
	assert.EqualValues(t, 3, objects[0].Size)
	assert.Equal(t, 3, fake.Calls(s3test.OpList))
}

func TestS3Provider_Download(t *testing.T) {
	ctx := context.Background()
	body := patterned(2*1024*1024 + 12345)
	fake := s3test.New(testBucket)
	fake.PutMultipart("section_data_set_1/downsample_4/img.tif", body, 1024*1024)
	fake.Put("empty.json", nil)
	p := newTestProvider(t, fake, Config{PartSizeMB: 1})
	fs := afero.NewMemMapFs()

	t.Run("ranged download", func(t *testing.T) {
		n, err := p.Download(ctx, "section_data_set_1/downsample_4/img.tif", fs, "/cache/img.tif")
		require.NoError(t, err)
		assert.EqualValues(t, len(body), n)

		got, err := afero.ReadFile(fs, "/cache/img.tif")
		require.NoError(t, err)
		assert.True(t, bytes.Equal(body, got))
		assert.Equal(t, 3, fake.Calls(s3test.OpGet))

		digest, err := p.ResolveDigest(ctx, "section_data_set_1/downsample_4/img.tif")
		require.NoError(t, err)
		ok, err := digest.Matches(fs, "/cache/img.tif")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("empty object", func(t *testing.T) {
		n, err := p.Download(ctx, "empty.json", fs, "/cache/empty.json")
		require.NoError(t, err)
		assert.Zero(t, n)
		exists, err := afero.Exists(fs, "/cache/empty.json")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("missing object leaves no file", func(t *testing.T) {
		_, err := p.Download(ctx, "nope.tif", fs, "/cache/nope.tif")
		require.Error(t, err)
		assert.True(t, storage.IsNotFound(err))
		exists, err := afero.Exists(fs, "/cache/nope.tif")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestS3Provider_StatAndGet(t *testing.T) {
	ctx := context.Background()
	fake := s3test.New(testBucket)
	fake.PutJSON("donor_metadata.json", `[{"id":1}]`)
	p := newTestProvider(t, fake, Config{})

	meta, err := p.Stat(ctx, "donor_metadata.json")
	require.NoError(t, err)
	assert.EqualValues(t, 10, meta.Size)
	assert.Equal(t, fake.ETag("donor_metadata.json"), meta.ETag)

	_, err = p.Stat(ctx, "nope.json")
	assert.True(t, storage.IsNotFound(err))

	rc, err := p.Get(ctx, "donor_metadata.json")
	require.NoError(t, err)
	defer rc.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(rc)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1}]`, buf.String())

	_, err = p.Get(ctx, "nope.json")
	assert.True(t, storage.IsNotFound(err))
}

func TestS3Provider_RetriesThrottling(t *testing.T) {
	ctx := context.Background()
	fake := s3test.New(testBucket)
	fake.PutJSON("specimen_metadata.json", `[]`)
	p := newTestProvider(t, fake, Config{})

	fake.FailNext(s3test.OpHead, &smithy.GenericAPIError{Code: "SlowDown", Message: "reduce your request rate"})
	_, err := p.Stat(ctx, "specimen_metadata.json")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.Calls(s3test.OpHead))

	fake.FailNext(s3test.OpList, &smithy.GenericAPIError{Code: "AccessDenied"})
	_, err = p.List(ctx, "specimen")
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrAccessDenied)
	assert.Equal(t, 1, fake.Calls(s3test.OpList))
}

func TestS3Provider_WrongBucket(t *testing.T) {
	fake := s3test.New("allen-ivy-glioblastoma-atlas")
	p := newTestProvider(t, fake, Config{})

	_, err := p.List(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket "+testBucket+" not found")
}
