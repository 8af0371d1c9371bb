package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/spf13/afero"

	"github.com/sgl-project/atlasdata/pkg/logging"
	"github.com/sgl-project/atlasdata/pkg/storage"
)

const (
	maxRetries   = 3
	httpTimeout  = 10 * time.Minute
	maxIdleConns = 16
)

// API is the part of the S3 client the provider calls. *s3.Client satisfies it.
type API interface {
	s3.ListObjectsV2APIClient
	s3.HeadObjectAPIClient
	manager.DownloadAPIClient
}

var _ API = (*s3.Client)(nil)

// S3Provider implements storage.Storage for one S3 bucket
type S3Provider struct {
	client     API
	bucket     string
	region     string
	downloader *manager.Downloader
	retry      storage.RetryConfig
	logger     logging.Interface
}

var _ storage.Storage = (*S3Provider)(nil)

// NewS3Provider builds an S3 client from config and creds and wraps it.
func NewS3Provider(ctx context.Context, config Config, creds aws.CredentialsProvider, logger logging.Interface) (*S3Provider, error) {
	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := initializeS3Client(ctx, config, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	provider, err := New(client, config, logger)
	if err != nil {
		return nil, err
	}

	logger.WithField("provider", "s3").
		WithField("bucket", config.Bucket).
		WithField("region", config.Region).
		WithField("auth_type", config.Auth.EffectiveType()).
		Info("S3 storage provider initialized")

	return provider, nil
}

// New wraps an existing client. Tests pass an in-memory API here.
func New(client API, config Config, logger logging.Interface) (*S3Provider, error) {
	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	downloader := manager.NewDownloader(client, func(d *manager.Downloader) {
		d.PartSize = config.PartSizeMB * 1024 * 1024
		d.Concurrency = config.Concurrency
	})

	return &S3Provider{
		client:     client,
		bucket:     config.Bucket,
		region:     config.Region,
		downloader: downloader,
		retry:      storage.DefaultRetryConfig(),
		logger:     logger.WithField("bucket", config.Bucket),
	}, nil
}

// WithRetryConfig replaces the retry policy for list and head requests.
func (p *S3Provider) WithRetryConfig(cfg storage.RetryConfig) *S3Provider {
	p.retry = cfg
	return p
}

// initializeS3Client creates and configures the S3 client
func initializeS3Client(ctx context.Context, config Config, creds aws.CredentialsProvider) (*s3.Client, error) {
	configOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
		// A buildable client lets the SDK apply AWS_CA_BUNDLE / ca_bundle.
		awsconfig.WithHTTPClient(awshttp.NewBuildableClient().
			WithTimeout(httpTimeout).
			WithTransportOptions(func(tr *http.Transport) {
				tr.MaxIdleConns = maxIdleConns
				tr.MaxIdleConnsPerHost = maxIdleConns
				tr.IdleConnTimeout = 90 * time.Second
			})),
	}
	if creds != nil {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	awsCfg.RetryMode = aws.RetryModeStandard
	awsCfg.RetryMaxAttempts = maxRetries

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
		o.UsePathStyle = config.usePathStyle()
	})

	return client, nil
}

// Provider returns the provider type
func (p *S3Provider) Provider() storage.Provider {
	return storage.ProviderS3
}

// Bucket returns the bucket name
func (p *S3Provider) Bucket() string {
	return p.bucket
}

// List lists objects in the bucket whose keys start with prefix
func (p *S3Provider) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	prefix = normalizeKey(prefix)

	var objects []storage.ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		var page *s3.ListObjectsV2Output
		err := storage.RetryOperation(ctx, p.retry, func() error {
			var err error
			page, err = paginator.NextPage(ctx)
			return p.wrapError(err, "list", prefix)
		})
		if err != nil {
			return nil, err
		}

		for _, obj := range page.Contents {
			// Key is always required in S3
			if obj.Key == nil {
				continue
			}
			objects = append(objects, storage.ObjectInfo{
				Key:          *obj.Key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
				ETag:         storage.NewDigest(aws.ToString(obj.ETag)).String(),
			})
		}
	}

	return objects, nil
}

// Stat retrieves object metadata from S3
func (p *S3Provider) Stat(ctx context.Context, key string) (*storage.Metadata, error) {
	result, err := p.head(ctx, normalizeKey(key), nil)
	if err != nil {
		return nil, err
	}

	metadata := &storage.Metadata{
		Key:          key,
		Size:         aws.ToInt64(result.ContentLength),
		ContentType:  aws.ToString(result.ContentType),
		ETag:         storage.NewDigest(aws.ToString(result.ETag)).String(),
		LastModified: aws.ToTime(result.LastModified),
		PartsCount:   int(aws.ToInt32(result.PartsCount)),
		Metadata:     make(map[string]string, len(result.Metadata)),
	}
	for k, v := range result.Metadata {
		metadata.Metadata[k] = v
	}

	return metadata, nil
}

// ResolveDigest lists by key and requires exactly one match. A multipart
// ETag is completed with the size of the first part, which every part but
// the last shares.
func (p *S3Provider) ResolveDigest(ctx context.Context, key string) (storage.Digest, error) {
	key = normalizeKey(key)

	objects, err := p.List(ctx, key)
	if err != nil {
		return storage.Digest{}, err
	}
	if len(objects) != 1 {
		return storage.Digest{}, &storage.AmbiguousKeyError{
			Bucket:  p.bucket,
			Key:     key,
			Matches: len(objects),
		}
	}

	digest := storage.NewDigest(objects[0].ETag)
	if !digest.IsMultipart() {
		return digest, nil
	}

	part, err := p.head(ctx, objects[0].Key, aws.Int32(1))
	if err != nil {
		return storage.Digest{}, err
	}
	digest.PartSize = aws.ToInt64(part.ContentLength)

	p.logger.WithField("key", key).
		WithField("etag", digest.ETag).
		WithField("part_size", digest.PartSize).
		Debug("Resolved multipart digest")

	return digest, nil
}

// Download writes the object to target on fs using ranged GETs.
// A partially written target is removed on failure.
func (p *S3Provider) Download(ctx context.Context, key string, fs afero.Fs, target string) (int64, error) {
	key = normalizeKey(key)

	file, err := fs.Create(target)
	if err != nil {
		return 0, fmt.Errorf("failed to create target file: %w", err)
	}

	n, err := p.downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	closeErr := file.Close()
	if err != nil {
		_ = fs.Remove(target)
		return 0, p.wrapError(err, "download", key)
	}
	if closeErr != nil {
		_ = fs.Remove(target)
		return 0, fmt.Errorf("failed to close %s: %w", target, closeErr)
	}

	p.logger.WithField("key", key).
		WithField("target", target).
		WithField("bytes", n).
		Debug("Downloaded object")

	return n, nil
}

// Get retrieves an object from S3
func (p *S3Provider) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	key = normalizeKey(key)
	result, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, p.wrapError(err, "get", key)
	}

	return result.Body, nil
}

func (p *S3Provider) head(ctx context.Context, key string, partNumber *int32) (*s3.HeadObjectOutput, error) {
	var result *s3.HeadObjectOutput
	err := storage.RetryOperation(ctx, p.retry, func() error {
		var err error
		result, err = p.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket:     aws.String(p.bucket),
			Key:        aws.String(key),
			PartNumber: partNumber,
		})
		return p.wrapError(err, "head", key)
	})
	return result, err
}

// wrapError maps S3 errors onto the storage sentinels
func (p *S3Provider) wrapError(err error, op string, key string) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return storage.NewError(op, key, storage.ProviderS3, fmt.Errorf("%w: %v", storage.ErrNotFound, err))
		case "NoSuchBucket":
			return storage.NewError(op, key, storage.ProviderS3, fmt.Errorf("bucket %s not found: %w", p.bucket, err))
		case "AccessDenied", "Forbidden":
			return storage.NewError(op, key, storage.ProviderS3, fmt.Errorf("%w: %v", storage.ErrAccessDenied, err))
		case "SlowDown", "InternalError", "ServiceUnavailable", "RequestTimeout":
			return storage.NewRetryableError(storage.NewError(op, key, storage.ProviderS3, err))
		}
	}

	return storage.NewError(op, key, storage.ProviderS3, err)
}
