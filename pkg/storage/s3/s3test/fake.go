// Package s3test provides an in-memory stand-in for the S3 API used by the
// storage provider, with ranged GETs and real single and multipart ETags.
package s3test

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Operation names accepted by Calls and FailNext.
const (
	OpList = "ListObjectsV2"
	OpHead = "HeadObject"
	OpGet  = "GetObject"
)

type object struct {
	body         []byte
	served       []byte
	etag         string
	partSize     int64
	lastModified time.Time
}

// Fake is a single-bucket in-memory S3. The zero value is not usable; call New.
type Fake struct {
	mu       sync.Mutex
	bucket   string
	objects  map[string]*object
	calls    map[string]int
	failures map[string][]error

	// PageSize caps ListObjectsV2 results per page.
	PageSize int
}

// New returns an empty bucket.
func New(bucket string) *Fake {
	return &Fake{
		bucket:   bucket,
		objects:  make(map[string]*object),
		calls:    make(map[string]int),
		failures: make(map[string][]error),
		PageSize: 1000,
	}
}

// Put stores body under key with a single-part ETag.
func (f *Fake) Put(key string, body []byte) {
	sum := md5.Sum(body)
	f.store(key, &object{body: body, etag: hex.EncodeToString(sum[:])})
}

// PutMultipart stores body under key with the ETag S3 assigns to an upload
// split into partSize chunks.
func (f *Fake) PutMultipart(key string, body []byte, partSize int64) {
	var sums []byte
	parts := 0
	for off := int64(0); off < int64(len(body)) || parts == 0; off += partSize {
		end := min(off+partSize, int64(len(body)))
		sum := md5.Sum(body[off:end])
		sums = append(sums, sum[:]...)
		parts++
	}
	total := md5.Sum(sums)
	f.store(key, &object{
		body:     body,
		etag:     fmt.Sprintf("%s-%d", hex.EncodeToString(total[:]), parts),
		partSize: partSize,
	})
}

// PutJSON stores a string body; convenience for metadata fixtures.
func (f *Fake) PutJSON(key, body string) {
	f.Put(key, []byte(body))
}

// Corrupt makes GETs of key return body while listings keep reporting the
// original ETag.
func (f *Fake) Corrupt(key string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if obj, ok := f.objects[key]; ok {
		obj.served = body
	}
}

// Delete removes key.
func (f *Fake) Delete(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
}

// FailNext queues err to be returned by the next call of op.
func (f *Fake) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = append(f.failures[op], err)
}

// Calls returns how many times op has been invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// ETag returns the unquoted ETag stored for key.
func (f *Fake) ETag(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if obj, ok := f.objects[key]; ok {
		return obj.etag
	}
	return ""
}

func (f *Fake) store(key string, obj *object) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj.lastModified = time.Now().UTC()
	f.objects[key] = obj
}

func (f *Fake) enter(op string, bucket *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if queued := f.failures[op]; len(queued) > 0 {
		f.failures[op] = queued[1:]
		return queued[0]
	}
	if aws.ToString(bucket) != f.bucket {
		return &types.NoSuchBucket{Message: aws.String(aws.ToString(bucket))}
	}
	return nil
}

// ListObjectsV2 implements s3.ListObjectsV2APIClient.
func (f *Fake) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if err := f.enter(OpList, in.Bucket); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := aws.ToString(in.Prefix)
	after := aws.ToString(in.ContinuationToken)
	keys := make([]string, 0, len(f.objects))
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) && key > after {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{
		Name:        aws.String(f.bucket),
		Prefix:      in.Prefix,
		IsTruncated: aws.Bool(false),
	}
	if f.PageSize > 0 && len(keys) > f.PageSize {
		keys = keys[:f.PageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, key := range keys {
		obj := f.objects[key]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(obj.body))),
			ETag:         aws.String(strconv.Quote(obj.etag)),
			LastModified: aws.Time(obj.lastModified),
		})
	}
	out.KeyCount = aws.Int32(int32(len(out.Contents)))
	return out, nil
}

// HeadObject implements s3.HeadObjectAPIClient. PartNumber reports the size
// of that part for multipart objects.
func (f *Fake) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if err := f.enter(OpHead, in.Bucket); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{Message: aws.String("Not Found")}
	}

	size := int64(len(obj.body))
	out := &s3.HeadObjectOutput{
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/octet-stream"),
		ETag:          aws.String(strconv.Quote(obj.etag)),
		LastModified:  aws.Time(obj.lastModified),
	}
	if obj.partSize > 0 {
		parts := int32((size + obj.partSize - 1) / obj.partSize)
		out.PartsCount = aws.Int32(max(parts, 1))
		if n := aws.ToInt32(in.PartNumber); n > 0 {
			start := int64(n-1) * obj.partSize
			end := min(start+obj.partSize, size)
			out.ContentLength = aws.Int64(max(end-start, 0))
		}
	}
	return out, nil
}

// GetObject implements manager.DownloadAPIClient, honouring "bytes=a-b" ranges.
func (f *Fake) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if err := f.enter(OpGet, in.Bucket); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	body := obj.body
	if obj.served != nil {
		body = obj.served
	}
	total := int64(len(body))

	out := &s3.GetObjectOutput{
		ETag:         aws.String(strconv.Quote(obj.etag)),
		LastModified: aws.Time(obj.lastModified),
	}

	if in.Range == nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.ContentLength = aws.Int64(total)
		return out, nil
	}

	start, end, err := parseRange(aws.ToString(in.Range))
	if err != nil {
		return nil, err
	}
	if total == 0 {
		out.Body = io.NopCloser(bytes.NewReader(nil))
		out.ContentLength = aws.Int64(0)
		out.ContentRange = aws.String("bytes */0")
		return out, nil
	}
	if start >= total {
		return nil, fmt.Errorf("range %s not satisfiable for %d bytes", aws.ToString(in.Range), total)
	}
	if end < 0 || end >= total {
		end = total - 1
	}
	chunk := body[start : end+1]
	out.Body = io.NopCloser(bytes.NewReader(chunk))
	out.ContentLength = aws.Int64(int64(len(chunk)))
	out.ContentRange = aws.String(fmt.Sprintf("bytes %d-%d/%d", start, end, total))
	return out, nil
}

// parseRange parses "bytes=a-b" or "bytes=a-". end is -1 when open.
func parseRange(header string) (int64, int64, error) {
	rng, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported range %q", header)
	}
	from, to, ok := strings.Cut(rng, "-")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported range %q", header)
	}
	start, err := strconv.ParseInt(from, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("unsupported range %q: %w", header, err)
	}
	if to == "" {
		return start, -1, nil
	}
	end, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("unsupported range %q: %w", header, err)
	}
	return start, end, nil
}
