package storage

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// Digest is the content digest the object store reports for one object.
//
// For objects uploaded in a single request the ETag is the hex MD5 of the
// body. Multipart uploads report "<md5-of-part-md5s>-<parts>", which can
// only be reproduced locally when the part size is known.
type Digest struct {
	ETag     string
	PartSize int64
}

// NewDigest normalizes a raw ETag (surrounding quotes are dropped).
func NewDigest(etag string) Digest {
	return Digest{ETag: strings.Trim(etag, "\"")}
}

// String returns the normalized ETag.
func (d Digest) String() string {
	return d.ETag
}

// Parts returns the part count of a multipart ETag, or 0 for a plain MD5.
func (d Digest) Parts() int {
	idx := strings.LastIndex(d.ETag, "-")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(d.ETag[idx+1:])
	if err != nil || n < 1 {
		return 0
	}
	return n
}

// IsMultipart reports whether the digest is a multipart ETag.
func (d Digest) IsMultipart() bool {
	return d.Parts() > 0
}

// Matches computes the digest of the local file at path and compares it to d.
func (d Digest) Matches(fs afero.Fs, path string) (bool, error) {
	if d.ETag == "" {
		return false, fmt.Errorf("empty digest for %s", path)
	}

	if !d.IsMultipart() {
		sum, err := ComputeFileMD5(fs, path)
		if err != nil {
			return false, err
		}
		return strings.EqualFold(sum, d.ETag), nil
	}

	if d.PartSize <= 0 {
		return false, fmt.Errorf("multipart digest %s has no part size", d.ETag)
	}
	sum, err := ComputeMultipartETag(fs, path, d.PartSize)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(sum, d.ETag), nil
}

// ComputeFileMD5 returns the hex MD5 of the file at path.
func ComputeFileMD5(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// ComputeMultipartETag reproduces the ETag S3 assigns to an object uploaded
// in parts of partSize bytes.
func ComputeMultipartETag(fs afero.Fs, path string, partSize int64) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var (
		sums  []byte
		parts int
	)
	for {
		hash := md5.New()
		n, err := io.CopyN(hash, f, partSize)
		if n > 0 {
			sums = append(sums, hash.Sum(nil)...)
			parts++
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to hash %s: %w", path, err)
		}
	}
	if parts == 0 {
		// zero-length object: a single empty part
		empty := md5.Sum(nil)
		sums = empty[:]
		parts = 1
	}

	total := md5.Sum(sums)
	return fmt.Sprintf("%s-%d", hex.EncodeToString(total[:]), parts), nil
}
