package s3

import (
	"fmt"
	"strings"
)

// BuildURI constructs an S3 URI from bucket and key
func BuildURI(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}

// KeyFromURI strips the "s3://<bucket>/" prefix from uri. Plain keys are
// returned unchanged.
func KeyFromURI(bucket, uri string) string {
	return strings.TrimPrefix(uri, "s3://"+bucket+"/")
}

// normalizeKey ensures the key doesn't start with a slash
func normalizeKey(key string) string {
	return strings.TrimPrefix(key, "/")
}

// isValidBucketName checks if a bucket name is valid for S3
func isValidBucketName(bucket string) bool {
	if len(bucket) < 3 || len(bucket) > 63 {
		return false
	}

	// Must start and end with lowercase letter or number
	if !isAlphanumeric(bucket[0]) || !isAlphanumeric(bucket[len(bucket)-1]) {
		return false
	}

	for _, ch := range bucket {
		if !isAlphanumeric(byte(ch)) && ch != '-' && ch != '.' {
			return false
		}
	}

	return !strings.Contains(bucket, "..")
}

func isAlphanumeric(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9')
}
