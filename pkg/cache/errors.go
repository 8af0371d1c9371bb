package cache

import "errors"

// ErrNotRegularFile is returned when the cache path exists but is a
// directory or other non-regular file.
var ErrNotRegularFile = errors.New("cache: path exists but is not a regular file")
