package sync

import (
	"context"
	"io"
	"iter"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Object describes a remote object.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Name returns the final path segment of the key, used as the local filename.
func (o Object) Name() string {
	return path.Base(o.Key)
}

// IsDir reports whether the key is a directory marker.
func (o Object) IsDir() bool {
	return strings.HasSuffix(o.Key, "/")
}

// skip reports whether the object has no usable local filename: directory
// markers and keys whose last segment is "." or "..".
func (o Object) skip() bool {
	if o.IsDir() {
		return true
	}
	name := o.Name()
	return name == "." || !filepath.IsLocal(name)
}

// Source is a read-only view of a bucket.
type Source interface {
	// List yields every object whose key starts with prefix, in key order,
	// fetching further pages lazily. Iteration stops after the first error.
	List(ctx context.Context, prefix string) iter.Seq2[Object, error]
	// Download writes the object at key into w and returns the bytes written.
	Download(ctx context.Context, key string, w io.WriterAt) (int64, error)
	// Bucket names the bucket this source reads from.
	Bucket() string
}
