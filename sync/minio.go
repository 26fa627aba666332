package sync

import (
	"context"
	"errors"
	"io"
	"iter"
	"net/http"

	"github.com/minio/minio-go/v7"
)

// MinioSource reads objects from an S3-compatible bucket through minio-go.
type MinioSource struct {
	client *minio.Client
	bucket string
}

// NewMinioSource creates a new MinioSource.
func NewMinioSource(client *minio.Client, bucket string) *MinioSource {
	return &MinioSource{client: client, bucket: bucket}
}

func (s *MinioSource) Bucket() string {
	return s.bucket
}

func (s *MinioSource) List(ctx context.Context, prefix string) iter.Seq2[Object, error] {
	return func(yield func(Object, error) bool) {
		// The channel is drained by the client goroutine only while ctx is live.
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		}) {
			if obj.Err != nil {
				yield(Object{}, newError("list", s.bucket, prefix, obj.Err))
				return
			}
			o := Object{
				Key:          obj.Key,
				Size:         obj.Size,
				LastModified: obj.LastModified,
			}
			if !yield(o, nil) {
				return
			}
		}
	}
}

func (s *MinioSource) Download(ctx context.Context, key string, w io.WriterAt) (int64, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return 0, newError("download", s.bucket, key, err)
	}
	defer obj.Close()

	n, err := io.Copy(io.NewOffsetWriter(w, 0), obj)
	if err != nil {
		return n, newError("download", s.bucket, key, err)
	}
	return n, nil
}

func classifyMinio(err error) error {
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		return nil
	}
	switch resp.StatusCode {
	case http.StatusForbidden, http.StatusUnauthorized:
		return ErrAccessDenied
	}
	if kind := classifyCode(resp.Code); kind != nil {
		return kind
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrObjectNotFound
	}
	return nil
}
