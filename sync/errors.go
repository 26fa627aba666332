package sync

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/aws/smithy-go"
)

var (
	ErrAccessDenied   = errors.New("access denied")
	ErrBucketNotFound = errors.New("bucket not found")
	ErrObjectNotFound = errors.New("object not found")
	ErrConnection     = errors.New("connection error")
)

// Error is a storage operation failure.
type Error struct {
	Op     string // "list" or "download"
	Bucket string
	Key    string // object key or listing prefix
	Err    error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Bucket, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the sentinel the underlying error was classified as.
func (e *Error) Is(target error) bool {
	kind := classify(e.Err)
	return kind != nil && kind == target
}

func newError(op, bucket, key string, err error) *Error {
	return &Error{Op: op, Bucket: bucket, Key: key, Err: err}
}

// classify maps a transport or S3 API error onto one of the package sentinels.
// It returns nil for errors it does not recognise.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	for _, s := range []error{ErrAccessDenied, ErrBucketNotFound, ErrObjectNotFound, ErrConnection} {
		if errors.Is(err, s) {
			return s
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrConnection
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return classifyCode(apiErr.ErrorCode())
	}
	return classifyMinio(err)
}

func classifyCode(code string) error {
	switch code {
	case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
		return ErrAccessDenied
	case "NoSuchBucket":
		return ErrBucketNotFound
	case "NoSuchKey", "NotFound":
		return ErrObjectNotFound
	case "RequestTimeout", "ServiceUnavailable", "SlowDown":
		return ErrConnection
	}
	return nil
}
