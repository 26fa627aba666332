package sync

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves ListObjectsV2 in fixed-size pages and GetObject from memory.
type fakeS3 struct {
	objects  map[string]string
	keys     []string // sorted
	pageSize int
	listErr  error
	getErr   error

	listInputs []*s3.ListObjectsV2Input
}

func newFakeS3(pageSize int, keys ...string) *fakeS3 {
	f := &fakeS3{objects: make(map[string]string), keys: keys, pageSize: pageSize}
	for _, k := range keys {
		f.objects[k] = "body:" + k
	}
	return f
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.listInputs = append(f.listInputs, in)
	if f.listErr != nil {
		return nil, f.listErr
	}

	var matched []string
	for _, k := range f.keys {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			matched = append(matched, k)
		}
	}

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		for i, k := range matched {
			if k == tok {
				start = i
				break
			}
		}
	}
	end := min(start+f.pageSize, len(matched))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(matched))}
	for _, k := range matched[start:end] {
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(k),
			Size: aws.Int64(int64(len(f.objects[k]))),
		})
	}
	if end < len(matched) {
		out.NextContinuationToken = aws.String(matched[end])
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func collect(t *testing.T, src Source, prefix string) ([]string, error) {
	t.Helper()
	var keys []string
	for obj, err := range src.List(context.Background(), prefix) {
		if err != nil {
			return keys, err
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func TestS3Source_ListFollowsContinuationTokens(t *testing.T) {
	keys := []string{"p/2024/04/a.csv", "p/2024/04/b.csv", "p/2024/04/c.csv", "p/2024/04/d.csv", "p/2024/04/e.csv"}
	api := newFakeS3(2, keys...)
	src := NewS3Source(api, "flatfiles")

	got, err := collect(t, src, "p/2024/04/")
	require.NoError(t, err)
	assert.Equal(t, keys, got)
	require.Len(t, api.listInputs, 3)
	assert.Nil(t, api.listInputs[0].ContinuationToken)
	assert.Equal(t, "p/2024/04/c.csv", aws.ToString(api.listInputs[1].ContinuationToken))
	assert.Equal(t, "flatfiles", aws.ToString(api.listInputs[0].Bucket))
}

func TestS3Source_ListEmpty(t *testing.T) {
	src := NewS3Source(newFakeS3(10), "flatfiles")

	got, err := collect(t, src, "p/")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestS3Source_ListStopsEarly(t *testing.T) {
	api := newFakeS3(1, "p/a", "p/b", "p/c")
	src := NewS3Source(api, "flatfiles")

	for obj, err := range src.List(context.Background(), "p/") {
		require.NoError(t, err)
		assert.Equal(t, "p/a", obj.Key)
		break
	}
	assert.Len(t, api.listInputs, 1)
}

func TestS3Source_ListError(t *testing.T) {
	api := newFakeS3(10, "p/a")
	api.listErr = &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
	src := NewS3Source(api, "flatfiles")

	_, err := collect(t, src, "p/")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccessDenied)

	var serr *Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "list", serr.Op)
	assert.Equal(t, "p/", serr.Key)
}

func TestS3Source_Download(t *testing.T) {
	api := newFakeS3(10, "p/2024/04/a.csv")
	src := NewS3Source(api, "flatfiles")

	f, err := os.Create(filepath.Join(t.TempDir(), "a.csv"))
	require.NoError(t, err)
	defer f.Close()

	n, err := src.Download(context.Background(), "p/2024/04/a.csv", f)
	require.NoError(t, err)
	assert.Equal(t, int64(len("body:p/2024/04/a.csv")), n)

	got, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.True(t, bytes.Equal([]byte("body:p/2024/04/a.csv"), got))
}

func TestS3Source_DownloadError(t *testing.T) {
	api := newFakeS3(10, "p/a")
	api.getErr = &smithy.GenericAPIError{Code: "InvalidAccessKeyId", Message: "bad key"}
	src := NewS3Source(api, "flatfiles")

	f, err := os.Create(filepath.Join(t.TempDir(), "a"))
	require.NoError(t, err)
	defer f.Close()

	_, err = src.Download(context.Background(), "p/a", f)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Contains(t, err.Error(), "flatfiles/p/a")
}

func TestDownloadMissing_S3Source(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "old")
	src := NewS3Source(newFakeS3(1, "pfx/a.csv", "pfx/b.csv"), "flatfiles")

	res, err := DownloadMissing(context.Background(), Options{Dir: dir, Prefix: "pfx/", Src: src})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.csv"}, res.Downloaded)
	assert.Equal(t, 2, res.Listed)

	got, err := os.ReadFile(filepath.Join(dir, "b.csv"))
	require.NoError(t, err)
	assert.Equal(t, "body:pfx/b.csv", string(got))
}
