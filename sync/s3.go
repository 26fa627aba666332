package sync

import (
	"context"
	"io"
	"iter"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of *s3.Client used by S3Source.
type S3API interface {
	s3.ListObjectsV2APIClient
	manager.DownloadAPIClient
}

// S3Source reads objects from an S3 bucket.
type S3Source struct {
	client     S3API
	downloader *manager.Downloader
	bucket     string
}

// NewS3Source creates a new S3Source. Downloads are issued one part at a time.
func NewS3Source(client S3API, bucket string) *S3Source {
	return &S3Source{
		client: client,
		downloader: manager.NewDownloader(client, func(d *manager.Downloader) {
			d.Concurrency = 1
		}),
		bucket: bucket,
	}
}

func (s *S3Source) Bucket() string {
	return s.bucket
}

func (s *S3Source) List(ctx context.Context, prefix string) iter.Seq2[Object, error] {
	return func(yield func(Object, error) bool) {
		paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(prefix),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(Object{}, newError("list", s.bucket, prefix, err))
				return
			}
			for _, obj := range page.Contents {
				o := Object{
					Key:          aws.ToString(obj.Key),
					Size:         aws.ToInt64(obj.Size),
					LastModified: aws.ToTime(obj.LastModified),
				}
				if !yield(o, nil) {
					return
				}
			}
		}
	}
}

func (s *S3Source) Download(ctx context.Context, key string, w io.WriterAt) (int64, error) {
	n, err := s.downloader.Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return n, newError("download", s.bucket, key, err)
	}
	return n, nil
}
