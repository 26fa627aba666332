package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sandeepkandula/flatsync/config"
	"github.com/sandeepkandula/flatsync/sync"
)

var errNoEndpoint = errors.New("minio backend requires an endpoint")

// newSource builds the bucket client selected by cfg.Backend. Both backends
// resolve credentials from the shared profile named by cfg.Profile.
func newSource(ctx context.Context, cfg config.StorageConfig) (sync.Source, error) {
	if cfg.Backend == config.BackendMinio {
		src, err := newMinioSource(cfg)
		if err != nil {
			return nil, err
		}
		return src, nil
	}

	src, err := newS3Source(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return src, nil
}

func newS3Source(ctx context.Context, cfg config.StorageConfig) (*sync.S3Source, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, wrapSourceErr(cfg.Backend, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return sync.NewS3Source(client, cfg.Bucket), nil
}

func newMinioSource(cfg config.StorageConfig) (*sync.MinioSource, error) {
	if cfg.Endpoint == "" {
		return nil, wrapSourceErr(cfg.Backend, errNoEndpoint)
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, wrapSourceErr(cfg.Backend, err)
	}

	client, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewFileAWSCredentials("", cfg.Profile),
		Secure: u.Scheme == "https",
		Region: cfg.Region,
	})
	if err != nil {
		return nil, wrapSourceErr(cfg.Backend, err)
	}
	return sync.NewMinioSource(client, cfg.Bucket), nil
}

func wrapSourceErr(backend config.Backend, err error) error {
	return fmt.Errorf("%s client: %w", backend, err)
}
