package objectstore

import (
	"context"
	"errors"
	"fmt"

	"donation-payments/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// deleteAPI is the slice of the S3 client the store calls.
type deleteAPI interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store implements ports.ObjectStore for donation images kept in an S3 bucket.
type S3Store struct {
	client deleteAPI
	bucket string
	log    zerolog.Logger
}

// NewS3Store loads AWS credentials from the default chain and builds a bucket-scoped store.
// A non-empty endpoint targets an S3-compatible server with path-style addressing.
func NewS3Store(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (*S3Store, error) {
	if !cfg.Enabled() {
		return nil, errors.New("storage bucket is not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	log.Info().
		Str("bucket", cfg.Bucket).
		Str("region", cfg.Region).
		Msg("S3 object store configured")

	return newS3Store(client, cfg.Bucket, log), nil
}

func newS3Store(client deleteAPI, bucket string, log zerolog.Logger) *S3Store {
	return &S3Store{client: client, bucket: bucket, log: log}
}

// Delete removes an object. Deleting a missing key succeeds.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	s.log.Debug().Str("key", key).Msg("object deleted")
	return nil
}
