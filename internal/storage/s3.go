package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader is the part of *manager.Uploader the S3 store uses.
type Uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3 uploads images to a bucket and returns their object URL.
type S3 struct {
	uploader Uploader
	bucket   string
	prefix   string
}

// NewS3 builds an uploader from the default AWS credential chain.
func NewS3(ctx context.Context, bucket, prefix string) (*S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3WithUploader(manager.NewUploader(s3.NewFromConfig(cfg)), bucket, prefix), nil
}

func NewS3WithUploader(u Uploader, bucket, prefix string) *S3 {
	return &S3{uploader: u, bucket: bucket, prefix: prefix}
}

func (s *S3) Save(ctx context.Context, r io.Reader) (string, error) {
	data, err := Normalize(r)
	if err != nil {
		return "", err
	}
	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.prefix + newName()),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload: %w", err)
	}
	return out.Location, nil
}
