// Package s3archive keeps an off-host copy of uploaded documents in S3.
package s3archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mewerton/universal-system/internal/core/ports"
)

var _ ports.DocumentArchive = (*Archive)(nil)

const uploadTimeout = 2 * time.Minute

type Config struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type Archive struct {
	uploader uploader
	bucket   string
	prefix   string
}

// New loads AWS configuration. Static credentials are used when both keys are set,
// otherwise the default provider chain applies.
func New(ctx context.Context, cfg Config) (*Archive, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("S3 bucket name not set")
	}
	if cfg.Region == "" {
		return nil, errors.New("AWS_REGION not set")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return newArchive(manager.NewUploader(client), cfg.Bucket, cfg.Prefix), nil
}

func newArchive(u uploader, bucket, prefix string) *Archive {
	return &Archive{uploader: u, bucket: bucket, prefix: prefix}
}

// Archive uploads data under prefix/key and returns its s3:// URI.
func (a *Archive) Archive(ctx context.Context, key string, data io.Reader, contentType string) (string, error) {
	objectKey := path.Join(a.prefix, key)
	if contentType == "" {
		contentType = "application/pdf"
	}

	ctxUpload, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	_, err := a.uploader.Upload(ctxUpload, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(objectKey),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, objectKey), nil
}
