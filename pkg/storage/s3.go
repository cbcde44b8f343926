package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	archiveopts "github.com/kart-io/medreport/pkg/options/archive"
)

// objectPutter is the subset of the S3 client used by S3Archive.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive stores objects in an S3 compatible bucket.
type S3Archive struct {
	client objectPutter
	bucket string
}

var _ Archive = (*S3Archive)(nil)

// NewS3Archive loads the AWS configuration. Static credentials are used when
// both keys are configured, the default credential chain otherwise.
func NewS3Archive(ctx context.Context, opts *archiveopts.Options) (*S3Archive, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.S3Region)}
	if opts.S3AccessKey != "" && opts.S3SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.S3AccessKey, opts.S3SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.S3Endpoint)
		}
		o.UsePathStyle = opts.S3PathStyle
	})

	return &S3Archive{client: client, bucket: opts.S3Bucket}, nil
}

// Put uploads data with PutObject. Same key means same bytes, so an existing
// object is simply overwritten.
func (a *S3Archive) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/pdf"
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}

func (a *S3Archive) Name() string { return "s3" }
