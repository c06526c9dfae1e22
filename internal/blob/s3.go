package blob

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/snapkeeper/snapkeeper/internal/common"
)

// Indirections for tests.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// S3Options configures access to an S3-compatible backend (AWS or MinIO).
type S3Options struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string

	// PresignExpiry bounds the lifetime of locators returned by Resolve.
	PresignExpiry time.Duration
}

// S3Store stores blobs in an S3-compatible bucket. Resolve returns a
// presigned GET URL rather than a raw object path.
type S3Store struct {
	opts    S3Options
	client  *s3.Client
	presign *s3.PresignClient
}

func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.PresignExpiry <= 0 {
		opts.PresignExpiry = 15 * time.Minute
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("%w: loading aws config: %v", common.ErrStorage, err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
		o.UsePathStyle = true // MINIO-style addressing
	})

	return &S3Store{
		opts:    opts,
		client:  client,
		presign: s3.NewPresignClient(client),
	}, nil
}

func (s *S3Store) Put(ctx context.Context, sourcePath string, key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("%w: opening source %q: %v", common.ErrStorage, sourcePath, err)
	}
	defer f.Close()

	_, err = putObject(s.client, ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("%w: uploading %q: %v", common.ErrStorage, key, err)
	}

	return fmt.Sprintf("s3://%s/%s", s.opts.Bucket, key), nil
}

func (s *S3Store) Resolve(ctx context.Context, key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}

	req, err := presignGetObject(s.presign, ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.opts.PresignExpiry))
	if err != nil {
		return "", fmt.Errorf("%w: presigning %q: %v", common.ErrStorage, key, err)
	}

	return req.URL, nil
}
