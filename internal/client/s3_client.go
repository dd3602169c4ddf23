package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cenkalti/backoff/v4"

	"github.com/clearwave/api/internal/config"
)

// ErrObjectNotFound distinguishes a missing key from an unreachable store;
// callers decide which is fatal.
var ErrObjectNotFound = errors.New("object not found")

// StorageClient is the narrow blob contract the processing pipeline consumes.
// Keys follow the {owner}/{filename} convention.
type StorageClient interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key, destPath string) error
	Get(ctx context.Context, key string, offset, length int64) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// Object is one opened blob. ContentLength and ContentRange mirror the store's
// response headers so ranged reads can be served with correct range metadata.
type Object struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentRange  string
}

// S3Client implements StorageClient against any S3-compatible store (MinIO in
// development, R2/S3 in production).
type S3Client struct {
	s3Client *s3.Client
	bucket   string
}

// NewS3Client builds a storage client from config. A custom endpoint switches
// to path-style addressing for MinIO compatibility.
func NewS3Client(cfg *config.StorageConfig) (*S3Client, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("storage configuration incomplete")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: cfg.Endpoint}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Client{
		s3Client: s3Client,
		bucket:   cfg.Bucket,
	}, nil
}

// Upload stores a blob and returns its key.
func (c *S3Client) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return key, nil
}

// Get opens a blob for reading. offset/length request a byte range; length <= 0
// reads from offset to the end, and offset 0 with length <= 0 reads the whole
// object. Transient store errors are retried with exponential backoff; a
// missing key is not.
func (c *S3Client) Get(ctx context.Context, key string, offset, length int64) (*Object, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}
	if spec := rangeSpec(offset, length); spec != "" {
		input.Range = aws.String(spec)
	}

	var obj *Object
	op := func() error {
		out, err := c.s3Client.GetObject(ctx, input)
		if err != nil {
			var noKey *types.NoSuchKey
			if errors.As(err, &noKey) {
				return backoff.Permanent(fmt.Errorf("%w: %s", ErrObjectNotFound, key))
			}
			return err
		}
		obj = &Object{
			Body:          out.Body,
			ContentLength: aws.ToInt64(out.ContentLength),
			ContentRange:  aws.ToString(out.ContentRange),
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return obj, nil
}

// rangeSpec renders an HTTP Range header value. A negative offset selects the
// last -offset bytes; length <= 0 reads from offset to the end; both zero means
// the whole object (empty spec).
func rangeSpec(offset, length int64) string {
	switch {
	case offset < 0:
		return fmt.Sprintf("bytes=%d", offset)
	case length > 0:
		return fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
	case offset > 0:
		return fmt.Sprintf("bytes=%d-", offset)
	}
	return ""
}

// Download fetches a whole blob to a local file.
func (c *S3Client) Download(ctx context.Context, key, destPath string) error {
	obj, err := c.Get(ctx, key, 0, 0)
	if err != nil {
		return err
	}
	body := obj.Body
	defer body.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	return nil
}

// Delete removes a blob.
func (c *S3Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

var _ StorageClient = (*S3Client)(nil)
