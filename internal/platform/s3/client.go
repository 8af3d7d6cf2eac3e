package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/imamik/podstrap/internal/config"
)

// API is the part of the S3 client the archiver uses.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client uploads execution logs to one bucket.
type Client struct {
	api    API
	bucket string
	prefix string
}

// NewClient creates a client for the archive configuration.
func NewClient(ctx context.Context, archive config.Archive) (*Client, error) {
	if archive.Bucket == "" {
		return nil, errors.New("archive bucket is not set")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(archive.Region)}
	if archive.AccessKey != "" && archive.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(archive.AccessKey, archive.SecretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	api := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if archive.Endpoint != "" {
			o.BaseEndpoint = aws.String(archive.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithAPI(api, archive.Bucket, archive.Prefix), nil
}

// NewWithAPI creates a client over an existing S3 API.
func NewWithAPI(api API, bucket, prefix string) *Client {
	return &Client{api: api, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key for a run: <prefix>/<hostname>/<run-id>.log.
func (c *Client) Key(hostname, runID string) string {
	return path.Join(c.prefix, sanitize(hostname), runID+".log")
}

// UploadLog uploads the log file at logPath and returns the object key.
func (c *Client) UploadLog(ctx context.Context, hostname, runID, logPath string) (string, error) {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to read log: %w", err)
	}
	key := c.Key(hostname, runID)
	if err := c.PutObject(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

// PutObject uploads data under key.
func (c *Client) PutObject(ctx context.Context, key string, data []byte) error {
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		if isNoSuchBucket(err) {
			return fmt.Errorf("bucket %s does not exist: %w", c.bucket, err)
		}
		return fmt.Errorf("failed to put object %s in bucket %s: %w", key, c.bucket, err)
	}
	return nil
}

// isNoSuchBucket checks typed errors first, then the API error code for
// S3-compatible services that do not return the SDK types.
func isNoSuchBucket(err error) bool {
	if err == nil {
		return false
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NoSuchBucket"
	}
	return false
}

func sanitize(hostname string) string {
	hostname = strings.TrimSpace(hostname)
	if hostname == "" {
		return "unknown"
	}
	return strings.NewReplacer("/", "_", "@", "_", ":", "_").Replace(hostname)
}
