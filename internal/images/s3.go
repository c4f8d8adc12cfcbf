package images

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures the object storage backend.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // custom endpoint, e.g. MinIO; enables path-style addressing
	AccessKey string
	SecretKey string
	PublicURL string // base URL objects are publicly served from
	Prefix    string // key prefix inside the bucket
}

// s3API is the subset of *s3.Client the backend uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Backend stores images in an S3-compatible bucket. The bucket is treated as an
// externally-owned media host, so deletes are best-effort.
type S3Backend struct {
	client s3API
	cfg    S3Config
	base   string
}

var _ Backend = (*S3Backend)(nil)

// NewS3Backend builds an S3 client from cfg. Static credentials are used when given,
// otherwise the default AWS credential chain applies.
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Backend(client, cfg), nil
}

func newS3Backend(client s3API, cfg S3Config) *S3Backend {
	return &S3Backend{client: client, cfg: cfg, base: publicBase(cfg)}
}

// publicBase is the URL prefix objects are reachable at, without a trailing slash.
func publicBase(cfg S3Config) string {
	switch {
	case cfg.PublicURL != "":
		return strings.TrimRight(cfg.PublicURL, "/")
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}

func (b *S3Backend) objectKey(key string) string {
	prefix := strings.Trim(b.cfg.Prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// Put uploads data and returns the object's public URL as the reference.
func (b *S3Backend) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	objectKey := b.objectKey(key)
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.cfg.Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", objectKey, err)
	}
	return b.base + "/" + objectKey, nil
}

// Delete removes the object a reference points at.
func (b *S3Backend) Delete(ctx context.Context, ref string) error {
	key, ok := strings.CutPrefix(ref, b.base+"/")
	if !ok || key == "" {
		return fmt.Errorf("reference %q does not belong to bucket %s", ref, b.cfg.Bucket)
	}

	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// URL returns ref unchanged; references are already public URLs.
func (b *S3Backend) URL(ref string) string {
	return ref
}

// Owned is false: the bucket is an external media host.
func (b *S3Backend) Owned() bool {
	return false
}
