// Package s3 implements remote.Session over an S3 compatible bucket.
// Buckets have no directories, so Mkcol is a no-op and a path "exists" when
// an object or any object below it is present.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/openmined/davsync/internal/remote"
)

// objectAPI is the subset of *s3.Client used by Session.
type objectAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type Session struct {
	api    objectAPI
	config *Config
}

var _ remote.Session = (*Session)(nil)

func New(ctx context.Context, cfg *Config, timeout time.Duration) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newSession(client, cfg), nil
}

func newSession(api objectAPI, cfg *Config) *Session {
	return &Session{api: api, config: cfg}
}

func (s *Session) Ping(ctx context.Context) error {
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &s.config.Bucket})
	if err != nil {
		return fmt.Errorf("s3: head bucket %q: %w", s.config.Bucket, err)
	}
	return nil
}

func (s *Session) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.Stat(ctx, path)
	switch {
	case err == nil:
		return true, nil
	case !errors.Is(err, remote.ErrNotFound):
		return false, err
	}

	// no object at the key, but a "directory" may exist below it
	prefix := s.config.key(remote.CleanPath(path)) + "/"
	out, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  &s.config.Bucket,
		Prefix:  &prefix,
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("s3: list %q: %w", prefix, err)
	}
	return len(out.Contents) > 0, nil
}

func (s *Session) Stat(ctx context.Context, path string) (*remote.FileInfo, error) {
	key := s.config.key(remote.CleanPath(path))
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.config.Bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, mapError("head", path, err)
	}

	return &remote.FileInfo{
		Path:         remote.CleanPath(path),
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified).UTC(),
	}, nil
}

func (s *Session) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	key := s.config.key(remote.CleanPath(path))
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.config.Bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, mapError("get", path, err)
	}
	return out.Body, nil
}

func (s *Session) Put(ctx context.Context, path string, body io.Reader, size int64) error {
	key := s.config.key(remote.CleanPath(path))
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.config.Bucket,
		Key:           &key,
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("s3: put %q: %w", path, err)
	}
	return nil
}

// Mkcol has nothing to create on a bucket.
func (s *Session) Mkcol(ctx context.Context, path string) error {
	return nil
}

func (s *Session) Close() error {
	return nil
}

func mapError(op, path string, err error) error {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return fmt.Errorf("s3: %s %q: %w", op, path, remote.ErrNotFound)
	}
	return fmt.Errorf("s3: %s %q: %w", op, path, err)
}
