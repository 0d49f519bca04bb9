// Package storage uploads user files to an S3-compatible bucket (Cloudflare R2
// in production, MinIO locally) and serves them from a public base URL.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Options configures an S3 store
type Options struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// PublicURL is the base URL objects are served from
	PublicURL string
}

// objectAPI is the part of *s3.Client the store uses
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 stores objects in a single bucket.
type S3 struct {
	client    objectAPI
	bucket    string
	publicURL string
}

// NewS3 builds a client with static credentials against opts.Endpoint.
func NewS3(ctx context.Context, opts Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, errors.New("bucket is required")
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = true
	})

	return newS3(client, opts.Bucket, opts.PublicURL), nil
}

func newS3(client objectAPI, bucket, publicURL string) *S3 {
	return &S3{client: client, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}
}

// PublicURL returns the base URL uploaded objects are served from
func (s *S3) PublicURL() string { return s.publicURL }

// Upload stores data under prefix and returns its public URL.
func (s *S3) Upload(ctx context.Context, data []byte, filename, contentType, prefix string) (string, error) {
	key := ObjectKey(prefix, filename)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.publicURL + "/" + key, nil
}

// Delete removes the object at key.
func (s *S3) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("empty object key")
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// ObjectKey builds a unique key for filename below prefix.
func ObjectKey(prefix, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" {
		name = "file"
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
	return strings.Trim(prefix, "/") + "/" + uuid.NewString() + "-" + name
}

// KeyFromURL returns the object key of url when it lives under publicURL,
// or "" otherwise.
func KeyFromURL(publicURL, url string) string {
	base := strings.TrimRight(publicURL, "/")
	if base == "" || !strings.HasPrefix(url, base+"/") {
		return ""
	}
	return strings.TrimPrefix(url, base+"/")
}
