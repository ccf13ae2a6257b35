// Package storage presigns avatar objects held in Supabase storage.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"admindash/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
)

const disableGzipMiddleware = "DisableAcceptEncodingGzip"

// Presigner is the subset of s3.PresignClient used to sign avatar reads.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// AvatarSigner turns stored avatar references into short-lived URLs.
type AvatarSigner struct {
	presigner Presigner
	bucket    string
	ttl       time.Duration
}

func NewAvatarSigner(presigner Presigner, bucket string, ttl time.Duration) *AvatarSigner {
	return &AvatarSigner{presigner: presigner, bucket: bucket, ttl: ttl}
}

// NewS3Client builds a path-style client for the S3-compatible storage endpoint.
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	s3Config, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	)
	if err != nil {
		return nil, fmt.Errorf("load S3 config: %w", err)
	}
	return s3.NewFromConfig(s3Config, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3URL)
		o.UsePathStyle = true
	}), nil
}

// SignAvatar returns a presigned GET URL for ref. Absolute URLs (OAuth provider
// avatars) and empty refs are returned unchanged.
func (s *AvatarSigner) SignAvatar(ctx context.Context, ref string) (string, error) {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	key := strings.TrimPrefix(strings.TrimPrefix(ref, "/"), s.bucket+"/")
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("presign avatar %s: %w", key, err)
	}
	return req.URL, nil
}

// removeDisableGzip is a workaround for S3 signature errors with some S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		// Presign requests build a stack without it.
		if _, ok := stack.Finalize.Get(disableGzipMiddleware); ok {
			_, err := stack.Finalize.Remove(disableGzipMiddleware)
			return err
		}
		return nil
	}
}
