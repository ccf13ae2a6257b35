package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPresigner struct {
	bucket  string
	key     string
	expires time.Duration
	calls   int
	err     error
}

func (p *recordingPresigner) PresignGetObject(_ context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	p.bucket = *params.Bucket
	p.key = *params.Key
	p.expires = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://storage.example.com/" + p.bucket + "/" + p.key + "?X-Amz-Signature=abc"}, nil
}

func TestSignAvatarPresignsStoredObjects(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		key  string
	}{
		{name: "bare key", ref: "user-1/avatar.png", key: "user-1/avatar.png"},
		{name: "bucket prefixed", ref: "avatars/user-1/avatar.png", key: "user-1/avatar.png"},
		{name: "leading slash", ref: "/avatars/user-1/avatar.png", key: "user-1/avatar.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &recordingPresigner{}
			s := NewAvatarSigner(p, "avatars", 15*time.Minute)

			url, err := s.SignAvatar(context.Background(), tt.ref)
			require.NoError(t, err)
			assert.Equal(t, "avatars", p.bucket)
			assert.Equal(t, tt.key, p.key)
			assert.Equal(t, 15*time.Minute, p.expires)
			assert.Contains(t, url, "X-Amz-Signature")
		})
	}
}

func TestSignAvatarPassesThroughAbsoluteURLs(t *testing.T) {
	p := &recordingPresigner{}
	s := NewAvatarSigner(p, "avatars", time.Minute)

	for _, ref := range []string{"", "https://lh3.googleusercontent.com/a/photo.jpg", "http://example.com/a.png"} {
		got, err := s.SignAvatar(context.Background(), ref)
		require.NoError(t, err)
		assert.Equal(t, ref, got)
	}
	assert.Zero(t, p.calls)
}

func TestSignAvatarWrapsPresignErrors(t *testing.T) {
	cause := errors.New("no credentials")
	s := NewAvatarSigner(&recordingPresigner{err: cause}, "avatars", time.Minute)

	_, err := s.SignAvatar(context.Background(), "user-1/avatar.png")
	assert.ErrorIs(t, err, cause)
}

func TestRemoveDisableGzip(t *testing.T) {
	noop := awsmiddleware.FinalizeMiddlewareFunc(disableGzipMiddleware, func(ctx context.Context, in awsmiddleware.FinalizeInput, next awsmiddleware.FinalizeHandler) (awsmiddleware.FinalizeOutput, awsmiddleware.Metadata, error) {
		return next.HandleFinalize(ctx, in)
	})

	stack := awsmiddleware.NewStack("test", smithyhttp.NewStackRequest)
	require.NoError(t, stack.Finalize.Add(noop, awsmiddleware.After))
	require.NoError(t, removeDisableGzip()(stack))
	_, ok := stack.Finalize.Get(disableGzipMiddleware)
	assert.False(t, ok)

	// A stack without the middleware is left alone.
	require.NoError(t, removeDisableGzip()(awsmiddleware.NewStack("empty", smithyhttp.NewStackRequest)))
}
