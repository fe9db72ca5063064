package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"
)

// DefaultContentType is used when content type detection fails.
const DefaultContentType = "application/octet-stream"

// S3Gateway is the production Gateway backed by an S3 bucket.
type S3Gateway struct {
	client *s3.Client
	bucket string
}

// NewS3Gateway loads the default AWS credential chain and returns a
// gateway bound to bucket. Region overrides the environment when set.
func NewS3Gateway(ctx context.Context, bucket, region string) (*S3Gateway, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, &Error{Op: "init", Err: err}
	}
	return &S3Gateway{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// NewS3GatewayFromClient wraps an existing client; used by tests.
func NewS3GatewayFromClient(client *s3.Client, bucket string) *S3Gateway {
	return &S3Gateway{client: client, bucket: bucket}
}

func (g *S3Gateway) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, g.wrap("get", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, g.wrap("get", key, err)
	}
	return data, nil
}

func (g *S3Gateway) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = DetectContentType(key, data)
	}
	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return g.wrap("put", key, err)
	}
	return nil
}

func (g *S3Gateway) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		wrapped := g.wrap("exists", key, err)
		if errors.Is(wrapped, ErrNotFound) {
			return false, nil
		}
		return false, wrapped
	}
	return true, nil
}

// wrap maps SDK failures onto the gateway's error kinds.
func (g *S3Gateway) wrap(op, key string, err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	switch {
	case errors.As(err, &noSuchKey), errors.As(err, &notFound):
		err = ErrNotFound
	case errors.Is(err, context.DeadlineExceeded):
		err = ErrTimeout
	}
	return &Error{Op: op, Key: key, Err: err}
}

// DetectContentType resolves a content type for key, preferring the key
// extension and falling back to content sniffing.
func DetectContentType(key string, data []byte) string {
	switch ext := filepath.Ext(key); ext {
	case ".npy", ".npz":
		return DefaultContentType
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	default:
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	if mt := mimetype.Detect(data); mt != nil {
		return mt.String()
	}
	return DefaultContentType
}
