package downloader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type S3Source struct {
	Client S3API
}

func NewS3Source(ctx context.Context, profile string) (*S3Source, error) {
	opts := []func(*config.LoadOptions) error{config.WithRetryMode(aws.RetryModeAdaptive)}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %v", err)
	}
	return &S3Source{Client: s3.NewFromConfig(cfg)}, nil
}

func (s *S3Source) Open(ctx context.Context, link string) (*Stream, error) {
	bucket, key, err := ParseS3URL(link)
	if err != nil {
		return nil, err
	}
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var respErr *awshttp.ResponseError
		if errors.As(err, &respErr) {
			return nil, fmt.Errorf("%w: unexpected status code %d for s3://%s/%s", ErrStatus, respErr.HTTPStatusCode(), bucket, key)
		}
		return nil, fmt.Errorf("%w: error getting object: %w", ErrTransport, err)
	}
	size := int64(-1)
	if out.ContentLength != nil && *out.ContentLength >= 0 {
		size = *out.ContentLength
	}
	return &Stream{Body: out.Body, Size: size}, nil
}

func ParseS3URL(link string) (string, string, error) {
	if !strings.HasPrefix(link, "s3://") {
		return "", "", fmt.Errorf("invalid S3 URL format: %s", link)
	}
	parts := strings.SplitN(strings.TrimPrefix(link, "s3://"), "/", 2)
	if parts[0] == "" || len(parts) < 2 || parts[1] == "" || strings.HasSuffix(parts[1], "/") {
		return "", "", fmt.Errorf("invalid S3 URL format: %s", link)
	}
	return parts[0], parts[1], nil
}
