// Package s3 reads configuration objects from Amazon S3.
package s3

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/trussworks/ephemeral-env/services/aws/awsutil"
)

// Scheme prefixes an object URL.
const Scheme = "s3://"

// MaxObjectSize caps how much of an object GetObject reads.
const MaxObjectSize = 4 << 20

// Location names one object.
type Location struct {
	Bucket string
	Key    string
}

// String returns the s3:// URL of the object.
func (l Location) String() string {
	return Scheme + l.Bucket + "/" + l.Key
}

// IsURL reports whether s looks like an s3:// URL.
func IsURL(s string) bool {
	return strings.HasPrefix(s, Scheme)
}

// ParseURL splits s3://bucket/key.
func ParseURL(s string) (Location, error) {
	rest, ok := strings.CutPrefix(s, Scheme)
	if !ok {
		return Location{}, fmt.Errorf("%w: %q", ErrInvalidURL, s)
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return Location{}, fmt.Errorf("%w: %q", ErrInvalidURL, s)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// Client reads objects.
type Client struct {
	api         ObjectAPI
	logger      *slog.Logger
	callTimeout time.Duration
}

// New creates a Client around an existing API implementation.
func New(api ObjectAPI, opts ...awsutil.Option) *Client {
	o := awsutil.ApplyOptions(opts)
	return &Client{api: api, logger: o.Logger, callTimeout: o.CallTimeout}
}

// NewFromConfig creates a Client from an AWS config.
func NewFromConfig(cfg aws.Config, opts ...awsutil.Option) *Client {
	return New(awss3.NewFromConfig(cfg), opts...)
}

func (c *Client) handleError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if code, ok := awsutil.ErrorCode(err); ok {
		switch code {
		case NoSuchKey, NoSuchBucket:
			return fmt.Errorf("%s operation failed: %w: %w", operation, ErrObjectNotFound, err)
		case AccessDenied:
			return fmt.Errorf("%s operation failed: %w: %w", operation, ErrAccessDenied, err)
		}
	}
	return awsutil.OperationError(operation, err)
}

// GetObject returns the object's content. Objects larger than MaxObjectSize
// are rejected.
func (c *Client) GetObject(ctx context.Context, loc Location) ([]byte, error) {
	if loc.Bucket == "" || loc.Key == "" {
		return nil, fmt.Errorf("bucket and key cannot be empty")
	}

	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	out, err := c.api.GetObject(callCtx, &awss3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get object", "object", loc.String(), "error", err)
		return nil, c.handleError(err, "GetObject")
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, MaxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", loc, err)
	}
	if len(data) > MaxObjectSize {
		return nil, fmt.Errorf("object %s exceeds %d bytes", loc, MaxObjectSize)
	}

	c.logger.DebugContext(ctx, "read object", "object", loc.String(), "bytes", len(data))
	return data, nil
}
