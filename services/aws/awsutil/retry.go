package awsutil

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/smithy-go"
)

// Retry defaults. Teardown runs list/describe calls in tight loops, so
// throttling is the expected failure mode.
const (
	DefaultMaxAttempts = 10
	DefaultBaseDelay   = 100 * time.Millisecond
	DefaultMaxDelay    = 30 * time.Second
)

// throttleCodes are error codes returned by ELBv2, ECS, Route 53, CodeBuild,
// SQS and DynamoDB when a caller exceeds its request rate.
var throttleCodes = map[string]bool{
	"Throttling":                             true,
	"ThrottlingException":                    true,
	"ThrottledException":                     true,
	"RequestLimitExceeded":                   true,
	"TooManyRequestsException":               true,
	"ProvisionedThroughputExceededException": true,
	"PriorRequestNotComplete":                true,
	"RequestThrottled":                       true,
}

// permanentCodes are never retried.
var permanentCodes = map[string]bool{
	"AccessDeniedException":     true,
	"AccessDenied":              true,
	"UnauthorizedOperation":     true,
	"InvalidParameterException": true,
	"ValidationException":       true,
	"ValidationError":           true,
}

// CustomRetryer implements aws.Retryer with exponential backoff and jitter,
// retrying only throttling errors.
//
// Thread Safety: This struct is thread-safe for concurrent use. All fields are
// immutable after creation.
type CustomRetryer struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

var _ aws.Retryer = (*CustomRetryer)(nil)

// NewRetryer returns a retryer with the given limits. Non-positive values
// fall back to the package defaults.
func NewRetryer(maxAttempts int, baseDelay, maxDelay time.Duration) *CustomRetryer {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	return &CustomRetryer{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}
}

// DefaultRetryer returns a retryer with the package defaults.
func DefaultRetryer() *CustomRetryer {
	return NewRetryer(DefaultMaxAttempts, DefaultBaseDelay, DefaultMaxDelay)
}

// MaxAttempts returns the maximum number of attempts, including the first.
func (r *CustomRetryer) MaxAttempts() int {
	return r.maxAttempts
}

// RetryDelay returns baseDelay * 2^(attempt-1) with ±25% jitter, capped at maxDelay.
func (r *CustomRetryer) RetryDelay(attempt int, _ error) (time.Duration, error) {
	if attempt < 1 {
		attempt = 1
	}
	// computed in float64 so large attempts cap instead of overflowing
	raw := math.Pow(2, float64(attempt-1)) * float64(r.baseDelay)
	if raw >= float64(r.maxDelay) {
		return r.maxDelay, nil
	}
	delay := time.Duration(raw)

	jitterRange := int64(float64(delay) * 0.25)
	if jitterRange > 0 {
		//nolint:gosec // jitter does not need a cryptographic source
		delay += time.Duration(rand.Int63n(2*jitterRange) - jitterRange)
	}

	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	if delay < 0 {
		delay = 0
	}

	return delay, nil
}

// IsErrorRetryable reports whether err is a throttling error.
func (r *CustomRetryer) IsErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	return IsThrottle(err)
}

// GetRetryToken always grants a retry; the attempt cap bounds total work.
func (r *CustomRetryer) GetRetryToken(context.Context, error) (func(error) error, error) {
	return func(error) error { return nil }, nil
}

// GetInitialToken returns a no-op release function.
func (r *CustomRetryer) GetInitialToken() func(error) error {
	return func(error) error { return nil }
}

// IsThrottle reports whether err carries an AWS throttling error code.
func IsThrottle(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := apiErr.ErrorCode()
	if permanentCodes[code] {
		return false
	}
	return throttleCodes[code]
}
