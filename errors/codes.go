// Package errors provides the structured error type shared by the ephemeral
// environment tooling. Errors carry a code that lets callers tell a resource
// that is simply absent apart from a failure that must abort the operation.
package errors

// ErrorCode classifies an Error. Codes are strings so they read well in logs
// and JSON.
type ErrorCode string

// Lookup and state.
const (
	CodeNotFound ErrorCode = "NOT_FOUND"
	// CodeConflict is returned while another run holds the environment lock.
	CodeConflict ErrorCode = "CONFLICT"
)

// Caller mistakes, fixed by changing the request or the configuration.
const (
	CodeInvalidInput  ErrorCode = "INVALID_INPUT"
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"
	CodeSchemaFailed  ErrorCode = "SCHEMA_VALIDATION_FAILED"
)

// Failures of a cloud call, an external command or a build.
const (
	CodeExecutionFailed ErrorCode = "EXECUTION_FAILED"
	CodeBuildFailed     ErrorCode = "BUILD_FAILED"
	CodeTimeout         ErrorCode = "TIMEOUT"
	CodeRateLimit       ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeUnavailable     ErrorCode = "SERVICE_UNAVAILABLE"
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
	CodeUnknown         ErrorCode = "UNKNOWN"
)

func (c ErrorCode) String() string {
	return string(c)
}

// Retryable reports whether an operation that failed with this code may
// succeed if attempted again without changes.
func (c ErrorCode) Retryable() bool {
	switch c {
	case CodeTimeout, CodeRateLimit, CodeUnavailable, CodeConflict:
		return true
	default:
		return false
	}
}
