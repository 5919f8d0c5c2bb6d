package s3

import "errors"

// AWS error code constants
const (
	NoSuchKey    = "NoSuchKey"
	NoSuchBucket = "NoSuchBucket"
	AccessDenied = "AccessDenied"
)

var (
	// ErrObjectNotFound is returned when the bucket or key does not exist.
	ErrObjectNotFound = errors.New("object not found")

	// ErrAccessDenied is returned when the credentials cannot read the object.
	ErrAccessDenied = errors.New("access denied to object")

	// ErrInvalidURL is returned by ParseURL for anything but s3://bucket/key.
	ErrInvalidURL = errors.New("invalid s3 url")
)
