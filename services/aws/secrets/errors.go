package secrets

import "errors"

// AWS error code constants
const (
	ResourceNotFoundException = "ResourceNotFoundException"
	AccessDeniedException     = "AccessDeniedException"
)

var (
	// ErrSecretNotFound is returned when the secret id does not exist.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrSecretEmpty is returned when a secret exists but has no string value.
	ErrSecretEmpty = errors.New("secret value is empty")

	// ErrAccessDenied is returned when the credentials cannot read the secret.
	ErrAccessDenied = errors.New("access denied to secret")
)
