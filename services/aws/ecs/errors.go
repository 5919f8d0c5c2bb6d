package ecs

import "errors"

// AWS error code constants
const (
	ClusterNotFoundException = "ClusterNotFoundException"
	ServiceNotFoundException = "ServiceNotFoundException"
	ServiceNotActive         = "ServiceNotActiveException"
	AccessDeniedException    = "AccessDeniedException"
)

var (
	// ErrClusterNotFound is returned when no cluster has the requested name.
	ErrClusterNotFound = errors.New("cluster not found")

	// ErrServiceNotFound is returned when a service is missing or already inactive.
	ErrServiceNotFound = errors.New("service not found")

	// ErrAccessDenied is returned when credentials lack the ecs permission.
	ErrAccessDenied = errors.New("access denied to ecs resource")
)

func sentinelFor(code string) error {
	switch code {
	case ClusterNotFoundException:
		return ErrClusterNotFound
	case ServiceNotFoundException, ServiceNotActive:
		return ErrServiceNotFound
	case AccessDeniedException:
		return ErrAccessDenied
	default:
		return nil
	}
}
