package elbv2

import "errors"

// AWS error code constants
const (
	LoadBalancerNotFound     = "LoadBalancerNotFound"
	TargetGroupNotFound      = "TargetGroupNotFound"
	RuleNotFound             = "RuleNotFound"
	ListenerNotFound         = "ListenerNotFound"
	DuplicateTargetGroupName = "DuplicateTargetGroupName"
	PriorityInUse            = "PriorityInUse"
	ResourceInUse            = "ResourceInUse"
	AccessDenied             = "AccessDenied"
)

var (
	// ErrLoadBalancerNotFound is returned when the load balancer ARN does not resolve.
	ErrLoadBalancerNotFound = errors.New("load balancer not found")

	// ErrTargetGroupNotFound is returned when no target group has the requested name.
	ErrTargetGroupNotFound = errors.New("target group not found")

	// ErrRuleNotFound is returned when a rule ARN does not resolve.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrListenerNotFound is returned when the listener ARN does not resolve.
	ErrListenerNotFound = errors.New("listener not found")

	// ErrPriorityInUse is returned when a rule priority is already taken on the listener.
	ErrPriorityInUse = errors.New("rule priority in use")

	// ErrResourceInUse is returned when a target group is still referenced.
	ErrResourceInUse = errors.New("resource in use")

	// ErrAccessDenied is returned when credentials lack the elasticloadbalancing permission.
	ErrAccessDenied = errors.New("access denied to load balancer resource")
)

// sentinelFor maps an ELBv2 error code to a package sentinel.
func sentinelFor(code string) error {
	switch code {
	case LoadBalancerNotFound:
		return ErrLoadBalancerNotFound
	case TargetGroupNotFound:
		return ErrTargetGroupNotFound
	case RuleNotFound:
		return ErrRuleNotFound
	case ListenerNotFound:
		return ErrListenerNotFound
	case PriorityInUse:
		return ErrPriorityInUse
	case ResourceInUse:
		return ErrResourceInUse
	case AccessDenied:
		return ErrAccessDenied
	default:
		return nil
	}
}
