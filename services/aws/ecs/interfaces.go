// Package ecs wraps the ECS API calls used to locate and remove environment
// services on a shared cluster.
package ecs

import (
	"context"

	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
)

// ServiceAPI defines the subset of the ECS client used by Client.
type ServiceAPI interface {
	ListClusters(
		ctx context.Context,
		params *awsecs.ListClustersInput,
		optFns ...func(*awsecs.Options),
	) (*awsecs.ListClustersOutput, error)

	DescribeClusters(
		ctx context.Context,
		params *awsecs.DescribeClustersInput,
		optFns ...func(*awsecs.Options),
	) (*awsecs.DescribeClustersOutput, error)

	ListServices(
		ctx context.Context,
		params *awsecs.ListServicesInput,
		optFns ...func(*awsecs.Options),
	) (*awsecs.ListServicesOutput, error)

	// DescribeServices accepts at most 10 services per call.
	DescribeServices(
		ctx context.Context,
		params *awsecs.DescribeServicesInput,
		optFns ...func(*awsecs.Options),
	) (*awsecs.DescribeServicesOutput, error)

	UpdateService(
		ctx context.Context,
		params *awsecs.UpdateServiceInput,
		optFns ...func(*awsecs.Options),
	) (*awsecs.UpdateServiceOutput, error)

	DeleteService(
		ctx context.Context,
		params *awsecs.DeleteServiceInput,
		optFns ...func(*awsecs.Options),
	) (*awsecs.DeleteServiceOutput, error)
}

var _ ServiceAPI = (*awsecs.Client)(nil)
