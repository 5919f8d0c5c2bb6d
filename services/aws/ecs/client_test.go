package ecs

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trussworks/ephemeral-env/services/aws/awsutil"
)

type mockServiceAPI struct {
	listClustersFunc     func(ctx context.Context, params *awsecs.ListClustersInput, optFns ...func(*awsecs.Options)) (*awsecs.ListClustersOutput, error)
	describeClustersFunc func(ctx context.Context, params *awsecs.DescribeClustersInput, optFns ...func(*awsecs.Options)) (*awsecs.DescribeClustersOutput, error)
	listServicesFunc     func(ctx context.Context, params *awsecs.ListServicesInput, optFns ...func(*awsecs.Options)) (*awsecs.ListServicesOutput, error)
	describeServicesFunc func(ctx context.Context, params *awsecs.DescribeServicesInput, optFns ...func(*awsecs.Options)) (*awsecs.DescribeServicesOutput, error)
	updateServiceFunc    func(ctx context.Context, params *awsecs.UpdateServiceInput, optFns ...func(*awsecs.Options)) (*awsecs.UpdateServiceOutput, error)
	deleteServiceFunc    func(ctx context.Context, params *awsecs.DeleteServiceInput, optFns ...func(*awsecs.Options)) (*awsecs.DeleteServiceOutput, error)
}

func (m *mockServiceAPI) ListClusters(ctx context.Context, params *awsecs.ListClustersInput, optFns ...func(*awsecs.Options)) (*awsecs.ListClustersOutput, error) {
	if m.listClustersFunc != nil {
		return m.listClustersFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("ListClusters not implemented")
}

func (m *mockServiceAPI) DescribeClusters(ctx context.Context, params *awsecs.DescribeClustersInput, optFns ...func(*awsecs.Options)) (*awsecs.DescribeClustersOutput, error) {
	if m.describeClustersFunc != nil {
		return m.describeClustersFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("DescribeClusters not implemented")
}

func (m *mockServiceAPI) ListServices(ctx context.Context, params *awsecs.ListServicesInput, optFns ...func(*awsecs.Options)) (*awsecs.ListServicesOutput, error) {
	if m.listServicesFunc != nil {
		return m.listServicesFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("ListServices not implemented")
}

func (m *mockServiceAPI) DescribeServices(ctx context.Context, params *awsecs.DescribeServicesInput, optFns ...func(*awsecs.Options)) (*awsecs.DescribeServicesOutput, error) {
	if m.describeServicesFunc != nil {
		return m.describeServicesFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("DescribeServices not implemented")
}

func (m *mockServiceAPI) UpdateService(ctx context.Context, params *awsecs.UpdateServiceInput, optFns ...func(*awsecs.Options)) (*awsecs.UpdateServiceOutput, error) {
	if m.updateServiceFunc != nil {
		return m.updateServiceFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("UpdateService not implemented")
}

func (m *mockServiceAPI) DeleteService(ctx context.Context, params *awsecs.DeleteServiceInput, optFns ...func(*awsecs.Options)) (*awsecs.DeleteServiceOutput, error) {
	if m.deleteServiceFunc != nil {
		return m.deleteServiceFunc(ctx, params, optFns...)
	}
	return nil, fmt.Errorf("DeleteService not implemented")
}

func clustersByARN(arns []string) []types.Cluster {
	clusters := make([]types.Cluster, 0, len(arns))
	for _, arn := range arns {
		name := arn[len("arn:cluster/"):]
		clusters = append(clusters, types.Cluster{ClusterArn: aws.String(arn), ClusterName: aws.String(name)})
	}
	return clusters
}

func TestClient_FindCluster(t *testing.T) {
	mock := &mockServiceAPI{
		listClustersFunc: func(_ context.Context, params *awsecs.ListClustersInput, _ ...func(*awsecs.Options)) (*awsecs.ListClustersOutput, error) {
			assert.Equal(t, ListPageSize, aws.ToInt32(params.MaxResults))
			if params.NextToken == nil {
				return &awsecs.ListClustersOutput{
					ClusterArns: []string{"arn:cluster/other"},
					NextToken:   aws.String("next"),
				}, nil
			}
			return &awsecs.ListClustersOutput{ClusterArns: []string{"arn:cluster/app-review"}}, nil
		},
		describeClustersFunc: func(_ context.Context, params *awsecs.DescribeClustersInput, _ ...func(*awsecs.Options)) (*awsecs.DescribeClustersOutput, error) {
			return &awsecs.DescribeClustersOutput{Clusters: clustersByARN(params.Clusters)}, nil
		},
	}
	c := New(mock)

	cluster, err := c.FindCluster(context.Background(), "app-review")
	require.NoError(t, err)
	assert.Equal(t, "arn:cluster/app-review", cluster.ARN)

	_, err = c.FindCluster(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrClusterNotFound)

	_, err = c.FindCluster(context.Background(), "")
	assert.Error(t, err)
}

func TestClient_FindCluster_ListError(t *testing.T) {
	mock := &mockServiceAPI{
		listClustersFunc: func(context.Context, *awsecs.ListClustersInput, ...func(*awsecs.Options)) (*awsecs.ListClustersOutput, error) {
			return nil, &smithy.GenericAPIError{Code: AccessDeniedException}
		},
	}

	_, err := New(mock).FindCluster(context.Background(), "app-review")
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestClient_ListServices_Paginates(t *testing.T) {
	var calls int
	mock := &mockServiceAPI{
		listServicesFunc: func(_ context.Context, params *awsecs.ListServicesInput, _ ...func(*awsecs.Options)) (*awsecs.ListServicesOutput, error) {
			calls++
			assert.Equal(t, "app-review", aws.ToString(params.Cluster))
			assert.Equal(t, ListPageSize, aws.ToInt32(params.MaxResults))
			switch aws.ToString(params.NextToken) {
			case "":
				return &awsecs.ListServicesOutput{ServiceArns: []string{"svc/1", "svc/2"}, NextToken: aws.String("a")}, nil
			case "a":
				return &awsecs.ListServicesOutput{ServiceArns: []string{"svc/3"}, NextToken: aws.String("b")}, nil
			default:
				return &awsecs.ListServicesOutput{}, nil
			}
		},
	}

	arns, err := New(mock).ListServices(context.Background(), "app-review")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"svc/1", "svc/2", "svc/3"}, arns)
}

func TestClient_DescribeServices_Batches(t *testing.T) {
	arns := make([]string, 25)
	for i := range arns {
		arns[i] = fmt.Sprintf("svc/%d", i)
	}

	var batchSizes []int
	mock := &mockServiceAPI{
		describeServicesFunc: func(_ context.Context, params *awsecs.DescribeServicesInput, _ ...func(*awsecs.Options)) (*awsecs.DescribeServicesOutput, error) {
			batchSizes = append(batchSizes, len(params.Services))
			assert.Equal(t, []types.ServiceField{types.ServiceFieldTags}, params.Include)

			out := &awsecs.DescribeServicesOutput{}
			for _, arn := range params.Services {
				out.Services = append(out.Services, types.Service{
					ServiceArn:  aws.String(arn),
					ServiceName: aws.String(arn),
					Tags: []types.Tag{
						{Key: aws.String("ephemeral"), Value: aws.String("true")},
					},
				})
			}
			return out, nil
		},
	}

	services, err := New(mock).DescribeServices(context.Background(), "app-review", arns)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 10, 5}, batchSizes)
	require.Len(t, services, 25)
	assert.Equal(t, "true", services[0].Tags["ephemeral"])
}

func TestClient_DescribeServices_PartialBatches(t *testing.T) {
	arns := make([]string, 25)
	for i := range arns {
		arns[i] = fmt.Sprintf("svc/%d", i)
	}

	calls := 0
	mock := &mockServiceAPI{
		describeServicesFunc: func(_ context.Context, params *awsecs.DescribeServicesInput, _ ...func(*awsecs.Options)) (*awsecs.DescribeServicesOutput, error) {
			calls++
			if calls == 1 {
				return nil, &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}
			}
			out := &awsecs.DescribeServicesOutput{}
			for _, arn := range params.Services {
				out.Services = append(out.Services, types.Service{ServiceArn: aws.String(arn)})
			}
			return out, nil
		},
	}

	services, err := New(mock).DescribeServices(context.Background(), "app-review", arns)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, services, 15)
	assert.Equal(t, "svc/10", services[0].ARN)

	var batchErr *awsutil.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 0, batchErr.Index)
	assert.Len(t, batchErr.Items, 10)
}

func TestClient_ScaleAndDelete(t *testing.T) {
	var order []string
	mock := &mockServiceAPI{
		updateServiceFunc: func(_ context.Context, params *awsecs.UpdateServiceInput, _ ...func(*awsecs.Options)) (*awsecs.UpdateServiceOutput, error) {
			order = append(order, "update")
			assert.Equal(t, int32(0), aws.ToInt32(params.DesiredCount))
			return &awsecs.UpdateServiceOutput{}, nil
		},
		deleteServiceFunc: func(_ context.Context, params *awsecs.DeleteServiceInput, _ ...func(*awsecs.Options)) (*awsecs.DeleteServiceOutput, error) {
			order = append(order, "delete")
			assert.Equal(t, "svc/1", aws.ToString(params.Service))
			return &awsecs.DeleteServiceOutput{}, nil
		},
	}
	c := New(mock)

	require.NoError(t, c.ScaleToZero(context.Background(), "app-review", "svc/1"))
	require.NoError(t, c.DeleteService(context.Background(), "app-review", "svc/1"))
	assert.Equal(t, []string{"update", "delete"}, order)
}

func TestClient_DeleteService_NotFound(t *testing.T) {
	mock := &mockServiceAPI{
		deleteServiceFunc: func(context.Context, *awsecs.DeleteServiceInput, ...func(*awsecs.Options)) (*awsecs.DeleteServiceOutput, error) {
			return nil, &smithy.GenericAPIError{Code: ServiceNotFoundException, Message: "gone"}
		},
	}

	err := New(mock).DeleteService(context.Background(), "app-review", "svc/1")
	assert.ErrorIs(t, err, ErrServiceNotFound)
}
