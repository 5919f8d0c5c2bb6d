package ecs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/trussworks/ephemeral-env/services/aws/awsutil"
)

const (
	// ListPageSize is the MaxResults used for ListClusters and ListServices.
	ListPageSize int32 = 100

	// DescribeBatchSize is the number of services sent per DescribeServices call.
	DescribeBatchSize = 10
)

// Cluster identifies an ECS cluster.
type Cluster struct {
	ARN  string
	Name string
}

// Service is an ECS service with its tags.
type Service struct {
	ARN  string
	Name string
	Tags map[string]string
}

// Client wraps the ECS API.
//
// Thread Safety: This struct is thread-safe for concurrent use.
type Client struct {
	api         ServiceAPI
	logger      *slog.Logger
	callTimeout time.Duration
}

// New creates a Client around an existing API implementation.
func New(api ServiceAPI, opts ...awsutil.Option) *Client {
	o := awsutil.ApplyOptions(opts)
	return &Client{api: api, logger: o.Logger, callTimeout: o.CallTimeout}
}

// NewFromConfig creates a Client from an AWS config.
func NewFromConfig(cfg aws.Config, opts ...awsutil.Option) *Client {
	return New(awsecs.NewFromConfig(cfg), opts...)
}

func (c *Client) handleError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if code, ok := awsutil.ErrorCode(err); ok {
		if sentinel := sentinelFor(code); sentinel != nil {
			return fmt.Errorf("%s operation failed: %w: %w", operation, sentinel, err)
		}
	}
	return awsutil.OperationError(operation, err)
}

// FindCluster returns the cluster whose name is name. Cluster ARNs are listed
// page by page and described until a match is found. It returns
// ErrClusterNotFound when no cluster matches.
func (c *Client) FindCluster(ctx context.Context, name string) (*Cluster, error) {
	if name == "" {
		return nil, fmt.Errorf("cluster name cannot be empty")
	}

	var next *string
	for {
		out, err := c.listClustersPage(ctx, next)
		if err != nil {
			return nil, err
		}

		if len(out.ClusterArns) > 0 {
			cluster, err := c.matchCluster(ctx, out.ClusterArns, name)
			if err != nil {
				return nil, err
			}
			if cluster != nil {
				return cluster, nil
			}
		}

		if aws.ToString(out.NextToken) == "" {
			return nil, fmt.Errorf("FindCluster %s: %w", name, ErrClusterNotFound)
		}
		next = out.NextToken
	}
}

func (c *Client) listClustersPage(ctx context.Context, next *string) (*awsecs.ListClustersOutput, error) {
	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	out, err := c.api.ListClusters(callCtx, &awsecs.ListClustersInput{
		MaxResults: aws.Int32(ListPageSize),
		NextToken:  next,
	})
	if err != nil {
		return nil, c.handleError(err, "ListClusters")
	}
	return out, nil
}

func (c *Client) matchCluster(ctx context.Context, arns []string, name string) (*Cluster, error) {
	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	out, err := c.api.DescribeClusters(callCtx, &awsecs.DescribeClustersInput{
		Clusters: arns,
	})
	if err != nil {
		return nil, c.handleError(err, "DescribeClusters")
	}

	for _, cl := range out.Clusters {
		if aws.ToString(cl.ClusterName) == name {
			return &Cluster{
				ARN:  aws.ToString(cl.ClusterArn),
				Name: name,
			}, nil
		}
	}
	return nil, nil
}

// ListServices returns every service ARN in the cluster.
func (c *Client) ListServices(ctx context.Context, cluster string) ([]string, error) {
	var (
		arns []string
		next *string
	)

	for {
		out, err := c.listServicesPage(ctx, cluster, next)
		if err != nil {
			return nil, err
		}
		arns = append(arns, out.ServiceArns...)

		if aws.ToString(out.NextToken) == "" {
			return arns, nil
		}
		next = out.NextToken
	}
}

func (c *Client) listServicesPage(ctx context.Context, cluster string, next *string) (*awsecs.ListServicesOutput, error) {
	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	out, err := c.api.ListServices(callCtx, &awsecs.ListServicesInput{
		Cluster:    aws.String(cluster),
		MaxResults: aws.Int32(ListPageSize),
		NextToken:  next,
	})
	if err != nil {
		return nil, c.handleError(err, "ListServices")
	}
	return out, nil
}

// DescribeServices describes the services with their tags, DescribeBatchSize
// at a time. Failures reported per service by ECS are skipped. A failing call
// does not stop the remaining batches: the services described so far are
// returned with one *awsutil.BatchError per failed batch.
func (c *Client) DescribeServices(ctx context.Context, cluster string, arns []string) ([]Service, error) {
	var (
		services []Service
		errs     []error
	)

	for i, batch := range awsutil.Chunk(arns, DescribeBatchSize) {
		out, err := c.describeServicesBatch(ctx, cluster, batch)
		if err != nil {
			c.logger.WarnContext(ctx, "describe batch failed",
				"cluster", cluster,
				"batch", i,
				"services", len(batch),
				"error", err)
			errs = append(errs, &awsutil.BatchError{Index: i, Items: batch, Err: err})
			continue
		}

		for _, f := range out.Failures {
			c.logger.WarnContext(ctx, "service could not be described",
				"cluster", cluster,
				"arn", aws.ToString(f.Arn),
				"reason", aws.ToString(f.Reason))
		}

		for _, s := range out.Services {
			services = append(services, Service{
				ARN:  aws.ToString(s.ServiceArn),
				Name: aws.ToString(s.ServiceName),
				Tags: fromTags(s.Tags),
			})
		}
	}

	return services, errors.Join(errs...)
}

func (c *Client) describeServicesBatch(ctx context.Context, cluster string, arns []string) (*awsecs.DescribeServicesOutput, error) {
	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	out, err := c.api.DescribeServices(callCtx, &awsecs.DescribeServicesInput{
		Cluster:  aws.String(cluster),
		Services: arns,
		Include:  []types.ServiceField{types.ServiceFieldTags},
	})
	if err != nil {
		return nil, c.handleError(err, "DescribeServices")
	}
	return out, nil
}

// ScaleToZero sets the desired count of the service to zero so that it can
// be deleted.
func (c *Client) ScaleToZero(ctx context.Context, cluster, service string) error {
	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	_, err := c.api.UpdateService(callCtx, &awsecs.UpdateServiceInput{
		Cluster:      aws.String(cluster),
		Service:      aws.String(service),
		DesiredCount: aws.Int32(0),
	})
	if err != nil {
		return c.handleError(err, "UpdateService")
	}
	return nil
}

// DeleteService deletes the service.
func (c *Client) DeleteService(ctx context.Context, cluster, service string) error {
	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	_, err := c.api.DeleteService(callCtx, &awsecs.DeleteServiceInput{
		Cluster: aws.String(cluster),
		Service: aws.String(service),
	})
	if err != nil {
		return c.handleError(err, "DeleteService")
	}

	c.logger.InfoContext(ctx, "deleted service", "cluster", cluster, "arn", service)
	return nil
}

func fromTags(tags []types.Tag) map[string]string {
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		m[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return m
}
