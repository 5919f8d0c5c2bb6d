// Package route53 manages the alias records that point an environment's
// hostnames at its load balancer.
package route53

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	r53 "github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"

	"github.com/trussworks/ephemeral-env/services/aws/awsutil"
)

// Action is a record set change action.
type Action string

const (
	ActionUpsert Action = "UPSERT"
	ActionDelete Action = "DELETE"
	ActionCreate Action = "CREATE"
)

// DualStackPrefix is prepended to the load balancer DNS name in alias targets.
const DualStackPrefix = "dualstack."

// AWS error code constants
const (
	NoSuchHostedZone   = "NoSuchHostedZone"
	InvalidChangeBatch = "InvalidChangeBatch"
)

var (
	// ErrHostedZoneNotFound is returned when the hosted zone id does not resolve.
	ErrHostedZoneNotFound = errors.New("hosted zone not found")

	// ErrInvalidChangeBatch is returned when Route53 rejects the batch, for
	// example a DELETE for a record that does not exist.
	ErrInvalidChangeBatch = errors.New("invalid change batch")
)

// RecordsAPI defines the subset of the Route53 client used by Client.
type RecordsAPI interface {
	ChangeResourceRecordSets(
		ctx context.Context,
		params *r53.ChangeResourceRecordSetsInput,
		optFns ...func(*r53.Options),
	) (*r53.ChangeResourceRecordSetsOutput, error)

	ListResourceRecordSets(
		ctx context.Context,
		params *r53.ListResourceRecordSetsInput,
		optFns ...func(*r53.Options),
	) (*r53.ListResourceRecordSetsOutput, error)
}

var _ RecordsAPI = (*r53.Client)(nil)

// AliasTarget is the load balancer an alias record resolves to.
type AliasTarget struct {
	DNSName      string
	HostedZoneID string
}

// AliasRecord is an A alias record read back from a hosted zone.
type AliasRecord struct {
	Name         string
	TargetDNS    string
	TargetZoneID string
}

// Client wraps the Route53 API.
type Client struct {
	api         RecordsAPI
	logger      *slog.Logger
	callTimeout time.Duration
}

// New creates a Client around an existing API implementation.
func New(api RecordsAPI, opts ...awsutil.Option) *Client {
	o := awsutil.ApplyOptions(opts)
	return &Client{api: api, logger: o.Logger, callTimeout: o.CallTimeout}
}

// NewFromConfig creates a Client from an AWS config.
func NewFromConfig(cfg aws.Config, opts ...awsutil.Option) *Client {
	return New(r53.NewFromConfig(cfg), opts...)
}

func (c *Client) handleError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if code, ok := awsutil.ErrorCode(err); ok {
		switch code {
		case NoSuchHostedZone:
			return fmt.Errorf("%s operation failed: %w: %w", operation, ErrHostedZoneNotFound, err)
		case InvalidChangeBatch:
			return fmt.Errorf("%s operation failed: %w: %w", operation, ErrInvalidChangeBatch, err)
		}
	}
	return awsutil.OperationError(operation, err)
}

// ChangeAliasRecords submits one change batch with an A alias record per
// name, all pointing at the dual-stack name of target. It returns the change
// status reported by Route53.
func (c *Client) ChangeAliasRecords(ctx context.Context, hostedZoneID string, action Action, names []string, target AliasTarget) (string, error) {
	if hostedZoneID == "" {
		return "", fmt.Errorf("hosted zone id cannot be empty")
	}
	if len(names) == 0 {
		return "", fmt.Errorf("at least one record name is required")
	}

	changes := make([]types.Change, 0, len(names))
	for _, name := range names {
		changes = append(changes, types.Change{
			Action: types.ChangeAction(action),
			ResourceRecordSet: &types.ResourceRecordSet{
				Name: aws.String(name),
				Type: types.RRTypeA,
				AliasTarget: &types.AliasTarget{
					DNSName:              aws.String(DualStackPrefix + target.DNSName),
					HostedZoneId:         aws.String(target.HostedZoneID),
					EvaluateTargetHealth: false,
				},
			},
		})
	}

	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	c.logger.InfoContext(ctx, "changing alias records",
		"zone", hostedZoneID,
		"action", action,
		"records", names)

	out, err := c.api.ChangeResourceRecordSets(callCtx, &r53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(hostedZoneID),
		ChangeBatch: &types.ChangeBatch{
			Changes: changes,
		},
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to change alias records",
			"zone", hostedZoneID,
			"action", action,
			"error", err)
		return "", c.handleError(err, "ChangeResourceRecordSets")
	}

	if out.ChangeInfo == nil {
		return "", nil
	}
	return string(out.ChangeInfo.Status), nil
}

// ListAliasRecords returns every A alias record in the hosted zone.
func (c *Client) ListAliasRecords(ctx context.Context, hostedZoneID string) ([]AliasRecord, error) {
	var (
		records  []AliasRecord
		nextName *string
		nextType types.RRType
	)

	for {
		out, err := c.listPage(ctx, hostedZoneID, nextName, nextType)
		if err != nil {
			return nil, err
		}

		for _, rs := range out.ResourceRecordSets {
			if rs.Type != types.RRTypeA || rs.AliasTarget == nil {
				continue
			}
			records = append(records, AliasRecord{
				Name:         aws.ToString(rs.Name),
				TargetDNS:    aws.ToString(rs.AliasTarget.DNSName),
				TargetZoneID: aws.ToString(rs.AliasTarget.HostedZoneId),
			})
		}

		if !out.IsTruncated {
			return records, nil
		}
		nextName, nextType = out.NextRecordName, out.NextRecordType
	}
}

func (c *Client) listPage(ctx context.Context, zone string, name *string, rrType types.RRType) (*r53.ListResourceRecordSetsOutput, error) {
	callCtx, cancel := awsutil.CallContext(ctx, c.callTimeout)
	defer cancel()

	out, err := c.api.ListResourceRecordSets(callCtx, &r53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(zone),
		StartRecordName: name,
		StartRecordType: rrType,
	})
	if err != nil {
		return nil, c.handleError(err, "ListResourceRecordSets")
	}
	return out, nil
}
