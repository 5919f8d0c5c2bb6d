package lock

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/trussworks/ephemeral-env/errors"
	"github.com/trussworks/ephemeral-env/services/aws/awsutil"
)

// Table attribute names.
const (
	AttrLockID    = "lock_id"
	AttrOwner     = "owner"
	AttrExpiresAt = "expires_at"
)

const conditionalCheckFailed = "ConditionalCheckFailedException"

// DynamoAPI defines the subset of the DynamoDB client used by DynamoLocker.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

var _ DynamoAPI = (*dynamodb.Client)(nil)

// DynamoLocker keeps leases as items keyed by lock_id. An item whose
// expires_at has passed may be taken over by another owner.
type DynamoLocker struct {
	api    DynamoAPI
	table  string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewDynamoLocker creates a DynamoLocker on table.
func NewDynamoLocker(api DynamoAPI, table string, ttl time.Duration, logger *slog.Logger) *DynamoLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DynamoLocker{api: api, table: table, ttl: ttl, now: time.Now, logger: logger}
}

// NewDynamoLockerFromConfig creates a DynamoLocker from an AWS config.
func NewDynamoLockerFromConfig(cfg aws.Config, table string, ttl time.Duration, logger *slog.Logger) *DynamoLocker {
	return NewDynamoLocker(dynamodb.NewFromConfig(cfg), table, ttl, logger)
}

// Acquire implements Locker.
func (d *DynamoLocker) Acquire(ctx context.Context, key string) (*Lease, error) {
	if key == "" {
		return nil, errors.New(errors.CodeInvalidInput, "lock key is required")
	}

	now := d.now()
	lease := &Lease{Key: key, Owner: newOwner(), ExpiresAt: now.Add(d.ttl)}

	_, err := d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item: map[string]types.AttributeValue{
			AttrLockID:    &types.AttributeValueMemberS{Value: key},
			AttrOwner:     &types.AttributeValueMemberS{Value: lease.Owner},
			AttrExpiresAt: &types.AttributeValueMemberN{Value: unix(lease.ExpiresAt)},
		},
		ConditionExpression: aws.String("attribute_not_exists(#id) OR #exp < :now"),
		ExpressionAttributeNames: map[string]string{
			"#id":  AttrLockID,
			"#exp": AttrExpiresAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: unix(now)},
		},
	})
	if err != nil {
		if code, ok := awsutil.ErrorCode(err); ok && code == conditionalCheckFailed {
			return nil, conflict(key, "")
		}
		return nil, errors.WrapWithContext(err, errors.CodeUnavailable,
			"failed to acquire lock", map[string]interface{}{"key": key})
	}

	d.logger.DebugContext(ctx, "lock acquired", "key", key, "owner", lease.Owner)
	lease.release = func(ctx context.Context) error {
		return d.release(ctx, key, lease.Owner)
	}
	return lease, nil
}

func (d *DynamoLocker) release(ctx context.Context, key, owner string) error {
	_, err := d.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key: map[string]types.AttributeValue{
			AttrLockID: &types.AttributeValueMemberS{Value: key},
		},
		ConditionExpression:      aws.String("#owner = :owner"),
		ExpressionAttributeNames: map[string]string{"#owner": AttrOwner},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: owner},
		},
	})
	if err != nil {
		if code, ok := awsutil.ErrorCode(err); ok && code == conditionalCheckFailed {
			// taken over after expiry
			d.logger.WarnContext(ctx, "lock lost before release", "key", key, "owner", owner)
			return nil
		}
		return fmt.Errorf("release lock %s: %w", key, err)
	}

	d.logger.DebugContext(ctx, "lock released", "key", key)
	return nil
}

// CreateTable creates the lock table with on-demand billing.
func (d *DynamoLocker) CreateTable(ctx context.Context) error {
	_, err := d.api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(d.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(AttrLockID), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(AttrLockID), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return awsutil.OperationError("CreateTable", err)
	}
	return nil
}

func unix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
