package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dennisdiepolder/monti/okr/internal/facts"
	"github.com/rs/zerolog"
)

// DynamoAPI is the subset of the DynamoDB client used by the property store
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// propertyItem is the stored shape of one property
type propertyItem struct {
	Key       string `dynamodbav:"Key"`
	Value     []byte `dynamodbav:"Value"`
	ExpiresAt int64  `dynamodbav:"ExpiresAt,omitempty"` // unix seconds, 0 = never
}

// DynamoPropertyStore is the durable property store. Expiry is checked on
// read so it does not depend on the table's TTL sweeper.
type DynamoPropertyStore struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
	logger    zerolog.Logger
}

// NewDynamoPropertyStore creates a property store on tableName
func NewDynamoPropertyStore(client DynamoAPI, tableName string, logger zerolog.Logger) *DynamoPropertyStore {
	return &DynamoPropertyStore{
		client:    client,
		tableName: tableName,
		now:       time.Now,
		logger:    logger.With().Str("component", "property_store").Logger(),
	}
}

// Get returns the value stored under key, if not expired
func (s *DynamoPropertyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]dbtypes.AttributeValue{
			facts.PropertyKeyAttribute: &dbtypes.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get property %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}

	var item propertyItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal property %s: %w", key, err)
	}
	if item.ExpiresAt > 0 && s.now().Unix() >= item.ExpiresAt {
		return nil, false, nil
	}
	return item.Value, true, nil
}

// Put stores value under key. A non-positive ttl never expires.
func (s *DynamoPropertyStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	item := propertyItem{Key: key, Value: value}
	if ttl > 0 {
		item.ExpiresAt = s.now().Add(ttl).Unix()
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal property %s: %w", key, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put property %s: %w", key, err)
	}
	return nil
}

// Remove deletes key
func (s *DynamoPropertyStore) Remove(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]dbtypes.AttributeValue{
			facts.PropertyKeyAttribute: &dbtypes.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete property %s: %w", key, err)
	}
	return nil
}

// RemovePrefix scans for keys beginning with prefix and deletes them in batches of 25
func (s *DynamoPropertyStore) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	keyName := expression.Name(facts.PropertyKeyAttribute)
	expr, err := expression.NewBuilder().
		WithFilter(keyName.BeginsWith(prefix)).
		WithProjection(expression.NamesList(keyName)).
		Build()
	if err != nil {
		return 0, fmt.Errorf("failed to build purge expression: %w", err)
	}

	var keys []string
	var lastKey map[string]dbtypes.AttributeValue
	for {
		result, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(s.tableName),
			FilterExpression:          expr.Filter(),
			ProjectionExpression:      expr.Projection(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return 0, fmt.Errorf("failed to scan properties: %w", err)
		}

		for _, item := range result.Items {
			var p propertyItem
			if err := attributevalue.UnmarshalMap(item, &p); err != nil {
				return 0, fmt.Errorf("failed to unmarshal property key: %w", err)
			}
			keys = append(keys, p.Key)
		}

		lastKey = result.LastEvaluatedKey
		if len(lastKey) == 0 {
			break
		}
	}

	// Batch delete in groups of 25
	for i := 0; i < len(keys); i += 25 {
		end := i + 25
		if end > len(keys) {
			end = len(keys)
		}

		requests := make([]dbtypes.WriteRequest, 0, end-i)
		for _, key := range keys[i:end] {
			requests = append(requests, dbtypes.WriteRequest{
				DeleteRequest: &dbtypes.DeleteRequest{
					Key: map[string]dbtypes.AttributeValue{
						facts.PropertyKeyAttribute: &dbtypes.AttributeValueMemberS{Value: key},
					},
				},
			})
		}

		_, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]dbtypes.WriteRequest{
				s.tableName: requests,
			},
		})
		if err != nil {
			return 0, fmt.Errorf("failed to delete properties: %w", err)
		}
	}

	s.logger.Debug().
		Str("prefix", prefix).
		Int("removed", len(keys)).
		Msg("properties purged")

	return len(keys), nil
}
