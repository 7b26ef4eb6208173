package facts

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
)

// scanPageSize bounds a single Scan page
const scanPageSize = 500

// NewDynamoClient builds a DynamoDB client for cfg
func NewDynamoClient(ctx context.Context, cfg DynamoConfig) (*dynamodb.Client, error) {
	if cfg.Mode == DynamoModeLocal {
		// For local mode, build the client directly without LoadDefaultConfig.
		// LoadDefaultConfig probes the EC2 IMDS endpoint which hangs on EC2
		// instances when static credentials are intended.
		return dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		}), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg), nil
}

// DynamoDBSource implements Source with one DynamoDB table per category
type DynamoDBSource struct {
	client *dynamodb.Client
	config DynamoConfig
	logger zerolog.Logger
}

// NewDynamoDBSource creates a new DynamoDB-backed source
func NewDynamoDBSource(ctx context.Context, client *dynamodb.Client, cfg DynamoConfig, logger zerolog.Logger) (*DynamoDBSource, error) {
	src := &DynamoDBSource{
		client: client,
		config: cfg,
		logger: logger.With().Str("component", "dynamodb_source").Logger(),
	}

	// Create tables in local mode
	if cfg.Mode == DynamoModeLocal {
		if err := CreateTablesIfNotExist(ctx, client, cfg, logger); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Str("table_prefix", cfg.TablePrefix).
		Msg("DynamoDB source initialized")

	return src, nil
}

// ReadEventRows scans the whole table of category
func (s *DynamoDBSource) ReadEventRows(ctx context.Context, category EventCategory) ([]Record, error) {
	tableName := s.config.TableName(category)
	var lastKey map[string]dbtypes.AttributeValue
	var records []Record

	for {
		input := &dynamodb.ScanInput{
			TableName: aws.String(tableName),
			Limit:     aws.Int32(scanPageSize),
		}
		if lastKey != nil {
			input.ExclusiveStartKey = lastKey
		}

		result, err := s.client.Scan(ctx, input)
		if err != nil {
			var notFound *dbtypes.ResourceNotFoundException
			if errors.As(err, &notFound) {
				return nil, ErrSourceNotFound
			}
			return nil, fmt.Errorf("failed to scan %s: %w", tableName, err)
		}

		var page []map[string]any
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s rows: %w", tableName, err)
		}
		for _, item := range page {
			delete(item, RowKeyAttribute)
			records = append(records, Record(item))
		}

		lastKey = result.LastEvaluatedKey
		if len(lastKey) == 0 {
			break
		}
	}

	s.logger.Debug().
		Str("table", tableName).
		Int("rows", len(records)).
		Msg("table scanned")

	return records, nil
}

// PutRecords writes rows into the table of category, keyed by rowIDs
func (s *DynamoDBSource) PutRecords(ctx context.Context, category EventCategory, rowIDs []string, rows []Record) error {
	if len(rowIDs) != len(rows) {
		return fmt.Errorf("row ids (%d) and rows (%d) differ in length", len(rowIDs), len(rows))
	}

	tableName := s.config.TableName(category)

	// Batch write in groups of 25
	for i := 0; i < len(rows); i += 25 {
		end := i + 25
		if end > len(rows) {
			end = len(rows)
		}

		requests := make([]dbtypes.WriteRequest, 0, end-i)
		for j := i; j < end; j++ {
			item, err := attributevalue.MarshalMap(map[string]any(rows[j]))
			if err != nil {
				return fmt.Errorf("failed to marshal %s row: %w", category, err)
			}
			item[RowKeyAttribute] = &dbtypes.AttributeValueMemberS{Value: rowIDs[j]}
			requests = append(requests, dbtypes.WriteRequest{
				PutRequest: &dbtypes.PutRequest{Item: item},
			})
		}

		_, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]dbtypes.WriteRequest{
				tableName: requests,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to write %s rows: %w", category, err)
		}
	}
	return nil
}
