package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoStore persists records in DynamoDB. The table uses kind as the
// partition key and id as the sort key; version checks run as conditional
// writes so CAS semantics match the other backends.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
}

type dynamoRecord struct {
	Kind      string `dynamodbav:"kind"`
	ID        string `dynamodbav:"id"`
	State     string `dynamodbav:"state"`
	Version   int    `dynamodbav:"version"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

func NewDynamoStore(client *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

func (s *DynamoStore) Get(ctx context.Context, kind, id string) (*Record, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"kind": &types.AttributeValueMemberS{Value: kind},
			"id":   &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}
	return unmarshalDynamoRecord(result.Item)
}

func (s *DynamoStore) List(ctx context.Context, kind string) ([]Record, error) {
	var out []Record
	var startKey map[string]types.AttributeValue

	for {
		result, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("kind = :kind"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":kind": &types.AttributeValueMemberS{Value: kind},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query records: %w", err)
		}
		for _, item := range result.Items {
			rec, err := unmarshalDynamoRecord(item)
			if err != nil {
				return nil, err
			}
			out = append(out, *rec)
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		startKey = result.LastEvaluatedKey
	}
	return out, nil
}

func (s *DynamoStore) Put(ctx context.Context, kind, id string, state any, expectedVersion int) (*Record, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	item := dynamoRecord{
		Kind:      kind,
		ID:        id,
		State:     string(data),
		Version:   expectedVersion + 1,
		UpdatedAt: now.Format(time.RFC3339Nano),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	}
	if expectedVersion == 0 {
		input.ConditionExpression = aws.String("attribute_not_exists(kind) AND attribute_not_exists(id)")
	} else {
		input.ConditionExpression = aws.String("version = :expected")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expectedVersion)},
		}
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			if expectedVersion > 0 {
				if _, getErr := s.Get(ctx, kind, id); errors.Is(getErr, ErrNotFound) {
					return nil, ErrNotFound
				}
			}
			return nil, ErrVersionConflict
		}
		return nil, fmt.Errorf("failed to put record: %w", err)
	}

	return &Record{
		Kind:      kind,
		ID:        id,
		State:     data,
		Version:   expectedVersion + 1,
		UpdatedAt: now,
	}, nil
}

func (s *DynamoStore) Delete(ctx context.Context, kind, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"kind": &types.AttributeValueMemberS{Value: kind},
			"id":   &types.AttributeValueMemberS{Value: id},
		},
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

func unmarshalDynamoRecord(item map[string]types.AttributeValue) (*Record, error) {
	var dr dynamoRecord
	if err := attributevalue.UnmarshalMap(item, &dr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, dr.UpdatedAt)
	if err != nil {
		updatedAt = time.Time{}
	}
	return &Record{
		Kind:      dr.Kind,
		ID:        dr.ID,
		State:     json.RawMessage(dr.State),
		Version:   dr.Version,
		UpdatedAt: updatedAt,
	}, nil
}
