package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/redis/go-redis/v9"
)

// EventStore records which provider webhook events have been handled.
// Claim returns false when the event was already claimed.
type EventStore interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type RedisEventStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisEventStore(client *redis.Client, ttl time.Duration) EventStore {
	return &RedisEventStore{client: client, ttl: ttl}
}

func (s *RedisEventStore) key(eventID string) string {
	return "webhook:event:" + eventID
}

func (s *RedisEventStore) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(eventID), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim webhook event: %w", err)
	}
	return ok, nil
}

func (s *RedisEventStore) Release(ctx context.Context, eventID string) error {
	return s.client.Del(ctx, s.key(eventID)).Err()
}

// DynamoAPI is the subset of the DynamoDB client the event store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

type webhookEventRecord struct {
	EventID   string `dynamodbav:"event_id"`
	ClaimedAt string `dynamodbav:"claimed_at"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}

// DynamoEventStore claims events with a conditional put; expires_at is meant
// to be the table's TTL attribute.
type DynamoEventStore struct {
	client DynamoAPI
	table  string
	ttl    time.Duration
}

func NewDynamoEventStore(client DynamoAPI, table string, ttl time.Duration) EventStore {
	return &DynamoEventStore{client: client, table: table, ttl: ttl}
}

func (s *DynamoEventStore) Claim(ctx context.Context, eventID string) (bool, error) {
	now := time.Now().UTC()
	item, err := attributevalue.MarshalMap(webhookEventRecord{
		EventID:   eventID,
		ClaimedAt: now.Format(time.RFC3339),
		ExpiresAt: now.Add(s.ttl).Unix(),
	})
	if err != nil {
		return false, fmt.Errorf("marshal event record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(event_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, fmt.Errorf("claim webhook event: %w", err)
	}
	return true, nil
}

func (s *DynamoEventStore) Release(ctx context.Context, eventID string) error {
	key, err := attributevalue.MarshalMap(map[string]string{"event_id": eventID})
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}
	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       key,
	})
	return err
}
