package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

type dynamoItem struct {
	Key       string `dynamodbav:"key"`
	Value     string `dynamodbav:"value"`
	UpdatedAt string `dynamodbav:"updatedAt"`
}

// DynamoBackend keeps one item per key in a table whose partition key is "key".
type DynamoBackend struct {
	client    dynamoAPI
	tableName string
}

var _ Backend = (*DynamoBackend)(nil)

func NewDynamoBackend(client dynamoAPI, tableName string) *DynamoBackend {
	if client == nil {
		panic("kv: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("kv: table name cannot be empty")
	}
	return &DynamoBackend{client: client, tableName: tableName}
}

func (b *DynamoBackend) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"key": &types.AttributeValueMemberS{Value: key},
	}
}

func (b *DynamoBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	out, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.tableName),
		Key:            b.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("kv: dynamodb get %s: %w", key, err)
	}
	if out.Item == nil {
		return nil, false, nil
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, false, fmt.Errorf("kv: dynamodb decode %s: %w", key, err)
	}
	return []byte(item.Value), true, nil
}

func (b *DynamoBackend) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	item, err := attributevalue.MarshalMap(dynamoItem{
		Key:       key,
		Value:     string(value),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("kv: dynamodb marshal %s: %w", key, err)
	}
	if _, err := b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("kv: dynamodb put %s: %w", key, err)
	}
	return nil
}

func (b *DynamoBackend) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if _, err := b.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(b.tableName),
		Key:       b.itemKey(key),
	}); err != nil {
		return fmt.Errorf("kv: dynamodb delete %s: %w", key, err)
	}
	return nil
}
