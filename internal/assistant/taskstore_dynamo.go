package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoTaskStore shares task state between the API and a remote worker.
type DynamoTaskStore struct {
	client    dynamoAPI
	tableName string
}

var _ TaskStore = (*DynamoTaskStore)(nil)

func NewDynamoTaskStore(client dynamoAPI, tableName string) *DynamoTaskStore {
	if client == nil {
		panic("assistant: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("assistant: task table name cannot be empty")
	}
	return &DynamoTaskStore{client: client, tableName: tableName}
}

func (s *DynamoTaskStore) PutPending(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("assistant: task cannot be nil")
	}
	now := time.Now().UTC()
	task.Status = TaskPending
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.ExpiresAt == 0 {
		task.ExpiresAt = now.Add(taskTTL).Unix()
	}

	item, err := attributevalue.MarshalMap(task)
	if err != nil {
		return fmt.Errorf("assistant: marshal task: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(taskId)"),
	})
	if err != nil {
		return fmt.Errorf("assistant: persist task: %w", err)
	}
	return nil
}

func (s *DynamoTaskStore) Get(ctx context.Context, id string) (*Task, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            map[string]types.AttributeValue{"taskId": &types.AttributeValueMemberS{Value: id}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("assistant: fetch task: %w", err)
	}
	if out.Item == nil {
		return nil, ErrTaskNotFound
	}
	var task Task
	if err := attributevalue.UnmarshalMap(out.Item, &task); err != nil {
		return nil, fmt.Errorf("assistant: decode task: %w", err)
	}
	return &task, nil
}

// Settle writes the final state. The condition keeps a redelivered message
// from overwriting a task that already settled.
func (s *DynamoTaskStore) Settle(ctx context.Context, task *Task) error {
	task.UpdatedAt = time.Now().UTC()
	var analysis types.AttributeValue = &types.AttributeValueMemberNULL{Value: true}
	if task.Analysis != nil {
		av, err := attributevalue.Marshal(task.Analysis)
		if err != nil {
			return fmt.Errorf("assistant: marshal analysis: %w", err)
		}
		analysis = av
	}
	updated, err := attributevalue.Marshal(task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("assistant: marshal timestamp: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              map[string]types.AttributeValue{"taskId": &types.AttributeValueMemberS{Value: task.ID}},
		UpdateExpression: aws.String("SET #status = :status, #analysis = :analysis, #reply = :reply, #html = :html, #error = :error, #updated = :updated"),
		ExpressionAttributeNames: map[string]string{
			"#status":   "status",
			"#analysis": "analysis",
			"#reply":    "reply",
			"#html":     "replyHtml",
			"#error":    "errorMessage",
			"#updated":  "updatedAt",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":   &types.AttributeValueMemberS{Value: string(task.Status)},
			":analysis": analysis,
			":reply":    &types.AttributeValueMemberS{Value: task.Reply},
			":html":     &types.AttributeValueMemberS{Value: task.ReplyHTML},
			":error":    &types.AttributeValueMemberS{Value: task.Error},
			":updated":  updated,
			":pending":  &types.AttributeValueMemberS{Value: string(TaskPending)},
		},
		ConditionExpression: aws.String("attribute_exists(taskId) AND #status = :pending"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil
		}
		return fmt.Errorf("assistant: settle task %s: %w", task.ID, err)
	}
	return nil
}
