// Package dynamo keeps subscribers in a DynamoDB table keyed by
// telegram_user_id.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/znz-systems/mailbrief/internal/config"
	"github.com/znz-systems/mailbrief/internal/models"
	"github.com/znz-systems/mailbrief/internal/stage"
	"github.com/znz-systems/mailbrief/internal/store"
)

const keyAttr = "telegram_user_id"

// API is the part of *dynamodb.Client the store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

type SubscriberStore struct {
	client API
	table  string
}

func NewSubscriberStore(client API, table string) *SubscriberStore {
	return &SubscriberStore{client: client, table: table}
}

// NewFromConfig builds a client from the default AWS credential chain.
func NewFromConfig(ctx context.Context, cfg config.SubscriberConfig) (*SubscriberStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region := strings.TrimSpace(cfg.AWSRegion); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint := strings.TrimSpace(cfg.DynamoDBURL); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewSubscriberStore(client, cfg.DynamoDBTable), nil
}

// item is the table layout. Timestamps are strings so records written as
// zone-less ISO 8601 by earlier deployments still decode.
type item struct {
	TelegramUserID    string  `dynamodbav:"telegram_user_id"`
	EmailAddress      string  `dynamodbav:"email_address"`
	Status            string  `dynamodbav:"status"`
	CreatedAt         string  `dynamodbav:"created_at"`
	LastEmailReceived *string `dynamodbav:"last_email_received,nullempty"`
}

// zonelessLayouts are tried after RFC 3339; they are read as UTC.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func toItem(sub *models.Subscriber) item {
	it := item{
		TelegramUserID: sub.SubscriberID,
		EmailAddress:   sub.Alias,
		Status:         string(sub.Status),
	}
	if !sub.CreatedAt.IsZero() {
		it.CreatedAt = formatTimestamp(sub.CreatedAt)
	}
	if sub.LastMessageAt != nil {
		last := formatTimestamp(*sub.LastMessageAt)
		it.LastEmailReceived = &last
	}
	return it
}

func (it item) subscriber() (*models.Subscriber, error) {
	created, err := parseTimestamp(it.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	sub := &models.Subscriber{
		SubscriberID: it.TelegramUserID,
		Alias:        it.EmailAddress,
		Status:       models.SubscriberStatus(it.Status),
		CreatedAt:    created,
	}
	if it.LastEmailReceived != nil && strings.TrimSpace(*it.LastEmailReceived) != "" {
		last, err := parseTimestamp(*it.LastEmailReceived)
		if err != nil {
			return nil, fmt.Errorf("last_email_received: %w", err)
		}
		sub.LastMessageAt = &last
	}
	return sub, nil
}

func key(subscriberID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		keyAttr: &types.AttributeValueMemberS{Value: subscriberID},
	}
}

func (s *SubscriberStore) GetSubscriber(ctx context.Context, subscriberID string) (*models.Subscriber, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            key(subscriberID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get subscriber %s: %w", stage.ErrTransientIO, subscriberID, err)
	}
	if len(out.Item) == 0 {
		return nil, store.ErrSubscriberNotFound
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("decode subscriber %s: %w", subscriberID, err)
	}
	sub, err := it.subscriber()
	if err != nil {
		return nil, fmt.Errorf("decode subscriber %s: %w", subscriberID, err)
	}
	return sub, nil
}

func (s *SubscriberStore) PutSubscriber(ctx context.Context, sub *models.Subscriber) error {
	av, err := attributevalue.MarshalMap(toItem(sub))
	if err != nil {
		return fmt.Errorf("encode subscriber %s: %w", sub.SubscriberID, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(#k) OR #s <> :active"),
		ExpressionAttributeNames: map[string]string{
			"#k": keyAttr,
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":active": &types.AttributeValueMemberS{Value: string(models.StatusActive)},
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("put subscriber %s: %w", sub.SubscriberID, store.ErrConditionFailed)
	}
	if err != nil {
		return fmt.Errorf("%w: put subscriber %s: %w", stage.ErrTransientIO, sub.SubscriberID, err)
	}
	return nil
}

// UpdateSubscriberField uses attribute name placeholders throughout since
// "status" is a DynamoDB reserved word.
func (s *SubscriberStore) UpdateSubscriberField(ctx context.Context, subscriberID string, field models.SubscriberField, value any) error {
	if err := store.CheckField(field, value); err != nil {
		return err
	}
	attr, err := attributeFor(field)
	if err != nil {
		return err
	}
	if t, ok := value.(time.Time); ok {
		value = formatTimestamp(t)
	}
	av, err := attributevalue.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", field, err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 key(subscriberID),
		UpdateExpression:    aws.String("SET #f = :v"),
		ConditionExpression: aws.String("attribute_exists(#k)"),
		ExpressionAttributeNames: map[string]string{
			"#f": attr,
			"#k": keyAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": av},
	})
	if isConditionFailed(err) {
		return store.ErrSubscriberNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: update subscriber %s: %w", stage.ErrTransientIO, subscriberID, err)
	}
	return nil
}

func attributeFor(field models.SubscriberField) (string, error) {
	switch field {
	case models.FieldStatus:
		return "status", nil
	case models.FieldLastMessageAt:
		return "last_email_received", nil
	default:
		return "", fmt.Errorf("%w: %q", store.ErrUnknownField, field)
	}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return err != nil && errors.As(err, &ccf)
}
