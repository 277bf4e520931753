package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

		"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/znz-systems/mailbrief/internal/models"
	"github.com/znz-systems/mailbrief/internal/store"
)

// fakeTable evaluates the two condition expressions the store issues.
type fakeTable struct {
	items   map[string]map[string]types.AttributeValue
	puts    int
	updates []*dynamodb.UpdateItemInput
}

func newFakeTable() *fakeTable {
	return &fakeTable{items: map[string]map[string]types.AttributeValue{}}
}

func idOf(k map[string]types.AttributeValue) string {
	return k[keyAttr].(*types.AttributeValueMemberS).Value
}

func (f *fakeTable) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[idOf(in.Key)]}, nil
}

func (f *fakeTable) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	id := idOf(in.Item)
	if existing, ok := f.items[id]; ok {
		if s, ok := existing["status"].(*types.AttributeValueMemberS); ok && s.Value == "active" {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	f.puts++
	f.items[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	item, ok := f.items[idOf(in.Key)]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	item[in.ExpressionAttributeNames["#f"]] = in.ExpressionAttributeValues[":v"]
	return &dynamodb.UpdateItemOutput{}, nil
}

func TestSubscriberStore_PutGet(t *testing.T) {
	table := newFakeTable()
	s := NewSubscriberStore(table, "TelegramUsers")
	created := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

	sub := &models.Subscriber{SubscriberID: "42", Alias: "user_42_ab12cd@example.com", Status: models.StatusActive, CreatedAt: created}
	if err := s.PutSubscriber(context.Background(), sub); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := table.items["42"]["email_address"]; !ok {
		t.Fatalf("expected legacy attribute names, got %v", table.items["42"])
	}

	got, err := s.GetSubscriber(context.Background(), "42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Alias != sub.Alias || got.Status != models.StatusActive || !got.CreatedAt.Equal(created) || got.LastMessageAt != nil {
		t.Fatalf("unexpected subscriber %+v", got)
	}
}

func TestSubscriberStore_PutIsConditional(t *testing.T) {
	table := newFakeTable()
	s := NewSubscriberStore(table, "TelegramUsers")
	sub := &models.Subscriber{SubscriberID: "42", Alias: "a", Status: models.StatusActive}
	if err := s.PutSubscriber(context.Background(), sub); err != nil {
		t.Fatalf("put: %v", err)
	}
	err := s.PutSubscriber(context.Background(), &models.Subscriber{SubscriberID: "42", Alias: "b", Status: models.StatusActive})
	if !errors.Is(err, store.ErrConditionFailed) {
		t.Fatalf("expected ErrConditionFailed, got %v", err)
	}
}

func TestSubscriberStore_GetMissing(t *testing.T) {
	s := NewSubscriberStore(newFakeTable(), "TelegramUsers")
	if _, err := s.GetSubscriber(context.Background(), "7"); !errors.Is(err, store.ErrSubscriberNotFound) {
		t.Fatalf("expected ErrSubscriberNotFound, got %v", err)
	}
}

func TestSubscriberStore_UpdateField(t *testing.T) {
	table := newFakeTable()
	s := NewSubscriberStore(table, "TelegramUsers")
	_ = s.PutSubscriber(context.Background(), &models.Subscriber{SubscriberID: "42", Alias: "a", Status: models.StatusActive})

	if err := s.UpdateSubscriberField(context.Background(), "42", models.FieldStatus, models.StatusInactive); err != nil {
		t.Fatalf("update status: %v", err)
	}
	in := table.updates[0]
	if in.ExpressionAttributeNames["#f"] != "status" || *in.UpdateExpression != "SET #f = :v" {
		t.Fatalf("expected placeholder update, got %+v", in)
	}

	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	if err := s.UpdateSubscriberField(context.Background(), "42", models.FieldLastMessageAt, now); err != nil {
		t.Fatalf("update last message: %v", err)
	}

	if v, ok := table.items["42"]["last_email_received"].(*types.AttributeValueMemberS); !ok || v.Value != "2024-03-05T10:00:00Z" {
		t.Fatalf("expected RFC 3339 string, got %#v", table.items["42"]["last_email_received"])
	}
	got, err := s.GetSubscriber(context.Background(), "42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusInactive || got.LastMessageAt == nil || !got.LastMessageAt.Equal(now) {
		t.Fatalf("unexpected subscriber %+v", got)
	}
}

func TestSubscriberStore_UpdateMissing(t *testing.T) {
	s := NewSubscriberStore(newFakeTable(), "TelegramUsers")
	err := s.UpdateSubscriberField(context.Background(), "9", models.FieldStatus, models.StatusInactive)
	if !errors.Is(err, store.ErrSubscriberNotFound) {
		t.Fatalf("expected ErrSubscriberNotFound, got %v", err)
	}
}

func TestSubscriberStore_GetZonelessTimestamps(t *testing.T) {
	table := newFakeTable()
	table.items["42"] = map[string]types.AttributeValue{
		"telegram_user_id":    &types.AttributeValueMemberS{Value: "42"},
		"email_address":       &types.AttributeValueMemberS{Value: "user_42_ab12cd@example.com"},
		"status":              &types.AttributeValueMemberS{Value: "active"},
		"created_at":          &types.AttributeValueMemberS{Value: "2024-03-05T12:34:56.123456"},
		"last_email_received": &types.AttributeValueMemberNULL{Value: true},
	}
	s := NewSubscriberStore(table, "TelegramUsers")

	got, err := s.GetSubscriber(context.Background(), "42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := time.Date(2024, 3, 5, 12, 34, 56, 123456000, time.UTC)
	if !got.CreatedAt.Equal(want) || got.LastMessageAt != nil || !got.Active() {
		t.Fatalf("unexpected subscriber %+v", got)
	}

	table.items["42"]["last_email_received"] = &types.AttributeValueMemberS{Value: "2024-03-06T08:00:00"}
	got, err = s.GetSubscriber(context.Background(), "42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastMessageAt == nil || !got.LastMessageAt.Equal(time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected last message time %v", got.LastMessageAt)
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-05T12:34:56Z", time.Date(2024, 3, 5, 12, 34, 56, 0, time.UTC)},
		{"2024-03-05T12:34:56+02:00", time.Date(2024, 3, 5, 10, 34, 56, 0, time.UTC)},
		{"2024-03-05T12:34:56", time.Date(2024, 3, 5, 12, 34, 56, 0, time.UTC)},
		{"2024-03-05 12:34:56.5", time.Date(2024, 3, 5, 12, 34, 56, 500000000, time.UTC)},
		{"", time.Time{}},
	}
	for _, tc := range cases {
		got, err := parseTimestamp(tc.in)
		if err != nil || !got.Equal(tc.want) {
			t.Fatalf("parseTimestamp(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}
	if _, err := parseTimestamp("yesterday"); err == nil {
		t.Fatal("expected error for garbage timestamp")
	}
}
