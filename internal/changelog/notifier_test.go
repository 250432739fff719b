package changelog

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/redis/go-redis/v9"
)

type mockPublisher struct {
	publishFunc func(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

func (m *mockPublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	if m.publishFunc != nil {
		return m.publishFunc(ctx, channel, message)
	}
	return redis.NewIntResult(0, nil)
}

func TestRedisNotifier_Fire(t *testing.T) {
	mock := &mockDynamoClient{
		getItemFunc: func(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{
				Item: map[string]types.AttributeValue{
					AttrSeq: &types.AttributeValueMemberN{Value: "17"},
				},
			}, nil
		},
	}

	var gotChannel, gotMessage string
	pub := &mockPublisher{
		publishFunc: func(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
			gotChannel = channel
			gotMessage, _ = message.(string)
			return redis.NewIntResult(1, nil)
		},
	}

	n := NewRedisNotifier(NewLog(mock, "test-table", 7), pub)
	if err := n.Fire(context.Background(), "acct-1"); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}

	if gotChannel != "mailbox:changes:acct-1" {
		t.Errorf("channel = %q, want mailbox:changes:acct-1", gotChannel)
	}
	if gotMessage != "17" {
		t.Errorf("message = %q, want %q", gotMessage, "17")
	}
}

func TestRedisNotifier_Fire_PublishError(t *testing.T) {
	pub := &mockPublisher{
		publishFunc: func(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
			return redis.NewIntResult(0, errors.New("connection refused"))
		},
	}

	n := NewRedisNotifier(NewLog(&mockDynamoClient{}, "test-table", 7), pub)
	if err := n.Fire(context.Background(), "acct-1"); err == nil {
		t.Error("Fire() error = nil, want publish error")
	}
}
