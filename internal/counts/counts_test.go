package counts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type mockDynamoClient struct {
	scanFunc   func(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	updateFunc func(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

func (m *mockDynamoClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockDynamoClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockDynamoClient) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if m.scanFunc != nil {
		return m.scanFunc(ctx, params, optFns...)
	}
	return nil, errors.New("not implemented")
}

func (m *mockDynamoClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockDynamoClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, params, optFns...)
	}
	return nil, errors.New("not implemented")
}

func (m *mockDynamoClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockDynamoClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockDynamoClient) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	return nil, errors.New("not implemented")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func domainItem(admins ...string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrAdminAccountIDs: &types.AttributeValueMemberSS{Value: admins},
	}
}

func aliasItem(domainID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrDomainID: &types.AttributeValueMemberS{Value: domainID},
	}
}

// recordedUpdate captures one UpdateItem invocation.
type recordedUpdate struct {
	pk    string
	attr  string
	count string
}

func captureUpdates(updates *[]recordedUpdate, mu *sync.Mutex) func(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return func(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
		pk := params.Key["pk"].(*types.AttributeValueMemberS).Value
		attr := params.ExpressionAttributeNames["#count"]
		count := params.ExpressionAttributeValues[":count"].(*types.AttributeValueMemberN).Value
		mu.Lock()
		*updates = append(*updates, recordedUpdate{pk: pk, attr: attr, count: count})
		mu.Unlock()
		return &dynamodb.UpdateItemOutput{}, nil
	}
}

func TestRefresh_TalliesBothAggregates(t *testing.T) {
	var updates []recordedUpdate
	var mu sync.Mutex

	client := &mockDynamoClient{
		scanFunc: func(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
			if strings.Contains(*params.FilterExpression, "begins_with") {
				return &dynamodb.ScanOutput{
					Items: []map[string]types.AttributeValue{
						aliasItem("dom-1"), aliasItem("dom-1"), aliasItem("dom-2"),
					},
				}, nil
			}
			return &dynamodb.ScanOutput{
				Items: []map[string]types.AttributeValue{
					domainItem("acct-1"),
					domainItem("acct-1", "acct-2"),
				},
			}, nil
		},
		updateFunc: captureUpdates(&updates, &mu),
	}

	agg := NewAggregator(client, "mail-table", testLogger())
	stats, err := agg.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if stats.AccountsUpdated != 2 {
		t.Errorf("AccountsUpdated = %d, want 2", stats.AccountsUpdated)
	}
	if stats.DomainsUpdated != 2 {
		t.Errorf("DomainsUpdated = %d, want 2", stats.DomainsUpdated)
	}

	want := map[string]recordedUpdate{
		"ACCOUNT#acct-1": {pk: "ACCOUNT#acct-1", attr: AttrDomainCount, count: "2"},
		"ACCOUNT#acct-2": {pk: "ACCOUNT#acct-2", attr: AttrDomainCount, count: "1"},
		"DOMAIN#dom-1":   {pk: "DOMAIN#dom-1", attr: AttrAliasCount, count: "2"},
		"DOMAIN#dom-2":   {pk: "DOMAIN#dom-2", attr: AttrAliasCount, count: "1"},
	}
	if len(updates) != len(want) {
		t.Fatalf("got %d updates, want %d: %+v", len(updates), len(want), updates)
	}
	for _, u := range updates {
		expected, ok := want[u.pk]
		if !ok {
			t.Errorf("unexpected update for %s", u.pk)
			continue
		}
		if u != expected {
			t.Errorf("update for %s = %+v, want %+v", u.pk, u, expected)
		}
	}
}

func TestRefresh_PaginatesScans(t *testing.T) {
	var updates []recordedUpdate
	var mu sync.Mutex
	var scanMu sync.Mutex
	domainPages := 0

	client := &mockDynamoClient{
		scanFunc: func(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
			if strings.Contains(*params.FilterExpression, "begins_with") {
				return &dynamodb.ScanOutput{}, nil
			}
			scanMu.Lock()
			domainPages++
			page := domainPages
			scanMu.Unlock()
			if page == 1 {
				return &dynamodb.ScanOutput{
					Items: []map[string]types.AttributeValue{domainItem("acct-1")},
					LastEvaluatedKey: map[string]types.AttributeValue{
						"pk": &types.AttributeValueMemberS{Value: "DOMAIN#dom-1"},
					},
				}, nil
			}
			return &dynamodb.ScanOutput{
				Items: []map[string]types.AttributeValue{domainItem("acct-1")},
			}, nil
		},
		updateFunc: captureUpdates(&updates, &mu),
	}

	agg := NewAggregator(client, "mail-table", testLogger())
	if _, err := agg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if domainPages != 2 {
		t.Errorf("expected 2 domain scan pages, got %d", domainPages)
	}
	if len(updates) != 1 || updates[0].count != "2" {
		t.Errorf("expected acct-1 domain count 2 across pages, got %+v", updates)
	}
}

func TestRefresh_ScanErrorAborts(t *testing.T) {
	client := &mockDynamoClient{
		scanFunc: func(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
			return nil, errors.New("throttled")
		},
	}

	agg := NewAggregator(client, "mail-table", testLogger())
	if _, err := agg.Refresh(context.Background()); err == nil {
		t.Fatal("expected error from failing scan")
	}
}

func TestRefresh_VanishedTargetIsSkipped(t *testing.T) {
	client := &mockDynamoClient{
		scanFunc: func(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
			if strings.Contains(*params.FilterExpression, "begins_with") {
				return &dynamodb.ScanOutput{}, nil
			}
			return &dynamodb.ScanOutput{
				Items: []map[string]types.AttributeValue{domainItem("acct-1")},
			}, nil
		},
		updateFunc: func(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{Message: awsString("The conditional request failed")}
		},
	}

	agg := NewAggregator(client, "mail-table", testLogger())
	stats, err := agg.Refresh(context.Background())
	if err != nil {
		t.Fatalf("vanished target should not fail the run: %v", err)
	}
	if stats.AccountsUpdated != 1 {
		t.Errorf("AccountsUpdated = %d, want 1", stats.AccountsUpdated)
	}
}

func TestRefresh_WriteErrorAborts(t *testing.T) {
	client := &mockDynamoClient{
		scanFunc: func(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
			if strings.Contains(*params.FilterExpression, "begins_with") {
				return &dynamodb.ScanOutput{}, nil
			}
			return &dynamodb.ScanOutput{
				Items: []map[string]types.AttributeValue{domainItem("acct-1")},
			}, nil
		},
		updateFunc: func(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
			return nil, errors.New("internal server error")
		},
	}

	agg := NewAggregator(client, "mail-table", testLogger())
	if _, err := agg.Refresh(context.Background()); err == nil {
		t.Fatal("expected error from failing write")
	}
}

func awsString(s string) *string { return &s }
