package changelog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/tidemail/imap-service-mailbox/internal/dynamo"
)

// Error types for log operations.
var (
	ErrAppendFailed = errors.New("change log append failed")
)

// Log is the durable per-account change log.
type Log struct {
	client        dynamo.Client
	tableName     string
	retentionDays int
}

// NewLog creates a new Log.
func NewLog(client dynamo.Client, tableName string, retentionDays int) *Log {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &Log{
		client:        client,
		tableName:     tableName,
		retentionDays: retentionDays,
	}
}

// CurrentSeq retrieves the account's change sequence. Returns 0 when no
// change has ever been recorded.
func (l *Log) CurrentSeq(ctx context.Context, accountID string) (int64, error) {
	item := &seqItem{AccountID: accountID}

	output, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			dynamo.AttrPK: &types.AttributeValueMemberS{Value: item.PK()},
			dynamo.AttrSK: &types.AttributeValueMemberS{Value: item.SK()},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get change seq: %w", err)
	}

	if output.Item == nil {
		return 0, nil
	}

	if v, ok := output.Item[AttrSeq].(*types.AttributeValueMemberN); ok {
		seq, err := strconv.ParseInt(v.Value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse change seq: %w", err)
		}
		return seq, nil
	}

	return 0, nil
}

// Append durably records one change entry: a transaction bumps the
// account's sequence counter and puts the entry under the new sequence.
// Returns the sequence assigned to the entry.
func (l *Log) Append(ctx context.Context, entry Entry) (int64, error) {
	current, err := l.CurrentSeq(ctx, entry.AccountID)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	entry.Seq = current + 1
	entry.Timestamp = now
	entry.TTL = now.Add(time.Duration(l.retentionDays) * 24 * time.Hour).Unix()

	counter := &seqItem{AccountID: entry.AccountID}

	item := map[string]types.AttributeValue{
		dynamo.AttrPK: &types.AttributeValueMemberS{Value: entry.PK()},
		dynamo.AttrSK: &types.AttributeValueMemberS{Value: entry.SK()},
		AttrSeq:       &types.AttributeValueMemberN{Value: strconv.FormatInt(entry.Seq, 10)},
		AttrCommand:   &types.AttributeValueMemberS{Value: entry.Command},
		AttrMailboxID: &types.AttributeValueMemberS{Value: entry.MailboxID},
		AttrPath:      &types.AttributeValueMemberS{Value: entry.Path},
		AttrTimestamp: &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		AttrTTL:       &types.AttributeValueMemberN{Value: strconv.FormatInt(entry.TTL, 10)},
	}
	if entry.NewPath != "" {
		item[AttrNewPath] = &types.AttributeValueMemberS{Value: entry.NewPath}
	}

	_, err = l.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName: aws.String(l.tableName),
					Key: map[string]types.AttributeValue{
						dynamo.AttrPK: &types.AttributeValueMemberS{Value: counter.PK()},
						dynamo.AttrSK: &types.AttributeValueMemberS{Value: counter.SK()},
					},
					UpdateExpression: aws.String("SET " + AttrSeq + " = if_not_exists(" + AttrSeq + ", :zero) + :one, " + AttrUpdatedAt + " = :now"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":zero": &types.AttributeValueMemberN{Value: "0"},
						":one":  &types.AttributeValueMemberN{Value: "1"},
						":now":  &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
					},
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(l.tableName),
					ConditionExpression: aws.String("attribute_not_exists(" + dynamo.AttrPK + ")"),
					Item:                item,
				},
			},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}

	return entry.Seq, nil
}

// EntriesSince retrieves change entries recorded after sinceSeq, oldest
// first. Consumers (IDLE listeners catching up after a wake-up) page with
// maxEntries.
func (l *Log) EntriesSince(ctx context.Context, accountID string, sinceSeq int64, maxEntries int) ([]Entry, error) {
	skStart := fmt.Sprintf("%s%010d", PrefixChange, sinceSeq+1)
	skEnd := fmt.Sprintf("%s%010d", PrefixChange, int64(MaxSeqValue))

	queryInput := &dynamodb.QueryInput{
		TableName:              aws.String(l.tableName),
		KeyConditionExpression: aws.String(dynamo.AttrPK + " = :pk AND " + dynamo.AttrSK + " BETWEEN :skStart AND :skEnd"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":      &types.AttributeValueMemberS{Value: dynamo.PrefixAccount + accountID},
			":skStart": &types.AttributeValueMemberS{Value: skStart},
			":skEnd":   &types.AttributeValueMemberS{Value: skEnd},
		},
		ScanIndexForward: aws.Bool(true),
	}
	if maxEntries > 0 {
		queryInput.Limit = aws.Int32(int32(maxEntries))
	}

	output, err := l.client.Query(ctx, queryInput)
	if err != nil {
		return nil, fmt.Errorf("failed to query change entries: %w", err)
	}

	entries := make([]Entry, 0, len(output.Items))
	for _, item := range output.Items {
		entry := Entry{AccountID: accountID}

		if v, ok := item[AttrSeq].(*types.AttributeValueMemberN); ok {
			if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
				entry.Seq = n
			}
		}
		if v, ok := item[AttrCommand].(*types.AttributeValueMemberS); ok {
			entry.Command = v.Value
		}
		if v, ok := item[AttrMailboxID].(*types.AttributeValueMemberS); ok {
			entry.MailboxID = v.Value
		}
		if v, ok := item[AttrPath].(*types.AttributeValueMemberS); ok {
			entry.Path = v.Value
		}
		if v, ok := item[AttrNewPath].(*types.AttributeValueMemberS); ok {
			entry.NewPath = v.Value
		}
		if v, ok := item[AttrTimestamp].(*types.AttributeValueMemberS); ok {
			if t, err := time.Parse(time.RFC3339, v.Value); err == nil {
				entry.Timestamp = t
			}
		}

		entries = append(entries, entry)
	}

	return entries, nil
}
