package mailbox

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/tidemail/imap-service-mailbox/internal/dynamo"
)

// DynamoDBRepository implements Repository using DynamoDB.
type DynamoDBRepository struct {
	client    dynamo.Client
	tableName string
}

// NewDynamoDBRepository creates a new DynamoDBRepository.
func NewDynamoDBRepository(client dynamo.Client, tableName string) *DynamoDBRepository {
	return &DynamoDBRepository{
		client:    client,
		tableName: tableName,
	}
}

// FindByPath retrieves the mailbox at the given path, if any.
func (r *DynamoDBRepository) FindByPath(ctx context.Context, accountID, path string) (*Mailbox, error) {
	mailbox := &Mailbox{AccountID: accountID, Path: path}

	output, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			dynamo.AttrPK: &types.AttributeValueMemberS{Value: mailbox.PK()},
			dynamo.AttrSK: &types.AttributeValueMemberS{Value: mailbox.SK()},
		},
	})
	if err != nil {
		return nil, err
	}

	if output.Item == nil {
		return nil, ErrMailboxNotFound
	}

	return unmarshalMailbox(output.Item), nil
}

// CountMailboxes returns the number of mailboxes for an account.
func (r *DynamoDBRepository) CountMailboxes(ctx context.Context, accountID string) (int, error) {
	count := 0
	var startKey map[string]types.AttributeValue

	for {
		output, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			KeyConditionExpression: aws.String(dynamo.AttrPK + " = :pk AND begins_with(" + dynamo.AttrSK + ", :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: dynamo.PrefixAccount + accountID},
				":prefix": &types.AttributeValueMemberS{Value: PrefixMailbox},
			},
			Select:            types.SelectCount,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return 0, err
		}

		count += int(output.Count)
		if output.LastEvaluatedKey == nil {
			break
		}
		startKey = output.LastEvaluatedKey
	}

	return count, nil
}

// Create inserts a new mailbox document. The conditional write is the
// uniqueness constraint: a concurrent create of the same path loses here
// and observes ErrMailboxExists, regardless of any earlier existence
// pre-check.
func (r *DynamoDBRepository) Create(ctx context.Context, mailbox *Mailbox) error {
	_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                marshalMailbox(mailbox),
		ConditionExpression: aws.String("attribute_not_exists(" + dynamo.AttrPK + ")"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrMailboxExists
		}
		return err
	}
	return nil
}

// SetSubscribed atomically finds the mailbox at path and sets its
// subscribed flag in one operation, returning the updated document.
// Returns ErrMailboxNotFound if no document matched.
func (r *DynamoDBRepository) SetSubscribed(ctx context.Context, accountID, path string, subscribed bool) (*Mailbox, error) {
	mailbox := &Mailbox{AccountID: accountID, Path: path}

	output, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			dynamo.AttrPK: &types.AttributeValueMemberS{Value: mailbox.PK()},
			dynamo.AttrSK: &types.AttributeValueMemberS{Value: mailbox.SK()},
		},
		UpdateExpression: aws.String("SET " + AttrSubscribed + " = :subscribed, " + AttrUpdatedAt + " = :updatedAt"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":subscribed": &types.AttributeValueMemberBOOL{Value: subscribed},
			":updatedAt":  &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_exists(" + dynamo.AttrPK + ")"),
		ReturnValues:        types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrMailboxNotFound
		}
		return nil, err
	}

	return unmarshalMailbox(output.Attributes), nil
}

// Delete removes the mailbox at path and returns the deleted document.
func (r *DynamoDBRepository) Delete(ctx context.Context, accountID, path string) (*Mailbox, error) {
	mailbox := &Mailbox{AccountID: accountID, Path: path}

	output, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			dynamo.AttrPK: &types.AttributeValueMemberS{Value: mailbox.PK()},
			dynamo.AttrSK: &types.AttributeValueMemberS{Value: mailbox.SK()},
		},
		ConditionExpression: aws.String("attribute_exists(" + dynamo.AttrPK + ")"),
		ReturnValues:        types.ReturnValueAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrMailboxNotFound
		}
		return nil, err
	}

	return unmarshalMailbox(output.Attributes), nil
}

// Rename moves the mailbox at oldPath to newPath in a single transaction:
// a conditional put of the new document and a conditional delete of the
// old one. Either both conditions hold or nothing changes.
func (r *DynamoDBRepository) Rename(ctx context.Context, accountID, oldPath, newPath string) (*Mailbox, error) {
	existing, err := r.FindByPath(ctx, accountID, oldPath)
	if err != nil {
		return nil, err
	}

	old := &Mailbox{AccountID: accountID, Path: oldPath}
	renamed := *existing
	renamed.Path = newPath
	renamed.UpdatedAt = time.Now().UTC()

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(r.tableName),
					Item:                marshalMailbox(&renamed),
					ConditionExpression: aws.String("attribute_not_exists(" + dynamo.AttrPK + ")"),
				},
			},
			{
				Delete: &types.Delete{
					TableName: aws.String(r.tableName),
					Key: map[string]types.AttributeValue{
						dynamo.AttrPK: &types.AttributeValueMemberS{Value: old.PK()},
						dynamo.AttrSK: &types.AttributeValueMemberS{Value: old.SK()},
					},
					ConditionExpression: aws.String("attribute_exists(" + dynamo.AttrPK + ")"),
				},
			},
		},
	})
	if err != nil {
		return nil, mapRenameError(err)
	}

	return &renamed, nil
}

// mapRenameError turns transaction cancellation reasons back into the
// repository's sentinel errors. The reasons arrive in transact-item
// order: put of the new path first, delete of the old path second.
func mapRenameError(err error) error {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return err
	}
	if len(tce.CancellationReasons) >= 1 && isConditionFailure(tce.CancellationReasons[0]) {
		return ErrMailboxExists
	}
	if len(tce.CancellationReasons) >= 2 && isConditionFailure(tce.CancellationReasons[1]) {
		return ErrMailboxNotFound
	}
	return err
}

func isConditionFailure(reason types.CancellationReason) bool {
	return reason.Code != nil && *reason.Code == "ConditionalCheckFailed"
}

// marshalMailbox converts a Mailbox to DynamoDB attribute values.
func marshalMailbox(mailbox *Mailbox) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamo.AttrPK:   &types.AttributeValueMemberS{Value: mailbox.PK()},
		dynamo.AttrSK:   &types.AttributeValueMemberS{Value: mailbox.SK()},
		AttrMailboxID:   &types.AttributeValueMemberS{Value: mailbox.MailboxID},
		AttrAccountID:   &types.AttributeValueMemberS{Value: mailbox.AccountID},
		AttrAliasID:     &types.AttributeValueMemberS{Value: mailbox.AliasID},
		AttrPath:        &types.AttributeValueMemberS{Value: mailbox.Path},
		AttrSubscribed:  &types.AttributeValueMemberBOOL{Value: mailbox.Subscribed},
		AttrRetentionMs: &types.AttributeValueMemberN{Value: strconv.FormatInt(mailbox.Retention.Milliseconds(), 10)},
		AttrCreatedAt:   &types.AttributeValueMemberS{Value: mailbox.CreatedAt.UTC().Format(time.RFC3339)},
		AttrUpdatedAt:   &types.AttributeValueMemberS{Value: mailbox.UpdatedAt.UTC().Format(time.RFC3339)},
	}
}

// unmarshalMailbox converts DynamoDB attribute values to a Mailbox.
func unmarshalMailbox(item map[string]types.AttributeValue) *Mailbox {
	mailbox := &Mailbox{}

	if v, ok := item[AttrMailboxID].(*types.AttributeValueMemberS); ok {
		mailbox.MailboxID = v.Value
	}
	if v, ok := item[AttrAccountID].(*types.AttributeValueMemberS); ok {
		mailbox.AccountID = v.Value
	}
	if v, ok := item[AttrAliasID].(*types.AttributeValueMemberS); ok {
		mailbox.AliasID = v.Value
	}
	if v, ok := item[AttrPath].(*types.AttributeValueMemberS); ok {
		mailbox.Path = v.Value
	}
	if v, ok := item[AttrSubscribed].(*types.AttributeValueMemberBOOL); ok {
		mailbox.Subscribed = v.Value
	}
	if v, ok := item[AttrRetentionMs].(*types.AttributeValueMemberN); ok {
		if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			mailbox.Retention = time.Duration(n) * time.Millisecond
		}
	}
	if v, ok := item[AttrCreatedAt].(*types.AttributeValueMemberS); ok {
		if t, err := time.Parse(time.RFC3339, v.Value); err == nil {
			mailbox.CreatedAt = t
		}
	}
	if v, ok := item[AttrUpdatedAt].(*types.AttributeValueMemberS); ok {
		if t, err := time.Parse(time.RFC3339, v.Value); err == nil {
			mailbox.UpdatedAt = t
		}
	}

	return mailbox
}
