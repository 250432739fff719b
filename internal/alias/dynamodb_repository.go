package alias

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

// GetAlias retrieves a single alias.
func (r *DynamoDBRepository) GetAlias(ctx context.Context, accountID, aliasID string) (*Alias, error) {
	a := &Alias{AccountID: accountID, AliasID: aliasID}

	output, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			dynamo.AttrPK: &types.AttributeValueMemberS{Value: a.PK()},
			dynamo.AttrSK: &types.AttributeValueMemberS{Value: a.SK()},
		},
	})
	if err != nil {
		return nil, err
	}

	if output.Item == nil {
		return nil, ErrAliasNotFound
	}

	return unmarshalAlias(output.Item), nil
}

// IsOverQuota reports whether the alias has exceeded its storage quota.
// The stored overQuota flag is maintained by the accounting worker; the
// raw figures act as a backstop in case the flag is stale.
func (r *DynamoDBRepository) IsOverQuota(ctx context.Context, accountID, aliasID string) (bool, error) {
	a, err := r.GetAlias(ctx, accountID, aliasID)
	if err != nil {
		return false, err
	}

	if a.OverQuota {
		return true, nil
	}
	return a.StorageQuota > 0 && a.StorageUsed > a.StorageQuota, nil
}

// SetStorageUsage writes the recomputed storage figure and over-quota
// flag onto an existing alias.
func (r *DynamoDBRepository) SetStorageUsage(ctx context.Context, accountID, aliasID string, used int64, overQuota bool) error {
	a := &Alias{AccountID: accountID, AliasID: aliasID}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			dynamo.AttrPK: &types.AttributeValueMemberS{Value: a.PK()},
			dynamo.AttrSK: &types.AttributeValueMemberS{Value: a.SK()},
		},
		UpdateExpression: aws.String("SET " + AttrStorageUsed + " = :used, " + AttrOverQuota + " = :over, " + AttrUpdatedAt + " = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":used": &types.AttributeValueMemberN{Value: strconv.FormatInt(used, 10)},
			":over": &types.AttributeValueMemberBOOL{Value: overQuota},
			":now":  &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_exists(" + dynamo.AttrPK + ")"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrAliasNotFound
		}
		return err
	}
	return nil
}

// unmarshalAlias converts DynamoDB attribute values to an Alias.
func unmarshalAlias(item map[string]types.AttributeValue) *Alias {
	a := &Alias{}

	if v, ok := item[AttrAliasID].(*types.AttributeValueMemberS); ok {
		a.AliasID = v.Value
	}
	if v, ok := item[AttrAccountID].(*types.AttributeValueMemberS); ok {
		a.AccountID = v.Value
	}
	if v, ok := item[AttrDomainID].(*types.AttributeValueMemberS); ok {
		a.DomainID = v.Value
	}
	if v, ok := item[AttrStorageUsed].(*types.AttributeValueMemberN); ok {
		if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			a.StorageUsed = n
		}
	}
	if v, ok := item[AttrStorageQuota].(*types.AttributeValueMemberN); ok {
		if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			a.StorageQuota = n
		}
	}
	if v, ok := item[AttrOverQuota].(*types.AttributeValueMemberBOOL); ok {
		a.OverQuota = v.Value
	}
	if v, ok := item[AttrRetentionMs].(*types.AttributeValueMemberN); ok {
		if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			a.Retention = time.Duration(n) * time.Millisecond
		}
	}
	if v, ok := item[AttrLocale].(*types.AttributeValueMemberS); ok {
		a.Locale = v.Value
	}
	if v, ok := item[AttrUpdatedAt].(*types.AttributeValueMemberS); ok {
		if t, err := time.Parse(time.RFC3339, v.Value); err == nil {
			a.UpdatedAt = t
		}
	}

	return a
}
