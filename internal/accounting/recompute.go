// Package accounting recomputes derived storage-usage figures for an
// account. It runs in the worker pool, decoupled from the mutation
// command path that requests it.
package accounting

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/tidemail/imap-service-mailbox/internal/alias"
	"github.com/tidemail/imap-service-mailbox/internal/dynamo"
)

// Message items live under the account partition.
const (
	PrefixMessage = "MSG#"
	AttrSizeBytes = "sizeBytes"
)

// Recomputer sums stored message sizes and writes the figure and the
// derived over-quota flag back onto the alias.
type Recomputer struct {
	client    dynamo.Client
	tableName string
	aliases   alias.Repository
}

// NewRecomputer creates a new Recomputer.
func NewRecomputer(client dynamo.Client, tableName string, aliases alias.Repository) *Recomputer {
	return &Recomputer{
		client:    client,
		tableName: tableName,
		aliases:   aliases,
	}
}

// RecomputeSize recalculates the account's storage usage and persists it.
// Returns the recomputed byte total.
func (r *Recomputer) RecomputeSize(ctx context.Context, accountID, aliasID string) (int64, error) {
	used, err := r.sumMessageSizes(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("sum message sizes: %w", err)
	}

	a, err := r.aliases.GetAlias(ctx, accountID, aliasID)
	if err != nil {
		return 0, fmt.Errorf("load alias: %w", err)
	}

	overQuota := a.StorageQuota > 0 && used > a.StorageQuota
	if err := r.aliases.SetStorageUsage(ctx, accountID, aliasID, used, overQuota); err != nil {
		return 0, fmt.Errorf("persist storage usage: %w", err)
	}

	return used, nil
}

// sumMessageSizes totals the sizeBytes attribute across the account's
// message items, paginating through the partition.
func (r *Recomputer) sumMessageSizes(ctx context.Context, accountID string) (int64, error) {
	var total int64
	var startKey map[string]types.AttributeValue

	for {
		output, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			KeyConditionExpression: aws.String(dynamo.AttrPK + " = :pk AND begins_with(" + dynamo.AttrSK + ", :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: dynamo.PrefixAccount + accountID},
				":prefix": &types.AttributeValueMemberS{Value: PrefixMessage},
			},
			ProjectionExpression: aws.String(AttrSizeBytes),
			ExclusiveStartKey:    startKey,
		})
		if err != nil {
			return 0, err
		}

		for _, item := range output.Items {
			if v, ok := item[AttrSizeBytes].(*types.AttributeValueMemberN); ok {
				if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
					total += n
				}
			}
		}

		if output.LastEvaluatedKey == nil {
			break
		}
		startKey = output.LastEvaluatedKey
	}

	return total, nil
}
