// Package counts implements the scheduled refresh of denormalized
// aggregate counts: how many domains each account administers and how
// many aliases each domain carries. The figures are advisory and are
// rebuilt from scratch on every run rather than maintained
// incrementally.
package counts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"

	"github.com/tidemail/imap-service-mailbox/internal/dynamo"
)

const (
	// Sort keys for the singleton account and domain records.
	SKAccount = "ACCOUNT"
	SKDomain  = "DOMAIN"

	// Sort key prefix for alias records under an account partition.
	PrefixAlias = "ALIAS#"

	AttrDomainCount     = "domainCount"
	AttrAliasCount      = "aliasCount"
	AttrAdminAccountIDs = "adminAccountIds"
	AttrDomainID        = "domainId"
	AttrUpdatedAt       = "updatedAt"
)

// writeConcurrency bounds parallel UpdateItem calls during persist.
const writeConcurrency = 8

// Stats reports how many records a refresh touched.
type Stats struct {
	AccountsUpdated int
	DomainsUpdated  int
}

// Aggregator rebuilds the aggregate counts.
type Aggregator struct {
	client    dynamo.Client
	tableName string
	logger    *slog.Logger
}

// NewAggregator creates a new Aggregator.
func NewAggregator(client dynamo.Client, tableName string, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Refresh recomputes both aggregates. The two scans are independent and
// run concurrently; a failure in either aborts the run.
func (a *Aggregator) Refresh(ctx context.Context) (Stats, error) {
	var stats Stats
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := a.refreshDomainCounts(ctx)
		if err != nil {
			return fmt.Errorf("refresh domain counts: %w", err)
		}
		mu.Lock()
		stats.AccountsUpdated = n
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		n, err := a.refreshAliasCounts(ctx)
		if err != nil {
			return fmt.Errorf("refresh alias counts: %w", err)
		}
		mu.Lock()
		stats.DomainsUpdated = n
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	a.logger.InfoContext(ctx, "aggregate counts refreshed",
		"accountsUpdated", stats.AccountsUpdated,
		"domainsUpdated", stats.DomainsUpdated)
	return stats, nil
}

// refreshDomainCounts tallies, per account, the number of domains that
// list it as an administrator, then writes the tally onto each account
// record.
func (a *Aggregator) refreshDomainCounts(ctx context.Context) (int, error) {
	tally := make(map[string]int)

	err := a.scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(a.tableName),
		FilterExpression: aws.String(dynamo.AttrSK + " = :sk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sk": &types.AttributeValueMemberS{Value: SKDomain},
		},
		ProjectionExpression: aws.String(AttrAdminAccountIDs),
	}, func(item map[string]types.AttributeValue) {
		admins, ok := item[AttrAdminAccountIDs].(*types.AttributeValueMemberSS)
		if !ok {
			return
		}
		for _, accountID := range admins.Value {
			tally[accountID]++
		}
	})
	if err != nil {
		return 0, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(writeConcurrency)
	for accountID, count := range tally {
		g.Go(func() error {
			return a.writeCount(ctx,
				dynamo.PrefixAccount+accountID, SKAccount,
				AttrDomainCount, count)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(tally), nil
}

// refreshAliasCounts tallies aliases per domain and writes the tally
// onto each domain record. Domains with no aliases keep their previous
// figure; a domain only reaches zero when it is recreated.
func (a *Aggregator) refreshAliasCounts(ctx context.Context) (int, error) {
	tally := make(map[string]int)

	err := a.scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(a.tableName),
		FilterExpression: aws.String("begins_with(" + dynamo.AttrSK + ", :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: PrefixAlias},
		},
		ProjectionExpression: aws.String(AttrDomainID),
	}, func(item map[string]types.AttributeValue) {
		domainID, ok := item[AttrDomainID].(*types.AttributeValueMemberS)
		if !ok || domainID.Value == "" {
			return
		}
		tally[domainID.Value]++
	})
	if err != nil {
		return 0, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(writeConcurrency)
	for domainID, count := range tally {
		g.Go(func() error {
			return a.writeCount(ctx,
				dynamo.PrefixDomain+domainID, SKDomain,
				AttrAliasCount, count)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(tally), nil
}

// scan pages through a full table scan, invoking fn for every item.
func (a *Aggregator) scan(ctx context.Context, input *dynamodb.ScanInput, fn func(map[string]types.AttributeValue)) error {
	var startKey map[string]types.AttributeValue
	for {
		input.ExclusiveStartKey = startKey
		output, err := a.client.Scan(ctx, input)
		if err != nil {
			return err
		}
		for _, item := range output.Items {
			fn(item)
		}
		if output.LastEvaluatedKey == nil {
			return nil
		}
		startKey = output.LastEvaluatedKey
	}
}

func (a *Aggregator) writeCount(ctx context.Context, pk, sk, attr string, count int) error {
	_, err := a.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(a.tableName),
		Key: map[string]types.AttributeValue{
			dynamo.AttrPK: &types.AttributeValueMemberS{Value: pk},
			dynamo.AttrSK: &types.AttributeValueMemberS{Value: sk},
		},
		// Only refresh records that still exist; a record deleted
		// mid-run is not an error.
		ConditionExpression: aws.String("attribute_exists(" + dynamo.AttrPK + ")"),
		UpdateExpression:    aws.String("SET #count = :count"),
		ExpressionAttributeNames: map[string]string{
			"#count": attr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":count": &types.AttributeValueMemberN{Value: strconv.Itoa(count)},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			a.logger.DebugContext(ctx, "count target vanished mid-refresh", "pk", pk, "sk", sk)
			return nil
		}
		return fmt.Errorf("write %s for %s: %w", attr, pk, err)
	}
	return nil
}
