package storagework

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Publisher requests asynchronous storage recomputation for an account.
// Callers bound the call with their own timeout; failures are advisory
// and must never surface as command failures.
type Publisher interface {
	RequestRecompute(ctx context.Context, accountID, aliasID string) error
}

// SQSSender abstracts SQS send operations for dependency inversion.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher publishes accounting requests to an SQS queue consumed by
// the storage-recompute worker.
type SQSPublisher struct {
	client   SQSSender
	queueURL string
}

// NewSQSPublisher creates a new SQSPublisher.
func NewSQSPublisher(client SQSSender, queueURL string) *SQSPublisher {
	return &SQSPublisher{
		client:   client,
		queueURL: queueURL,
	}
}

// RequestRecompute sends a size-recomputation message to the worker queue.
func (p *SQSPublisher) RequestRecompute(ctx context.Context, accountID, aliasID string) error {
	msg := Message{
		AccountID: accountID,
		AliasID:   aliasID,
		Action:    ActionSize,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	bodyStr := string(body)
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &p.queueURL,
		MessageBody: &bodyStr,
	})
	return err
}
