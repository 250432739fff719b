// Package main implements the storage-recompute SQS consumer Lambda
// handler. The mutation command layer enqueues recompute requests
// fire-and-forget; this worker does the actual summation and persists
// the figure onto the alias.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda/xrayconfig"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel"

	"github.com/tidemail/imap-service-mailbox/internal/accounting"
	"github.com/tidemail/imap-service-mailbox/internal/alias"
	"github.com/tidemail/imap-service-mailbox/internal/logging"
	"github.com/tidemail/imap-service-mailbox/internal/storagework"
)

var logger = logging.New()

// Recomputer recalculates and persists an account's storage usage.
type Recomputer interface {
	RecomputeSize(ctx context.Context, accountID, aliasID string) (int64, error)
}

// handler implements the storage-recompute SQS consumer logic.
type handler struct {
	recomputer Recomputer
}

// newHandler creates a new handler.
func newHandler(recomputer Recomputer) *handler {
	return &handler{recomputer: recomputer}
}

// handle processes an SQS event containing recompute requests. Failed
// records are reported individually so only they return to the queue.
func (h *handler) handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	tracer := otel.Tracer("imap-storage-recompute")
	ctx, span := tracer.Start(ctx, "StorageRecomputeHandler")
	defer span.End()

	var failures []events.SQSBatchItemFailure

	for _, record := range event.Records {
		var msg storagework.Message
		if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
			logger.ErrorContext(ctx, "Failed to parse SQS message",
				slog.String("message_id", record.MessageId),
				slog.String("error", err.Error()),
			)
			failures = append(failures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
			continue
		}

		if msg.Action != storagework.ActionSize {
			logger.ErrorContext(ctx, "Unknown recompute action",
				slog.String("message_id", record.MessageId),
				slog.String("action", string(msg.Action)),
			)
			continue
		}

		used, err := h.recomputer.RecomputeSize(ctx, msg.AccountID, msg.AliasID)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to recompute storage usage",
				slog.String("account_id", msg.AccountID),
				slog.String("alias_id", msg.AliasID),
				slog.String("error", err.Error()),
			)
			failures = append(failures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
			continue
		}

		logger.InfoContext(ctx, "Storage usage recomputed",
			slog.String("account_id", msg.AccountID),
			slog.String("alias_id", msg.AliasID),
			slog.Int64("bytes", used),
		)
	}

	logger.InfoContext(ctx, "Recompute batch completed",
		slog.Int("total", len(event.Records)),
		slog.Int("failures", len(failures)),
	)

	return events.SQSEventResponse{
		BatchItemFailures: failures,
	}, nil
}

func main() {
	ctx := context.Background()

	tp, err := xrayconfig.NewTracerProvider(ctx)
	if err != nil {
		logger.Error("FATAL: Failed to initialize tracer provider", slog.String("error", err.Error()))
		panic(err)
	}
	otel.SetTracerProvider(tp)

	tableName := os.Getenv("MAIL_TABLE_NAME")

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("FATAL: Failed to load AWS config", slog.String("error", err.Error()))
		panic(err)
	}

	// Instrument AWS SDK clients with OTel tracing
	otelaws.AppendMiddlewares(&cfg.APIOptions)

	dynamoClient := dynamodb.NewFromConfig(cfg)
	aliasRepo := alias.NewDynamoDBRepository(dynamoClient, tableName)
	recomputer := accounting.NewRecomputer(dynamoClient, tableName, aliasRepo)

	h := newHandler(recomputer)
	lambda.Start(otellambda.InstrumentHandler(h.handle, xrayconfig.WithRecommendedOptions(tp)...))
}
