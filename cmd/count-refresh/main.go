// Package main implements the count-refresh scheduled Lambda handler.
// It rebuilds the denormalized domain and alias counts on a timer.
package main

import (
	"context"
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

	"github.com/tidemail/imap-service-mailbox/internal/counts"
	"github.com/tidemail/imap-service-mailbox/internal/logging"
)

var logger = logging.New()

// Refresher rebuilds the aggregate counts.
type Refresher interface {
	Refresh(ctx context.Context) (counts.Stats, error)
}

// handler implements the scheduled refresh logic.
type handler struct {
	refresher Refresher
}

// newHandler creates a new handler.
func newHandler(refresher Refresher) *handler {
	return &handler{refresher: refresher}
}

// handle runs one refresh. The schedule retries on error.
func (h *handler) handle(ctx context.Context, event events.CloudWatchEvent) error {
	tracer := otel.Tracer("imap-count-refresh")
	ctx, span := tracer.Start(ctx, "CountRefreshHandler")
	defer span.End()

	stats, err := h.refresher.Refresh(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Count refresh failed",
			slog.String("error", err.Error()),
		)
		return err
	}

	logger.InfoContext(ctx, "Count refresh completed",
		slog.Int("accounts_updated", stats.AccountsUpdated),
		slog.Int("domains_updated", stats.DomainsUpdated),
	)
	return nil
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
	aggregator := counts.NewAggregator(dynamoClient, tableName, logger)

	h := newHandler(aggregator)
	lambda.Start(otellambda.InstrumentHandler(h.handle, xrayconfig.WithRecommendedOptions(tp)...))
}
