// Package main implements the mailbox-changes Lambda handler. IDLE
// listeners woken by the change signal call it to fetch the entries
// appended since the sequence they last saw.
package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda/xrayconfig"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel"

	"github.com/tidemail/imap-service-mailbox/internal/changelog"
	"github.com/tidemail/imap-service-mailbox/internal/logging"
)

var logger = logging.New()

// defaultMaxEntries caps how many change entries one request returns.
const defaultMaxEntries = 256

// ChangeLog reads the per-account change log.
type ChangeLog interface {
	CurrentSeq(ctx context.Context, accountID string) (int64, error)
	EntriesSince(ctx context.Context, accountID string, sinceSeq int64, maxEntries int) ([]changelog.Entry, error)
}

// ChangesRequest asks for entries appended after SinceSeq.
type ChangesRequest struct {
	AccountID  string `json:"accountId"`
	SinceSeq   int64  `json:"sinceSeq"`
	MaxEntries int    `json:"maxEntries,omitempty"`
}

// ChangeRecord is one change entry on the wire.
type ChangeRecord struct {
	Seq       int64     `json:"seq"`
	Command   string    `json:"command"`
	MailboxID string    `json:"mailboxId"`
	Path      string    `json:"path"`
	NewPath   string    `json:"newPath,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ChangesResponse carries the entries and the sequence to resume from.
type ChangesResponse struct {
	CurrentSeq int64          `json:"currentSeq"`
	Changes    []ChangeRecord `json:"changes"`
	HasMore    bool           `json:"hasMore"`
}

// handler implements the change-feed logic.
type handler struct {
	log        ChangeLog
	maxEntries int
}

// newHandler creates a new handler.
func newHandler(log ChangeLog, maxEntries int) *handler {
	return &handler{log: log, maxEntries: maxEntries}
}

// handle returns the change entries after the requested sequence.
func (h *handler) handle(ctx context.Context, request ChangesRequest) (ChangesResponse, error) {
	tracer := otel.Tracer("imap-mailbox-changes")
	ctx, span := tracer.Start(ctx, "MailboxChangesHandler")
	defer span.End()

	limit := h.maxEntries
	if request.MaxEntries > 0 && request.MaxEntries < limit {
		limit = request.MaxEntries
	}

	currentSeq, err := h.log.CurrentSeq(ctx, request.AccountID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read change sequence",
			slog.String("account_id", request.AccountID),
			slog.String("error", err.Error()),
		)
		return ChangesResponse{}, err
	}

	entries, err := h.log.EntriesSince(ctx, request.AccountID, request.SinceSeq, limit)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read change entries",
			slog.String("account_id", request.AccountID),
			slog.Int64("since_seq", request.SinceSeq),
			slog.String("error", err.Error()),
		)
		return ChangesResponse{}, err
	}

	changes := make([]ChangeRecord, 0, len(entries))
	var lastSeq int64
	for _, e := range entries {
		changes = append(changes, ChangeRecord{
			Seq:       e.Seq,
			Command:   e.Command,
			MailboxID: e.MailboxID,
			Path:      e.Path,
			NewPath:   e.NewPath,
			Timestamp: e.Timestamp,
		})
		lastSeq = e.Seq
	}

	return ChangesResponse{
		CurrentSeq: currentSeq,
		Changes:    changes,
		HasMore:    lastSeq < currentSeq && len(entries) == limit,
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
	changeLog := changelog.NewLog(dynamoClient, tableName, changelog.DefaultRetentionDays)

	maxEntries := defaultMaxEntries
	if v := os.Getenv("MAX_CHANGE_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxEntries = n
		}
	}

	h := newHandler(changeLog, maxEntries)
	lambda.Start(otellambda.InstrumentHandler(h.handle, xrayconfig.WithRecommendedOptions(tp)...))
}
