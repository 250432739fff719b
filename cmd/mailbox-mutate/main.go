// Package main implements the mailbox mutation command Lambda handler.
// It demultiplexes CREATE, DELETE, RENAME, SUBSCRIBE, and UNSUBSCRIBE
// onto the command orchestrator and classifies outcomes for the
// protocol frontend.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda/xrayconfig"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel"

	"github.com/tidemail/imap-service-mailbox/internal/alias"
	"github.com/tidemail/imap-service-mailbox/internal/changelog"
	"github.com/tidemail/imap-service-mailbox/internal/contract"
	imaphandler "github.com/tidemail/imap-service-mailbox/internal/handler"
	"github.com/tidemail/imap-service-mailbox/internal/imaperror"
	"github.com/tidemail/imap-service-mailbox/internal/logging"
	"github.com/tidemail/imap-service-mailbox/internal/mailbox"
	"github.com/tidemail/imap-service-mailbox/internal/session"
	"github.com/tidemail/imap-service-mailbox/internal/storagework"
)

var logger = logging.New()

// Mutator defines the command operations this Lambda dispatches to.
type Mutator interface {
	Create(ctx context.Context, sess *session.Session, path string) (string, error)
	Delete(ctx context.Context, sess *session.Session, path string) error
	Rename(ctx context.Context, sess *session.Session, oldPath, newPath string) error
	Subscribe(ctx context.Context, sess *session.Session, path string) error
	Unsubscribe(ctx context.Context, sess *session.Session, path string) error
}

// handler demultiplexes mutation commands.
type handler struct {
	mutator Mutator
}

// newHandler creates a new handler.
func newHandler(mutator Mutator) *handler {
	return &handler{mutator: mutator}
}

// handle processes one mutation command request.
func (h *handler) handle(ctx context.Context, request contract.CommandRequest) (contract.CommandResponse, error) {
	tracer := otel.Tracer("imap-mailbox-mutate")
	ctx, span := tracer.Start(ctx, "MailboxMutateHandler")
	defer span.End()

	sess := &session.Session{
		ID:         request.SessionID,
		AccountID:  request.AccountID,
		AliasID:    request.AliasID,
		RemoteAddr: request.RemoteAddr,
		Locale:     request.Locale,
	}

	var mailboxID string
	var err error

	switch request.Command {
	case imaphandler.CommandCreate:
		mailboxID, err = h.mutator.Create(ctx, sess, request.Path)
	case imaphandler.CommandDelete:
		err = h.mutator.Delete(ctx, sess, request.Path)
	case imaphandler.CommandRename:
		err = h.mutator.Rename(ctx, sess, request.Path, request.NewPath)
	case imaphandler.CommandSubscribe:
		err = h.mutator.Subscribe(ctx, sess, request.Path)
	case imaphandler.CommandUnsubscribe:
		err = h.mutator.Unsubscribe(ctx, sess, request.Path)
	default:
		return contract.CommandResponse{
			OK:    false,
			Error: "unknown command: " + request.Command,
		}, nil
	}

	if err != nil {
		return classify(ctx, request, err), nil
	}

	return contract.CommandResponse{
		OK:        true,
		MailboxID: mailboxID,
	}, nil
}

// classify splits command failures into structured refusals, which go
// back to the client with their response code, and internal faults,
// which are logged in full and surfaced opaquely.
func classify(ctx context.Context, request contract.CommandRequest, err error) contract.CommandResponse {
	var tagged *imaperror.Error
	if errors.As(err, &tagged) {
		logger.DebugContext(ctx, "Command refused",
			slog.String("command", request.Command),
			slog.String("account_id", request.AccountID),
			slog.String("path", request.Path),
			slog.String("response", string(tagged.Code)),
		)
		return contract.CommandResponse{
			OK:       false,
			Response: string(tagged.Code),
			Message:  tagged.Message,
		}
	}

	logger.ErrorContext(ctx, "Command failed",
		slog.String("command", request.Command),
		slog.String("session_id", request.SessionID),
		slog.String("account_id", request.AccountID),
		slog.String("alias_id", request.AliasID),
		slog.String("path", request.Path),
		slog.String("new_path", request.NewPath),
		slog.String("error", err.Error()),
	)
	return contract.CommandResponse{
		OK:    false,
		Error: "internal server error",
	}
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
	storageQueueURL := os.Getenv("STORAGE_QUEUE_URL")
	redisURL := os.Getenv("REDIS_URL")

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("FATAL: Failed to load AWS config", slog.String("error", err.Error()))
		panic(err)
	}

	// Instrument AWS SDK clients with OTel tracing
	otelaws.AppendMiddlewares(&cfg.APIOptions)

	dynamoClient := dynamodb.NewFromConfig(cfg)
	aliasRepo := alias.NewDynamoDBRepository(dynamoClient, tableName)
	mailboxRepo := mailbox.NewDynamoDBRepository(dynamoClient, tableName)
	changeLog := changelog.NewLog(dynamoClient, tableName, changelog.DefaultRetentionDays)

	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Error("FATAL: Invalid REDIS_URL", slog.String("error", err.Error()))
		panic(err)
	}
	notifier := changelog.NewRedisNotifier(changeLog, redis.NewClient(redisOpts))

	var storagePub storagework.Publisher
	if storageQueueURL != "" {
		sqsClient := sqs.NewFromConfig(cfg)
		storagePub = storagework.NewSQSPublisher(sqsClient, storageQueueURL)
	}

	handlerCfg := imaphandler.Config{
		MaxMailboxes:   imaphandler.DefaultMaxMailboxes,
		StorageTimeout: storagework.DefaultTimeout,
	}
	if v := os.Getenv("MAX_MAILBOXES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			handlerCfg.MaxMailboxes = n
		}
	}
	if v := os.Getenv("STORAGE_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			handlerCfg.StorageTimeout = time.Duration(n) * time.Millisecond
		}
	}

	mutator := imaphandler.New(
		session.NewStoreRefresher(aliasRepo),
		aliasRepo,
		mailboxRepo,
		notifier,
		storagePub,
		logger,
		handlerCfg,
	)

	h := newHandler(mutator)
	lambda.Start(otellambda.InstrumentHandler(h.handle, xrayconfig.WithRecommendedOptions(tp)...))
}
