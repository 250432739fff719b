// Package handler implements the mailbox mutation command orchestrators.
//
// Each command follows the same shape: session refresh, precondition
// checks, one atomic store operation, then best-effort notification and
// accounting. A command resolves exactly once, with either a result or
// an error; expected failure conditions carry an IMAP response code
// (package imaperror), everything else is an internal fault for the
// protocol layer to surface opaquely.
package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/tidemail/imap-service-mailbox/internal/alias"
	"github.com/tidemail/imap-service-mailbox/internal/changelog"
	"github.com/tidemail/imap-service-mailbox/internal/mailbox"
	"github.com/tidemail/imap-service-mailbox/internal/session"
	"github.com/tidemail/imap-service-mailbox/internal/storagework"
)

// Command kinds handled by this package.
const (
	CommandCreate      = "CREATE"
	CommandDelete      = "DELETE"
	CommandRename      = "RENAME"
	CommandSubscribe   = "SUBSCRIBE"
	CommandUnsubscribe = "UNSUBSCRIBE"
)

// DefaultMaxMailboxes caps how many mailboxes an account may create.
// Gmail defaults to 10,000 labels; we match that.
const DefaultMaxMailboxes = 10000

// Config carries the handler's policy knobs.
type Config struct {
	// MaxMailboxes is the mailbox-count ceiling per account.
	// Zero means DefaultMaxMailboxes.
	MaxMailboxes int
	// StorageTimeout bounds the accounting dispatch on the command
	// path. Zero means storagework.DefaultTimeout.
	StorageTimeout time.Duration
}

// Handler orchestrates mailbox mutation commands. All collaborators are
// passed in at construction; nothing is process-global.
type Handler struct {
	sessions       session.Refresher
	quota          alias.QuotaSource
	mailboxes      mailbox.Repository
	notifier       changelog.Notifier
	storage        storagework.Publisher
	logger         *slog.Logger
	maxMailboxes   int
	storageTimeout time.Duration
}

// New creates a new Handler.
func New(sessions session.Refresher, quota alias.QuotaSource, mailboxes mailbox.Repository, notifier changelog.Notifier, storage storagework.Publisher, logger *slog.Logger, cfg Config) *Handler {
	maxMailboxes := cfg.MaxMailboxes
	if maxMailboxes <= 0 {
		maxMailboxes = DefaultMaxMailboxes
	}
	storageTimeout := cfg.StorageTimeout
	if storageTimeout <= 0 {
		storageTimeout = storagework.DefaultTimeout
	}
	return &Handler{
		sessions:       sessions,
		quota:          quota,
		mailboxes:      mailboxes,
		notifier:       notifier,
		storage:        storage,
		logger:         logger,
		maxMailboxes:   maxMailboxes,
		storageTimeout: storageTimeout,
	}
}

// notifyChange durably records a change entry and wakes the account's
// listeners. The mutation has already committed: failures here are
// logged and swallowed, never propagated.
func (h *Handler) notifyChange(ctx context.Context, accountID string, entry changelog.Entry) {
	entry.AccountID = accountID
	if _, err := h.notifier.AddEntry(ctx, entry); err != nil {
		h.logger.ErrorContext(ctx, "failed to record change entry",
			slog.String("account_id", accountID),
			slog.String("command", entry.Command),
			slog.String("path", entry.Path),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := h.notifier.Fire(ctx, accountID); err != nil {
		h.logger.ErrorContext(ctx, "failed to signal change listeners",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
	}
}

// requestRecompute dispatches a bounded, best-effort storage-usage
// recomputation. Timeout or worker failure is logged only; the client
// never waits past the timeout and never sees the failure.
func (h *Handler) requestRecompute(ctx context.Context, accountID, aliasID string) {
	if h.storage == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, h.storageTimeout)
	defer cancel()

	if err := h.storage.RequestRecompute(ctx, accountID, aliasID); err != nil {
		h.logger.ErrorContext(ctx, "failed to request storage recompute",
			slog.String("account_id", accountID),
			slog.String("alias_id", aliasID),
			slog.String("error", err.Error()),
		)
	}
}
