package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tidemail/imap-service-mailbox/internal/changelog"
	"github.com/tidemail/imap-service-mailbox/internal/imaperror"
	"github.com/tidemail/imap-service-mailbox/internal/mailbox"
	"github.com/tidemail/imap-service-mailbox/internal/msgcat"
	"github.com/tidemail/imap-service-mailbox/internal/session"
)

// Create handles the CREATE command: quota gate, cardinality gate,
// existence pre-check, conditional insert, then best-effort notification
// and accounting. Returns the new mailbox identifier.
//
// The existence pre-check is an optimization for a fast, friendly error;
// the store's conditional write is the correctness backstop. A
// concurrent create that slips past the pre-check loses at the store and
// is retagged ALREADYEXISTS so both detection paths look identical to
// the client.
func (h *Handler) Create(ctx context.Context, sess *session.Session, path string) (string, error) {
	h.logger.DebugContext(ctx, "CREATE",
		slog.String("path", path),
		slog.String("session_id", sess.ID),
	)

	a, err := h.sessions.Refresh(ctx, sess, CommandCreate)
	if err != nil {
		return "", err
	}

	over, err := h.quota.IsOverQuota(ctx, a.AccountID, a.AliasID)
	if err != nil {
		return "", fmt.Errorf("quota check: %w", err)
	}
	if over {
		return "", imaperror.OverQuota(msgcat.Translate(msgcat.KeyMailboxOverQuota, sess.Locale))
	}

	// The count and the create are not one transaction; a concurrent
	// create can admit one mailbox past the ceiling. Accepted
	// imprecision, the limit is best-effort.
	count, err := h.mailboxes.CountMailboxes(ctx, a.AccountID)
	if err != nil {
		return "", fmt.Errorf("mailbox count: %w", err)
	}
	if count > h.maxMailboxes {
		return "", imaperror.OverQuota(msgcat.Translate(msgcat.KeyMailboxMaxExceeded, sess.Locale))
	}

	if _, err := h.mailboxes.FindByPath(ctx, a.AccountID, path); err == nil {
		return "", imaperror.AlreadyExists(msgcat.Translate(msgcat.KeyMailboxAlreadyExists, sess.Locale))
	} else if !errors.Is(err, mailbox.ErrMailboxNotFound) {
		return "", fmt.Errorf("mailbox lookup: %w", err)
	}

	now := time.Now().UTC()
	mbox := &mailbox.Mailbox{
		MailboxID:  uuid.New().String(),
		AccountID:  a.AccountID,
		AliasID:    a.AliasID,
		Path:       path,
		Subscribed: true,
		Retention:  a.Retention,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.mailboxes.Create(ctx, mbox); err != nil {
		if errors.Is(err, mailbox.ErrMailboxExists) {
			return "", imaperror.Retag(err, imaperror.ResponseAlreadyExists,
				msgcat.Translate(msgcat.KeyMailboxAlreadyExists, sess.Locale))
		}
		return "", fmt.Errorf("mailbox create: %w", err)
	}

	h.notifyChange(ctx, a.AccountID, changelog.Entry{
		Command:   CommandCreate,
		MailboxID: mbox.MailboxID,
		Path:      path,
	})
	h.requestRecompute(ctx, a.AccountID, a.AliasID)

	return mbox.MailboxID, nil
}
