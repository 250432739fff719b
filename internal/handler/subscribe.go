package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidemail/imap-service-mailbox/internal/imaperror"
	"github.com/tidemail/imap-service-mailbox/internal/mailbox"
	"github.com/tidemail/imap-service-mailbox/internal/msgcat"
	"github.com/tidemail/imap-service-mailbox/internal/session"
)

// Subscribe handles the SUBSCRIBE command.
func (h *Handler) Subscribe(ctx context.Context, sess *session.Session, path string) error {
	return h.setSubscribed(ctx, sess, CommandSubscribe, path, true)
}

// Unsubscribe handles the UNSUBSCRIBE command. Setting subscribed=false
// on an already-unsubscribed mailbox succeeds; only an absent mailbox
// fails, with NONEXISTENT.
func (h *Handler) Unsubscribe(ctx context.Context, sess *session.Session, path string) error {
	return h.setSubscribed(ctx, sess, CommandUnsubscribe, path, false)
}

// setSubscribed is the shared attribute-mutation shape: session refresh,
// then one atomic find-and-update. No separate read-then-write, so there
// is no second race window; and no notification or accounting, since the
// subscription flag changes nothing other sessions must react to.
func (h *Handler) setSubscribed(ctx context.Context, sess *session.Session, command, path string, subscribed bool) error {
	h.logger.DebugContext(ctx, command,
		slog.String("path", path),
		slog.String("session_id", sess.ID),
	)

	a, err := h.sessions.Refresh(ctx, sess, command)
	if err != nil {
		return err
	}

	if _, err := h.mailboxes.SetSubscribed(ctx, a.AccountID, path, subscribed); err != nil {
		if errors.Is(err, mailbox.ErrMailboxNotFound) {
			return imaperror.NonExistent(msgcat.Translate(msgcat.KeyMailboxDoesNotExist, sess.Locale))
		}
		return fmt.Errorf("mailbox update: %w", err)
	}

	return nil
}
