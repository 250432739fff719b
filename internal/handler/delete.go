package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidemail/imap-service-mailbox/internal/changelog"
	"github.com/tidemail/imap-service-mailbox/internal/imaperror"
	"github.com/tidemail/imap-service-mailbox/internal/mailbox"
	"github.com/tidemail/imap-service-mailbox/internal/msgcat"
	"github.com/tidemail/imap-service-mailbox/internal/session"
)

// Delete handles the DELETE command: one atomic conditional delete, then
// best-effort notification and accounting.
func (h *Handler) Delete(ctx context.Context, sess *session.Session, path string) error {
	h.logger.DebugContext(ctx, "DELETE",
		slog.String("path", path),
		slog.String("session_id", sess.ID),
	)

	a, err := h.sessions.Refresh(ctx, sess, CommandDelete)
	if err != nil {
		return err
	}

	mbox, err := h.mailboxes.Delete(ctx, a.AccountID, path)
	if err != nil {
		if errors.Is(err, mailbox.ErrMailboxNotFound) {
			return imaperror.NonExistent(msgcat.Translate(msgcat.KeyMailboxDoesNotExist, sess.Locale))
		}
		return fmt.Errorf("mailbox delete: %w", err)
	}

	h.notifyChange(ctx, a.AccountID, changelog.Entry{
		Command:   CommandDelete,
		MailboxID: mbox.MailboxID,
		Path:      path,
	})
	h.requestRecompute(ctx, a.AccountID, a.AliasID)

	return nil
}
