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

// Rename handles the RENAME command. The target pre-check gives a fast
// ALREADYEXISTS; the transactional rename in the repository is the
// backstop for races on either path.
func (h *Handler) Rename(ctx context.Context, sess *session.Session, oldPath, newPath string) error {
	h.logger.DebugContext(ctx, "RENAME",
		slog.String("path", oldPath),
		slog.String("new_path", newPath),
		slog.String("session_id", sess.ID),
	)

	a, err := h.sessions.Refresh(ctx, sess, CommandRename)
	if err != nil {
		return err
	}

	if _, err := h.mailboxes.FindByPath(ctx, a.AccountID, newPath); err == nil {
		return imaperror.AlreadyExists(msgcat.Translate(msgcat.KeyMailboxAlreadyExists, sess.Locale))
	} else if !errors.Is(err, mailbox.ErrMailboxNotFound) {
		return fmt.Errorf("mailbox lookup: %w", err)
	}

	mbox, err := h.mailboxes.Rename(ctx, a.AccountID, oldPath, newPath)
	if err != nil {
		switch {
		case errors.Is(err, mailbox.ErrMailboxNotFound):
			return imaperror.NonExistent(msgcat.Translate(msgcat.KeyMailboxDoesNotExist, sess.Locale))
		case errors.Is(err, mailbox.ErrMailboxExists):
			return imaperror.Retag(err, imaperror.ResponseAlreadyExists,
				msgcat.Translate(msgcat.KeyMailboxAlreadyExists, sess.Locale))
		}
		return fmt.Errorf("mailbox rename: %w", err)
	}

	h.notifyChange(ctx, a.AccountID, changelog.Entry{
		Command:   CommandRename,
		MailboxID: mbox.MailboxID,
		Path:      oldPath,
		NewPath:   newPath,
	})

	return nil
}
