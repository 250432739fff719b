package session

import (
	"context"
	"errors"

	"github.com/tidemail/imap-service-mailbox/internal/alias"
)

// ErrInvalidSession indicates a session missing the identity fields
// every command needs.
var ErrInvalidSession = errors.New("session missing account or alias identity")

// StoreRefresher revalidates a session against the alias store: the
// alias must still exist and its current quota, retention, and locale
// are re-read on every command rather than cached on the connection.
type StoreRefresher struct {
	aliases alias.Repository
}

// NewStoreRefresher creates a StoreRefresher backed by the given
// alias repository.
func NewStoreRefresher(aliases alias.Repository) *StoreRefresher {
	return &StoreRefresher{aliases: aliases}
}

// Refresh implements Refresher.
func (r *StoreRefresher) Refresh(ctx context.Context, sess *Session, command string) (*alias.Alias, error) {
	if sess == nil || sess.AccountID == "" || sess.AliasID == "" {
		return nil, ErrInvalidSession
	}
	a, err := r.aliases.GetAlias(ctx, sess.AccountID, sess.AliasID)
	if err != nil {
		return nil, err
	}
	if sess.Locale == "" {
		sess.Locale = a.Locale
	}
	return a, nil
}
