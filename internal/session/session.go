// Package session carries the per-connection context threaded through
// every mutation command.
package session

import (
	"context"

	"github.com/tidemail/imap-service-mailbox/internal/alias"
)

// Session identifies the connection issuing a command. It is constructed
// by the protocol frontend and passed explicitly into every handler call;
// nothing here is shared mutable state.
type Session struct {
	ID         string
	AccountID  string
	AliasID    string
	RemoteAddr string
	Locale     string
}

// Refresher revalidates a session for a specific command kind and
// resolves its authorization context. Implemented by the auth layer;
// its failures propagate to the caller untouched.
type Refresher interface {
	Refresh(ctx context.Context, sess *Session, command string) (*alias.Alias, error)
}
