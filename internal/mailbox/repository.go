package mailbox

import (
	"context"
	"errors"
)

// Error types for repository operations.
var (
	ErrMailboxNotFound = errors.New("mailbox not found")
	// ErrMailboxExists is the uniqueness-violation signal: the store
	// rejected a create because the path already has a document.
	ErrMailboxExists = errors.New("mailbox already exists")
)

// Repository defines the interface for mailbox storage operations.
type Repository interface {
	FindByPath(ctx context.Context, accountID, path string) (*Mailbox, error)
	CountMailboxes(ctx context.Context, accountID string) (int, error)
	Create(ctx context.Context, mailbox *Mailbox) error
	SetSubscribed(ctx context.Context, accountID, path string, subscribed bool) (*Mailbox, error)
	Delete(ctx context.Context, accountID, path string) (*Mailbox, error)
	Rename(ctx context.Context, accountID, oldPath, newPath string) (*Mailbox, error)
}
