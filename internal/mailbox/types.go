// Package mailbox provides types and operations for IMAP mailbox storage.
package mailbox

import (
	"fmt"
	"time"
)

// Mailbox represents one addressable folder for an account. The path is
// unique within the owning account; the store's conditional write on the
// primary key is what enforces that, not application locking.
type Mailbox struct {
	MailboxID  string
	AccountID  string
	AliasID    string
	Path       string
	Subscribed bool
	// Retention is inherited from the owning alias at creation time.
	// Zero means retention is disabled.
	Retention time.Duration
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PK returns the DynamoDB partition key for this mailbox.
func (m *Mailbox) PK() string {
	return fmt.Sprintf("ACCOUNT#%s", m.AccountID)
}

// SK returns the DynamoDB sort key for this mailbox. Keying by path is
// what scopes the uniqueness constraint to the owning account.
func (m *Mailbox) SK() string {
	return fmt.Sprintf("MAILBOX#%s", m.Path)
}
