// Package alias provides read access to the quota- and retention-bearing
// identity under which mailboxes exist.
package alias

import (
	"fmt"
	"time"
)

// Alias is the owning identity for an account's mailboxes. The command
// layer consults it; it never creates or destroys aliases.
type Alias struct {
	AliasID      string
	AccountID    string
	DomainID     string
	StorageUsed  int64
	StorageQuota int64
	OverQuota    bool
	// Retention is the message retention period inherited by new
	// mailboxes. Zero means retention is disabled.
	Retention time.Duration
	Locale    string
	UpdatedAt time.Time
}

// PK returns the DynamoDB partition key for this alias.
func (a *Alias) PK() string {
	return fmt.Sprintf("ACCOUNT#%s", a.AccountID)
}

// SK returns the DynamoDB sort key for this alias.
func (a *Alias) SK() string {
	return fmt.Sprintf("ALIAS#%s", a.AliasID)
}
