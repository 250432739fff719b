// Package changelog records durable mailbox-change entries and wakes
// listening sessions.
//
// Every successful structural mutation appends one immutable entry to a
// per-account log and bumps the account's change sequence. Other
// connections (IDLE listeners, replicas) consume the log; this package
// only appends and signals.
package changelog

import (
	"fmt"
	"time"

	"github.com/tidemail/imap-service-mailbox/internal/dynamo"
)

// Entry is an immutable record of one mailbox-state change.
type Entry struct {
	AccountID string
	// Command is the mutation kind that produced the change
	// (CREATE, DELETE, RENAME, ...).
	Command   string
	Seq       int64
	MailboxID string
	Path      string
	// NewPath is set for RENAME entries only.
	NewPath   string
	Timestamp time.Time
	TTL       int64
}

// PK returns the DynamoDB partition key for this entry.
func (e *Entry) PK() string {
	return dynamo.PrefixAccount + e.AccountID
}

// SK returns the DynamoDB sort key for this entry. The sequence is
// zero-padded so entries sort lexicographically in append order.
func (e *Entry) SK() string {
	return fmt.Sprintf("%s%010d", PrefixChange, e.Seq)
}

// seqItem is the per-account change sequence counter.
type seqItem struct {
	AccountID string
}

func (s *seqItem) PK() string {
	return dynamo.PrefixAccount + s.AccountID
}

func (s *seqItem) SK() string {
	return KeyChangeSeq
}

// DefaultRetentionDays is the default TTL for change log entries.
const DefaultRetentionDays = 7

// MaxSeqValue is the maximum value for a change sequence (10 digits).
const MaxSeqValue = 9999999999
