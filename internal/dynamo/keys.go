// Package dynamo provides shared DynamoDB constants and client interfaces.
package dynamo

const (
	// Primary key attributes.
	AttrPK = "pk"
	AttrSK = "sk"

	// Key prefixes. Account documents partition everything the command
	// layer touches: mailboxes, messages, change log entries, counters.
	PrefixAccount = "ACCOUNT#"
	PrefixDomain  = "DOMAIN#"
)
