package mailbox

// Key prefix for DynamoDB sort key.
const (
	PrefixMailbox = "MAILBOX#"
)

// Attribute names for DynamoDB items.
const (
	AttrMailboxID   = "mailboxId"
	AttrAccountID   = "accountId"
	AttrAliasID     = "aliasId"
	AttrPath        = "path"
	AttrSubscribed  = "subscribed"
	AttrRetentionMs = "retentionMs"
	AttrCreatedAt   = "createdAt"
	AttrUpdatedAt   = "updatedAt"
)
