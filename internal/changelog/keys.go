package changelog

// Sort keys for DynamoDB items.
const (
	KeyChangeSeq = "CHANGESEQ"
	PrefixChange = "CHANGE#"
)

// Attribute names for DynamoDB items.
const (
	AttrSeq       = "seq"
	AttrCommand   = "command"
	AttrMailboxID = "mailboxId"
	AttrPath      = "path"
	AttrNewPath   = "newPath"
	AttrTimestamp = "timestamp"
	AttrTTL       = "ttl"
	AttrUpdatedAt = "updatedAt"
)
