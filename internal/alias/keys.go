package alias

// Key prefix for DynamoDB sort key.
const (
	PrefixAlias = "ALIAS#"
)

// Attribute names for DynamoDB items.
const (
	AttrAliasID      = "aliasId"
	AttrAccountID    = "accountId"
	AttrDomainID     = "domainId"
	AttrStorageUsed  = "storageUsed"
	AttrStorageQuota = "storageQuota"
	AttrOverQuota    = "overQuota"
	AttrRetentionMs  = "retentionMs"
	AttrLocale       = "locale"
	AttrUpdatedAt    = "updatedAt"
)
