package alias

import (
	"context"
	"errors"
)

// Error types for repository operations.
var (
	ErrAliasNotFound = errors.New("alias not found")
)

// QuotaSource answers the over-quota question for the quota guard.
// A pure read; collaborator failures propagate as generic errors.
type QuotaSource interface {
	IsOverQuota(ctx context.Context, accountID, aliasID string) (bool, error)
}

// Repository defines the interface for alias storage operations.
type Repository interface {
	QuotaSource
	GetAlias(ctx context.Context, accountID, aliasID string) (*Alias, error)
	SetStorageUsage(ctx context.Context, accountID, aliasID string, used int64, overQuota bool) error
}
