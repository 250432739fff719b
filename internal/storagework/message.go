// Package storagework dispatches storage-usage recomputation requests to
// the accounting worker queue.
package storagework

import "time"

// Action represents the type of accounting operation requested.
type Action string

const (
	// ActionSize requests recomputation of an account's storage usage.
	ActionSize Action = "size"
)

// DefaultTimeout bounds how long the command path waits on the dispatch.
// The request is fire-and-forget past this point.
const DefaultTimeout = 5 * time.Second

// Message is the SQS message body for accounting requests.
type Message struct {
	AccountID string `json:"accountId"`
	AliasID   string `json:"aliasId"`
	Action    Action `json:"action"`
}
