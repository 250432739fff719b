package changelog

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Notifier records durable change entries and wakes interested listeners.
// Both operations are invoked fire-and-forget by the command layer: the
// mutation has already committed, so failures are logged by the caller
// and never alter the command outcome.
type Notifier interface {
	// AddEntry durably appends the change before any signal is sent.
	AddEntry(ctx context.Context, entry Entry) (int64, error)
	// Fire wakes live listeners bound to the account.
	Fire(ctx context.Context, accountID string) error
}

// Publisher is the subset of the Redis API used to signal listeners.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// ChannelFor returns the pub/sub channel listeners subscribe to for an
// account's mailbox changes.
func ChannelFor(accountID string) string {
	return "mailbox:changes:" + accountID
}

// RedisNotifier appends entries to the durable log and signals via Redis
// pub/sub. The published message is the new change sequence; listeners
// catch up from the log with EntriesSince.
type RedisNotifier struct {
	log *Log
	pub Publisher
}

// NewRedisNotifier creates a new RedisNotifier.
func NewRedisNotifier(log *Log, pub Publisher) *RedisNotifier {
	return &RedisNotifier{log: log, pub: pub}
}

// AddEntry durably appends the change entry and returns its sequence.
func (n *RedisNotifier) AddEntry(ctx context.Context, entry Entry) (int64, error) {
	return n.log.Append(ctx, entry)
}

// Fire publishes the account's current sequence on its change channel.
func (n *RedisNotifier) Fire(ctx context.Context, accountID string) error {
	seq, err := n.log.CurrentSeq(ctx, accountID)
	if err != nil {
		return err
	}
	return n.pub.Publish(ctx, ChannelFor(accountID), strconv.FormatInt(seq, 10)).Err()
}
