package kv

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-relay-bot/internal/domain"
)

// MessageQueue is the store-and-forward list per (room, recipient).
type MessageQueue struct {
	RDB redis.UniversalClient
}

// NewMessageQueue returns a MessageQueue over rdb.
func NewMessageQueue(rdb redis.UniversalClient) *MessageQueue {
	return &MessageQueue{RDB: rdb}
}

// Enqueue appends m to the recipient's queue.
func (q *MessageQueue) Enqueue(ctx context.Context, requestID uint, recipient int64, m domain.QueuedMessage) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return q.RDB.RPush(ctx, queueKey(requestID, recipient), b).Err()
}

// Flush returns every queued entry in enqueue order and clears the queue in
// the same transaction. Entries that fail to decode are skipped.
func (q *MessageQueue) Flush(ctx context.Context, requestID uint, recipient int64) ([]domain.QueuedMessage, error) {
	key := queueKey(requestID, recipient)
	var rng *redis.StringSliceCmd
	_, err := q.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		rng = p.LRange(ctx, key, 0, -1)
		p.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	raw := rng.Val()
	out := make([]domain.QueuedMessage, 0, len(raw))
	for _, s := range raw {
		var m domain.QueuedMessage
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			log.Warn().Err(err).Uint("request_id", requestID).Int64("tg_id", recipient).Msg("kv: dropping undecodable queue entry")
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Len returns the number of pending entries for the recipient.
func (q *MessageQueue) Len(ctx context.Context, requestID uint, recipient int64) (int64, error) {
	return q.RDB.LLen(ctx, queueKey(requestID, recipient)).Result()
}
