package kv

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/go-relay-bot/internal/domain"
)

// ConversationStore keeps one explicit flow state per user.
type ConversationStore struct {
	RDB redis.UniversalClient
	TTL time.Duration // abandoned flows expire after this; 0 keeps them
}

// NewConversationStore returns a ConversationStore over rdb.
func NewConversationStore(rdb redis.UniversalClient, ttl time.Duration) *ConversationStore {
	return &ConversationStore{RDB: rdb, TTL: ttl}
}

// Get returns the user's conversation; the zero value when none is stored.
func (s *ConversationStore) Get(ctx context.Context, tg int64) (domain.Conversation, error) {
	h, err := s.RDB.HGetAll(ctx, convKey(tg)).Result()
	if err != nil {
		return domain.Conversation{}, err
	}
	reqID, _ := strconv.ParseUint(h["request"], 10, 64)
	return domain.Conversation{
		Flow:      domain.Flow(h["flow"]),
		RequestID: uint(reqID),
	}, nil
}

// Set replaces the user's conversation with c.
func (s *ConversationStore) Set(ctx context.Context, tg int64, c domain.Conversation) error {
	key := convKey(tg)
	_, err := s.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, "flow", string(c.Flow), "request", c.RequestID)
		if s.TTL > 0 {
			p.Expire(ctx, key, s.TTL)
		}
		return nil
	})
	return err
}

// Clear ends whatever flow the user is in.
func (s *ConversationStore) Clear(ctx context.Context, tg int64) error {
	return s.RDB.Del(ctx, convKey(tg)).Err()
}
