package kv

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/go-relay-bot/internal/domain"
)

const (
	fieldClient        = "client"
	fieldPerformer     = "performer"
	fieldActive        = "active"
	fieldClientWait    = "client_wait"
	fieldPerformerWait = "performer_wait"
)

// RoomStore persists rooms as a hash plus a joined set.
type RoomStore struct {
	RDB redis.UniversalClient
}

// NewRoomStore returns a RoomStore over rdb.
func NewRoomStore(rdb redis.UniversalClient) *RoomStore {
	return &RoomStore{RDB: rdb}
}

// Ensure creates the room or reactivates it, binding client and performer.
// Calling it again with the same identities changes nothing. Any retention
// TTL left by a previous Close is removed.
func (s *RoomStore) Ensure(ctx context.Context, requestID uint, client, performer int64) (*domain.RoomInfo, error) {
	key := roomKey(requestID)
	_, err := s.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			fieldClient, client,
			fieldPerformer, performer,
			fieldActive, 1,
		)
		p.Persist(ctx, key)
		p.Persist(ctx, joinedKey(requestID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, requestID)
}

// Get reads the room hash and joined set. It returns ErrNotFound when the
// hash is absent.
func (s *RoomStore) Get(ctx context.Context, requestID uint) (*domain.RoomInfo, error) {
	var (
		hget    *redis.MapStringStringCmd
		members *redis.StringSliceCmd
	)
	_, err := s.RDB.Pipelined(ctx, func(p redis.Pipeliner) error {
		hget = p.HGetAll(ctx, roomKey(requestID))
		members = p.SMembers(ctx, joinedKey(requestID))
		return nil
	})
	if err != nil && err != redis.Nil {
		return nil, err
	}
	h := hget.Val()
	if len(h) == 0 {
		return nil, ErrNotFound
	}
	info := &domain.RoomInfo{
		RequestID:          requestID,
		Client:             atoi64(h[fieldClient]),
		Performer:          atoi64(h[fieldPerformer]),
		Active:             h[fieldActive] == "1",
		ClientWaitMsgID:    int(atoi64(h[fieldClientWait])),
		PerformerWaitMsgID: int(atoi64(h[fieldPerformerWait])),
		Joined:             make(map[int64]struct{}),
	}
	for _, m := range members.Val() {
		if id, err := strconv.ParseInt(m, 10, 64); err == nil {
			info.Joined[id] = struct{}{}
		}
	}
	return info, nil
}

// AddJoined adds tg to the joined set and returns the set afterwards.
func (s *RoomStore) AddJoined(ctx context.Context, requestID uint, tg int64) (map[int64]struct{}, error) {
	var members *redis.StringSliceCmd
	_, err := s.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, joinedKey(requestID), tg)
		members = p.SMembers(ctx, joinedKey(requestID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make(map[int64]struct{}, len(members.Val()))
	for _, m := range members.Val() {
		if id, err := strconv.ParseInt(m, 10, 64); err == nil {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

// RemoveJoined removes tg from the joined set.
func (s *RoomStore) RemoveJoined(ctx context.Context, requestID uint, tg int64) error {
	return s.RDB.SRem(ctx, joinedKey(requestID), tg).Err()
}

// SetWait records the message id of the "peer not online" notice shown to
// the given side.
func (s *RoomStore) SetWait(ctx context.Context, requestID uint, side domain.Role, msgID int) error {
	return s.RDB.HSet(ctx, roomKey(requestID), waitField(side), msgID).Err()
}

// ClearWait forgets the notices of both sides.
func (s *RoomStore) ClearWait(ctx context.Context, requestID uint) error {
	return s.RDB.HDel(ctx, roomKey(requestID), fieldClientWait, fieldPerformerWait).Err()
}

// Close deactivates the room and empties its joined set. The room hash and
// the recipients' queues then expire after retention; a zero retention keeps
// them. Closing an absent or already closed room is a no-op.
func (s *RoomStore) Close(ctx context.Context, requestID uint, retention time.Duration) error {
	key := roomKey(requestID)
	h, err := s.RDB.HMGet(ctx, key, fieldClient, fieldPerformer).Result()
	if err != nil {
		return err
	}
	if h[0] == nil && h[1] == nil {
		return nil
	}
	client, _ := h[0].(string)
	performer, _ := h[1].(string)

	_, err = s.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, fieldActive, 0)
		p.Del(ctx, joinedKey(requestID))
		if retention > 0 {
			p.Expire(ctx, key, retention)
			p.Expire(ctx, queueKey(requestID, atoi64(client)), retention)
			p.Expire(ctx, queueKey(requestID, atoi64(performer)), retention)
		}
		return nil
	})
	return err
}

func waitField(side domain.Role) string {
	if side == domain.RolePerformer {
		return fieldPerformerWait
	}
	return fieldClientWait
}

func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
