package kv

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Schedule is a deadline queue: member = request id, score = deadline in
// unix seconds. Adding an id that is already scheduled moves its deadline,
// so each request has at most one entry.
type Schedule struct {
	RDB redis.UniversalClient
	Key string
}

// NewSchedule returns a Schedule stored under key.
func NewSchedule(rdb redis.UniversalClient, key string) *Schedule {
	return &Schedule{RDB: rdb, Key: key}
}

// Add schedules requestID at deadline.
func (s *Schedule) Add(ctx context.Context, requestID uint, deadline time.Time) error {
	return s.RDB.ZAdd(ctx, s.Key, redis.Z{
		Score:  float64(deadline.Unix()),
		Member: member(requestID),
	}).Err()
}

// AddIfAbsent schedules requestID at deadline unless it already has an
// entry, and reports whether it added one. An existing deadline is kept.
func (s *Schedule) AddIfAbsent(ctx context.Context, requestID uint, deadline time.Time) (bool, error) {
	n, err := s.RDB.ZAddNX(ctx, s.Key, redis.Z{
		Score:  float64(deadline.Unix()),
		Member: member(requestID),
	}).Result()
	return n > 0, err
}

// Remove drops requestID from the schedule. Removing an absent id is fine.
func (s *Schedule) Remove(ctx context.Context, requestID uint) error {
	return s.RDB.ZRem(ctx, s.Key, member(requestID)).Err()
}

// Due returns the ids whose deadline is at or before now, earliest first.
func (s *Schedule) Due(ctx context.Context, now time.Time) ([]uint, error) {
	vals, err := s.RDB.ZRangeByScore(ctx, s.Key, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]uint, 0, len(vals))
	for _, v := range vals {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			out = append(out, uint(id))
		}
	}
	return out, nil
}

// Deadline returns the scheduled deadline of requestID, or ErrNotFound.
func (s *Schedule) Deadline(ctx context.Context, requestID uint) (time.Time, error) {
	score, err := s.RDB.ZScore(ctx, s.Key, member(requestID)).Result()
	if err == redis.Nil {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(score), 0).UTC(), nil
}

// Marker is a set of request ids flagged for a schedule, such as "already
// reminded".
type Marker struct {
	RDB redis.UniversalClient
	Key string
}

// NewMarker returns a Marker stored under key.
func NewMarker(rdb redis.UniversalClient, key string) *Marker {
	return &Marker{RDB: rdb, Key: key}
}

// Mark flags requestID.
func (m *Marker) Mark(ctx context.Context, requestID uint) error {
	return m.RDB.SAdd(ctx, m.Key, member(requestID)).Err()
}

// Unmark clears the flag of requestID.
func (m *Marker) Unmark(ctx context.Context, requestID uint) error {
	return m.RDB.SRem(ctx, m.Key, member(requestID)).Err()
}

// Has reports whether requestID is flagged.
func (m *Marker) Has(ctx context.Context, requestID uint) (bool, error) {
	return m.RDB.SIsMember(ctx, m.Key, member(requestID)).Result()
}
