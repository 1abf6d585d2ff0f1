// Package kv holds the Redis-backed state of the relay: rooms, their pending
// message queues, the SLA deadline schedules and per-user conversation flows.
//
// Every type here is a thin wrapper over one key family. Mutations are
// targeted field/set/list/zset commands, never a read-modify-write of a whole
// structure, so concurrent callers do not lose each other's updates.
//
// Key layout:
//
//	room:{id}              hash   client, performer, active, client_wait, performer_wait
//	room:{id}:joined       set    identities currently joined
//	room:{id}:mq:{tg}      list   JSON QueuedMessage entries for recipient tg
//	pay_deadlines          zset   request id -> payment deadline (unix seconds)
//	confirm_deadlines      zset   request id -> confirmation deadline (unix seconds)
//	confirm_reminded       set    request ids that already got the reminder
//	conv:{tg}              hash   flow, request
package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when the addressed key does not exist.
var ErrNotFound = errors.New("kv: not found")

// Schedule and marker keys.
const (
	KeyPayDeadlines     = "pay_deadlines"
	KeyConfirmDeadlines = "confirm_deadlines"
	KeyConfirmReminded  = "confirm_reminded"
)

// Open parses a redis:// URL, connects and pings the server.
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("kv: parse url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("kv: ping: %w", err)
	}
	return rdb, nil
}

func roomKey(id uint) string { return "room:" + member(id) }

func joinedKey(id uint) string { return roomKey(id) + ":joined" }

func queueKey(id uint, tg int64) string { return roomKey(id) + ":mq:" + strconv.FormatInt(tg, 10) }

func convKey(tg int64) string { return "conv:" + strconv.FormatInt(tg, 10) }

func member(id uint) string { return strconv.FormatUint(uint64(id), 10) }
