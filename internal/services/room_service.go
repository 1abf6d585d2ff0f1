// Package services – RoomService
//
// RoomService is the Room Manager. It owns room lifecycle (ensure, join,
// leave, close), keeps the users' presence flags in step with room
// membership, flushes the store-and-forward queue when a recipient joins,
// and manages the "peer not online" notices so at most one is visible per
// side.
//
// Observability: public methods are OpenTelemetry-instrumented and join
// attempts are counted in room_joins_total.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-relay-bot/internal/domain"
	"github.com/tbourn/go-relay-bot/internal/kv"
	"github.com/tbourn/go-relay-bot/internal/notify"
	"github.com/tbourn/go-relay-bot/internal/repo"
)

// RoomService coordinates room state across the key/value and relational
// stores.
type RoomService struct {
	DB       *gorm.DB
	Rooms    *kv.RoomStore
	Queue    *kv.MessageQueue
	Notifier notify.Notifier
	Texts    *notify.Texts

	// Retention is the TTL applied to a closed room's keys.
	Retention time.Duration
}

// Ensure creates or reactivates the room of requestID. It is safe to call
// any number of times.
func (s *RoomService) Ensure(ctx context.Context, requestID uint, client, performer int64) (*domain.RoomInfo, error) {
	ctx, span := otel.Tracer("services/RoomService").Start(ctx, "Ensure",
		trace.WithAttributes(attribute.Int64("request.id", int64(requestID))),
	)
	defer span.End()

	return s.Rooms.Ensure(ctx, requestID, client, performer)
}

// Get returns the room of requestID or ErrRoomNotFound.
func (s *RoomService) Get(ctx context.Context, requestID uint) (*domain.RoomInfo, error) {
	room, err := s.Rooms.Get(ctx, requestID)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	return room, err
}

// Join adds tg to the room of requestID and returns the joined set.
//
// The joiner becomes active in this room, receives everything queued for
// them in order, and, when they are the client of an unpaid request, a
// payment reminder. If the peer is already in, both waiting notices are
// retracted and both sides are told they are connected; otherwise the
// joiner's waiting notice is replaced.
//
// A room missing from the key/value store is recreated when the request's
// status still allows one.
func (s *RoomService) Join(ctx context.Context, requestID uint, tg int64) (map[int64]struct{}, error) {
	ctx, span := otel.Tracer("services/RoomService").Start(ctx, "Join",
		trace.WithAttributes(
			attribute.Int64("request.id", int64(requestID)),
			attribute.Int64("tg.id", tg),
		),
	)
	defer span.End()

	joined, err := s.join(ctx, requestID, tg)
	roomJoins.WithLabelValues(joinResult(err)).Inc()
	return joined, err
}

func (s *RoomService) join(ctx context.Context, requestID uint, tg int64) (map[int64]struct{}, error) {
	req, err := repo.GetRequest(ctx, s.DB, requestID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}

	room, err := s.Rooms.Get(ctx, requestID)
	switch {
	case errors.Is(err, kv.ErrNotFound) && req.Status.AllowsRoom():
		room, err = s.Rooms.Ensure(ctx, requestID, req.Client.TgID, req.Performer.TgID)
		if err != nil {
			return nil, err
		}
	case errors.Is(err, kv.ErrNotFound):
		return nil, ErrRoomNotFound
	case err != nil:
		return nil, err
	}
	if !room.IsParticipant(tg) {
		return nil, ErrNotParticipant
	}
	if !room.Active || !req.Status.AllowsRoom() {
		return nil, ErrRoomClosed
	}

	joined, err := s.Rooms.AddJoined(ctx, requestID, tg)
	if err != nil {
		return nil, err
	}
	if err := repo.SetChatPresence(ctx, s.DB, tg, requestID); err != nil {
		return nil, err
	}

	deliver(ctx, s.Notifier, tg, s.Texts.T(notify.MsgJoined, requestID),
		notify.Row(notify.Button{Text: s.Texts.T(notify.BtnLeave), Data: notify.Data(notify.ActLeave, requestID)}))

	s.flush(ctx, requestID, tg)

	if tg == room.Client && req.PaymentMeta != nil && !req.PaymentMeta.PerformerReceived {
		s.remindPayment(ctx, req)
	}

	peer := room.Peer(tg)
	if _, ok := joined[peer]; ok {
		retract(ctx, s.Notifier, room.Client, room.ClientWaitMsgID)
		retract(ctx, s.Notifier, room.Performer, room.PerformerWaitMsgID)
		if err := s.Rooms.ClearWait(ctx, requestID); err != nil {
			log.Warn().Err(err).Uint("request_id", requestID).Msg("room: clear wait markers")
		}
		both := s.Texts.T(notify.MsgBothInChat)
		deliver(ctx, s.Notifier, room.Client, both, nil)
		deliver(ctx, s.Notifier, room.Performer, both, nil)
		return joined, nil
	}

	s.replaceWait(ctx, room, tg)
	return joined, nil
}

// Leave removes tg from the joined set and drops their presence flag. If the
// peer is still in, the peer's waiting notice is replaced by a fresh one.
func (s *RoomService) Leave(ctx context.Context, requestID uint, tg int64) error {
	ctx, span := otel.Tracer("services/RoomService").Start(ctx, "Leave",
		trace.WithAttributes(
			attribute.Int64("request.id", int64(requestID)),
			attribute.Int64("tg.id", tg),
		),
	)
	defer span.End()

	room, err := s.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if !room.IsParticipant(tg) {
		return ErrNotParticipant
	}
	if err := s.Rooms.RemoveJoined(ctx, requestID, tg); err != nil {
		return err
	}
	if err := repo.ClearChatPresence(ctx, s.DB, requestID, tg); err != nil {
		return err
	}

	deliver(ctx, s.Notifier, tg, s.Texts.T(notify.MsgLeft, requestID),
		notify.Row(notify.Button{Text: s.Texts.T(notify.BtnJoin), Data: notify.Data(notify.ActJoin, requestID)}))

	peer := room.Peer(tg)
	if room.Active && room.HasJoined(peer) {
		s.replaceWait(ctx, room, peer)
	}
	return nil
}

// Close deactivates the room and empties its joined set. Closing an absent
// or closed room is not an error.
func (s *RoomService) Close(ctx context.Context, requestID uint) error {
	ctx, span := otel.Tracer("services/RoomService").Start(ctx, "Close",
		trace.WithAttributes(attribute.Int64("request.id", int64(requestID))),
	)
	defer span.End()

	return s.Rooms.Close(ctx, requestID, s.Retention)
}

// flush replays queued messages to the recipient. The queue is cleared even
// if some copies fail.
func (s *RoomService) flush(ctx context.Context, requestID uint, to int64) {
	entries, err := s.Queue.Flush(ctx, requestID, to)
	if err != nil {
		log.Warn().Err(err).Uint("request_id", requestID).Int64("tg_id", to).Msg("room: flush queue")
		return
	}
	for _, e := range entries {
		if err := s.Notifier.Copy(ctx, to, e.ChatID, e.MessageID); err != nil {
			log.Debug().Err(err).Uint("request_id", requestID).Int64("tg_id", to).Int("msg_id", e.MessageID).Msg("room: queued copy failed")
			relayMessages.WithLabelValues("flush_failed").Inc()
			continue
		}
		relayMessages.WithLabelValues("flushed").Inc()
	}
}

// replaceWait retracts who's previous "peer not online" notice and records a
// new one.
func (s *RoomService) replaceWait(ctx context.Context, room *domain.RoomInfo, who int64) {
	side, old := domain.RoleClient, room.ClientWaitMsgID
	if who == room.Performer {
		side, old = domain.RolePerformer, room.PerformerWaitMsgID
	}
	retract(ctx, s.Notifier, who, old)
	id := deliver(ctx, s.Notifier, who, s.Texts.T(notify.MsgPeerOffline), nil)
	if id == 0 {
		return
	}
	if err := s.Rooms.SetWait(ctx, room.RequestID, side, id); err != nil {
		log.Warn().Err(err).Uint("request_id", room.RequestID).Msg("room: set wait marker")
	}
}

func (s *RoomService) remindPayment(ctx context.Context, req *domain.Request) {
	if req.Status == domain.StatusPaid || req.PaymentMeta.ClientMarkPaid {
		deliver(ctx, s.Notifier, req.Client.TgID, s.Texts.T(notify.MsgPayPendingReminder, req.ID),
			notify.Row(notify.Button{Text: s.Texts.T(notify.BtnAttachProof), Data: notify.Data(notify.ActShowProof, req.ID)}))
		return
	}
	deliver(ctx, s.Notifier, req.Client.TgID, s.Texts.T(notify.MsgPayReminder, req.ID),
		notify.Row(notify.Button{Text: s.Texts.T(notify.BtnPaid), Data: notify.Data(notify.ActMarkPaid, req.ID)}))
}

func joinResult(err error) string {
	switch {
	case err == nil:
		return "joined"
	case errors.Is(err, ErrRequestNotFound), errors.Is(err, ErrRoomNotFound):
		return "not_found"
	case errors.Is(err, ErrRoomClosed):
		return "closed"
	case errors.Is(err, ErrNotParticipant):
		return "forbidden"
	default:
		return "error"
	}
}
