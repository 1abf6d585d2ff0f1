// Package services – RelayService
//
// RelayService is the Relay Dispatcher: it forwards an ordinary message from
// one joined participant to the other without revealing either side's
// contact, or parks a reference to it in the recipient's queue until they
// join.
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

// RelayOutcome tells the caller what happened to a message.
type RelayOutcome int

const (
	// RelayIgnored: not a relay message (no active room or sender not
	// joined). The caller may route it elsewhere.
	RelayIgnored RelayOutcome = iota
	// RelayDelivered: copied to the peer.
	RelayDelivered
	// RelayQueued: stored for the peer's next join.
	RelayQueued
)

func (o RelayOutcome) String() string {
	switch o {
	case RelayDelivered:
		return "delivered"
	case RelayQueued:
		return "queued"
	default:
		return "ignored"
	}
}

// RelayService forwards messages inside a room.
type RelayService struct {
	DB       *gorm.DB
	Rooms    *kv.RoomStore
	Queue    *kv.MessageQueue
	Notifier notify.Notifier

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Relay handles message msgID that sender posted in chat chatID while in the
// room of requestID.
//
// The message is copied to the peer right away when the peer is joined and
// active in this same room; otherwise it is queued. A failed copy is logged
// and not retried.
func (s *RelayService) Relay(ctx context.Context, requestID uint, sender, chatID int64, msgID int) (RelayOutcome, error) {
	ctx, span := otel.Tracer("services/RelayService").Start(ctx, "Relay",
		trace.WithAttributes(
			attribute.Int64("request.id", int64(requestID)),
			attribute.Int64("tg.id", sender),
		),
	)
	defer span.End()

	out, err := s.relay(ctx, requestID, sender, chatID, msgID)
	if err != nil {
		relayMessages.WithLabelValues("error").Inc()
		return out, err
	}
	relayMessages.WithLabelValues(out.String()).Inc()
	span.SetAttributes(attribute.String("relay.outcome", out.String()))
	return out, nil
}

func (s *RelayService) relay(ctx context.Context, requestID uint, sender, chatID int64, msgID int) (RelayOutcome, error) {
	room, err := s.Rooms.Get(ctx, requestID)
	if errors.Is(err, kv.ErrNotFound) {
		return RelayIgnored, nil
	}
	if err != nil {
		return RelayIgnored, err
	}
	if !room.Active || !room.HasJoined(sender) {
		return RelayIgnored, nil
	}

	peer := room.Peer(sender)
	if room.HasJoined(peer) && s.peerPresent(ctx, peer, requestID) {
		if err := s.Notifier.Copy(ctx, peer, chatID, msgID); err != nil {
			log.Debug().Err(err).Uint("request_id", requestID).Int64("tg_id", peer).Msg("relay: copy failed")
		}
		return RelayDelivered, nil
	}

	entry := domain.QueuedMessage{
		From:      sender,
		ChatID:    chatID,
		MessageID: msgID,
		QueuedAt:  s.now().UTC(),
	}
	if err := s.Queue.Enqueue(ctx, requestID, peer, entry); err != nil {
		return RelayIgnored, err
	}
	return RelayQueued, nil
}

// peerPresent reports whether peer is active in the room of requestID. A
// peer active in some other room gets this room's messages on their next
// join instead.
func (s *RelayService) peerPresent(ctx context.Context, peer int64, requestID uint) bool {
	u, err := repo.GetUserByTg(ctx, s.DB, peer)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			log.Warn().Err(err).Int64("tg_id", peer).Msg("relay: load peer")
		}
		return false
	}
	return u.ActiveInChat && u.LastChatRequestID != nil && *u.LastChatRequestID == requestID
}

func (s *RelayService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
