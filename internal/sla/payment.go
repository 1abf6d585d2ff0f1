package sla

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/tbourn/go-relay-bot/internal/domain"
	"github.com/tbourn/go-relay-bot/internal/events"
	"github.com/tbourn/go-relay-bot/internal/kv"
	"github.com/tbourn/go-relay-bot/internal/notify"
	"github.com/tbourn/go-relay-bot/internal/repo"
	"github.com/tbourn/go-relay-bot/internal/services"
)

// PaymentSweeper cancels accepted requests that were not marked paid before
// their payment deadline.
type PaymentSweeper struct {
	DB       *gorm.DB
	Schedule *kv.Schedule
	Rooms    RoomCloser
	Notifier notify.Notifier
	Texts    *notify.Texts
	Events   events.Publisher

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Name implements Sweeper.
func (s *PaymentSweeper) Name() string { return "payment" }

// Sweep handles every entry due at Now. An entry is removed once it is
// handled, whether or not the request was canceled; entries whose request
// could not be loaded or updated stay for the next sweep.
func (s *PaymentSweeper) Sweep(ctx context.Context) (Report, error) {
	ctx, span := otel.Tracer("sla/PaymentSweeper").Start(ctx, "Sweep")
	defer span.End()
	defer observe(s.Name(), time.Now())

	now := s.now()
	due, err := s.Schedule.Due(ctx, now)
	if err != nil {
		return nil, err
	}
	rep := Report{}
	for _, id := range due {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		result, err := s.sweepOne(ctx, id, now)
		if err != nil {
			log.Error().Err(err).Uint("request_id", id).Str("schedule", s.Name()).Msg("sla: sweep item failed")
			rep.add(s.Name(), ResultError)
			continue
		}
		if err := s.Schedule.Remove(ctx, id); err != nil {
			log.Error().Err(err).Uint("request_id", id).Str("schedule", s.Name()).Msg("sla: remove entry")
		}
		rep.add(s.Name(), result)
	}
	return rep, nil
}

func (s *PaymentSweeper) sweepOne(ctx context.Context, id uint, now time.Time) (string, error) {
	req, err := repo.GetRequest(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ResultSettled, nil
	}
	if err != nil {
		return "", err
	}
	if !awaitingPayment(req) {
		return ResultSettled, nil
	}

	from := []domain.RequestStatus{domain.StatusAccepted, domain.StatusNegotiation}
	err = repo.TransitionStatus(ctx, s.DB, id, from, domain.StatusCanceled)
	if errors.Is(err, repo.ErrStaleStatus) || errors.Is(err, repo.ErrNotFound) {
		// Paid or rejected since the load.
		return ResultSettled, nil
	}
	if err != nil {
		return "", err
	}
	services.CountTransition(string(domain.StatusCanceled))

	text := s.Texts.T(notify.MsgPayWindowExpired, id)
	send(ctx, s.Notifier, req.Client.TgID, text, nil)
	send(ctx, s.Notifier, req.Performer.TgID, text, nil)
	cancelSideEffects(ctx, s.DB, s.Rooms, s.Events, req, "payment_timeout", now)

	log.Info().Uint("request_id", id).Msg("sla: request canceled, payment window expired")
	return ResultCanceled, nil
}

func awaitingPayment(req *domain.Request) bool {
	switch req.Status {
	case domain.StatusAccepted, domain.StatusNegotiation:
	default:
		return false
	}
	return req.PaymentMeta == nil || !req.PaymentMeta.ClientMarkPaid
}

func (s *PaymentSweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// send is best-effort: a participant who blocked the bot must not stall the
// sweep.
func send(ctx context.Context, n notify.Notifier, to int64, text string, kb notify.Keyboard) {
	if n == nil || to == 0 {
		return
	}
	if _, err := n.Send(ctx, to, text, kb); err != nil {
		log.Debug().Err(err).Int64("tg_id", to).Msg("sla: notify failed")
	}
}

func observe(schedule string, start time.Time) {
	sweepDuration.WithLabelValues(schedule).Observe(time.Since(start).Seconds())
}
