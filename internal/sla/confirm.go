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

// ConfirmSweeper runs the two-stage completion timeout of PAID requests.
// The first time an entry comes due both parties are reminded and the entry
// is pushed back by FinalDelay; the second time the request is canceled and
// both parties and all admins are told.
type ConfirmSweeper struct {
	DB       *gorm.DB
	Schedule *kv.Schedule
	Reminded *kv.Marker
	Rooms    RoomCloser
	Notifier notify.Notifier
	Texts    *notify.Texts
	Events   events.Publisher

	// AdminIDs are notified on auto-cancel in addition to users stored with
	// the ADMIN role.
	AdminIDs   []int64
	FinalDelay time.Duration

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Name implements Sweeper.
func (s *ConfirmSweeper) Name() string { return "confirm" }

// Sweep handles every entry due at Now.
func (s *ConfirmSweeper) Sweep(ctx context.Context) (Report, error) {
	ctx, span := otel.Tracer("sla/ConfirmSweeper").Start(ctx, "Sweep")
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
		rep.add(s.Name(), result)
	}
	return rep, nil
}

func (s *ConfirmSweeper) sweepOne(ctx context.Context, id uint, now time.Time) (string, error) {
	req, err := repo.GetRequest(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ResultSettled, s.settle(ctx, id)
	}
	if err != nil {
		return "", err
	}
	if req.Status != domain.StatusPaid || req.FullyConfirmed() {
		return ResultSettled, s.settle(ctx, id)
	}

	reminded, err := s.Reminded.Has(ctx, id)
	if err != nil {
		return "", err
	}
	if !reminded {
		return ResultReminded, s.remind(ctx, req, now)
	}

	err = repo.TransitionStatus(ctx, s.DB, id, []domain.RequestStatus{domain.StatusPaid}, domain.StatusCanceled)
	if errors.Is(err, repo.ErrStaleStatus) || errors.Is(err, repo.ErrNotFound) {
		// Completed since the load.
		return ResultSettled, s.settle(ctx, id)
	}
	if err != nil {
		return "", err
	}
	services.CountTransition(string(domain.StatusCanceled))

	text := s.Texts.T(notify.MsgConfirmExpired, id)
	send(ctx, s.Notifier, req.Client.TgID, text, nil)
	send(ctx, s.Notifier, req.Performer.TgID, text, nil)
	for _, admin := range s.admins(ctx) {
		send(ctx, s.Notifier, admin, s.Texts.T(notify.MsgAdminConfirmExpiry, id), nil)
	}
	cancelSideEffects(ctx, s.DB, s.Rooms, s.Events, req, "confirm_timeout", now)

	log.Info().Uint("request_id", id).Msg("sla: request canceled, completion not confirmed")
	return ResultCanceled, s.settle(ctx, id)
}

// remind is the first stage: both sides get the confirm button and the entry
// is rescheduled. The marker is set before the deadline moves so a failure in
// between cannot produce a second reminder.
func (s *ConfirmSweeper) remind(ctx context.Context, req *domain.Request, now time.Time) error {
	if err := s.Reminded.Mark(ctx, req.ID); err != nil {
		return err
	}
	if err := s.Schedule.Add(ctx, req.ID, now.Add(s.FinalDelay)); err != nil {
		return err
	}

	kb := notify.Row(notify.Button{
		Text: s.Texts.T(notify.BtnConfirmDone),
		Data: notify.Data(notify.ActConfirmDone, req.ID),
	})
	text := s.Texts.T(notify.MsgConfirmReminder, req.ID)
	send(ctx, s.Notifier, req.Client.TgID, text, kb)
	send(ctx, s.Notifier, req.Performer.TgID, text, kb)
	return nil
}

// settle drops the entry and its reminder marker.
func (s *ConfirmSweeper) settle(ctx context.Context, id uint) error {
	if err := s.Schedule.Remove(ctx, id); err != nil {
		return err
	}
	return s.Reminded.Unmark(ctx, id)
}

// admins merges configured admin ids with users stored as ADMIN.
func (s *ConfirmSweeper) admins(ctx context.Context) []int64 {
	seen := make(map[int64]struct{}, len(s.AdminIDs))
	out := make([]int64, 0, len(s.AdminIDs))
	add := func(id int64) {
		if _, ok := seen[id]; ok || id == 0 {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range s.AdminIDs {
		add(id)
	}
	stored, err := repo.ListAdminTgIDs(ctx, s.DB)
	if err != nil {
		log.Warn().Err(err).Msg("sla: list admins")
	}
	for _, id := range stored {
		add(id)
	}
	return out
}

func (s *ConfirmSweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
