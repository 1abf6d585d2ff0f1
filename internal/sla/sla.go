// Package sla enforces the time limits of the request lifecycle.
//
// Two sweepers read deadline schedules kept in the key/value store:
//
//   - PaymentSweeper cancels accepted requests whose payment window passed
//     without the client marking them paid.
//   - ConfirmSweeper reminds both sides of a PAID request to confirm
//     completion, then cancels it if the second deadline passes too.
//
// A Runner drives both on a fixed interval. Sweeps process items one at a
// time; a failing item is logged and left in its schedule for the next
// sweep, and never stops the rest of the batch.
package sla

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-relay-bot/internal/domain"
	"github.com/tbourn/go-relay-bot/internal/events"
	"github.com/tbourn/go-relay-bot/internal/repo"
)

// Item results, used as metric labels.
const (
	ResultCanceled = "canceled"
	ResultReminded = "reminded"
	ResultSettled  = "settled"
	ResultError    = "error"
)

var (
	sweepItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sla_sweep_items_total",
			Help: "Schedule entries processed by the SLA sweepers, by schedule and result.",
		},
		[]string{"schedule", "result"},
	)
	sweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sla_sweep_duration_seconds",
			Help:    "Duration of one SLA sweep.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"schedule"},
	)
)

func init() {
	prometheus.MustRegister(sweepItems, sweepDuration)
}

// Sweeper processes the due entries of one schedule.
type Sweeper interface {
	Name() string
	Sweep(ctx context.Context) (Report, error)
}

// Report tallies one sweep by item result.
type Report map[string]int

func (r Report) add(schedule, result string) {
	r[result]++
	sweepItems.WithLabelValues(schedule, result).Inc()
}

// RoomCloser deactivates a request's room.
type RoomCloser interface {
	Close(ctx context.Context, requestID uint) error
}

// cancelSideEffects is shared by both sweepers once a request was moved to
// CANCELED: the room goes inactive, both presence flags drop and a
// lifecycle event is emitted. Failures are logged; the cancellation itself
// is already committed.
func cancelSideEffects(ctx context.Context, db *gorm.DB, rooms RoomCloser, pub events.Publisher, req *domain.Request, reason string, now time.Time) {
	l := log.With().Uint("request_id", req.ID).Str("reason", reason).Logger()
	if err := rooms.Close(ctx, req.ID); err != nil {
		l.Warn().Err(err).Msg("sla: close room")
	}
	if err := repo.ClearChatPresence(ctx, db, req.ID, req.Client.TgID, req.Performer.TgID); err != nil {
		l.Warn().Err(err).Msg("sla: clear presence")
	}
	if pub == nil {
		return
	}
	e := events.Event{
		Name:      events.Canceled,
		RequestID: req.ID,
		At:        now.UTC(),
		Attrs:     map[string]string{"reason": reason},
	}
	if err := pub.Publish(ctx, e); err != nil {
		l.Warn().Err(err).Msg("sla: publish event")
	}
}
