// Package services – RequestService
//
// RequestService is the Request Lifecycle Controller. It drives a request
// through NEW → NEGOTIATION/ACCEPTED → PAID → COMPLETED, or to REJECTED, and
// wires each transition to its side effects: room creation and teardown,
// SLA schedule entries, participant notices, lifecycle events and the review
// prompt.
//
// Status changes are conditional updates in the relational store. When the
// request is no longer in an allowed source state the method returns
// ErrAlreadyProcessed and performs no side effects, so a user action racing
// an SLA sweeper cannot both win.
//
// Two completion paths exist: the performer acknowledging the money
// (ConfirmReceived) and both sides self-confirming (ConfirmCompletion).
// Whichever reaches COMPLETED first wins; the other then observes
// ErrAlreadyProcessed. Both end in the same finalizer.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-relay-bot/internal/domain"
	"github.com/tbourn/go-relay-bot/internal/events"
	"github.com/tbourn/go-relay-bot/internal/kv"
	"github.com/tbourn/go-relay-bot/internal/notify"
	"github.com/tbourn/go-relay-bot/internal/repo"
	"github.com/tbourn/go-relay-bot/internal/utils"
)

// List tabs.
const (
	TabOpen = "open"
	TabDone = "done"
	TabAll  = "all"
)

// DefaultPageSize is the request list page size used by the bot.
const DefaultPageSize = 5

// RequestService implements the request lifecycle.
type RequestService struct {
	DB       *gorm.DB
	Rooms    *RoomService
	Notifier notify.Notifier
	Texts    *notify.Texts
	Events   events.Publisher
	Reviews  ReviewPrompter

	PayDeadlines     *kv.Schedule
	ConfirmDeadlines *kv.Schedule
	Reminded         *kv.Marker

	PaymentWindow        time.Duration
	ConfirmReminderDelay time.Duration

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Create submits a new request from clientTg to performerTg. The client is
// registered on first use; the performer must already exist with the
// PERFORMER role.
func (s *RequestService) Create(ctx context.Context, clientTg, performerTg int64, game string, durationMin int, preferredAt *time.Time) (*domain.Request, error) {
	ctx, span := s.start(ctx, "Create", 0, clientTg)
	defer span.End()

	game = strings.TrimSpace(game)
	if game == "" || durationMin <= 0 || clientTg == 0 || clientTg == performerTg {
		return nil, ErrInvalidInput
	}
	performer, err := repo.GetUserByTg(ctx, s.DB, performerTg)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && performer.Role != domain.RolePerformer) {
		return nil, fmt.Errorf("%w: unknown performer %d", ErrInvalidInput, performerTg)
	}
	if err != nil {
		return nil, err
	}
	client, err := repo.GetUserByTg(ctx, s.DB, clientTg)
	if errors.Is(err, repo.ErrNotFound) {
		client, err = repo.TouchUser(ctx, s.DB, clientTg, "", s.now())
	}
	if err != nil {
		return nil, err
	}

	req := &domain.Request{
		ClientID:    client.ID,
		PerformerID: performer.ID,
		Game:        game,
		DurationMin: durationMin,
		PreferredAt: preferredAt,
		Status:      domain.StatusNew,
	}
	if err := repo.CreateRequest(ctx, s.DB, req); err != nil {
		return nil, err
	}
	req.Client, req.Performer = *client, *performer
	lifecycleTransitions.WithLabelValues(string(domain.StatusNew)).Inc()

	deliver(ctx, s.Notifier, performerTg, s.Texts.T(notify.MsgNewRequest, req.ID, req.Game, req.DurationMin),
		notify.Keyboard{
			{
				{Text: s.Texts.T(notify.BtnAccept), Data: notify.Data(notify.ActAccept, req.ID)},
				{Text: s.Texts.T(notify.BtnReject), Data: notify.Data(notify.ActReject, req.ID)},
			},
			{
				{Text: s.Texts.T(notify.BtnNegotiate), Data: notify.Data(notify.ActNegotiate, req.ID)},
			},
		})
	s.publish(ctx, events.Created, req.ID, clientTg, nil)
	return req, nil
}

// Get returns the request if actor takes part in it.
func (s *RequestService) Get(ctx context.Context, id uint, actor int64) (*domain.Request, error) {
	ctx, span := s.start(ctx, "Get", id, actor)
	defer span.End()

	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := sideOf(req, actor); err != nil {
		return nil, err
	}
	return req, nil
}

// Negotiate moves a NEW request into NEGOTIATION and opens its room so the
// parties can talk before the performer accepts. Performer only.
func (s *RequestService) Negotiate(ctx context.Context, id uint, actor int64) error {
	ctx, span := s.start(ctx, "Negotiate", id, actor)
	defer span.End()

	req, err := s.loadAs(ctx, id, actor, domain.RolePerformer)
	if err != nil {
		return err
	}
	if err := s.transition(ctx, s.DB, id, []domain.RequestStatus{domain.StatusNew}, domain.StatusNegotiation); err != nil {
		return err
	}
	if _, err := s.Rooms.Ensure(ctx, id, req.Client.TgID, req.Performer.TgID); err != nil {
		log.Warn().Err(err).Uint("request_id", id).Msg("lifecycle: open room")
	}

	join := notify.Row(notify.Button{Text: s.Texts.T(notify.BtnJoin), Data: notify.Data(notify.ActJoin, id)})
	deliver(ctx, s.Notifier, req.Client.TgID, s.Texts.T(notify.MsgNegotiation, id), join)
	deliver(ctx, s.Notifier, req.Performer.TgID, s.Texts.T(notify.MsgPerfChatNoPay, id), join)
	s.publish(ctx, events.Negotiation, id, actor, nil)
	return nil
}

// Accept moves a NEW or NEGOTIATION request to ACCEPTED, opens the room,
// copies the performer's default payment instructions when the request has
// none, and starts the payment window. Performer only.
func (s *RequestService) Accept(ctx context.Context, id uint, actor int64) error {
	ctx, span := s.start(ctx, "Accept", id, actor)
	defer span.End()

	req, err := s.loadAs(ctx, id, actor, domain.RolePerformer)
	if err != nil {
		return err
	}
	from := []domain.RequestStatus{domain.StatusNew, domain.StatusNegotiation}
	err = s.scheduleThen(ctx, s.PayDeadlines, id, s.now().Add(s.PaymentWindow), func() error {
		return s.transition(ctx, s.DB, id, from, domain.StatusAccepted)
	})
	if err != nil {
		return err
	}
	// Join recreates a missing room, so a failure here is not fatal.
	if _, err := s.Rooms.Ensure(ctx, id, req.Client.TgID, req.Performer.TgID); err != nil {
		log.Warn().Err(err).Uint("request_id", id).Msg("lifecycle: open room")
	}

	instructions := ""
	if req.PaymentMeta != nil {
		instructions = req.PaymentMeta.Instructions
	}
	hasDefault := false
	if prof, err := repo.GetPerformerProfile(ctx, s.DB, req.PerformerID); err == nil && strings.TrimSpace(prof.DefaultPayInstructions) != "" {
		hasDefault = true
		if instructions == "" {
			if _, err := repo.FillInstructions(ctx, s.DB, id, prof.DefaultPayInstructions); err != nil {
				log.Warn().Err(err).Uint("request_id", id).Msg("lifecycle: copy default instructions")
			} else {
				instructions = prof.DefaultPayInstructions
			}
		}
	}

	join := notify.Button{Text: s.Texts.T(notify.BtnJoin), Data: notify.Data(notify.ActJoin, id)}
	paid := notify.Button{Text: s.Texts.T(notify.BtnPaid), Data: notify.Data(notify.ActMarkPaid, id)}
	clientKB := notify.Keyboard{{join}, {paid}}

	if instructions != "" {
		deliver(ctx, s.Notifier, req.Client.TgID, s.Texts.T(notify.MsgAcceptedWithPay, id, instructions), clientKB)
	} else {
		deliver(ctx, s.Notifier, req.Client.TgID, s.Texts.T(notify.MsgAcceptedNoPay, id), clientKB)
	}
	if hasDefault {
		deliver(ctx, s.Notifier, req.Performer.TgID, s.Texts.T(notify.MsgPerfChatDefaultPay, id), notify.Row(join))
	} else {
		deliver(ctx, s.Notifier, req.Performer.TgID, s.Texts.T(notify.MsgPerfChatNoPay, id), notify.Row(join))
	}
	s.publish(ctx, events.Accepted, id, actor, nil)
	return nil
}

// Reject moves a NEW or NEGOTIATION request to REJECTED and closes any room
// opened for negotiation. Performer only.
func (s *RequestService) Reject(ctx context.Context, id uint, actor int64) error {
	ctx, span := s.start(ctx, "Reject", id, actor)
	defer span.End()

	req, err := s.loadAs(ctx, id, actor, domain.RolePerformer)
	if err != nil {
		return err
	}
	from := []domain.RequestStatus{domain.StatusNew, domain.StatusNegotiation}
	if err := s.transition(ctx, s.DB, id, from, domain.StatusRejected); err != nil {
		return err
	}
	s.teardown(ctx, req)

	deliver(ctx, s.Notifier, req.Client.TgID, s.Texts.T(notify.MsgRejected, id), nil)
	s.publish(ctx, events.Rejected, id, actor, nil)
	return nil
}

// SetInstructions stores per-request payment instructions and sends them to
// the client together with the "paid" affordance. Performer only, before
// payment.
func (s *RequestService) SetInstructions(ctx context.Context, id uint, actor int64, text string) error {
	ctx, span := s.start(ctx, "SetInstructions", id, actor)
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return ErrInvalidInput
	}
	req, err := s.loadAs(ctx, id, actor, domain.RolePerformer)
	if err != nil {
		return err
	}
	switch req.Status {
	case domain.StatusNew, domain.StatusNegotiation, domain.StatusAccepted:
	default:
		return ErrAlreadyProcessed
	}
	if err := repo.SetInstructions(ctx, s.DB, id, text); err != nil {
		return err
	}

	deliver(ctx, s.Notifier, req.Client.TgID, s.Texts.T(notify.MsgInstructions, id, text),
		notify.Row(notify.Button{Text: s.Texts.T(notify.BtnPaid), Data: notify.Data(notify.ActMarkPaid, id)}))
	deliver(ctx, s.Notifier, req.Performer.TgID, s.Texts.T(notify.MsgInstructionsSent, id), nil)
	return nil
}

// PaymentInstructions returns the request's payment instructions, empty when
// none were provided yet. Either participant.
func (s *RequestService) PaymentInstructions(ctx context.Context, id uint, actor int64) (string, error) {
	ctx, span := s.start(ctx, "PaymentInstructions", id, actor)
	defer span.End()

	req, err := s.Get(ctx, id, actor)
	if err != nil {
		return "", err
	}
	if req.PaymentMeta == nil {
		return "", nil
	}
	return req.PaymentMeta.Instructions, nil
}

// MarkPaid records the client's payment claim: ACCEPTED or NEGOTIATION →
// PAID. The payment deadline is dropped and the confirmation deadline
// starts. Client only.
func (s *RequestService) MarkPaid(ctx context.Context, id uint, actor int64) error {
	ctx, span := s.start(ctx, "MarkPaid", id, actor)
	defer span.End()

	req, err := s.loadAs(ctx, id, actor, domain.RoleClient)
	if err != nil {
		return err
	}
	from := []domain.RequestStatus{domain.StatusAccepted, domain.StatusNegotiation}
	err = s.scheduleThen(ctx, s.ConfirmDeadlines, id, s.now().Add(s.ConfirmReminderDelay), func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.transition(ctx, tx, id, from, domain.StatusPaid); err != nil {
				return err
			}
			return repo.MarkClientPaid(ctx, tx, id)
		})
	})
	if err != nil {
		return err
	}
	// A leftover payment entry is settled by the sweeper once it sees PAID.
	if err := s.PayDeadlines.Remove(ctx, id); err != nil {
		log.Warn().Err(err).Uint("request_id", id).Msg("lifecycle: drop payment deadline")
	}
	if err := s.Reminded.Unmark(ctx, id); err != nil {
		log.Warn().Err(err).Uint("request_id", id).Msg("lifecycle: reset reminder marker")
	}

	deliver(ctx, s.Notifier, req.Client.TgID, s.Texts.T(notify.MsgProofPrompt), nil)
	deliver(ctx, s.Notifier, req.Performer.TgID, s.Texts.T(notify.MsgClientPaid, id),
		notify.Row(notify.Button{Text: s.Texts.T(notify.BtnGotMoney), Data: notify.Data(notify.ActGotMoney, id)}))
	s.publish(ctx, events.Paid, id, actor, nil)
	return nil
}

// AttachProof appends proof-of-payment references to a PAID request and asks
// the performer to confirm receipt. Client only.
// OfferProof re-sends the proof prompt to the client of a PAID request that
// the performer has not confirmed yet. The caller starts the upload flow.
func (s *RequestService) OfferProof(ctx context.Context, id uint, actor int64) error {
	ctx, span := s.start(ctx, "OfferProof", id, actor)
	defer span.End()

	req, err := s.loadAs(ctx, id, actor, domain.RoleClient)
	if err != nil {
		return err
	}
	if req.Status != domain.StatusPaid || req.PaymentMeta == nil || req.PaymentMeta.PerformerReceived {
		return ErrAlreadyProcessed
	}
	deliver(ctx, s.Notifier, req.Client.TgID, s.Texts.T(notify.MsgProofPrompt), nil)
	return nil
}

func (s *RequestService) AttachProof(ctx context.Context, id uint, actor int64, refs []string) error {
	ctx, span := s.start(ctx, "AttachProof", id, actor)
	defer span.End()

	clean := refs[:0:0]
	for _, r := range refs {
		if r = strings.TrimSpace(r); r != "" {
			clean = append(clean, r)
		}
	}
	if len(clean) == 0 {
		return ErrInvalidInput
	}
	req, err := s.loadAs(ctx, id, actor, domain.RoleClient)
	if err != nil {
		return err
	}
	if req.Status != domain.StatusPaid || req.PaymentMeta == nil || !req.PaymentMeta.ClientMarkPaid {
		return ErrAlreadyProcessed
	}
	all, err := repo.AppendProofs(ctx, s.DB, id, clean)
	if err != nil {
		return err
	}

	deliver(ctx, s.Notifier, req.Performer.TgID, s.Texts.T(notify.MsgProofUploaded, id),
		notify.Row(notify.Button{Text: s.Texts.T(notify.BtnGotMoney), Data: notify.Data(notify.ActGotMoney, id)}))
	deliver(ctx, s.Notifier, req.Client.TgID, s.Texts.T(notify.MsgProofThanks), nil)
	s.publish(ctx, events.ProofAttached, id, actor, map[string]string{"proofs": fmt.Sprint(len(all))})
	return nil
}

// ConfirmReceived is the performer's acknowledgment of the money: PAID →
// COMPLETED. Performer only.
func (s *RequestService) ConfirmReceived(ctx context.Context, id uint, actor int64) error {
	ctx, span := s.start(ctx, "ConfirmReceived", id, actor)
	defer span.End()

	req, err := s.loadAs(ctx, id, actor, domain.RolePerformer)
	if err != nil {
		return err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.transition(ctx, tx, id, []domain.RequestStatus{domain.StatusPaid}, domain.StatusCompleted); err != nil {
			return err
		}
		return repo.MarkPerformerReceived(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	deliver(ctx, s.Notifier, req.Performer.TgID, s.Texts.T(notify.MsgPaymentConfirmed, id), nil)
	deliver(ctx, s.Notifier, req.Client.TgID, s.Texts.T(notify.MsgPerformerReceived), nil)
	s.finalize(ctx, req, actor, "received")
	return nil
}

// ConfirmCompletion records actor's completion self-report on a PAID
// request. When both sides have confirmed the request becomes COMPLETED and
// the method reports true. A side confirming twice gets ErrAlreadyProcessed.
func (s *RequestService) ConfirmCompletion(ctx context.Context, id uint, actor int64) (bool, error) {
	ctx, span := s.start(ctx, "ConfirmCompletion", id, actor)
	defer span.End()

	req, err := s.load(ctx, id)
	if err != nil {
		return false, err
	}
	side, err := sideOf(req, actor)
	if err != nil {
		return false, err
	}
	if err := repo.SetConfirmed(ctx, s.DB, id, side); err != nil {
		return false, mapRepoErr(err)
	}

	fresh, err := s.load(ctx, id)
	if err != nil {
		return false, err
	}
	if !fresh.FullyConfirmed() {
		peer := fresh.Performer.TgID
		if side == domain.RolePerformer {
			peer = fresh.Client.TgID
		}
		deliver(ctx, s.Notifier, actor, s.Texts.T(notify.MsgConfirmRecorded, id), nil)
		deliver(ctx, s.Notifier, peer, s.Texts.T(notify.MsgConfirmReminder, id),
			notify.Row(notify.Button{Text: s.Texts.T(notify.BtnConfirmDone), Data: notify.Data(notify.ActConfirmDone, id)}))
		return false, nil
	}

	err = s.transition(ctx, s.DB, id, []domain.RequestStatus{domain.StatusPaid}, domain.StatusCompleted)
	if errors.Is(err, ErrAlreadyProcessed) {
		// Completed by the performer's acknowledgment in between, or
		// canceled by the confirmation sweeper.
		now, lerr := s.load(ctx, id)
		if lerr == nil && now.Status == domain.StatusCompleted {
			return true, nil
		}
		return false, ErrAlreadyProcessed
	}
	if err != nil {
		return false, err
	}

	done := s.Texts.T(notify.MsgCompleted, id)
	deliver(ctx, s.Notifier, fresh.Client.TgID, done, nil)
	deliver(ctx, s.Notifier, fresh.Performer.TgID, done, nil)
	s.finalize(ctx, fresh, actor, "dual")
	return true, nil
}

// SetDefaultPayInstructions stores the performer's default payment text used
// on future accepts. Empty text clears it.
func (s *RequestService) SetDefaultPayInstructions(ctx context.Context, performerTg int64, text string) error {
	ctx, span := s.start(ctx, "SetDefaultPayInstructions", 0, performerTg)
	defer span.End()

	u, err := repo.GetUserByTg(ctx, s.DB, performerTg)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotParticipant
	}
	if err != nil {
		return err
	}
	if u.Role != domain.RolePerformer {
		return ErrNotParticipant
	}
	return repo.SetDefaultPayInstructions(ctx, s.DB, u.ID, strings.TrimSpace(text))
}

// ListForUser returns one page of the requests tg takes part in, newest
// first, and the total across pages. tab is open, done or all.
func (s *RequestService) ListForUser(ctx context.Context, tg int64, tab string, page, pageSize int) ([]domain.Request, int64, error) {
	ctx, span := s.start(ctx, "ListForUser", 0, tg)
	defer span.End()
	span.SetAttributes(attribute.String("tab", tab), attribute.Int("page", page))

	statuses, err := tabStatuses(tab)
	if err != nil {
		return nil, 0, err
	}
	u, err := repo.GetUserByTg(ctx, s.DB, tg)
	if errors.Is(err, repo.ErrNotFound) {
		return []domain.Request{}, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	_, size, offset := utils.Page(page, pageSize, DefaultPageSize, 50)
	total, err := repo.CountRequests(ctx, s.DB, u.ID, statuses)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Request{}, 0, nil
	}
	items, err := repo.ListRequestsPage(ctx, s.DB, u.ID, statuses, offset, size)
	return items, total, err
}

// ListVersion returns a weak ETag for the tab's listing of tg. It changes
// whenever a request in the tab is added, removed or updated.
func (s *RequestService) ListVersion(ctx context.Context, tg int64, tab string) (string, error) {
	statuses, err := tabStatuses(tab)
	if err != nil {
		return "", err
	}
	var (
		count int64
		maxTS *time.Time
	)
	u, err := repo.GetUserByTg(ctx, s.DB, tg)
	switch {
	case errors.Is(err, repo.ErrNotFound):
	case err != nil:
		return "", err
	default:
		if count, maxTS, err = repo.RequestsStats(ctx, s.DB, u.ID, statuses); err != nil {
			return "", err
		}
	}
	var ts int64
	if maxTS != nil {
		ts = maxTS.UnixNano()
	}
	return fmt.Sprintf(`W/"requests:%d:%s:%d:%d"`, tg, tab, count, ts), nil
}

// finalize runs the side effects shared by both completion paths.
func (s *RequestService) finalize(ctx context.Context, req *domain.Request, actor int64, path string) {
	s.teardown(ctx, req)

	closed := s.Texts.T(notify.MsgChatClosed, req.ID)
	deliver(ctx, s.Notifier, req.Client.TgID, closed, nil)
	deliver(ctx, s.Notifier, req.Performer.TgID, closed, nil)

	s.publish(ctx, events.Completed, req.ID, actor, map[string]string{"path": path})
	if s.Reviews != nil {
		s.Reviews.PromptReview(ctx, req)
	}
}

// teardown closes the room, clears both presence flags and drops every SLA
// entry of a request that reached a final state. Failures are logged: the
// status change is already committed.
func (s *RequestService) teardown(ctx context.Context, req *domain.Request) {
	l := log.With().Uint("request_id", req.ID).Logger()
	if err := s.Rooms.Close(ctx, req.ID); err != nil {
		l.Warn().Err(err).Msg("lifecycle: close room")
	}
	if err := repo.ClearChatPresence(ctx, s.DB, req.ID, req.Client.TgID, req.Performer.TgID); err != nil {
		l.Warn().Err(err).Msg("lifecycle: clear presence")
	}
	if err := s.PayDeadlines.Remove(ctx, req.ID); err != nil {
		l.Warn().Err(err).Msg("lifecycle: drop payment deadline")
	}
	if err := s.ConfirmDeadlines.Remove(ctx, req.ID); err != nil {
		l.Warn().Err(err).Msg("lifecycle: drop confirmation deadline")
	}
	if err := s.Reminded.Unmark(ctx, req.ID); err != nil {
		l.Warn().Err(err).Msg("lifecycle: drop reminder marker")
	}
}

// scheduleThen writes the SLA entry of id before commit runs, so a committed
// transition always has its deadline. An entry it created is dropped again
// when commit fails for any reason but a stale status; on a stale status the
// entry may belong to a concurrent winner and is left for the sweeper.
func (s *RequestService) scheduleThen(ctx context.Context, sched *kv.Schedule, id uint, deadline time.Time, commit func() error) error {
	added, err := sched.AddIfAbsent(ctx, id, deadline)
	if err != nil {
		return err
	}
	err = commit()
	if err != nil && added && !errors.Is(err, ErrAlreadyProcessed) {
		if rerr := sched.Remove(ctx, id); rerr != nil {
			log.Warn().Err(rerr).Uint("request_id", id).Str("schedule", sched.Key).Msg("lifecycle: drop unused deadline")
		}
	}
	return err
}

func (s *RequestService) transition(ctx context.Context, db *gorm.DB, id uint, from []domain.RequestStatus, to domain.RequestStatus) error {
	if err := repo.TransitionStatus(ctx, db, id, from, to); err != nil {
		return mapRepoErr(err)
	}
	lifecycleTransitions.WithLabelValues(string(to)).Inc()
	return nil
}

func (s *RequestService) load(ctx context.Context, id uint) (*domain.Request, error) {
	req, err := repo.GetRequest(ctx, s.DB, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return req, nil
}

// loadAs loads the request and checks that actor is its participant on the
// given side.
func (s *RequestService) loadAs(ctx context.Context, id uint, actor int64, want domain.Role) (*domain.Request, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	side, err := sideOf(req, actor)
	if err != nil {
		return nil, err
	}
	if side != want {
		return nil, ErrNotParticipant
	}
	return req, nil
}

func (s *RequestService) publish(ctx context.Context, name string, id uint, actor int64, attrs map[string]string) {
	if s.Events == nil {
		return
	}
	e := events.Event{Name: name, RequestID: id, Actor: actor, At: s.now().UTC(), Attrs: attrs}
	if err := s.Events.Publish(ctx, e); err != nil {
		log.Warn().Err(err).Str("event", name).Uint("request_id", id).Msg("lifecycle: publish event")
	}
}

func (s *RequestService) start(ctx context.Context, op string, id uint, actor int64) (context.Context, trace.Span) {
	return otel.Tracer("services/RequestService").Start(ctx, op,
		trace.WithAttributes(
			attribute.Int64("request.id", int64(id)),
			attribute.Int64("tg.id", actor),
		),
	)
}

func (s *RequestService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// sideOf returns which side of req the identity tg is on.
func sideOf(req *domain.Request, tg int64) (domain.Role, error) {
	switch tg {
	case req.Client.TgID:
		return domain.RoleClient, nil
	case req.Performer.TgID:
		return domain.RolePerformer, nil
	default:
		return "", ErrNotParticipant
	}
}

func tabStatuses(tab string) ([]domain.RequestStatus, error) {
	switch tab {
	case TabOpen, "":
		return domain.OpenStatuses(), nil
	case TabDone:
		return domain.DoneStatuses(), nil
	case TabAll:
		return nil, nil
	default:
		return nil, ErrInvalidInput
	}
}

func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return ErrRequestNotFound
	case errors.Is(err, repo.ErrStaleStatus):
		return ErrAlreadyProcessed
	default:
		return err
	}
}
