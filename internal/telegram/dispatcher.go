package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-relay-bot/internal/domain"
	"github.com/tbourn/go-relay-bot/internal/events"
	"github.com/tbourn/go-relay-bot/internal/kv"
	"github.com/tbourn/go-relay-bot/internal/notify"
	"github.com/tbourn/go-relay-bot/internal/repo"
	"github.com/tbourn/go-relay-bot/internal/services"
	"github.com/tbourn/go-relay-bot/internal/utils"
)

var botUpdates = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bot_updates_total",
		Help: "Bot updates handled, by kind (callback, command, flow, relay, ignored).",
	},
	[]string{"kind"},
)

func init() {
	prometheus.MustRegister(botUpdates)
}

// Replier is the outbound side the dispatcher needs: notifications plus
// callback acknowledgments.
type Replier interface {
	notify.Notifier
	Answer(ctx context.Context, callbackID, text string) error
}

// Dispatcher routes bot updates to the core services.
type Dispatcher struct {
	DB            *gorm.DB
	Requests      *services.RequestService
	Rooms         *services.RoomService
	Relay         *services.RelayService
	Conversations *kv.ConversationStore
	Bot           Replier
	Texts         *notify.Texts
	Events        events.Publisher

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Handle processes one update. Errors are reported to the user and logged;
// nothing is returned because the update source cannot retry.
func (d *Dispatcher) Handle(ctx context.Context, u tgbotapi.Update) {
	switch {
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		d.touch(ctx, u.CallbackQuery.From)
		d.callback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.From != nil:
		d.touch(ctx, u.Message.From)
		d.message(ctx, u.Message)
	default:
		botUpdates.WithLabelValues("ignored").Inc()
	}
}

// touch is the heartbeat: every update refreshes username and last-seen.
func (d *Dispatcher) touch(ctx context.Context, from *tgbotapi.User) {
	if _, err := repo.TouchUser(ctx, d.DB, from.ID, from.UserName, d.now().UTC()); err != nil {
		log.Warn().Err(err).Int64("tg_id", from.ID).Msg("bot: heartbeat")
	}
}

func (d *Dispatcher) callback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	botUpdates.WithLabelValues("callback").Inc()
	tg := q.From.ID
	parts := strings.Split(q.Data, ":")
	action := parts[0]
	var id uint
	if len(parts) > 1 {
		id = utils.ParseID(parts[1])
	}
	l := log.With().Str("action", action).Uint("request_id", id).Int64("tg_id", tg).Logger()

	var err error
	toast := ""
	switch action {
	case notify.ActAccept:
		err = d.Requests.Accept(ctx, id, tg)
	case notify.ActReject:
		err = d.Requests.Reject(ctx, id, tg)
	case notify.ActNegotiate:
		err = d.Requests.Negotiate(ctx, id, tg)
	case notify.ActJoin:
		_, err = d.Rooms.Join(ctx, id, tg)
	case notify.ActLeave:
		err = d.Rooms.Leave(ctx, id, tg)
	case notify.ActShowPayment:
		err = d.showPayment(ctx, id, tg)
	case notify.ActMarkPaid:
		if err = d.Requests.MarkPaid(ctx, id, tg); err == nil {
			d.startFlow(ctx, tg, domain.FlowPaymentProof, id)
		}
	case notify.ActShowProof:
		if err = d.Requests.OfferProof(ctx, id, tg); err == nil {
			d.startFlow(ctx, tg, domain.FlowPaymentProof, id)
		}
	case notify.ActGotMoney:
		err = d.Requests.ConfirmReceived(ctx, id, tg)
	case notify.ActConfirmDone:
		_, err = d.Requests.ConfirmCompletion(ctx, id, tg)
	case notify.ActList:
		tab := services.TabOpen
		page := 1
		if len(parts) > 1 {
			tab = parts[1]
		}
		if len(parts) > 2 {
			page = utils.AtoiDefault(parts[2], 1)
		}
		err = d.sendList(ctx, tg, tab, page)
	case notify.ActReview:
		score := 0
		if len(parts) > 2 {
			score = utils.AtoiDefault(parts[2], 0)
		}
		err = d.review(ctx, id, tg, score)
		if err == nil {
			toast = d.Texts.T(notify.MsgReviewThanks)
		}
	default:
		l.Debug().Msg("bot: unknown callback")
		err = services.ErrInvalidInput
	}

	if err != nil {
		toast = d.errText(err)
		if !isUserError(err) {
			l.Error().Err(err).Msg("bot: callback failed")
		}
	}
	if aerr := d.Bot.Answer(ctx, q.ID, toast); aerr != nil {
		l.Debug().Err(aerr).Msg("bot: answer callback")
	}
}

func (d *Dispatcher) message(ctx context.Context, m *tgbotapi.Message) {
	tg := m.From.ID
	if m.IsCommand() {
		botUpdates.WithLabelValues("command").Inc()
		d.command(ctx, m)
		return
	}

	conv, err := d.Conversations.Get(ctx, tg)
	if err != nil {
		log.Warn().Err(err).Int64("tg_id", tg).Msg("bot: load conversation")
	}
	if conv.Active() && d.continueFlow(ctx, m, conv) {
		botUpdates.WithLabelValues("flow").Inc()
		return
	}

	u, err := repo.GetUserByTg(ctx, d.DB, tg)
	if err != nil || !u.ActiveInChat || u.LastChatRequestID == nil {
		botUpdates.WithLabelValues("ignored").Inc()
		return
	}
	out, err := d.Relay.Relay(ctx, *u.LastChatRequestID, tg, m.Chat.ID, m.MessageID)
	if err != nil {
		log.Error().Err(err).Int64("tg_id", tg).Uint("request_id", *u.LastChatRequestID).Msg("bot: relay")
		return
	}
	if out == services.RelayIgnored {
		botUpdates.WithLabelValues("ignored").Inc()
		return
	}
	botUpdates.WithLabelValues("relay").Inc()
}

func (d *Dispatcher) command(ctx context.Context, m *tgbotapi.Message) {
	tg := m.From.ID
	args := strings.TrimSpace(m.CommandArguments())
	switch m.Command() {
	case "requests":
		tab := services.TabOpen
		if args != "" {
			tab = args
		}
		if err := d.sendList(ctx, tg, tab, 1); err != nil {
			d.reply(ctx, tg, d.errText(err))
		}
	case "payinfo":
		if args == "" {
			d.startFlow(ctx, tg, domain.FlowDefaultPayInfo, 0)
			d.reply(ctx, tg, d.Texts.T(notify.MsgPayInfoPrompt))
			return
		}
		d.savePayInfo(ctx, tg, args)
	case "cancel":
		if err := d.Conversations.Clear(ctx, tg); err != nil {
			log.Warn().Err(err).Int64("tg_id", tg).Msg("bot: clear conversation")
		}
		d.reply(ctx, tg, d.Texts.T(notify.MsgFlowCanceled))
	}
}

// continueFlow feeds m to the user's open flow. It reports false when the
// message does not belong to the flow and should be routed on.
func (d *Dispatcher) continueFlow(ctx context.Context, m *tgbotapi.Message, conv domain.Conversation) bool {
	tg := m.From.ID
	switch conv.Flow {
	case domain.FlowPaymentProof:
		refs := proofRefs(m)
		if len(refs) == 0 {
			return false
		}
		if err := d.Requests.AttachProof(ctx, conv.RequestID, tg, refs); err != nil {
			d.reply(ctx, tg, d.errText(err))
		}
		d.endFlow(ctx, tg)
		return true
	case domain.FlowDefaultPayInfo:
		text := strings.TrimSpace(m.Text)
		if text == "" {
			return false
		}
		d.savePayInfo(ctx, tg, text)
		d.endFlow(ctx, tg)
		return true
	}
	return false
}

func (d *Dispatcher) savePayInfo(ctx context.Context, tg int64, text string) {
	if err := d.Requests.SetDefaultPayInstructions(ctx, tg, text); err != nil {
		d.reply(ctx, tg, d.errText(err))
		return
	}
	if strings.TrimSpace(text) == "" {
		d.reply(ctx, tg, d.Texts.T(notify.MsgPayInfoCleared))
		return
	}
	d.reply(ctx, tg, d.Texts.T(notify.MsgPayInfoSaved))
}

func (d *Dispatcher) showPayment(ctx context.Context, id uint, tg int64) error {
	text, err := d.Requests.PaymentInstructions(ctx, id, tg)
	if err != nil {
		return err
	}
	if text == "" {
		d.reply(ctx, tg, d.Texts.T(notify.MsgNoInstructions, id))
		return nil
	}
	d.reply(ctx, tg, d.Texts.T(notify.MsgInstructions, id, text))
	return nil
}

func (d *Dispatcher) sendList(ctx context.Context, tg int64, tab string, page int) error {
	items, total, err := d.Requests.ListForUser(ctx, tg, tab, page, services.DefaultPageSize)
	if err != nil {
		return err
	}
	if total == 0 {
		d.reply(ctx, tg, d.Texts.T(notify.MsgListEmpty))
		return nil
	}
	pages := utils.TotalPages(total, services.DefaultPageSize)
	if page < 1 {
		page = 1
	}

	var b strings.Builder
	b.WriteString(d.Texts.T(notify.MsgListHeader, tab, page, pages))
	for _, r := range items {
		b.WriteByte('\n')
		b.WriteString(d.Texts.T(notify.MsgListItem, r.ID, r.Game, r.DurationMin, string(r.Status)))
	}

	var nav []notify.Button
	if page > 1 {
		nav = append(nav, notify.Button{Text: d.Texts.T(notify.BtnPrev), Data: notify.Data(notify.ActList, tab, page-1)})
	}
	if page < pages {
		nav = append(nav, notify.Button{Text: d.Texts.T(notify.BtnNext), Data: notify.Data(notify.ActList, tab, page+1)})
	}
	var kb notify.Keyboard
	if len(nav) > 0 {
		kb = notify.Row(nav...)
	}
	if _, err := d.Bot.Send(ctx, tg, b.String(), kb); err != nil {
		log.Debug().Err(err).Int64("tg_id", tg).Msg("bot: send list")
	}
	return nil
}

// review records the rating as a lifecycle event. Storing reviews belongs to
// another service that consumes the event stream.
func (d *Dispatcher) review(ctx context.Context, id uint, tg int64, score int) error {
	if score < 1 || score > 5 {
		return services.ErrInvalidInput
	}
	req, err := d.Requests.Get(ctx, id, tg)
	if err != nil {
		return err
	}
	if req.Status != domain.StatusCompleted {
		return services.ErrAlreadyProcessed
	}
	if d.Events == nil {
		return nil
	}
	return d.Events.Publish(ctx, events.Event{
		Name:      events.Reviewed,
		RequestID: id,
		Actor:     tg,
		At:        d.now().UTC(),
		Attrs:     map[string]string{"score": strconv.Itoa(score)},
	})
}

func (d *Dispatcher) startFlow(ctx context.Context, tg int64, flow domain.Flow, id uint) {
	if err := d.Conversations.Set(ctx, tg, domain.Conversation{Flow: flow, RequestID: id}); err != nil {
		log.Warn().Err(err).Int64("tg_id", tg).Str("flow", string(flow)).Msg("bot: start flow")
	}
}

func (d *Dispatcher) endFlow(ctx context.Context, tg int64) {
	if err := d.Conversations.Clear(ctx, tg); err != nil {
		log.Warn().Err(err).Int64("tg_id", tg).Msg("bot: end flow")
	}
}

func (d *Dispatcher) reply(ctx context.Context, tg int64, text string) {
	if _, err := d.Bot.Send(ctx, tg, text, nil); err != nil {
		log.Debug().Err(err).Int64("tg_id", tg).Msg("bot: reply")
	}
}

func (d *Dispatcher) errText(err error) string {
	switch {
	case errors.Is(err, services.ErrRequestNotFound), errors.Is(err, services.ErrRoomNotFound):
		return d.Texts.T(notify.ErrTextNotFound)
	case errors.Is(err, services.ErrNotParticipant):
		return d.Texts.T(notify.ErrTextNotParticipant)
	case errors.Is(err, services.ErrAlreadyProcessed), errors.Is(err, services.ErrInvalidInput):
		return d.Texts.T(notify.ErrTextProcessed)
	case errors.Is(err, services.ErrRoomClosed):
		return d.Texts.T(notify.ErrTextChatClosed)
	default:
		return d.Texts.T(notify.ErrTextGeneric)
	}
}

func isUserError(err error) bool {
	for _, e := range []error{
		services.ErrRequestNotFound,
		services.ErrRoomNotFound,
		services.ErrRoomClosed,
		services.ErrNotParticipant,
		services.ErrAlreadyProcessed,
		services.ErrInvalidInput,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// proofRefs extracts attachment references usable as payment proof. For
// photos the largest size is kept.
func proofRefs(m *tgbotapi.Message) []string {
	var refs []string
	if n := len(m.Photo); n > 0 {
		refs = append(refs, "photo:"+m.Photo[n-1].FileID)
	}
	if m.Document != nil {
		refs = append(refs, "document:"+m.Document.FileID)
	}
	return refs
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
