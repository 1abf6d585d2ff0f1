// Package app composes the relay bot: stores, chat-platform client,
// services, SLA sweepers and the ops HTTP server, and runs them until the
// context is canceled.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-relay-bot/internal/config"
	"github.com/tbourn/go-relay-bot/internal/domain"
	"github.com/tbourn/go-relay-bot/internal/events"
	httpapi "github.com/tbourn/go-relay-bot/internal/http"
	"github.com/tbourn/go-relay-bot/internal/kv"
	"github.com/tbourn/go-relay-bot/internal/notify"
	"github.com/tbourn/go-relay-bot/internal/observability"
	"github.com/tbourn/go-relay-bot/internal/repo"
	"github.com/tbourn/go-relay-bot/internal/services"
	"github.com/tbourn/go-relay-bot/internal/sla"
	"github.com/tbourn/go-relay-bot/internal/sysutil"
	"github.com/tbourn/go-relay-bot/internal/telegram"
)

// Version is stamped at build time with -ldflags "-X .../internal/app.Version=...".
var Version = "dev"

const (
	pollTimeoutSec  = 30
	conversationTTL = 30 * time.Minute
	shutdownTimeout = 10 * time.Second
)

// App is a fully wired process.
type App struct {
	cfg config.Config

	DB       *gorm.DB
	Redis    *redis.Client
	Requests *services.RequestService
	Rooms    *services.RoomService
	Runner   *sla.Runner

	bot        *tgbotapi.BotAPI
	dispatcher *telegram.Dispatcher
	srv        *http.Server

	closers []func(context.Context) error
}

// New opens every dependency and builds the object graph. Call Close when
// New succeeded and Run is not going to be called.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{cfg: cfg}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.cfg
	cfg.OTEL.ServiceName = sysutil.FirstNonEmpty(cfg.OTEL.ServiceName, "relaybot")

	shutdown, err := observability.Setup(ctx, cfg.OTEL, Version)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, shutdown)

	if a.DB, err = repo.Open(cfg.DBDriver, cfg.DBDSN); err != nil {
		return fmt.Errorf("db: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error {
		sqlDB, err := a.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	if err := repo.AutoMigrate(a.DB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if a.Redis, err = kv.Open(ctx, cfg.RedisURL); err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { return a.Redis.Close() })

	var pub events.Publisher = events.Nop{}
	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { nc.Close(); return nil })
		pub = nc
	}

	var (
		notifier notify.Notifier = notify.Nop{}
		client   *telegram.Client
	)
	if cfg.Bot.Token != "" {
		if a.bot, err = telegram.Connect(cfg.Bot.Token); err != nil {
			return err
		}
		client = telegram.NewClient(a.bot, cfg.Bot.SendRPS, cfg.Bot.SendBurst)
		notifier = client
		log.Info().Str("bot", a.bot.Self.UserName).Msg("bot: authorized")
	} else {
		log.Warn().Msg("bot: BOT_TOKEN not set, outgoing messages are dropped")
	}

	texts := notify.NewTexts(cfg.Bot.Locale)
	roomStore := kv.NewRoomStore(a.Redis)
	queue := kv.NewMessageQueue(a.Redis)
	payDeadlines := kv.NewSchedule(a.Redis, kv.KeyPayDeadlines)
	confirmDeadlines := kv.NewSchedule(a.Redis, kv.KeyConfirmDeadlines)
	reminded := kv.NewMarker(a.Redis, kv.KeyConfirmReminded)

	a.Rooms = &services.RoomService{
		DB:        a.DB,
		Rooms:     roomStore,
		Queue:     queue,
		Notifier:  notifier,
		Texts:     texts,
		Retention: cfg.SLA.RoomRetention,
	}
	a.Requests = &services.RequestService{
		DB:                   a.DB,
		Rooms:                a.Rooms,
		Notifier:             notifier,
		Texts:                texts,
		Events:               pub,
		Reviews:              &services.RatingPrompt{Notifier: notifier, Texts: texts},
		PayDeadlines:         payDeadlines,
		ConfirmDeadlines:     confirmDeadlines,
		Reminded:             reminded,
		PaymentWindow:        cfg.SLA.PaymentWindow,
		ConfirmReminderDelay: cfg.SLA.ConfirmReminderDelay,
	}
	a.Runner = &sla.Runner{
		Interval:   cfg.SLA.SweepInterval,
		StartDelay: cfg.SLA.SweepStartDelay,
		Sweepers: []sla.Sweeper{
			&sla.PaymentSweeper{
				DB: a.DB, Schedule: payDeadlines, Rooms: a.Rooms,
				Notifier: notifier, Texts: texts, Events: pub,
			},
			&sla.ConfirmSweeper{
				DB: a.DB, Schedule: confirmDeadlines, Reminded: reminded, Rooms: a.Rooms,
				Notifier: notifier, Texts: texts, Events: pub,
				AdminIDs: cfg.Bot.AdminIDs, FinalDelay: cfg.SLA.ConfirmFinalDelay,
			},
			&sla.ReceiptPurger{DB: a.DB},
		},
	}

	deps := httpapi.Deps{DB: a.DB, Requests: a.Requests, Rooms: a.Rooms}
	if client != nil {
		a.dispatcher = &telegram.Dispatcher{
			DB:       a.DB,
			Requests: a.Requests,
			Rooms:    a.Rooms,
			Relay: &services.RelayService{
				DB: a.DB, Rooms: roomStore, Queue: queue, Notifier: notifier,
			},
			Conversations: kv.NewConversationStore(a.Redis, conversationTTL),
			Bot:           client,
			Texts:         texts,
			Events:        pub,
		}
		if cfg.Bot.WebhookPath != "" {
			deps.Updates = a.dispatcher
		}
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, deps, cfg)
	a.srv = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	return nil
}

// Handler exposes the HTTP handler (for tests and embedding).
func (a *App) Handler() http.Handler { return a.srv.Handler }

// Run serves HTTP, runs the SLA sweepers and, in polling mode, consumes bot
// updates. It blocks until ctx is canceled or a component fails, shuts the
// server down gracefully and releases every dependency. A clean stop
// returns nil.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", a.srv.Addr).Str("version", Version).Msg("http: listening")
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.srv.Shutdown(sctx)
	})
	g.Go(func() error { return a.Runner.Run(gctx) })

	if a.dispatcher != nil && a.cfg.Bot.WebhookPath == "" {
		// Long polling and a registered webhook are mutually exclusive.
		if _, err := a.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			log.Warn().Err(err).Msg("bot: delete webhook")
		}
		g.Go(func() error { return telegram.Poll(gctx, a.bot, a.dispatcher, pollTimeoutSec) })
	} else if a.dispatcher != nil {
		log.Info().Str("path", a.cfg.Bot.WebhookPath).Msg("bot: webhook mode")
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases dependencies in reverse order of acquisition. It is safe
// to call more than once.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			log.Warn().Err(err).Msg("app: close")
		}
	}
	a.closers = nil
}

// Migrate creates or updates the relational schema and exits.
func Migrate(cfg config.Config) error {
	return withDB(cfg, func(db *gorm.DB) error {
		if err := repo.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info().Str("driver", cfg.DBDriver).Msg("schema migrated")
		return nil
	})
}

// SetRole assigns role to the user with platform identity tg, creating the
// user when they never wrote to the bot. Performers must be onboarded this
// way before clients can address requests to them.
func SetRole(ctx context.Context, cfg config.Config, tg int64, role domain.Role) error {
	switch role {
	case domain.RoleClient, domain.RolePerformer, domain.RoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	if tg <= 0 {
		return fmt.Errorf("invalid tg id %d", tg)
	}
	return withDB(cfg, func(db *gorm.DB) error {
		if err := repo.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		_, err := repo.GetUserByTg(ctx, db, tg)
		if errors.Is(err, repo.ErrNotFound) {
			_, err = repo.TouchUser(ctx, db, tg, "", time.Now())
		}
		if err != nil {
			return fmt.Errorf("user: %w", err)
		}
		if err := repo.SetUserRole(ctx, db, tg, role); err != nil {
			return fmt.Errorf("set role: %w", err)
		}
		log.Info().Int64("tg_id", tg).Str("role", string(role)).Msg("role assigned")
		return nil
	})
}

func withDB(cfg config.Config, fn func(*gorm.DB) error) error {
	db, err := repo.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	return fn(db)
}

// ConfigureLogging installs the global zerolog logger described by cfg.
func ConfigureLogging(cfg config.Config) {
	sysutil.SetupLogging(cfg.LogLevel, cfg.LogPretty, nil)
}
