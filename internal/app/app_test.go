package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/tbourn/go-relay-bot/internal/config"
	"github.com/tbourn/go-relay-bot/internal/domain"
	"github.com/tbourn/go-relay-bot/internal/http/middleware"
	"github.com/tbourn/go-relay-bot/internal/kv"
	"github.com/tbourn/go-relay-bot/internal/repo"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	mr := miniredis.RunT(t)
	return config.Config{
		Port:              "0",
		ReadTimeout:       time.Second,
		ReadHeaderTimeout: time.Second,
		WriteTimeout:      time.Second,
		IdleTimeout:       time.Second,
		MaxHeaderBytes:    1 << 16,
		GinMode:           "test",
		LogLevel:          "error",
		APIBasePath:       "/api/v1",
		DBDriver:          "sqlite",
		DBDSN:             filepath.Join(t.TempDir(), "relay.db"),
		RedisURL:          "redis://" + mr.Addr() + "/0",
		Bot:               config.BotConfig{SendRPS: 10, SendBurst: 1, Locale: "en"},
		SLA: config.SLAConfig{
			PaymentWindow:        time.Hour,
			ConfirmReminderDelay: time.Hour,
			ConfirmFinalDelay:    time.Hour,
			SweepInterval:        10 * time.Millisecond,
			SweepStartDelay:      0,
			RoomRetention:        time.Hour,
		},
		RateRPS:        100,
		RateBurst:      100,
		IdempotencyTTL: time.Hour,
	}
}

func TestNew_WiresHTTPWithoutBot(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.dispatcher != nil || a.bot != nil {
		t.Fatalf("no bot expected without a token")
	}
	if len(a.Runner.Sweepers) != 3 {
		t.Fatalf("sweepers = %d; want 3", len(a.Runner.Sweepers))
	}

	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("/health = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
	req.Header.Set(middleware.HeaderUserID, "5")
	w = httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"total":0`) {
		t.Fatalf("list = %d %s", w.Code, w.Body.String())
	}
}

func TestNew_FailsOnUnreachableRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisURL = "redis://127.0.0.1:1/0"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatalf("expected redis error")
	}
}

func TestRun_SweepsAndStopsCleanly(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// An expired payment deadline for an accepted request is canceled by
	// the runner while Run is active.
	ctx := context.Background()
	c, _ := repo.TouchUser(ctx, a.DB, 1, "c", time.Now())
	p, _ := repo.TouchUser(ctx, a.DB, 2, "p", time.Now())
	req := &domain.Request{ClientID: c.ID, PerformerID: p.ID, Game: "Go", DurationMin: 10, Status: domain.StatusAccepted}
	if err := a.DB.Create(req).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := kv.NewSchedule(a.Redis, kv.KeyPayDeadlines).Add(ctx, req.ID, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	db := a.DB

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- a.Run(runCtx) }()

	deadline := time.Now().Add(3 * time.Second)
	for {
		var got domain.Request
		if err := db.First(&got, req.ID).Error; err == nil && got.Status == domain.StatusCanceled {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("request was not canceled by the sweeper")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v; want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestMigrate(t *testing.T) {
	cfg := testConfig(t)
	if err := Migrate(cfg); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	cfg.DBDriver = "oracle"
	if err := Migrate(cfg); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestSetRole(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	if err := SetRole(ctx, cfg, 77, domain.RolePerformer); err != nil {
		t.Fatalf("SetRole new user: %v", err)
	}
	if err := SetRole(ctx, cfg, 77, domain.RoleAdmin); err != nil {
		t.Fatalf("SetRole existing user: %v", err)
	}
	if err := SetRole(ctx, cfg, 77, domain.Role("OWNER")); err == nil {
		t.Fatalf("expected unknown role error")
	}
	if err := SetRole(ctx, cfg, 0, domain.RoleClient); err == nil {
		t.Fatalf("expected invalid id error")
	}

	db, err := repo.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	u, err := repo.GetUserByTg(ctx, db, 77)
	if err != nil || u.Role != domain.RoleAdmin {
		t.Fatalf("user = %+v, %v", u, err)
	}
}
