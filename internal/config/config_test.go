package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBasePath != "/api/v1" || cfg.DBDriver != "sqlite" || cfg.Bot.Locale != "ru" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	// Server
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging / Docs
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "api/v1/")

	// Stores
	t.Setenv("DB_DRIVER", "PostgreSQL") // -> "postgres"
	t.Setenv("DB_DSN", "host=db user=app dbname=app sslmode=disable")
	t.Setenv("REDIS_URL", "redis://cache:6379/2")

	// Bot
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("WEBHOOK_PATH", "tg/hook")
	t.Setenv("WEBHOOK_SECRET", "s3cret")
	t.Setenv("BOT_SEND_RPS", "10")
	t.Setenv("BOT_SEND_BURST", "3")
	t.Setenv("ADMIN_IDS", " 11, x, 22 ,")
	t.Setenv("LOCALE", "EN")

	// SLA
	t.Setenv("PAYMENT_WINDOW", "2h")
	t.Setenv("CONFIRM_REMINDER_DELAY", "30m")
	t.Setenv("CONFIRM_FINAL_DELAY", "45m")
	t.Setenv("SWEEP_INTERVAL", "5s")
	t.Setenv("SWEEP_START_DELAY", "0s")
	t.Setenv("ROOM_RETENTION", "1h")

	// NATS
	t.Setenv("NATS_URL", "nats://bus:4222")
	t.Setenv("NATS_SUBJECT_PREFIX", "mkt")

	// Rate limiting (invalids fall back to defaults)
	t.Setenv("RATE_RPS", "x")
	t.Setenv("RATE_BURST", "nope")

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("JWT_SECRET", "s3cr3t")

	t.Setenv("IDEMPOTENCY_TTL", "48h")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}
	if cfg.DBDriver != "postgres" || !strings.Contains(cfg.DBDSN, "dbname=app") || cfg.RedisURL != "redis://cache:6379/2" {
		t.Fatalf("stores unexpected: %+v", cfg)
	}

	wantBot := BotConfig{
		Token:       "123:abc",
		WebhookPath: "/tg/hook",
		WebhookKey:  "s3cret",
		SendRPS:     10,
		SendBurst:   3,
		AdminIDs:    []int64{11, 22},
		Locale:      "en",
	}
	if !reflect.DeepEqual(cfg.Bot, wantBot) {
		t.Fatalf("bot unexpected: %+v", cfg.Bot)
	}

	wantSLA := SLAConfig{
		PaymentWindow:        2 * time.Hour,
		ConfirmReminderDelay: 30 * time.Minute,
		ConfirmFinalDelay:    45 * time.Minute,
		SweepInterval:        5 * time.Second,
		SweepStartDelay:      0,
		RoomRetention:        time.Hour,
	}
	if cfg.SLA != wantSLA {
		t.Fatalf("sla unexpected: %+v", cfg.SLA)
	}
	if cfg.NATS.URL != "nats://bus:4222" || cfg.NATS.SubjectPrefix != "mkt" {
		t.Fatalf("nats unexpected: %+v", cfg.NATS)
	}
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if cfg.JWTSecret != "s3cr3t" || cfg.IdempotencyTTL != 48*time.Hour {
		t.Fatalf("auth/idempotency unexpected: %+v", cfg)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_SLADefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SLA.PaymentWindow != 24*time.Hour ||
		cfg.SLA.ConfirmReminderDelay != 24*time.Hour ||
		cfg.SLA.ConfirmFinalDelay != 24*time.Hour ||
		cfg.SLA.SweepInterval != time.Minute ||
		cfg.SLA.SweepStartDelay != 2*time.Second {
		t.Fatalf("sla defaults unexpected: %+v", cfg.SLA)
	}
	if cfg.Bot.Token != "" || cfg.Bot.WebhookPath != "" || cfg.NATS.URL != "" {
		t.Fatalf("optional integrations should default to disabled: %+v", cfg)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name, key, val, want string
	}{
		{"invalid LOG_LEVEL", "LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"empty PORT via spaces", "PORT", "   ", "PORT must not be empty"},
		{"non-positive timeouts", "READ_TIMEOUT", "0s", "timeouts must be positive"},
		{"max header bytes <= 0", "MAX_HEADER_BYTES", "0", "MAX_HEADER_BYTES"},
		{"unknown DB_DRIVER", "DB_DRIVER", "mysql", "DB_DRIVER"},
		{"empty DB_DSN", "DB_DSN", "  ", "DB_DSN"},
		{"empty REDIS_URL", "REDIS_URL", "  ", "REDIS_URL"},
		{"unknown LOCALE", "LOCALE", "de", "LOCALE"},
		{"bot send rps", "BOT_SEND_RPS", "0", "BOT_SEND_RPS"},
		{"payment window", "PAYMENT_WINDOW", "-1h", "SLA deadlines"},
		{"confirm final delay", "CONFIRM_FINAL_DELAY", "0s", "SLA deadlines"},
		{"sweep interval", "SWEEP_INTERVAL", "0s", "SWEEP_INTERVAL"},
		{"room retention", "ROOM_RETENTION", "0s", "ROOM_RETENTION"},
		{"rate rps negative", "RATE_RPS", "-1", "RATE_RPS"},
		{"rate burst < 1", "RATE_BURST", "0", "RATE_BURST"},
		{"idempotency ttl non-positive", "IDEMPOTENCY_TTL", "0s", "IDEMPOTENCY_TTL"},
		{"otel sample ratio out of range", "OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil || !containsErr(err, tc.want) {
				t.Fatalf("expected %q validation error, got: %v", tc.want, err)
			}
		})
	}
}

// --- helpers ---

func TestHelpers_getenv(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("X_SET", "val")
	if getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv should read set value")
	}
}

func TestHelpers_getfloat_getint_getdur(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	if getfloat("F_VALID", 0) != 3.14 {
		t.Fatalf("getfloat parse failed")
	}
	t.Setenv("F_BAD", "nope")
	if getfloat("F_BAD", 1.23) != 1.23 {
		t.Fatalf("getfloat default on bad parse failed")
	}
	t.Setenv("I_BAD", "x")
	if getint("I_BAD", 7) != 7 {
		t.Fatalf("getint default on bad parse failed")
	}
	t.Setenv("D_VALID", "150ms")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond {
		t.Fatalf("getdur parse failed")
	}
}

func TestHelpers_getbool(t *testing.T) {
	for _, v := range []string{"1", "TRUE", " yes ", "on"} {
		t.Setenv("B_T", v)
		if !getbool("B_T", false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	for _, v := range []string{"0", "false", " no ", "Off"} {
		t.Setenv("B_F", v)
		if getbool("B_F", true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
	t.Setenv("B_JUNK", "maybe")
	if !getbool("B_JUNK", true) {
		t.Fatalf("getbool should fall back to default on junk")
	}
}

func TestHelpers_splitCSV_parseIDs_normalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV mismatch: %#v", got)
	}
	if got := parseIDs("1,-2, 3x ,4"); !reflect.DeepEqual(got, []int64{1, -2, 4}) {
		t.Fatalf("parseIDs mismatch: %#v", got)
	}
	if parseIDs("") != nil {
		t.Fatalf("parseIDs empty should return nil")
	}
	if normalizeBasePath("") != "/" || normalizeBasePath("v1") != "/v1" || normalizeBasePath("/v1/") != "/v1" {
		t.Fatalf("normalizeBasePath unexpected")
	}
}

func TestMain(m *testing.M) {
	os.Unsetenv("PORT")
	os.Exit(m.Run())
}

func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}
