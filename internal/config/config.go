// Package config provides application configuration loaded from environment
// variables (and an optional .env file) with defaults and validation. It
// centralizes settings for the HTTP surface, logging, the relational and
// key/value stores, the chat-platform bot, the SLA sweepers and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "relaybot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// BotConfig holds chat-platform settings.
type BotConfig struct {
	Token       string  // BOT_TOKEN; empty runs the service without a bot
	WebhookPath string  // WEBHOOK_PATH; empty selects long polling
	WebhookKey  string  // WEBHOOK_SECRET; checked against X-Telegram-Bot-Api-Secret-Token
	SendRPS     float64 // outbound messages per second
	SendBurst   int
	AdminIDs    []int64 // ADMIN_IDS (CSV)
	Locale      string  // ru|en
}

// SLAConfig holds the deadlines enforced by the sweepers.
type SLAConfig struct {
	PaymentWindow        time.Duration // accept -> auto-cancel when unpaid
	ConfirmReminderDelay time.Duration // paid -> reminder
	ConfirmFinalDelay    time.Duration // reminder -> auto-cancel
	SweepInterval        time.Duration
	SweepStartDelay      time.Duration
	RoomRetention        time.Duration // TTL applied to closed room keys
}

// NATSConfig holds the lifecycle event sink settings.
type NATSConfig struct {
	URL           string // NATS_URL; empty disables publishing
	SubjectPrefix string
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Stores
	DBDriver string // sqlite|postgres
	DBDSN    string // file path for sqlite, DSN for postgres
	RedisURL string

	Bot  BotConfig
	SLA  SLAConfig
	NATS NATSConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS      CORSConfig
	JWTSecret string // when set, API calls need a bearer token

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// Load reads configuration from environment variables, applies defaults,
// normalizes values, and validates the result. A .env file in the working
// directory is read first; variables already set in the environment win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Stores
		DBDriver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBDSN:    getenv("DB_DSN", "app.db"),
		RedisURL: getenv("REDIS_URL", "redis://localhost:6379/0"),

		Bot: BotConfig{
			Token:       getenv("BOT_TOKEN", ""),
			WebhookPath: getenv("WEBHOOK_PATH", ""),
			WebhookKey:  getenv("WEBHOOK_SECRET", ""),
			SendRPS:     getfloat("BOT_SEND_RPS", 25),
			SendBurst:   getint("BOT_SEND_BURST", 5),
			AdminIDs:    parseIDs(getenv("ADMIN_IDS", "")),
			Locale:      strings.ToLower(getenv("LOCALE", "ru")),
		},
		SLA: SLAConfig{
			PaymentWindow:        getdur("PAYMENT_WINDOW", 24*time.Hour),
			ConfirmReminderDelay: getdur("CONFIRM_REMINDER_DELAY", 24*time.Hour),
			ConfirmFinalDelay:    getdur("CONFIRM_FINAL_DELAY", 24*time.Hour),
			SweepInterval:        getdur("SWEEP_INTERVAL", time.Minute),
			SweepStartDelay:      getdur("SWEEP_START_DELAY", 2*time.Second),
			RoomRetention:        getdur("ROOM_RETENTION", 7*24*time.Hour),
		},
		NATS: NATSConfig{
			URL:           getenv("NATS_URL", ""),
			SubjectPrefix: getenv("NATS_SUBJECT_PREFIX", "relaybot"),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		JWTSecret: getenv("JWT_SECRET", ""),

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "relaybot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DBDriver == "postgresql" {
		cfg.DBDriver = "postgres"
	}
	if cfg.Bot.WebhookPath != "" && !strings.HasPrefix(cfg.Bot.WebhookPath, "/") {
		cfg.Bot.WebhookPath = "/" + cfg.Bot.WebhookPath
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if strings.TrimSpace(cfg.DBDSN) == "" {
		return cfg, errors.New("DB_DSN must not be empty")
	}
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return cfg, errors.New("REDIS_URL must not be empty")
	}
	switch cfg.Bot.Locale {
	case "ru", "en":
	default:
		return cfg, errors.New("LOCALE must be one of: ru, en")
	}
	if cfg.Bot.SendRPS <= 0 || cfg.Bot.SendBurst < 1 {
		return cfg, errors.New("BOT_SEND_RPS must be > 0 and BOT_SEND_BURST >= 1")
	}
	if cfg.SLA.PaymentWindow <= 0 || cfg.SLA.ConfirmReminderDelay <= 0 || cfg.SLA.ConfirmFinalDelay <= 0 {
		return cfg, errors.New("SLA deadlines must be positive durations")
	}
	if cfg.SLA.SweepInterval <= 0 || cfg.SLA.SweepStartDelay < 0 {
		return cfg, errors.New("SWEEP_INTERVAL must be > 0 and SWEEP_START_DELAY >= 0")
	}
	if cfg.SLA.RoomRetention <= 0 {
		return cfg, errors.New("ROOM_RETENTION must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseIDs turns a CSV of numeric identities into int64s, skipping junk.
func parseIDs(s string) []int64 {
	var out []int64
	for _, p := range splitCSV(s) {
		if id, err := strconv.ParseInt(p, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
