package config

import (
	"errors"
	"flag"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	BaseURL     string
	DBUrl       string
	TokenSecret string
	TokenTTL    time.Duration
	Debug       bool
	CORSOrigins []string

	Paystack PaystackConfig
	Plan     PlanConfig
	Mail     MailConfig

	// TrustProxy honours X-Forwarded-For / X-Real-IP. Only enable it behind
	// a reverse proxy that overwrites those headers.
	TrustProxy bool

	WebhookWorkers int
	WebhookQueue   int
	WebhookTimeout time.Duration
	RateLimit      float64
	RateBurst      int
}

type PaystackConfig struct {
	SecretKey string
	BaseURL   string
}

// PlanConfig describes the single premium plan sold through Paystack.
type PlanConfig struct {
	Price  int64 // minor currency units (kobo)
	Period time.Duration
	Grace  time.Duration
}

type MailConfig struct {
	ResendAPIKey string
	From         string
}

// ParseFlags loads .env (when present) and parses the process arguments.
func ParseFlags() (Config, error) {
	_ = godotenv.Load()
	return Parse(os.Args[1:])
}

// Parse reads settings from args; every flag defaults to its environment variable.
func Parse(args []string) (cfg Config, err error) {
	fs := flag.NewFlagSet("leadform", flag.ContinueOnError)

	host := fs.String("host", env("LEADFORM_HOST", "0.0.0.0"), "listen host name")
	port := fs.Uint("port", envUint("LEADFORM_PORT", 8080), "listen port number")
	fs.StringVar(&cfg.BaseURL, "base-url", env("LEADFORM_BASE_URL", ""), "public URL used in share links (default derived from listen address)")
	fs.StringVar(&cfg.DBUrl, "db-url", env("LEADFORM_DB", "leadform.sqlite"), "path to SQLite3 DB file")
	fs.StringVar(&cfg.TokenSecret, "token-secret", env("LEADFORM_TOKEN_SECRET", ""), "secret key for token encryption and decryption")
	ttl := fs.Uint("token-ttl", envUint("LEADFORM_TOKEN_TTL", 900), "access token TTL in seconds")
	fs.BoolVar(&cfg.Debug, "debug", env("LEADFORM_DEBUG", "") == "true", "log at DEBUG level")
	origins := fs.String("cors-origins", env("LEADFORM_CORS_ORIGINS", "*"), "comma separated list of origins allowed to embed forms")

	fs.StringVar(&cfg.Paystack.SecretKey, "paystack-secret", env("PAYSTACK_SECRET_KEY", ""), "Paystack secret key")
	fs.StringVar(&cfg.Paystack.BaseURL, "paystack-url", env("PAYSTACK_BASE_URL", "https://api.paystack.co"), "Paystack API base URL")
	price := fs.Uint("plan-price", envUint("LEADFORM_PLAN_PRICE", 500000), "premium plan price in kobo")
	periodDays := fs.Uint("plan-days", envUint("LEADFORM_PLAN_DAYS", 30), "premium period bought by one payment, in days")
	graceDays := fs.Uint("grace-days", envUint("LEADFORM_GRACE_DAYS", 7), "days premium limits survive after expiry")

	fs.StringVar(&cfg.Mail.ResendAPIKey, "resend-key", env("RESEND_API_KEY", ""), "Resend API key for notification emails")
	fs.StringVar(&cfg.Mail.From, "mail-from", env("LEADFORM_MAIL_FROM", "Leadform <noreply@leadform.app>"), "sender of notification emails")

	fs.BoolVar(&cfg.TrustProxy, "trust-proxy", env("LEADFORM_TRUST_PROXY", "") == "true", "take client IPs from X-Forwarded-For / X-Real-IP")

	workers := fs.Uint("webhook-workers", envUint("LEADFORM_WEBHOOK_WORKERS", 4), "number of webhook delivery workers")
	queue := fs.Uint("webhook-queue", envUint("LEADFORM_WEBHOOK_QUEUE", 256), "webhook deliveries buffered before dropping")
	webhookTimeout := fs.Uint("webhook-timeout", envUint("LEADFORM_WEBHOOK_TIMEOUT", 10), "webhook request timeout in seconds")
	fs.Float64Var(&cfg.RateLimit, "rate-limit", envFloat("LEADFORM_RATE_LIMIT", 5), "public requests per second allowed per IP")
	burst := fs.Uint("rate-burst", envUint("LEADFORM_RATE_BURST", 20), "public request burst allowed per IP")

	if err = fs.Parse(args); err != nil {
		return
	}

	cfg.Addr = net.JoinHostPort(*host, strconv.Itoa(int(*port)))
	cfg.TokenTTL = time.Duration(*ttl) * time.Second
	cfg.Plan = PlanConfig{
		Price:  int64(*price),
		Period: time.Duration(*periodDays) * 24 * time.Hour,
		Grace:  time.Duration(*graceDays) * 24 * time.Hour,
	}
	cfg.WebhookWorkers = int(*workers)
	cfg.WebhookQueue = int(*queue)
	cfg.WebhookTimeout = time.Duration(*webhookTimeout) * time.Second
	cfg.RateBurst = int(*burst)
	for _, o := range strings.Split(*origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = cfg.Url()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.TokenSecret == "" {
		err = errors.New("missing parameter -token-secret")
	}

	return
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envUint(key string, fallback uint) uint {
	v, err := strconv.ParseUint(env(key, ""), 10, 64)
	if err != nil {
		return fallback
	}
	return uint(v)
}

func envFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(env(key, ""), 64)
	if err != nil {
		return fallback
	}
	return v
}
