package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is built once at process start and handed to every collaborator.
type Config struct {
	Environment string
	AppURL      string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Payments    PaymentsConfig
	Mail        MailConfig
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	RateLimit      float64
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// DSN returns DATABASE_URL when set, otherwise assembles one from the parts
// with the credentials escaped.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	return u.String()
}

type RedisConfig struct {
	Addr     string
	Password string
}

type AuthConfig struct {
	Provider            string // jwt | firebase
	JWTSecret           string
	FirebaseProjectID   string
	FirebaseCredentials string
}

type PaymentsConfig struct {
	Provider        string // stripe | sandbox
	StripeSecretKey string
	WebhookSecret   string
	Currency        string
	Timeout         time.Duration
	SuccessURL      string
	CancelURL       string
}

type MailConfig struct {
	Provider     string // smtp | plunk | log
	From         string
	ReplyTo      string
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	PlunkAPIKey  string
	PlunkAPIURL  string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Environment: v.GetString("ENVIRONMENT"),
		AppURL:      strings.TrimRight(v.GetString("APP_URL"), "/"),
		Server: ServerConfig{
			Port:           v.GetString("PORT"),
			AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
			RateLimit:      v.GetFloat64("RATE_LIMIT_RPS"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
		},
		Redis: RedisConfig{
			Addr:     redisAddr(v),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		Auth: AuthConfig{
			Provider:            strings.ToLower(v.GetString("AUTH_PROVIDER")),
			JWTSecret:           v.GetString("JWT_SECRET"),
			FirebaseProjectID:   v.GetString("FIREBASE_PROJECT_ID"),
			FirebaseCredentials: v.GetString("FIREBASE_CREDENTIALS_FILE"),
		},
		Payments: PaymentsConfig{
			Provider:        strings.ToLower(v.GetString("PAYMENT_PROVIDER")),
			StripeSecretKey: v.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret:   v.GetString("STRIPE_WEBHOOK_SECRET"),
			Currency:        strings.ToLower(v.GetString("PAYMENT_CURRENCY")),
			Timeout:         v.GetDuration("PAYMENT_TIMEOUT"),
			SuccessURL:      v.GetString("CHECKOUT_SUCCESS_URL"),
			CancelURL:       v.GetString("CHECKOUT_CANCEL_URL"),
		},
		Mail: MailConfig{
			Provider:     strings.ToLower(v.GetString("MAIL_PROVIDER")),
			From:         v.GetString("MAIL_FROM"),
			ReplyTo:      v.GetString("MAIL_REPLY_TO"),
			SMTPHost:     v.GetString("SMTP_HOST"),
			SMTPPort:     v.GetString("SMTP_PORT"),
			SMTPUsername: v.GetString("SMTP_USERNAME"),
			SMTPPassword: v.GetString("SMTP_PASSWORD"),
			PlunkAPIKey:  v.GetString("PLUNK_API_KEY"),
			PlunkAPIURL:  v.GetString("PLUNK_API_URL"),
		},
	}

	if cfg.Payments.SuccessURL == "" {
		cfg.Payments.SuccessURL = cfg.AppURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"
	}
	if cfg.Payments.CancelURL == "" {
		cfg.Payments.CancelURL = cfg.AppURL + "/checkout/cancel"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("APP_URL", "http://localhost:3000")
	v.SetDefault("PORT", "8080")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("AUTH_PROVIDER", "jwt")
	v.SetDefault("PAYMENT_PROVIDER", "sandbox")
	v.SetDefault("PAYMENT_CURRENCY", "usd")
	v.SetDefault("PAYMENT_TIMEOUT", "10s")
	v.SetDefault("MAIL_PROVIDER", "log")
	v.SetDefault("MAIL_FROM", "no-reply@bazaar.local")
	v.SetDefault("PLUNK_API_URL", "https://api.useplunk.com/v1/send")
}

// redisAddr prefers REDIS_ADDR, then REDIS_HOST/REDIS_PORT.
func redisAddr(v *viper.Viper) string {
	if addr := v.GetString("REDIS_ADDR"); addr != "" {
		return addr
	}
	if host := v.GetString("REDIS_HOST"); host != "" {
		port := v.GetString("REDIS_PORT")
		if port == "" {
			port = "6379"
		}
		return host + ":" + port
	}
	return "127.0.0.1:6379"
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects configurations that would fail at first use.
func (c *Config) Validate() error {
	switch c.Auth.Provider {
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("config: JWT_SECRET is required when AUTH_PROVIDER=jwt")
		}
	case "firebase":
		if c.Auth.FirebaseProjectID == "" {
			return fmt.Errorf("config: FIREBASE_PROJECT_ID is required when AUTH_PROVIDER=firebase")
		}
	default:
		return fmt.Errorf("config: unknown AUTH_PROVIDER %q", c.Auth.Provider)
	}

	switch c.Payments.Provider {
	case "stripe":
		if c.Payments.StripeSecretKey == "" || c.Payments.WebhookSecret == "" {
			return fmt.Errorf("config: STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET are required when PAYMENT_PROVIDER=stripe")
		}
	case "sandbox":
	default:
		return fmt.Errorf("config: unknown PAYMENT_PROVIDER %q", c.Payments.Provider)
	}
	if c.Payments.Timeout <= 0 {
		return fmt.Errorf("config: PAYMENT_TIMEOUT must be positive")
	}

	switch c.Mail.Provider {
	case "smtp":
		if c.Mail.SMTPHost == "" || c.Mail.SMTPPort == "" || c.Mail.SMTPUsername == "" || c.Mail.SMTPPassword == "" {
			return fmt.Errorf("config: set SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD when MAIL_PROVIDER=smtp")
		}
	case "plunk":
		if c.Mail.PlunkAPIKey == "" {
			return fmt.Errorf("config: PLUNK_API_KEY is required when MAIL_PROVIDER=plunk")
		}
	case "log":
	default:
		return fmt.Errorf("config: unknown MAIL_PROVIDER %q", c.Mail.Provider)
	}
	return nil
}

// IsDevelopment reports whether debug-level behaviour should be on.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
