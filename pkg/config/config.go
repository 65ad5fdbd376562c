package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "wb-simple-dev-secret-change-me"

// Config holds environment driven settings for the API server.
type Config struct {
	Env            string
	Version        string
	Host           string
	Port           string
	PublicBaseURL  string
	AllowedOrigins []string
	LogLevel       string
	LogDir         string

	JWT       JWTConfig
	Telegram  TelegramConfig
	Video     VideoConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig

	// AdminTelegramIDs are promoted to ADMIN on startup.
	AdminTelegramIDs []string
}

// JWTConfig contains session token settings.
type JWTConfig struct {
	Secret          string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// TelegramConfig contains Mini App and bot settings.
type TelegramConfig struct {
	BotToken   string
	WebhookURL string
	// SkipVerification disables initData signature checks. Refused in production.
	SkipVerification bool
	InitDataMaxAge   time.Duration
}

// VideoConfig contains signed video URL settings.
type VideoConfig struct {
	TokenSecret         string
	TokenTTL            time.Duration
	AllowedReferers     []string
	DeliveryURL         string
	DeliverySecurityKey string
	DeliveryTTL         time.Duration
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	TimeZone        string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // seconds
	ConnMaxIdleTime int // seconds
	RunMigrations   bool
}

// RedisConfig contains cache settings.
type RedisConfig struct {
	URL string
	// AllowFallback lets the server start on the in-memory cache when Redis is unreachable.
	AllowFallback bool
}

// RateLimitConfig contains per-client request budgets.
type RateLimitConfig struct {
	PerMinute     int
	AuthPerMinute int
}

// Load builds a Config from environment variables with sensible defaults.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", "3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_EXPIRES_IN", "24h")
	v.SetDefault("JWT_REFRESH_EXPIRES_IN", "7d")
	v.SetDefault("TELEGRAM_INIT_DATA_MAX_AGE", "24h")
	v.SetDefault("VIDEO_TOKEN_TTL", "15m")
	v.SetDefault("VIDEO_DELIVERY_TTL", "1h")
	v.SetDefault("DB_HOST", "127.0.0.1")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "wb_simple")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 1800)
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", 300)
	v.SetDefault("DB_RUN_MIGRATIONS", true)
	v.SetDefault("REDIS_ALLOW_FALLBACK", true)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 120)
	v.SetDefault("AUTH_RATE_LIMIT_PER_MINUTE", 20)
	v.SetDefault("APP_VERSION", "dev")
}

func fromViper(v *viper.Viper) (*Config, error) {
	env := firstNonEmpty(v.GetString("APP_ENV"), v.GetString("NODE_ENV"), "development")

	cfg := &Config{
		Env:              env,
		Version:          v.GetString("APP_VERSION"),
		Host:             v.GetString("HOST"),
		Port:             v.GetString("PORT"),
		PublicBaseURL:    strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		AllowedOrigins:   splitAndTrim(v.GetString("ALLOWED_ORIGINS")),
		LogLevel:         v.GetString("LOG_LEVEL"),
		LogDir:           v.GetString("LOG_DIR"),
		AdminTelegramIDs: splitAndTrim(v.GetString("ADMIN_TELEGRAM_IDS")),
	}

	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = fmt.Sprintf("http://localhost:%s", cfg.Port)
	}

	secret := v.GetString("JWT_SECRET")
	if secret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET is required in production")
		}
		secret = defaultJWTSecret
	}

	accessTTL, err := ParseDuration(v.GetString("JWT_EXPIRES_IN"))
	if err != nil {
		return nil, fmt.Errorf("JWT_EXPIRES_IN: %w", err)
	}
	refreshTTL, err := ParseDuration(v.GetString("JWT_REFRESH_EXPIRES_IN"))
	if err != nil {
		return nil, fmt.Errorf("JWT_REFRESH_EXPIRES_IN: %w", err)
	}

	cfg.JWT = JWTConfig{
		Secret:          secret,
		RefreshSecret:   secret + "_refresh",
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: refreshTTL,
	}

	maxAge, err := ParseDuration(v.GetString("TELEGRAM_INIT_DATA_MAX_AGE"))
	if err != nil {
		return nil, fmt.Errorf("TELEGRAM_INIT_DATA_MAX_AGE: %w", err)
	}

	cfg.Telegram = TelegramConfig{
		BotToken:         v.GetString("TELEGRAM_BOT_TOKEN"),
		WebhookURL:       v.GetString("TELEGRAM_WEBHOOK_URL"),
		SkipVerification: v.GetBool("TELEGRAM_SKIP_VERIFICATION"),
		InitDataMaxAge:   maxAge,
	}
	if cfg.Telegram.SkipVerification && cfg.IsProduction() {
		return nil, errors.New("TELEGRAM_SKIP_VERIFICATION cannot be enabled in production")
	}

	videoTTL, err := ParseDuration(v.GetString("VIDEO_TOKEN_TTL"))
	if err != nil {
		return nil, fmt.Errorf("VIDEO_TOKEN_TTL: %w", err)
	}
	deliveryTTL, err := ParseDuration(v.GetString("VIDEO_DELIVERY_TTL"))
	if err != nil {
		return nil, fmt.Errorf("VIDEO_DELIVERY_TTL: %w", err)
	}

	cfg.Video = VideoConfig{
		TokenSecret:         firstNonEmpty(v.GetString("VIDEO_TOKEN_SECRET"), secret+"_video"),
		TokenTTL:            videoTTL,
		AllowedReferers:     splitAndTrim(v.GetString("VIDEO_ALLOWED_REFERERS")),
		DeliveryURL:         strings.TrimRight(v.GetString("VIDEO_DELIVERY_URL"), "/"),
		DeliverySecurityKey: v.GetString("VIDEO_DELIVERY_SECURITY_KEY"),
		DeliveryTTL:         deliveryTTL,
	}
	if len(cfg.Video.AllowedReferers) == 0 {
		cfg.Video.AllowedReferers = defaultReferers(cfg.PublicBaseURL)
	}

	cfg.Database = DatabaseConfig{
		URL:             v.GetString("DATABASE_URL"),
		Host:            v.GetString("DB_HOST"),
		Port:            v.GetString("DB_PORT"),
		User:            v.GetString("DB_USER"),
		Password:        v.GetString("DB_PASSWORD"),
		Name:            v.GetString("DB_NAME"),
		SSLMode:         v.GetString("DB_SSLMODE"),
		TimeZone:        v.GetString("DB_TIMEZONE"),
		MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		ConnMaxLifetime: v.GetInt("DB_CONN_MAX_LIFETIME"),
		ConnMaxIdleTime: v.GetInt("DB_CONN_MAX_IDLE_TIME"),
		RunMigrations:   v.GetBool("DB_RUN_MIGRATIONS"),
	}

	cfg.Redis = RedisConfig{
		URL:           v.GetString("REDIS_URL"),
		AllowFallback: v.GetBool("REDIS_ALLOW_FALLBACK"),
	}

	cfg.RateLimit = RateLimitConfig{
		PerMinute:     v.GetInt("RATE_LIMIT_PER_MINUTE"),
		AuthPerMinute: v.GetInt("AUTH_RATE_LIMIT_PER_MINUTE"),
	}

	return cfg, nil
}

// ServerAddress joins the host and port into a listen address.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsProduction reports whether the app is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// DSN returns DATABASE_URL when set, otherwise a key/value PostgreSQL DSN.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
		d.TimeZone,
	)
}

// ParseDuration accepts Go durations plus the "7d" day suffix and bare seconds
// used by JWT_EXPIRES_IN style settings.
func ParseDuration(value string) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, errors.New("empty duration")
	}

	if seconds, err := strconv.Atoi(trimmed); err == nil {
		if seconds <= 0 {
			return 0, fmt.Errorf("duration must be positive: %q", value)
		}
		return time.Duration(seconds) * time.Second, nil
	}

	if strings.HasSuffix(trimmed, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(trimmed, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid day duration: %q", value)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %q", value)
	}
	return d, nil
}

func defaultReferers(publicBaseURL string) []string {
	referers := []string{"web.telegram.org", "telegram.org", "t.me"}
	if parsed, err := url.Parse(publicBaseURL); err == nil && parsed.Hostname() != "" {
		referers = append(referers, parsed.Hostname())
	}
	return referers
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
