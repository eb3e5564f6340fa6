package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Scheduling    SchedulingConfig
	Availability  AvailabilityConfig
	Notifications NotificationsConfig
	Reminders     RemindersConfig
	RateLimit     RateLimitConfig
	Tracing       TracingConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulingConfig tunes slot generation and booking validation.
type SchedulingConfig struct {
	SlotMinutes        int
	Timezone           string
	RejectElapsedToday bool
	NotesMaxLength     int
}

// Location resolves the configured timezone, falling back to UTC.
func (c SchedulingConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AvailabilityConfig governs caching of provider availability windows.
type AvailabilityConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// NotificationsConfig controls booking event fan-out.
type NotificationsConfig struct {
	Enabled         bool
	Channel         string
	Workers         int
	BufferSize      int
	MaxRetries      int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// RemindersConfig controls asynq reminder scheduling.
type RemindersConfig struct {
	Enabled     bool
	LeadTime    time.Duration
	RedisDB     int
	Concurrency int
}

// RateLimitConfig throttles booking writes per client.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	SampleRate  float64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	slotMinutes := v.GetInt("SCHEDULING_SLOT_MINUTES")
	if slotMinutes <= 0 {
		slotMinutes = 30
	}
	notesMax := v.GetInt("BOOKING_NOTES_MAX_LENGTH")
	if notesMax <= 0 {
		notesMax = 1000
	}
	cfg.Scheduling = SchedulingConfig{
		SlotMinutes:        slotMinutes,
		Timezone:           v.GetString("SCHEDULING_TIMEZONE"),
		RejectElapsedToday: v.GetBool("SCHEDULING_REJECT_ELAPSED_TODAY"),
		NotesMaxLength:     notesMax,
	}

	cfg.Availability = AvailabilityConfig{
		CacheEnabled: v.GetBool("ENABLE_AVAILABILITY_CACHE"),
		CacheTTL:     parseDuration(v.GetString("AVAILABILITY_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Notifications = NotificationsConfig{
		Enabled:         v.GetBool("ENABLE_NOTIFICATIONS"),
		Channel:         v.GetString("NOTIFICATIONS_CHANNEL"),
		Workers:         v.GetInt("NOTIFICATIONS_WORKERS"),
		BufferSize:      v.GetInt("NOTIFICATIONS_BUFFER"),
		MaxRetries:      v.GetInt("NOTIFICATIONS_MAX_RETRIES"),
		BreakerFailures: v.GetUint32("NOTIFICATIONS_BREAKER_FAILURES"),
		BreakerTimeout:  parseDuration(v.GetString("NOTIFICATIONS_BREAKER_TIMEOUT"), 30*time.Second),
	}

	cfg.Reminders = RemindersConfig{
		Enabled:     v.GetBool("ENABLE_REMINDERS"),
		LeadTime:    parseDuration(v.GetString("REMINDER_LEAD_TIME"), 24*time.Hour),
		RedisDB:     v.GetInt("REMINDER_REDIS_DB"),
		Concurrency: v.GetInt("REMINDER_CONCURRENCY"),
	}

	cfg.RateLimit = RateLimitConfig{
		RPS:   v.GetFloat64("RATE_LIMIT_RPS"),
		Burst: v.GetInt("RATE_LIMIT_BURST"),
	}

	cfg.Tracing = TracingConfig{
		Enabled:     v.GetBool("ENABLE_TRACING"),
		Endpoint:    v.GetString("TRACING_ENDPOINT"),
		ServiceName: v.GetString("TRACING_SERVICE_NAME"),
		SampleRate:  v.GetFloat64("TRACING_SAMPLE_RATE"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "clinic_scheduler")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULING_SLOT_MINUTES", 30)
	v.SetDefault("SCHEDULING_TIMEZONE", "UTC")
	v.SetDefault("SCHEDULING_REJECT_ELAPSED_TODAY", false)
	v.SetDefault("BOOKING_NOTES_MAX_LENGTH", 1000)

	v.SetDefault("ENABLE_AVAILABILITY_CACHE", false)
	v.SetDefault("AVAILABILITY_CACHE_TTL", "5m")

	v.SetDefault("ENABLE_NOTIFICATIONS", false)
	v.SetDefault("NOTIFICATIONS_CHANNEL", "bookings.events")
	v.SetDefault("NOTIFICATIONS_WORKERS", 2)
	v.SetDefault("NOTIFICATIONS_BUFFER", 256)
	v.SetDefault("NOTIFICATIONS_MAX_RETRIES", 3)
	v.SetDefault("NOTIFICATIONS_BREAKER_FAILURES", 5)
	v.SetDefault("NOTIFICATIONS_BREAKER_TIMEOUT", "30s")

	v.SetDefault("ENABLE_REMINDERS", false)
	v.SetDefault("REMINDER_LEAD_TIME", "24h")
	v.SetDefault("REMINDER_REDIS_DB", 1)
	v.SetDefault("REMINDER_CONCURRENCY", 5)

	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)

	v.SetDefault("ENABLE_TRACING", false)
	v.SetDefault("TRACING_ENDPOINT", "localhost:4318")
	v.SetDefault("TRACING_SERVICE_NAME", "clinic-scheduler-api")
	v.SetDefault("TRACING_SAMPLE_RATE", 1.0)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
