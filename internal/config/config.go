package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the activity log service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	DatabaseDriver     string
	DatabaseURL        string
	RedisURL           string
	NATSURL            string
	NATSSubject        string
	JWTSecret          string
	WriterQueueSize    int
	WriterWorkers      int
	RetentionUserDays  int
	RetentionGuestDays int
	RetentionInterval  time.Duration
	QueryCacheTTL      time.Duration
	RealtimeEnabled    bool
	CORSAllowOrigins   string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from ACTIVITY_* environment variables and an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ACTIVITY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Activity Log API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("nats.subject", "activity")
	v.SetDefault("writer.queue_size", 1000)
	v.SetDefault("writer.workers", 2)
	v.SetDefault("retention.user_days", 365)
	v.SetDefault("retention.guest_days", 90)
	v.SetDefault("retention.interval", "24h")
	v.SetDefault("query.cache_ttl", "30s")
	v.SetDefault("realtime.enabled", true)
	v.SetDefault("cors.allow_origins", "*")

	retentionInterval, err := parseDuration(v, "retention.interval")
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := parseDuration(v, "query.cache_ttl")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		DatabaseDriver:     strings.ToLower(strings.TrimSpace(v.GetString("database.driver"))),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		NATSSubject:        v.GetString("nats.subject"),
		JWTSecret:          v.GetString("jwt.secret"),
		WriterQueueSize:    v.GetInt("writer.queue_size"),
		WriterWorkers:      v.GetInt("writer.workers"),
		RetentionUserDays:  v.GetInt("retention.user_days"),
		RetentionGuestDays: v.GetInt("retention.guest_days"),
		RetentionInterval:  retentionInterval,
		QueryCacheTTL:      cacheTTL,
		RealtimeEnabled:    v.GetBool("realtime.enabled"),
		CORSAllowOrigins:   strings.TrimSpace(v.GetString("cors.allow_origins")),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	if cfg.DatabaseURL == "" {
		if cfg.DatabaseDriver != "sqlite" {
			return Config{}, fmt.Errorf("database url must be provided")
		}
		cfg.DatabaseURL = "file:activity.db?cache=shared"
	}

	if cfg.WriterQueueSize <= 0 {
		cfg.WriterQueueSize = 1000
	}
	if cfg.WriterWorkers <= 0 {
		cfg.WriterWorkers = 1
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return duration, nil
}
