package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Provider ProviderConfig
	Dispatch DispatchConfig
	Audit    AuditConfig
	Calendar CalendarConfig
	Kafka    KafkaConfig
	Log      LogConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	Driver      string
	URL         string
	AutoMigrate bool
}

type RedisConfig struct {
	Enabled   bool
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

type ProviderConfig struct {
	Endpoint    string
	Method      string
	ContentType string
	// Params is the raw JSON object mapping provider fields to roles.
	Params     string
	Username   string
	Password   string
	SenderName string
	Timeout    time.Duration
}

type DispatchConfig struct {
	RateLimit       int
	RateWindow      time.Duration
	RateLimitMode   string
	DuplicateWindow time.Duration
	Timezone        string
	IdleDelay       time.Duration
	DrainTimeout    time.Duration
	HealthThreshold int
}

type AuditConfig struct {
	RetentionDays int
	PurgeSchedule string
	WriteAttempts int
}

type CalendarConfig struct {
	YearsAhead      int
	PopulateOnStart bool
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	RateLimitWindow = "window"
	RateLimitToken  = "token"
)

// LoadAll reads the whole configuration from the environment and reports
// every problem at once.
func LoadAll() (*Config, error) {
	var errs []error

	str := func(key string) string {
		v, err := requireEnv(key)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	num := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	flag := func(key string, def bool) bool {
		v, err := getEnvBool(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			Driver:      strings.ToLower(getEnv("DATABASE_DRIVER", "postgres")),
			URL:         str("DATABASE_URL"),
			AutoMigrate: flag("DATABASE_AUTO_MIGRATE", true),
		},
		Provider: ProviderConfig{
			Endpoint:    str("SMS_API_ENDPOINT"),
			Method:      strings.ToUpper(getEnv("SMS_HTTP_METHOD", "POST")),
			ContentType: getEnv("SMS_CONTENT_TYPE", "application/x-www-form-urlencoded"),
			Params:      str("SMS_API_PARAMS"),
			Username:    os.Getenv("SMS_USERNAME"),
			Password:    os.Getenv("SMS_PASSWORD"),
			SenderName:  getEnv("SMS_SENDER_NAME", "SCADA"),
			Timeout:     time.Duration(num("SMS_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Dispatch: DispatchConfig{
			RateLimit:       num("RATE_LIMIT", 10),
			RateWindow:      time.Duration(num("RATE_WINDOW_SECONDS", 60)) * time.Second,
			RateLimitMode:   strings.ToLower(getEnv("RATE_LIMIT_MODE", RateLimitWindow)),
			DuplicateWindow: time.Duration(num("DUPLICATE_WINDOW_MINUTES", 5)) * time.Minute,
			Timezone:        getEnv("DISPATCH_TIMEZONE", "Asia/Jerusalem"),
			IdleDelay:       time.Duration(num("DISPATCH_IDLE_DELAY_MS", 100)) * time.Millisecond,
			DrainTimeout:    time.Duration(num("DISPATCH_DRAIN_SECONDS", 30)) * time.Second,
			HealthThreshold: num("HEALTH_QUEUE_THRESHOLD", 100),
		},
		Audit: AuditConfig{
			RetentionDays: num("AUDIT_RETENTION_DAYS", 90),
			PurgeSchedule: strings.TrimSpace(os.Getenv("AUDIT_PURGE_SCHEDULE")),
			WriteAttempts: num("AUDIT_WRITE_ATTEMPTS", 3),
		},
		Calendar: CalendarConfig{
			YearsAhead:      num("CALENDAR_YEARS_AHEAD", 10),
			PopulateOnStart: flag("CALENDAR_POPULATE_ON_START", true),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis = RedisConfig{
			Enabled:   true,
			Address:   addr,
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        num("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "sms:dedup:"),
		}
	}

	if brokers := splitList(os.Getenv("KAFKA_BROKERS")); len(brokers) > 0 {
		cfg.Kafka = KafkaConfig{
			Enabled: true,
			Brokers: brokers,
			Topic:   getEnv("KAFKA_TOPIC", "alarm-events"),
			GroupID: getEnv("KAFKA_GROUP_ID", "sms-dispatcher"),
		}
	}

	errs = append(errs, validate(cfg)...)
	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) []error {
	var errs []error
	positive := func(key string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0", key))
		}
	}

	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", cfg.Database.Driver))
	}
	switch cfg.Provider.Method {
	case "GET", "POST", "PUT", "PATCH":
	default:
		errs = append(errs, fmt.Errorf("SMS_HTTP_METHOD %q not supported", cfg.Provider.Method))
	}
	switch cfg.Dispatch.RateLimitMode {
	case RateLimitWindow, RateLimitToken:
	default:
		errs = append(errs, fmt.Errorf("RATE_LIMIT_MODE must be window or token, got %q", cfg.Dispatch.RateLimitMode))
	}
	if _, err := time.LoadLocation(cfg.Dispatch.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("DISPATCH_TIMEZONE: %w", err))
	}

	positive("SMS_TIMEOUT_SECONDS", int(cfg.Provider.Timeout/time.Second))
	positive("RATE_LIMIT", cfg.Dispatch.RateLimit)
	positive("RATE_WINDOW_SECONDS", int(cfg.Dispatch.RateWindow/time.Second))
	positive("DISPATCH_IDLE_DELAY_MS", int(cfg.Dispatch.IdleDelay/time.Millisecond))
	positive("DISPATCH_DRAIN_SECONDS", int(cfg.Dispatch.DrainTimeout/time.Second))
	positive("HEALTH_QUEUE_THRESHOLD", cfg.Dispatch.HealthThreshold)
	positive("AUDIT_RETENTION_DAYS", cfg.Audit.RetentionDays)
	positive("AUDIT_WRITE_ATTEMPTS", cfg.Audit.WriteAttempts)
	positive("CALENDAR_YEARS_AHEAD", cfg.Calendar.YearsAhead)
	if cfg.Dispatch.DuplicateWindow < 0 {
		errs = append(errs, errors.New("DUPLICATE_WINDOW_MINUTES must be >= 0"))
	}
	return errs
}

func requireEnv(key string) (string, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid bool for env %s: %s", key, v)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinErrors(errs []error) error {
	return errors.Join(errs...)
}
