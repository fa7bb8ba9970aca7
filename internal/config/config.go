package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config stores service settings.
type Config struct {
	Port      int
	DB        DB
	Redis     Redis
	Kafka     Kafka
	Tripay    Tripay
	Maps      Maps
	Push      Push
	Geofence  Geofence
	Auth      Auth
	RateLimit RateLimit
	Pprof     Pprof
	Service   Service
}

// DB stores PostgreSQL connection settings.
type DB struct {
	Host        string
	Port        string
	User        string
	Pass        string
	Name        string
	AutoMigrate bool
}

// DSN builds a postgres connection string.
func (d DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", d.User, d.Pass, d.Host, d.Port, d.Name)
}

// Redis stores cache settings. Empty Addr disables the cache.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis address is configured.
func (r Redis) Enabled() bool { return r.Addr != "" }

// Kafka stores broker settings. No brokers means notifications are only logged.
type Kafka struct {
	Brokers            []string
	NotificationsTopic string
	GroupID            string
}

// Enabled reports whether brokers are configured.
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

// Tripay stores payment gateway settings.
type Tripay struct {
	APIURL       string
	APIKey       string
	PrivateKey   string
	MerchantCode string
	Sandbox      bool
	CallbackURL  string
	ReturnURL    string
	Retry        Retry
}

// Enabled reports whether credentials are present.
func (t Tripay) Enabled() bool {
	return t.APIKey != "" && t.PrivateKey != "" && t.MerchantCode != ""
}

// Retry stores gateway retry settings.
type Retry struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Maps stores distance matrix settings.
type Maps struct {
	APIKey       string
	WarehouseLat float64
	WarehouseLng float64
}

// Push stores FCM settings.
type Push struct {
	ServerKey string
	Endpoint  string
}

// Geofence stores the completion radius.
type Geofence struct {
	RadiusKm float64
}

// Auth stores token verification settings.
type Auth struct {
	JWTSecret string
}

// RateLimit stores per-client request limits.
type RateLimit struct {
	Enabled    bool
	Rate       float64
	Burst      int
	TTL        time.Duration
	MaxBuckets int
}

// Pprof stores profiling endpoint settings.
type Pprof struct {
	Enabled bool
	User    string
	Pass    string
}

// Service stores core operation settings.
type Service struct {
	OperationTimeout time.Duration
}

// Load reads configuration in order: .env (if present) → environment → flags.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: .env not loaded: %v", err)
	}

	r := envReader{}
	cfg := &Config{
		Port: r.int("PORT", DefaultPort()),
		DB: DB{
			Host:        r.str("POSTGRES_HOST", defaultDB.Host),
			Port:        r.str("POSTGRES_PORT", defaultDB.Port),
			User:        r.str("POSTGRES_USER", defaultDB.User),
			Pass:        r.str("POSTGRES_PASSWORD", defaultDB.Pass),
			Name:        r.str("POSTGRES_DB", defaultDB.Name),
			AutoMigrate: r.bool("DB_AUTO_MIGRATE", defaultDB.AutoMigrate),
		},
		Redis: Redis{
			Addr:     r.str("REDIS_ADDR", ""),
			Password: r.str("REDIS_PASSWORD", ""),
			DB:       r.int("REDIS_DB", 0),
		},
		Kafka: Kafka{
			Brokers:            r.list("KAFKA_BROKERS"),
			NotificationsTopic: r.str("KAFKA_NOTIFICATIONS_TOPIC", defaultKafka.NotificationsTopic),
			GroupID:            r.str("KAFKA_GROUP_ID", defaultKafka.GroupID),
		},
		Tripay: Tripay{
			APIKey:       r.str("TRIPAY_API_KEY", ""),
			PrivateKey:   r.str("TRIPAY_PRIVATE_KEY", ""),
			MerchantCode: r.str("TRIPAY_MERCHANT_CODE", ""),
			Sandbox:      r.bool("TRIPAY_SANDBOX", true),
			CallbackURL:  r.str("TRIPAY_CALLBACK_URL", ""),
			ReturnURL:    r.str("TRIPAY_RETURN_URL", ""),
			Retry: Retry{
				MaxAttempts: r.int("TRIPAY_RETRY_MAX_ATTEMPTS", defaultRetry.MaxAttempts),
				BaseDelay:   r.duration("TRIPAY_RETRY_BASE_DELAY", defaultRetry.BaseDelay),
				MaxDelay:    r.duration("TRIPAY_RETRY_MAX_DELAY", defaultRetry.MaxDelay),
			},
		},
		Maps: Maps{
			APIKey:       r.str("GOOGLE_MAPS_KEY", ""),
			WarehouseLat: r.float("WAREHOUSE_LAT", defaultMaps.WarehouseLat),
			WarehouseLng: r.float("WAREHOUSE_LNG", defaultMaps.WarehouseLng),
		},
		Push: Push{
			ServerKey: r.str("FCM_SERVER_KEY", ""),
			Endpoint:  r.str("FCM_ENDPOINT", ""),
		},
		Geofence: Geofence{
			RadiusKm: r.float("GEOFENCE_RADIUS_KM", DefaultGeofence().RadiusKm),
		},
		Auth: Auth{
			JWTSecret: r.str("JWT_SECRET", ""),
		},
		RateLimit: RateLimit{
			Enabled:    r.bool("RATE_LIMIT_ENABLED", defaultRateLimit.Enabled),
			Rate:       r.float("RATE_LIMIT_RATE", defaultRateLimit.Rate),
			Burst:      r.int("RATE_LIMIT_BURST", defaultRateLimit.Burst),
			TTL:        r.duration("RATE_LIMIT_TTL", defaultRateLimit.TTL),
			MaxBuckets: r.int("RATE_LIMIT_MAX_BUCKETS", defaultRateLimit.MaxBuckets),
		},
		Pprof: Pprof{
			Enabled: r.bool("PPROF_ENABLED", false),
			User:    r.str("PPROF_USER", ""),
			Pass:    r.str("PPROF_PASS", ""),
		},
		Service: Service{
			OperationTimeout: r.duration("SERVICE_OPERATION_TIMEOUT", defaultService.OperationTimeout),
		},
	}
	cfg.Tripay.APIURL = r.str("TRIPAY_API_URL", DefaultTripayURL(cfg.Tripay.Sandbox))
	if r.err != nil {
		return nil, r.err
	}

	pflag.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	if !pflag.CommandLine.Parsed() {
		if err := pflag.CommandLine.Parse(os.Args[1:]); err != nil {
			return nil, fmt.Errorf("parse flags: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if p, err := strconv.Atoi(c.DB.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("invalid POSTGRES_PORT: %q", c.DB.Port)
	}
	if c.Geofence.RadiusKm <= 0 {
		return fmt.Errorf("invalid GEOFENCE_RADIUS_KM: %v", c.Geofence.RadiusKm)
	}
	if c.Maps.WarehouseLat < -90 || c.Maps.WarehouseLat > 90 || c.Maps.WarehouseLng < -180 || c.Maps.WarehouseLng > 180 {
		return fmt.Errorf("invalid warehouse location: %v,%v", c.Maps.WarehouseLat, c.Maps.WarehouseLng)
	}
	if c.Tripay.Retry.MaxAttempts < 1 {
		return fmt.Errorf("invalid TRIPAY_RETRY_MAX_ATTEMPTS: %d", c.Tripay.Retry.MaxAttempts)
	}
	if c.RateLimit.Enabled && (c.RateLimit.Rate <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("invalid rate limit: rate=%v burst=%d", c.RateLimit.Rate, c.RateLimit.Burst)
	}
	if c.Service.OperationTimeout <= 0 {
		return fmt.Errorf("invalid SERVICE_OPERATION_TIMEOUT: %s", c.Service.OperationTimeout)
	}
	return nil
}

// envReader keeps the first parse error so Load can report it once.
type envReader struct{ err error }

func (r *envReader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *envReader) int(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return n
}

func (r *envReader) float(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return f
}

func (r *envReader) bool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return b
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return d
}

func (r *envReader) list(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (r *envReader) fail(key, v string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
}
