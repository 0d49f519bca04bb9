// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Database drivers understood by DB_DRIVER
const (
	DriverArango = "arango"
	DriverMemory = "memory"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Port        string   `env:"PORT" envDefault:"8080"`
	FrontendURL string   `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`

	DBDriver     string `env:"DB_DRIVER" envDefault:"arango"`
	ArangoHost   string `env:"ARANGO_HOST" envDefault:"localhost"`
	ArangoPort   string `env:"ARANGO_PORT" envDefault:"8529"`
	ArangoUser   string `env:"ARANGO_USER" envDefault:"root"`
	ArangoPass   string `env:"ARANGO_PASS"`
	ArangoURL    string `env:"ARANGO_URL"`
	ArangoDBName string `env:"ARANGO_DB" envDefault:"accounts"`

	AccessSecret  string        `env:"ACCESS_TOKEN_SECRET"`
	RefreshSecret string        `env:"REFRESH_TOKEN_SECRET"`
	AccessTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	SecureCookie  bool          `env:"SECURE_COOKIE" envDefault:"true"`

	EncryptionKey string `env:"ENCRYPTION_KEY"`
	BcryptCost    int    `env:"BCRYPT_COST" envDefault:"10"`

	SMTP    SMTPConfig    `envPrefix:"SMTP_"`
	Storage StorageConfig `envPrefix:"R2_"`
	Google  GoogleConfig  `envPrefix:"GOOGLE_"`

	KafkaBrokers   []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic     string   `env:"KAFKA_TOPIC" envDefault:"account-events"`
	KafkaAPIKey    string   `env:"KAFKA_API_KEY"`
	KafkaAPISecret string   `env:"KAFKA_API_SECRET"`

	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RateLimitMax    int           `env:"RATE_LIMIT_MAX" envDefault:"20"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	BootstrapRosterFile string `env:"BOOTSTRAP_ROSTER_FILE"`
}

// SMTPConfig configures outbound mail. An empty Username disables delivery
// and the messages are logged instead.
type SMTPConfig struct {
	Host      string `env:"HOST" envDefault:"smtp.gmail.com"`
	Port      string `env:"PORT" envDefault:"587"`
	Username  string `env:"USERNAME"`
	Password  string `env:"PASSWORD"`
	FromEmail string `env:"FROM_EMAIL" envDefault:"noreply@example.com"`
	FromName  string `env:"FROM_NAME" envDefault:"Accounts"`
}

// StorageConfig configures the S3-compatible bucket used for profile pictures.
type StorageConfig struct {
	Endpoint        string `env:"ENDPOINT"`
	Region          string `env:"REGION" envDefault:"auto"`
	Bucket          string `env:"BUCKET_NAME"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	PublicURL       string `env:"PUBLIC_URL"`
}

// Enabled reports whether object storage is configured
func (s StorageConfig) Enabled() bool {
	return s.Bucket != "" && s.AccessKeyID != ""
}

// GoogleConfig configures the Google OAuth client.
type GoogleConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL" envDefault:"http://localhost:8080/api/auth/google/callback"`
}

// Enabled reports whether Google sign-in is configured
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// Load reads an optional .env file and then the process environment.
// The result is validated before it is returned.
func Load(files ...string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load(files...)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ArangoEndpoint returns ARANGO_URL, or one built from host and port.
func (c *Config) ArangoEndpoint() string {
	if c.ArangoURL != "" {
		return c.ArangoURL
	}
	return "http://" + c.ArangoHost + ":" + c.ArangoPort
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if len(c.EncryptionKey) != 32 {
		errs = append(errs, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes, got %d", len(c.EncryptionKey)))
	}
	if c.AccessSecret == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET is required"))
	}
	if c.RefreshSecret == "" {
		errs = append(errs, errors.New("REFRESH_TOKEN_SECRET is required"))
	}
	if c.AccessSecret != "" && c.AccessSecret == c.RefreshSecret {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ"))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST %d out of range", c.BcryptCost))
	}

	switch strings.ToLower(c.DBDriver) {
	case DriverMemory:
	case DriverArango:
		if c.ArangoEndpoint() == "" || c.ArangoDBName == "" {
			errs = append(errs, errors.New("ArangoDB endpoint and database name are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver))
	}

	return errors.Join(errs...)
}
