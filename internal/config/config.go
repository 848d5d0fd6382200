package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "INKWELL"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabaseDriver    = DatabaseDriverSQLite
	defaultDatabasePath      = "inkwell.db"
	defaultLogLevel          = "info"
	defaultCookieName        = "inkwell_session"
	defaultSessionTTLMinutes = 24 * 60
	defaultGoogleJWKSURL     = "https://www.googleapis.com/oauth2/v3/certs"
	defaultExportBackend     = ExportBackendMock
)

// Supported database drivers.
const (
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"
	DatabaseDriverMemory   = "memory"
)

// Supported export backends.
const (
	ExportBackendMock = "mock"
	ExportBackendS3   = "s3"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress    string
	LogLevel       string
	AllowedOrigins []string

	DatabaseDriver string
	DatabasePath   string
	DatabaseDSN    string

	SessionSigningSecret string
	SessionCookieName    string
	SessionTTL           time.Duration
	SessionSecureCookie  bool

	GoogleClientID     string
	GoogleJWKSURL      string
	GoogleClientSecret string
	GoogleRedirectURL  string

	ExportBackend string
	S3            S3Config
}

// S3Config describes the S3-compatible bucket letters are exported to.
type S3Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

// VerifiesGoogleTokens reports whether sign-in must present a verifiable Google ID token.
func (c AppConfig) VerifiesGoogleTokens() bool {
	return c.GoogleClientID != ""
}

// ExchangesDriveCredentials reports whether OAuth code exchange for Drive access is configured.
func (c AppConfig) ExchangesDriveCredentials() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("cors.allowed_origins", []string{})
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.dsn", "")
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("session.ttl_minutes", defaultSessionTTLMinutes)
	configViper.SetDefault("session.secure_cookie", false)
	configViper.SetDefault("google.client_id", "")
	configViper.SetDefault("google.jwks_url", defaultGoogleJWKSURL)
	configViper.SetDefault("google.client_secret", "")
	configViper.SetDefault("google.redirect_url", "")
	configViper.SetDefault("export.backend", defaultExportBackend)
	configViper.SetDefault("export.s3.use_ssl", true)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:          configViper.GetString("http.address"),
		LogLevel:             configViper.GetString("log.level"),
		AllowedOrigins:       splitList(configViper.GetStringSlice("cors.allowed_origins")),
		DatabaseDriver:       strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:         strings.TrimSpace(configViper.GetString("database.path")),
		DatabaseDSN:          strings.TrimSpace(configViper.GetString("database.dsn")),
		SessionSigningSecret: configViper.GetString("session.signing_secret"),
		SessionCookieName:    strings.TrimSpace(configViper.GetString("session.cookie_name")),
		SessionTTL:           time.Duration(configViper.GetInt("session.ttl_minutes")) * time.Minute,
		SessionSecureCookie:  configViper.GetBool("session.secure_cookie"),
		GoogleClientID:       strings.TrimSpace(configViper.GetString("google.client_id")),
		GoogleJWKSURL:        strings.TrimSpace(configViper.GetString("google.jwks_url")),
		GoogleClientSecret:   strings.TrimSpace(configViper.GetString("google.client_secret")),
		GoogleRedirectURL:    strings.TrimSpace(configViper.GetString("google.redirect_url")),
		ExportBackend:        strings.ToLower(strings.TrimSpace(configViper.GetString("export.backend"))),
		S3: S3Config{
			Endpoint:      strings.TrimSpace(configViper.GetString("export.s3.endpoint")),
			AccessKey:     configViper.GetString("export.s3.access_key"),
			SecretKey:     configViper.GetString("export.s3.secret_key"),
			Bucket:        strings.TrimSpace(configViper.GetString("export.s3.bucket")),
			UseSSL:        configViper.GetBool("export.s3.use_ssl"),
			PublicBaseURL: strings.TrimSpace(configViper.GetString("export.s3.public_base_url")),
		},
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSigningSecret) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if c.SessionCookieName == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session.ttl_minutes must be positive")
	}
	switch c.DatabaseDriver {
	case DatabaseDriverSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DatabaseDriverPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	case DatabaseDriverMemory:
	default:
		return fmt.Errorf("database.driver %q is not supported", c.DatabaseDriver)
	}
	if c.GoogleClientID != "" && c.GoogleJWKSURL == "" {
		return fmt.Errorf("google.jwks_url is required when google.client_id is set")
	}
	switch c.ExportBackend {
	case ExportBackendMock:
	case ExportBackendS3:
		if c.S3.Endpoint == "" || c.S3.Bucket == "" {
			return fmt.Errorf("export.s3.endpoint and export.s3.bucket are required for the s3 backend")
		}
	default:
		return fmt.Errorf("export.backend %q is not supported", c.ExportBackend)
	}
	return nil
}

// splitList accepts both repeated values and a single comma separated env value.
func splitList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
	}
	return result
}
