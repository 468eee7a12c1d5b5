package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix               = "HEARTH"
	defaultHTTPAddress      = "0.0.0.0:8080"
	defaultDatabasePath     = "hearth.db"
	defaultLogLevel         = "info"
	defaultCookieName       = "hearth_session"
	defaultSessionTTLHours  = 30 * 24
	defaultAppOrigin        = "http://localhost:3000"
	defaultStorageRegion    = "auto"
	defaultURLExpiryMinutes = 60
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	DatabasePath       string
	LogLevel           string
	SessionCookieName  string
	SessionTTL         time.Duration
	AppOrigin          string
	StorageEndpoint    string
	StorageRegion      string
	StorageBucket      string
	StorageAccessKeyID string
	StorageSecretKey   string
	StorageURLExpiry   time.Duration
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
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("session.ttl_hours", defaultSessionTTLHours)
	configViper.SetDefault("app.origin", defaultAppOrigin)
	configViper.SetDefault("storage.region", defaultStorageRegion)
	configViper.SetDefault("storage.url_expiry_minutes", defaultURLExpiryMinutes)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		DatabasePath:       configViper.GetString("database.path"),
		LogLevel:           configViper.GetString("log.level"),
		SessionCookieName:  configViper.GetString("session.cookie_name"),
		SessionTTL:         time.Duration(configViper.GetInt("session.ttl_hours")) * time.Hour,
		AppOrigin:          configViper.GetString("app.origin"),
		StorageEndpoint:    configViper.GetString("storage.endpoint"),
		StorageRegion:      configViper.GetString("storage.region"),
		StorageBucket:      configViper.GetString("storage.bucket"),
		StorageAccessKeyID: configViper.GetString("storage.access_key_id"),
		StorageSecretKey:   configViper.GetString("storage.secret_access_key"),
		StorageURLExpiry:   time.Duration(configViper.GetInt("storage.url_expiry_minutes")) * time.Minute,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if strings.TrimSpace(c.AppOrigin) == "" {
		return fmt.Errorf("app.origin is required")
	}
	if strings.TrimSpace(c.StorageBucket) == "" {
		return fmt.Errorf("storage.bucket is required")
	}
	if strings.TrimSpace(c.StorageAccessKeyID) == "" || strings.TrimSpace(c.StorageSecretKey) == "" {
		return fmt.Errorf("storage credentials are required")
	}
	return nil
}
