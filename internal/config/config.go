package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type AppConfig struct {
	API      *APIConfig
	Gin      *GinConfig
	Postgres *PostgresConfig
	Mongo    *MongoConfig
	Keycloak *KeycloakConfig
	SMTP     *SMTPConfig
	Search   *SearchConfig
	Redis    *RedisConfig
	Startup  *StartupConfig
}

type APIConfig struct {
	Environment           string
	Port                  string
	BaseURL               string
	AllowedCORSDomains    []string
	CookieSecret          string
	DummyPersonasPasscode string
	RateLimitRPS          float64
	RateLimitBurst        int
}

type GinConfig struct {
	Mode string
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
}

type MongoConfig struct {
	URI string
	DB  string
}

type KeycloakConfig struct {
	BaseURL       string
	Realm         string
	ClientID      string
	ClientSecret  string
	CallbackURL   string
	AdminUsername string
	AdminPassword string
	PublicKey     string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
}

type SearchConfig struct {
	BaseURL  string
	Username string
	Password string
}

// RedisConfig is optional; an empty URL disables the identity directory cache.
type RedisConfig struct {
	URL string
}

type StartupConfig struct {
	InitialAdminUsername string
	ForceIndexRebuild    bool
}

var mandatory = []string{
	"KEYCLOAK_BASE_URL", "KEYCLOAK_REALM", "KEYCLOAK_CLIENT_ID", "KEYCLOAK_CLIENT_SECRET",
	"KEYCLOAK_CALLBACK_URL", "KEYCLOAK_ADMIN_USERNAME", "KEYCLOAK_ADMIN_PASSWORD", "KEYCLOAK_PUBLIC_KEY",
	"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB",
	"MONGODB_URI", "MONGODB_DB",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_SENDER",
	"ELASTICSEARCH_BASE_URL", "ELASTICSEARCH_USERNAME", "ELASTICSEARCH_PASSWORD",
	"COOKIE_SECRET", "DUMMY_PERSONAS_PASSCODE",
}

var optional = []string{
	"PORT", "API_BASE_URL", "API_ENVIRONMENT", "GIN_MODE", "API_ALLOWED_CORS_DOMAINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "INITIAL_ADMIN_USERNAME", "FORCE_INDEX_REBUILD", "REDIS_URL",
}

var ErrMissingVariables = errors.New("missing mandatory configuration")

// Load reads the configuration from the environment, falling back to the yaml file at path when
// it exists. Every absent mandatory variable is named in the returned error.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("PORT", "8888")
	v.SetDefault("API_BASE_URL", "localhost:8888")
	v.SetDefault("API_ENVIRONMENT", "production")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("INITIAL_ADMIN_USERNAME", "admin")
	v.SetDefault("FORCE_INDEX_REBUILD", false)

	for _, key := range append(append([]string{}, mandatory...), optional...) {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("v.BindEnv(%s) -> %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isNotExist(err) {
			return nil, fmt.Errorf("v.ReadInConfig -> %w", err)
		}
	} else {
		v.OnConfigChange(func(e fsnotify.Event) {
			zap.L().Info("config file changed, restart to apply", zap.String("file", e.Name), zap.String("op", e.Op.String()))
		})
		v.WatchConfig()
	}

	var missing []string
	for _, key := range mandatory {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingVariables, strings.Join(missing, ", "))
	}

	return &AppConfig{
		API: &APIConfig{
			Environment:           v.GetString("API_ENVIRONMENT"),
			Port:                  v.GetString("PORT"),
			BaseURL:               v.GetString("API_BASE_URL"),
			AllowedCORSDomains:    splitList(v.GetString("API_ALLOWED_CORS_DOMAINS")),
			CookieSecret:          v.GetString("COOKIE_SECRET"),
			DummyPersonasPasscode: v.GetString("DUMMY_PERSONAS_PASSCODE"),
			RateLimitRPS:          v.GetFloat64("RATE_LIMIT_RPS"),
			RateLimitBurst:        v.GetInt("RATE_LIMIT_BURST"),
		},
		Gin: &GinConfig{
			Mode: v.GetString("GIN_MODE"),
		},
		Postgres: &PostgresConfig{
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetString("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			DB:       v.GetString("POSTGRES_DB"),
		},
		Mongo: &MongoConfig{
			URI: v.GetString("MONGODB_URI"),
			DB:  v.GetString("MONGODB_DB"),
		},
		Keycloak: &KeycloakConfig{
			BaseURL:       v.GetString("KEYCLOAK_BASE_URL"),
			Realm:         v.GetString("KEYCLOAK_REALM"),
			ClientID:      v.GetString("KEYCLOAK_CLIENT_ID"),
			ClientSecret:  v.GetString("KEYCLOAK_CLIENT_SECRET"),
			CallbackURL:   v.GetString("KEYCLOAK_CALLBACK_URL"),
			AdminUsername: v.GetString("KEYCLOAK_ADMIN_USERNAME"),
			AdminPassword: v.GetString("KEYCLOAK_ADMIN_PASSWORD"),
			PublicKey:     v.GetString("KEYCLOAK_PUBLIC_KEY"),
		},
		SMTP: &SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			Sender:   v.GetString("SMTP_SENDER"),
		},
		Search: &SearchConfig{
			BaseURL:  v.GetString("ELASTICSEARCH_BASE_URL"),
			Username: v.GetString("ELASTICSEARCH_USERNAME"),
			Password: v.GetString("ELASTICSEARCH_PASSWORD"),
		},
		Redis: &RedisConfig{
			URL: v.GetString("REDIS_URL"),
		},
		Startup: &StartupConfig{
			InitialAdminUsername: v.GetString("INITIAL_ADMIN_USERNAME"),
			ForceIndexRebuild:    v.GetBool("FORCE_INDEX_REBUILD"),
		},
	}, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
