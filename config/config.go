// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"bitwise74/marketplace-auth/internal/authn"
	"bitwise74/marketplace-auth/pkg/security"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

var (
	configPath = pflag.String("config-path", "", "Path to the config.toml file, the working directory is searched when empty")
	_          = pflag.String("strategy", "", "Authentication strategy to use, local or remote. Overrides auth.strategy")

	validLogLevels = []string{"debug", "info", "warn", "error", "fatal"}
	validModes     = []string{ModeDevelopment, ModeProduction}
	validDrivers   = []string{"sqlite", "postgres"}
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Host      HostConfig      `mapstructure:"host"`
	DB        DBConfig        `mapstructure:"db"`
	Session   SessionConfig   `mapstructure:"session"`
	Security  SecurityConfig  `mapstructure:"security"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Recovery  RecoveryConfig  `mapstructure:"recovery"`
	Mail      MailConfig      `mapstructure:"mail"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Turnstile TurnstileConfig `mapstructure:"turnstile"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
	Mode     string `mapstructure:"mode"`
}

func (a AppConfig) Production() bool {
	return a.Mode == ModeProduction
}

type HostConfig struct {
	Port int      `mapstructure:"port"`
	CORS []string `mapstructure:"cors"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Debug  bool   `mapstructure:"debug"`
}

type SessionConfig struct {
	Lifetime      time.Duration `mapstructure:"lifetime"`
	TouchInterval time.Duration `mapstructure:"touch_interval"`
	// Expired sessions older than Retention are purged on RetentionSchedule.
	// An empty schedule keeps them forever.
	Retention         time.Duration `mapstructure:"retention"`
	RetentionSchedule string        `mapstructure:"retention_schedule"`
}

type SecurityConfig struct {
	HashAlgorithm string `mapstructure:"hash_algorithm"`
	BcryptCost    int    `mapstructure:"bcrypt_cost"`
	RateLimit     int    `mapstructure:"rate_limit"`
	BodyLimit     int64  `mapstructure:"body_limit"`
}

type AuthConfig struct {
	Strategy        string        `mapstructure:"strategy"`
	AssertionSecret string        `mapstructure:"assertion_secret"`
	AssertionTTL    time.Duration `mapstructure:"assertion_ttl"`
	Remote          RemoteConfig  `mapstructure:"remote"`
	Dev             DevConfig     `mapstructure:"dev"`
}

type RemoteConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	CAFile     string        `mapstructure:"ca_file"`
	CertFile   string        `mapstructure:"cert_file"`
	KeyFile    string        `mapstructure:"key_file"`
}

// DevConfig is the well known token that maps to a fixed account. Only
// meant for local development.
type DevConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	Email   string `mapstructure:"email"`
}

type RecoveryConfig struct {
	Lifetime time.Duration `mapstructure:"lifetime"`
	LinkBase string        `mapstructure:"link_base"`
}

// MailConfig is SMTP. With no host set recovery links are only logged.
type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type StorageConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	// MaxAvatarSize is in MiB
	MaxAvatarSize int64 `mapstructure:"max_avatar_size"`
}

type TurnstileConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	SecretToken string `mapstructure:"secret_token"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func genSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup parses the command line and loads the configuration. Function will
// return an error if something is critically wrong and the application can't
// run because of that.
func Setup() (*Config, error) {
	pflag.Parse()

	v := viper.New()
	v.BindPFlag("auth.strategy", pflag.Lookup("strategy"))

	return load(v, *configPath)
}

// Load reads the config file at path, or config.toml in the working
// directory when path is empty, and applies env overrides
func Load(path string) (*Config, error) {
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()

	//
	// ENVS
	//
	bindEnv(v,
		"app.log_level", "app.mode",
		"host.port", "host.cors",
		"db.driver", "db.dsn", "db.debug",
		"session.lifetime", "session.touch_interval", "session.retention", "session.retention_schedule",
		"security.hash_algorithm", "security.bcrypt_cost", "security.rate_limit", "security.body_limit",
		"auth.strategy", "auth.assertion_secret", "auth.assertion_ttl",
		"auth.remote.base_url", "auth.remote.timeout", "auth.remote.max_retries",
		"auth.remote.ca_file", "auth.remote.cert_file", "auth.remote.key_file",
		"auth.dev.enabled", "auth.dev.token", "auth.dev.email",
		"recovery.lifetime", "recovery.link_base",
		"mail.host", "mail.port", "mail.username", "mail.password", "mail.from",
		"storage.enabled", "storage.region", "storage.access_key_id", "storage.secret_access_key",
		"storage.bucket", "storage.endpoint", "storage.max_avatar_size",
		"turnstile.enabled", "turnstile.secret_token",
		"metrics.enabled",
	)

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.mode", ModeDevelopment)

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.cors", []string{"http://localhost:5173"})

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "database.db")

	v.SetDefault("session.lifetime", "720h")
	v.SetDefault("session.touch_interval", "5m")
	v.SetDefault("session.retention", "720h")
	v.SetDefault("session.retention_schedule", "@daily")

	v.SetDefault("security.hash_algorithm", security.AlgorithmArgon2id)
	v.SetDefault("security.bcrypt_cost", 12)
	v.SetDefault("security.rate_limit", 10)
	v.SetDefault("security.body_limit", 1<<20)

	v.SetDefault("auth.strategy", "local")
	v.SetDefault("auth.assertion_ttl", "1m")
	v.SetDefault("auth.remote.timeout", authn.DefaultRemoteTimeout)
	v.SetDefault("auth.remote.max_retries", authn.DefaultRemoteRetries)
	v.SetDefault("auth.dev.enabled", false)

	v.SetDefault("recovery.lifetime", "1h")
	v.SetDefault("recovery.link_base", "http://localhost:5173/recover")

	v.SetDefault("mail.port", 587)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.max_avatar_size", 2)

	v.SetDefault("turnstile.enabled", false)
	v.SetDefault("metrics.enabled", true)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, errors.New("config.toml file is missing")
		}

		return nil, fmt.Errorf("failed to read config file, %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config, %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}
}

func (c *Config) validate() error {
	if !slices.Contains(validLogLevels, c.App.LogLevel) {
		return errors.New("invalid log level provided")
	}

	if !slices.Contains(validModes, c.App.Mode) {
		return fmt.Errorf("invalid app mode %q, use development or production", c.App.Mode)
	}

	if c.Host.Port <= 0 {
		return errors.New("invalid port provided")
	}

	if len(c.Host.CORS) == 0 {
		return errors.New("host.cors needs at least one allowed origin")
	}

	if !slices.Contains(validDrivers, c.DB.Driver) {
		return fmt.Errorf("invalid database driver %q", c.DB.Driver)
	}

	if c.Session.Lifetime <= 0 {
		return errors.New("session.lifetime must be bigger than 0")
	}

	if c.Security.HashAlgorithm != security.AlgorithmArgon2id && c.Security.HashAlgorithm != security.AlgorithmBcrypt {
		return fmt.Errorf("invalid hash algorithm %q", c.Security.HashAlgorithm)
	}

	if c.Security.BodyLimit <= 0 {
		return errors.New("security.body_limit must be bigger than 0")
	}

	kind, err := authn.ParseKind(c.Auth.Strategy)
	if err != nil {
		return err
	}

	if kind == authn.KindRemote {
		if err := c.validateRemote(); err != nil {
			return err
		}
	}

	if c.Auth.Dev.Enabled {
		if c.App.Production() {
			return errors.New("the development token can't be enabled in production mode")
		}

		if c.Auth.Dev.Email == "" {
			return errors.New("auth.dev.email is required when the development token is enabled")
		}

		if c.Auth.Dev.Token == "" {
			c.Auth.Dev.Token = genSecret()
			fmt.Println("[WARNING]: No auth.dev.token set, a random one was generated for this run: " + c.Auth.Dev.Token)
		}
	}

	if c.Mail.Host != "" && c.Mail.From == "" {
		return errors.New("mail.from is required when mail.host is set")
	}

	if c.Storage.Enabled {
		if c.Storage.AccessKeyID == "" {
			return errors.New("storage access key id can't be empty")
		}
		if c.Storage.SecretAccessKey == "" {
			return errors.New("storage secret access key can't be empty")
		}
		if c.Storage.Bucket == "" {
			return errors.New("storage bucket can't be empty")
		}
		if c.Storage.MaxAvatarSize <= 0 {
			return errors.New("storage.max_avatar_size must be bigger than 0")
		}
	}

	if !c.Turnstile.Enabled {
		fmt.Println("[WARNING]: Cloudflare's turnstile is disabled. Some public endpoints won't be guarded against bots")
	} else if c.Turnstile.SecretToken == "" {
		return errors.New("turnstile secret token is missing")
	}

	if c.App.Production() && c.Auth.AssertionSecret == "" {
		fmt.Println("[WARNING]: No auth.assertion_secret set, sibling services can't verify resolved identities")
	}

	return nil
}

func (c *Config) validateRemote() error {
	r := c.Auth.Remote

	if r.BaseURL == "" {
		return errors.New("auth.remote.base_url is required for the remote strategy")
	}

	u, err := url.Parse(r.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid auth.remote.base_url, %w", err)
	}

	if c.App.Production() && u.Scheme != "https" {
		return errors.New("auth.remote.base_url must use https in production mode")
	}

	if (r.CertFile == "") != (r.KeyFile == "") {
		return errors.New("auth.remote.cert_file and auth.remote.key_file must be set together")
	}

	if r.Timeout <= 0 {
		return errors.New("auth.remote.timeout must be bigger than 0")
	}

	return nil
}
