package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds all configuration required by the bridge process.
// All values come from env (or an env-file loaded by the process runner).
type Config struct {
	App        AppConfig
	SIP        SIPConfig
	Entry      EntryConfig
	Supervisor SupervisorConfig
	Voice      VoiceConfig
	DB         DBConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Webhook    WebhookConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// SIPConfig is the PBX the add-on registers against. Bare dial strings
// are addressed to Host.
type SIPConfig struct {
	Host string
	Port int
}

type EntryConfig struct {
	ID        string
	WebhookID string
	AddonSlug string
}

type SupervisorConfig struct {
	URL   string
	Token string
}

type VoiceConfig struct {
	Enabled bool
}

// DBConfig is optional. Without DB_HOST the audit log stays in memory.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

// RedisConfig is optional. Without REDIS_HOST events stay in-process.
type RedisConfig struct {
	Host          string
	Port          int
	Password      string
	ChannelPrefix string
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// BootstrapSecret gates POST /api/auth/token. Empty disables it.
	BootstrapSecret string
}

// WebhookConfig limits inbound add-on callbacks per client IP.
type WebhookConfig struct {
	Rate  float64
	Burst int
}

const (
	DefaultPort          = 8123
	DefaultSIPHost       = "192.168.1.1"
	DefaultSIPPort       = 5060
	DefaultAddonSlug     = "c7744bff_ha-sip"
	DefaultSupervisorURL = "http://supervisor"
	DefaultChannelPrefix = "hass:event:"
)

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error
	var err error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port, err = optInt("APP_PORT", DefaultPort)
	parseErrs = appendErr(parseErrs, err)

	c.SIP.Host = strings.TrimSpace(os.Getenv("SIP_HOST"))
	c.SIP.Port, err = optInt("SIP_PORT", DefaultSIPPort)
	parseErrs = appendErr(parseErrs, err)

	c.Entry.ID = strings.TrimSpace(os.Getenv("ENTRY_ID"))
	c.Entry.WebhookID = strings.TrimSpace(os.Getenv("WEBHOOK_ID"))
	c.Entry.AddonSlug = strings.TrimSpace(os.Getenv("ADDON_SLUG"))

	c.Supervisor.URL = strings.TrimSpace(os.Getenv("SUPERVISOR_URL"))
	c.Supervisor.Token = os.Getenv("SUPERVISOR_TOKEN")

	c.Voice.Enabled, err = optBool("VOICE_ENABLED", false)
	parseErrs = appendErr(parseErrs, err)

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port, err = optInt("DB_PORT", 5432)
	parseErrs = appendErr(parseErrs, err)
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port, err = optInt("REDIS_PORT", 6379)
	parseErrs = appendErr(parseErrs, err)
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	c.Redis.ChannelPrefix = strings.TrimSpace(os.Getenv("REDIS_CHANNEL_PREFIX"))

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL, err = optDuration("JWT_ACCESS_TTL")
	parseErrs = appendErr(parseErrs, err)
	c.Auth.RefreshTokenTTL, err = optDuration("JWT_REFRESH_TTL")
	parseErrs = appendErr(parseErrs, err)
	c.Auth.BootstrapSecret = os.Getenv("API_BOOTSTRAP_SECRET")

	c.Webhook.Rate, err = optFloat("WEBHOOK_RATE", 0)
	parseErrs = appendErr(parseErrs, err)
	c.Webhook.Burst, err = optInt("WEBHOOK_BURST", 0)
	parseErrs = appendErr(parseErrs, err)

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// ApplyDefaults fills every optional value left empty. Missing entry and
// webhook ids are generated, so they change on each start unless pinned.
func (c *Config) ApplyDefaults() {
	if c.SIP.Host == "" {
		c.SIP.Host = DefaultSIPHost
	}
	if c.SIP.Port == 0 {
		c.SIP.Port = DefaultSIPPort
	}
	if c.Entry.ID == "" {
		c.Entry.ID = uuid.NewString()
	}
	if c.Entry.WebhookID == "" {
		c.Entry.WebhookID = uuid.NewString()
	}
	if c.Entry.AddonSlug == "" {
		c.Entry.AddonSlug = DefaultAddonSlug
	}
	if c.Supervisor.URL == "" {
		c.Supervisor.URL = DefaultSupervisorURL
	}
	if c.DB.Host != "" && c.DB.SSLMode == "" && !c.IsProduction() {
		// Local-friendly default; production must be explicit.
		c.DB.SSLMode = "disable"
	}
	if c.Redis.ChannelPrefix == "" {
		c.Redis.ChannelPrefix = DefaultChannelPrefix
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Webhook.Rate <= 0 {
		c.Webhook.Rate = 10
	}
	if c.Webhook.Burst <= 0 {
		c.Webhook.Burst = 20
	}
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if !validPort(c.App.Port) {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if !validPort(c.SIP.Port) {
		errs = append(errs, fmt.Errorf("SIP_PORT must be a valid port, got %d", c.SIP.Port))
	}
	if c.Entry.ID == "" {
		errs = append(errs, errors.New("ENTRY_ID is required"))
	}
	if c.Entry.WebhookID == "" {
		errs = append(errs, errors.New("WEBHOOK_ID is required"))
	}
	if c.IsProduction() && c.Supervisor.Token == "" {
		errs = append(errs, errors.New("SUPERVISOR_TOKEN is required in production"))
	}

	if c.DBEnabled() {
		if !validPort(c.DB.Port) {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required when DB_HOST is set"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required when DB_HOST is set"))
		}
		if c.DB.SSLMode == "" {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else if !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	}

	if c.RedisEnabled() && !validPort(c.Redis.Port) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Webhook.Rate <= 0 || c.Webhook.Burst <= 0 {
		errs = append(errs, errors.New("WEBHOOK_RATE and WEBHOOK_BURST must be positive"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) DBEnabled() bool { return c.DB.Host != "" }

func (c Config) RedisEnabled() bool { return c.Redis.Host != "" }

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func optInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, v)
	}
	return f, nil
}

func optBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

// optDuration returns 0 when unset; ApplyDefaults picks the default.
func optDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration, got %q", key, v)
	}
	return d, nil
}

func appendErr(errs []error, err error) []error {
	if err != nil {
		errs = append(errs, err)
	}
	return errs
}

func validPort(p int) bool { return p > 0 && p <= 65535 }

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
