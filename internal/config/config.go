// Package config loads the server settings. Sources are applied in order of
// increasing priority: defaults, the JSON file named by CONFIG or -c, the
// environment (including a .env file) and command-line flags.
package config

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// Config holds every setting of the signup server.
type Config struct {
	ConfigFile              string        `env:"CONFIG"`
	RunAddr                 string        `env:"SERVER_ADDRESS" validate:"hostname_port"`
	UserServiceURL          string        `env:"USER_SERVICE_URL" validate:"url"`
	LogLevel                string        `env:"LOG_LEVEL" validate:"loglevel"`
	UpstreamTimeout         time.Duration `env:"UPSTREAM_TIMEOUT" validate:"gt=0"`
	NavigateDelay           time.Duration `env:"NAVIGATE_DELAY" validate:"gte=0"`
	ToastDuration           time.Duration `env:"TOAST_DURATION" validate:"gt=0"`
	SessionCookieName       string        `env:"SESSION_COOKIE_NAME" validate:"required"`
	SessionSigningKey       string        `env:"SESSION_SIGNING_KEY" validate:"required,base64url"`
	SessionTTL              time.Duration `env:"SESSION_TTL" validate:"gte=0"`
	SessionSweepInterval    time.Duration `env:"SESSION_SWEEP_INTERVAL" validate:"gt=0"`
	RedisAddr               string        `env:"REDIS_ADDR" validate:"omitempty,hostname_port"`
	RedisConnectionTimeout  time.Duration `env:"REDIS_CONNECTION_TIMEOUT" validate:"gt=0"`
	RollbackOnUpdateFailure bool          `env:"ROLLBACK_ON_UPDATE_FAILURE"`
	CORSAllowedOrigins      []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	EnableGzip              bool          `env:"ENABLE_GZIP"`
	MetricsTrustedSubnets   []string      `env:"METRICS_TRUSTED_SUBNETS" envSeparator:"," validate:"dive,cidr"`
}

var defaultConfig = Config{
	RunAddr:                 ":8080",
	UserServiceURL:          "http://localhost:5500",
	LogLevel:                "info",
	UpstreamTimeout:         10 * time.Second,
	NavigateDelay:           2 * time.Second,
	ToastDuration:           5 * time.Second,
	SessionCookieName:       "signup_session",
	SessionSigningKey:       base64.URLEncoding.EncodeToString([]byte("change-me-signup-session-key")),
	SessionTTL:              24 * time.Hour,
	SessionSweepInterval:    time.Minute,
	RedisConnectionTimeout:  5 * time.Second,
	RollbackOnUpdateFailure: true,
	EnableGzip:              true,
}

// SigningKey returns the decoded session signing key.
func (c *Config) SigningKey() ([]byte, error) {
	key, err := base64.URLEncoding.DecodeString(c.SessionSigningKey)
	if err != nil {
		return nil, fmt.Errorf("in internal/config/config.go/SigningKey(): error while `base64.URLEncoding.DecodeString()` calling: %w", err)
	}
	return key, nil
}

// validateLogLevel accepts exactly the level names the logger can be initialized with.
func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	_, err := zapcore.ParseLevel(fieldLevel.Field().String())
	return err == nil
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}

// jsonConfig is the file form of Config. Absent keys leave the value underneath untouched;
// durations are written as strings ("10s").
type jsonConfig struct {
	RunAddr                 string   `json:"server_address"`
	UserServiceURL          string   `json:"user_service_url"`
	LogLevel                string   `json:"log_level"`
	UpstreamTimeout         string   `json:"upstream_timeout"`
	NavigateDelay           string   `json:"navigate_delay"`
	ToastDuration           string   `json:"toast_duration"`
	SessionCookieName       string   `json:"session_cookie_name"`
	SessionSigningKey       string   `json:"session_signing_key"`
	SessionTTL              string   `json:"session_ttl"`
	SessionSweepInterval    string   `json:"session_sweep_interval"`
	RedisAddr               string   `json:"redis_addr"`
	RedisConnectionTimeout  string   `json:"redis_connection_timeout"`
	RollbackOnUpdateFailure *bool    `json:"rollback_on_update_failure"`
	CORSAllowedOrigins      []string `json:"cors_allowed_origins"`
	EnableGzip              *bool    `json:"enable_gzip"`
	MetricsTrustedSubnets   []string `json:"metrics_trusted_subnets"`
}

func overlayString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func overlayDuration(target *time.Duration, name, value string) error {
	if value == "" {
		return nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("in internal/config/config.go/overlayDuration(): bad %s %q: %w", name, value, err)
	}
	*target = duration
	return nil
}

// applyJSON overlays the keys present in the JSON file at path onto values.
func applyJSON(values *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("in internal/config/config.go/applyJSON(): error while `os.ReadFile()` calling: %w", err)
	}

	var raw jsonConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("in internal/config/config.go/applyJSON(): error while `json.Unmarshal()` calling: %w", err)
	}

	overlayString(&values.RunAddr, raw.RunAddr)
	overlayString(&values.UserServiceURL, raw.UserServiceURL)
	overlayString(&values.LogLevel, raw.LogLevel)
	overlayString(&values.SessionCookieName, raw.SessionCookieName)
	overlayString(&values.SessionSigningKey, raw.SessionSigningKey)
	overlayString(&values.RedisAddr, raw.RedisAddr)
	if raw.RollbackOnUpdateFailure != nil {
		values.RollbackOnUpdateFailure = *raw.RollbackOnUpdateFailure
	}
	if raw.EnableGzip != nil {
		values.EnableGzip = *raw.EnableGzip
	}
	if len(raw.MetricsTrustedSubnets) > 0 {
		values.MetricsTrustedSubnets = raw.MetricsTrustedSubnets
	}
	if len(raw.CORSAllowedOrigins) > 0 {
		values.CORSAllowedOrigins = raw.CORSAllowedOrigins
	}

	durations := []struct {
		name   string
		value  string
		target *time.Duration
	}{
		{"upstream_timeout", raw.UpstreamTimeout, &values.UpstreamTimeout},
		{"navigate_delay", raw.NavigateDelay, &values.NavigateDelay},
		{"toast_duration", raw.ToastDuration, &values.ToastDuration},
		{"session_ttl", raw.SessionTTL, &values.SessionTTL},
		{"session_sweep_interval", raw.SessionSweepInterval, &values.SessionSweepInterval},
		{"redis_connection_timeout", raw.RedisConnectionTimeout, &values.RedisConnectionTimeout},
	}
	for _, d := range durations {
		if err := overlayDuration(d.target, d.name, d.value); err != nil {
			return err
		}
	}

	return nil
}

// configFileFromArgs finds -c/-config among the arguments before the flag set is parsed,
// so the file can sit below the environment in priority.
func configFileFromArgs(args []string) string {
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name := strings.TrimLeft(arg, "-")
		if value, found := strings.CutPrefix(name, "c="); found {
			return value
		}
		if value, found := strings.CutPrefix(name, "config="); found {
			return value
		}
		if (name == "c" || name == "config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

func (c *Config) parseFlags(args []string) error {
	flags := flag.NewFlagSet(args[0], flag.ContinueOnError)

	var configFile string
	flags.StringVar(&configFile, "c", "", "path to the JSON configuration file")
	flags.StringVar(&configFile, "config", "", "path to the JSON configuration file")
	flags.StringVar(&c.RunAddr, "a", c.RunAddr, "address and port to run server")
	flags.StringVar(&c.UserServiceURL, "u", c.UserServiceURL, "base URL of the user service")
	flags.StringVar(&c.LogLevel, "l", c.LogLevel, "logger level")
	flags.StringVar(&c.RedisAddr, "r", c.RedisAddr, "Redis address for the session store")

	if err := flags.Parse(args[1:]); err != nil {
		return fmt.Errorf("in internal/config/config.go/parseFlags(): error while `flags.Parse()` calling: %w", err)
	}

	return nil
}

// New builds the configuration from all sources and validates it.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	err := godotenv.Load()
	if err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := defaultConfig

	configFile := os.Getenv("CONFIG")
	if !options.disableFlagsParsing {
		if fromArgs := configFileFromArgs(os.Args[1:]); fromArgs != "" {
			configFile = fromArgs
		}
	}
	if configFile != "" {
		if err := applyJSON(&values, configFile); err != nil {
			return nil, err
		}
	}

	// Only variables that are set override what is already there.
	if err := env.Parse(&values); err != nil {
		return nil, fmt.Errorf("in internal/config/config.go/New(): error while `env.Parse()` calling: %w", err)
	}
	values.ConfigFile = configFile

	if !options.disableFlagsParsing {
		if err := values.parseFlags(os.Args); err != nil {
			return nil, err
		}
	}

	if err := values.validate(); err != nil {
		return nil, fmt.Errorf("in internal/config/config.go/New(): error while `values.validate()` calling: %w", err)
	}

	return &values, nil
}
