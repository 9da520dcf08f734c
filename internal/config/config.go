package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider identifies an email delivery backend. The selector is resolved
// once at startup; dispatch never matches on raw strings.
type Provider string

const (
	ProviderSMTP   Provider = "smtp"
	ProviderResend Provider = "resend"
)

// ErrConfig wraps mandatory-field failures. It is the only error class that
// prevents process startup.
var ErrConfig = errors.New("config: invalid configuration")

// Config is built once per process and read-only afterwards. All components
// receive it (or a slice of it) explicitly, never through global lookups.
type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Storage struct {
		Driver string `yaml:"driver"` // postgres | memory
		DSN    string `yaml:"dsn"`
	} `yaml:"storage"`

	Redis struct {
		Addr     string `yaml:"addr"` // empty => memory rate limiter
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret string        `yaml:"jwt_secret"`
		Issuer    string        `yaml:"issuer"`
		AccessTTL time.Duration `yaml:"access_ttl"`
		Verify    struct {
			TTL time.Duration `yaml:"ttl"`
		} `yaml:"verify"`
		Register struct {
			AutoLogin bool `yaml:"auto_login"`
		} `yaml:"register"`
	} `yaml:"auth"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Window      string `yaml:"window"`
		MaxRequests uint64 `yaml:"max_requests"`
	} `yaml:"rate"`

	Email struct {
		Provider       Provider      `yaml:"provider"` // smtp | resend
		From           string        `yaml:"from"`
		BaseURL        string        `yaml:"base_url"` // verification link base
		TemplatesDir   string        `yaml:"templates_dir"`
		SendTimeout    time.Duration `yaml:"send_timeout"`
		MaxAttempts    uint64        `yaml:"max_attempts"`
		Async          bool          `yaml:"async"` // dispatch as detached side effect
		DebugEchoLinks bool          `yaml:"debug_echo_links"`
	} `yaml:"email"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               uint16 `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // dev only
	} `yaml:"smtp"`

	Resend struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"resend"`
}

// Load reads the optional YAML file at path, applies environment overrides
// (see env.go for the value normalization rules), fills defaults and
// validates mandatory fields. A mandatory field that is absent or
// unparseable fails the whole load; everything else degrades to defaults.
func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
			}
		} else if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrConfig, path, err)
		}
	}

	c.applyEnv()
	c.applyDefaults()

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// applyEnv layers environment variables over whatever the YAML provided.
func (c *Config) applyEnv() {
	c.App.Env = getenv("APP_ENV", c.App.Env)
	c.App.LogLevel = getenv("LOG_LEVEL", c.App.LogLevel)

	c.Server.Addr = getenv("SERVER_ADDR", c.Server.Addr)
	if v := getenvCSV("CORS_ALLOWED_ORIGINS"); v != nil {
		c.Server.CORSAllowedOrigins = v
	}

	c.Storage.Driver = getenvLower("STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.DSN = getenv("STORAGE_DSN", c.Storage.DSN)

	c.Redis.Addr = getenv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getenv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getenvInt("REDIS_DB", c.Redis.DB)
	c.Redis.Prefix = getenv("REDIS_PREFIX", c.Redis.Prefix)

	c.Auth.JWTSecret = getenv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.Issuer = getenv("JWT_ISSUER", c.Auth.Issuer)
	c.Auth.AccessTTL = getenvDuration("ACCESS_TTL", c.Auth.AccessTTL)
	c.Auth.Verify.TTL = getenvDuration("VERIFY_TTL", c.Auth.Verify.TTL)
	c.Auth.Register.AutoLogin = getenvBool("REGISTER_AUTO_LOGIN", c.Auth.Register.AutoLogin)

	c.Rate.Enabled = getenvBool("RATE_ENABLED", c.Rate.Enabled)
	c.Rate.Window = getenv("RATE_WINDOW", c.Rate.Window)
	c.Rate.MaxRequests = getenvUint64("RATE_MAX_REQUESTS", c.Rate.MaxRequests)

	c.Email.Provider = Provider(getenvLower("EMAIL_PROVIDER", string(c.Email.Provider)))
	c.Email.From = getenv("EMAIL_FROM", c.Email.From)
	c.Email.BaseURL = getenv("EMAIL_BASE_URL", c.Email.BaseURL)
	c.Email.TemplatesDir = getenv("EMAIL_TEMPLATES_DIR", c.Email.TemplatesDir)
	c.Email.SendTimeout = getenvDuration("EMAIL_SEND_TIMEOUT", c.Email.SendTimeout)
	c.Email.MaxAttempts = getenvUint64("EMAIL_MAX_ATTEMPTS", c.Email.MaxAttempts)
	c.Email.Async = getenvBool("EMAIL_ASYNC", c.Email.Async)
	c.Email.DebugEchoLinks = getenvBool("EMAIL_DEBUG_ECHO_LINKS", c.Email.DebugEchoLinks)

	c.SMTP.Host = getenv("SMTP_HOST", c.SMTP.Host)
	c.SMTP.Port = getenvUint16("SMTP_PORT", c.SMTP.Port)
	c.SMTP.Username = getenv("SMTP_USERNAME", c.SMTP.Username)
	c.SMTP.Password = getenv("SMTP_PASSWORD", c.SMTP.Password)
	c.SMTP.TLS = getenvLower("SMTP_TLS", c.SMTP.TLS)
	c.SMTP.InsecureSkipVerify = getenvBool("SMTP_INSECURE_SKIP_VERIFY", c.SMTP.InsecureSkipVerify)

	c.Resend.APIKey = getenv("RESEND_API_KEY", c.Resend.APIKey)
	c.Resend.BaseURL = getenv("RESEND_BASE_URL", c.Resend.BaseURL)
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "verimail"
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "verimail"
	}
	if c.Auth.AccessTTL == 0 {
		c.Auth.AccessTTL = 15 * time.Minute
	}
	if c.Auth.Verify.TTL == 0 {
		c.Auth.Verify.TTL = 24 * time.Hour
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 10
	}
	if c.Email.SendTimeout == 0 {
		c.Email.SendTimeout = 10 * time.Second
	}
	if c.Email.MaxAttempts == 0 {
		c.Email.MaxAttempts = 1
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
	if c.Resend.BaseURL == "" {
		c.Resend.BaseURL = "https://api.resend.com"
	}
}

// validate enforces the mandatory fields. Failures here are the only thing
// allowed to stop the process at startup; an unknown provider selector must
// be caught now, not at first dispatch.
func (c *Config) validate() error {
	switch c.Email.Provider {
	case ProviderSMTP:
		if c.SMTP.Host == "" || c.SMTP.Port == 0 {
			return fmt.Errorf("%w: EMAIL_PROVIDER=smtp requires SMTP_HOST and SMTP_PORT", ErrConfig)
		}
	case ProviderResend:
		if c.Resend.APIKey == "" {
			return fmt.Errorf("%w: EMAIL_PROVIDER=resend requires RESEND_API_KEY", ErrConfig)
		}
	case "":
		return fmt.Errorf("%w: EMAIL_PROVIDER is required (smtp|resend)", ErrConfig)
	default:
		return fmt.Errorf("%w: unknown EMAIL_PROVIDER %q (expected smtp|resend)", ErrConfig, c.Email.Provider)
	}

	if c.Email.From == "" {
		return fmt.Errorf("%w: EMAIL_FROM is required", ErrConfig)
	}
	if c.Email.BaseURL == "" {
		return fmt.Errorf("%w: EMAIL_BASE_URL is required", ErrConfig)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: JWT_SECRET is required", ErrConfig)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("%w: STORAGE_DRIVER=postgres requires STORAGE_DSN", ErrConfig)
	}
	if _, err := time.ParseDuration(c.Rate.Window); err != nil {
		return fmt.Errorf("%w: invalid rate window %q", ErrConfig, c.Rate.Window)
	}
	return nil
}

// RateWindow returns the parsed rate window. validate guarantees it parses.
func (c *Config) RateWindow() time.Duration {
	d, _ := time.ParseDuration(c.Rate.Window)
	return d
}
