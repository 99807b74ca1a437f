// Package config loads mailgate settings from the environment.
//
// A .env file in the working directory is read first when present.
// Variables already set in the process environment win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/spana/mailgate/pkg/logger"
	"github.com/spana/mailgate/pkg/mailer"
	"github.com/spana/mailgate/pkg/mailer/resend"
	"github.com/spana/mailgate/pkg/mailer/smtp"
)

// ErrInvalid is returned when a loaded value is out of range.
var ErrInvalid = errors.New("config: invalid value")

// Config is the full service configuration.
type Config struct {
	Service ServiceConfig
	Links   LinksConfig
	SMTP    smtp.Config
	Resend  resend.Config
	Log     logger.Config

	// RedisURL enables a shared liveness cache. Empty keeps it in memory.
	RedisURL string `env:"REDIS_URL"`

	CORSAllowOrigins []string `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"*"`

	// LivenessTTL and LivenessFailureTTL bound how long a hosted API
	// credential check is trusted.
	LivenessTTL        time.Duration `env:"LIVENESS_TTL" envDefault:"5m"`
	LivenessFailureTTL time.Duration `env:"LIVENESS_FAILURE_TTL" envDefault:"1m"`
}

// ServiceConfig holds the HTTP surface settings.
type ServiceConfig struct {
	Port            int           `env:"PORT" envDefault:"3000"`
	APISecret       string        `env:"API_SECRET"`
	Name            string        `env:"SERVICE_NAME" envDefault:"spana-email-service"`
	Version         string        `env:"SERVICE_VERSION" envDefault:"1.0.0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// LinksConfig overrides links rendered into built-in templates.
type LinksConfig struct {
	DownloadURL string `env:"APP_DOWNLOAD_URL" envDefault:"https://spana.co.za/download"`
	LoginURL    string `env:"APP_LOGIN_URL" envDefault:"https://app.spana.co.za/login"`
	LogoURL     string `env:"BRAND_LOGO_URL"`
}

// Address is the listen address derived from PORT.
func (c Config) Address() string {
	return ":" + strconv.Itoa(c.Service.Port)
}

// Defaults fills the template parameters the caller left blank.
func (l LinksConfig) Defaults(p mailer.TemplateParams) mailer.TemplateParams {
	if p.DownloadLink == "" {
		p.DownloadLink = l.DownloadURL
	}
	if p.LoginURL == "" {
		p.LoginURL = l.LoginURL
	}
	if p.LogoURL == "" {
		p.LogoURL = l.LogoURL
	}
	return p
}

// Load reads .env files (if any) and then the process environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return parse(env.Options{})
}

// LoadFrom parses configuration from vars alone, ignoring the process
// environment and .env files.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: PORT %d", ErrInvalid, c.Service.Port))
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: SMTP_PORT %d", ErrInvalid, c.SMTP.Port))
	}
	if c.LivenessFailureTTL > c.LivenessTTL {
		errs = append(errs, fmt.Errorf("%w: LIVENESS_FAILURE_TTL exceeds LIVENESS_TTL", ErrInvalid))
	}

	origins := c.CORSAllowOrigins[:0]
	for _, o := range c.CORSAllowOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSAllowOrigins = origins

	return errors.Join(errs...)
}
