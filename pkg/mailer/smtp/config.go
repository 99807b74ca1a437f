package smtp

import (
	"strings"
	"time"
)

// DefaultFrom is the sender of last resort.
const DefaultFrom = "noreply@spana.co.za"

// Config describes the SMTP relay. Field tags are read by caarlos0/env.
type Config struct {
	Host               string        `env:"SMTP_HOST"`
	User               string        `env:"SMTP_USER"`
	Password           string        `env:"SMTP_PASS"`
	From               string        `env:"SMTP_FROM"`
	Port               int           `env:"SMTP_PORT" envDefault:"587"`
	Secure             bool          `env:"SMTP_SECURE"`
	RejectUnauthorized bool          `env:"SMTP_REJECT_UNAUTHORIZED" envDefault:"true"`
	ConnectTimeout     time.Duration `env:"SMTP_CONNECT_TIMEOUT" envDefault:"30s"`
	GreetingTimeout    time.Duration `env:"SMTP_GREETING_TIMEOUT" envDefault:"5s"`
	SocketTimeout      time.Duration `env:"SMTP_SOCKET_TIMEOUT" envDefault:"30s"`
}

// Configured reports whether host, user and password are all set.
func (c Config) Configured() bool {
	return c.Host != "" && c.User != "" && c.Password != ""
}

// ImplicitTLS reports whether the connection starts with a TLS handshake.
// Otherwise STARTTLS is required before authenticating.
func (c Config) ImplicitTLS() bool {
	return c.Secure || c.Port == 465
}

// Sender resolves the From address: override, SMTP_FROM, the login user
// when it is an address, then DefaultFrom.
func (c Config) Sender(override string) string {
	switch {
	case strings.TrimSpace(override) != "":
		return override
	case c.From != "":
		return c.From
	case strings.Contains(c.User, "@"):
		return c.User
	default:
		return DefaultFrom
	}
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = 587
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.GreetingTimeout <= 0 {
		c.GreetingTimeout = 5 * time.Second
	}
	if c.SocketTimeout <= 0 {
		c.SocketTimeout = 30 * time.Second
	}
	return c
}
